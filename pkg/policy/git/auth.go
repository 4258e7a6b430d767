package git

import (
	"errors"
	"fmt"
	"os"

	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/go-git/go-git/v5/plumbing/transport/ssh"

	"mercator-hq/gateway/pkg/config"
)

// gitUser is the user presented to the remote. Hosts authenticate a token
// by its value and an SSH key by the key itself, so the name is arbitrary.
const gitUser = "git"

// authMethod maps the rule repository's credentials onto a go-git
// transport. Secret references in cfg must already be expanded. A nil
// method clones anonymously.
func authMethod(cfg config.GitAuthConfig) (transport.AuthMethod, error) {
	switch cfg.Type {
	case "", "none":
		return nil, nil
	case "token":
		return tokenAuth(cfg.Token)
	case "ssh":
		return sshAuth(cfg.SSHKeyPath, cfg.SSHKeyPassphrase)
	}
	return nil, fmt.Errorf("unknown git auth type %q", cfg.Type)
}

func tokenAuth(token string) (transport.AuthMethod, error) {
	if token == "" {
		return nil, errors.New("token auth requires a token")
	}
	return &http.BasicAuth{Username: gitUser, Password: token}, nil
}

// sshAuth refuses keys readable by group or others, as ssh itself does.
func sshAuth(keyPath, passphrase string) (transport.AuthMethod, error) {
	if keyPath == "" {
		return nil, errors.New("ssh auth requires ssh_key_path")
	}
	fi, err := os.Stat(keyPath)
	if err != nil {
		return nil, fmt.Errorf("ssh key: %w", err)
	}
	if perm := fi.Mode().Perm(); perm&0o077 != 0 {
		return nil, fmt.Errorf("ssh key %s permissions %#o too open, want 0600", keyPath, perm)
	}
	keys, err := ssh.NewPublicKeysFromFile(gitUser, keyPath, passphrase)
	if err != nil {
		return nil, fmt.Errorf("failed to load SSH key %s: %w", keyPath, err)
	}
	return keys, nil
}
