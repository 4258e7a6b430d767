package git

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport"

	"mercator-hq/gateway/pkg/config"
)

// Commit describes a commit of the rule repository.
type Commit struct {
	SHA     string    `json:"sha"`
	Author  string    `json:"author"`
	Message string    `json:"message"`
	Time    time.Time `json:"time"`
}

// Short returns the abbreviated SHA.
func (c *Commit) Short() string {
	if len(c.SHA) > 8 {
		return c.SHA[:8]
	}
	return c.SHA
}

// PullResult contains the result of a pull.
type PullResult struct {
	From       string
	To         string
	HadChanges bool
}

// Repository is a local clone of the rule repository.
type Repository struct {
	cfg    config.GitConfig
	auth   transport.AuthMethod
	branch plumbing.ReferenceName
	logger *slog.Logger

	mu   sync.Mutex
	repo *gogit.Repository
}

// NewRepository prepares a clone of cfg.Repository at cfg.LocalPath. Nothing
// is fetched until Sync.
func NewRepository(cfg *config.GitConfig, logger *slog.Logger) (*Repository, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.Repository == "" {
		return nil, fmt.Errorf("repository URL cannot be empty")
	}
	if cfg.Branch == "" {
		return nil, fmt.Errorf("branch cannot be empty")
	}
	if logger == nil {
		logger = slog.Default()
	}
	auth, err := authMethod(cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("failed to create auth method: %w", err)
	}

	r := &Repository{
		cfg:    *cfg,
		auth:   auth,
		branch: plumbing.NewBranchReferenceName(cfg.Branch),
		logger: logger.With("component", "rules.git"),
	}
	if r.cfg.LocalPath == "" {
		r.cfg.LocalPath = filepath.Join(os.TempDir(), config.DefaultGitLocalDir)
	}
	return r, nil
}

// LocalPath returns the directory of the clone.
func (r *Repository) LocalPath() string {
	return r.cfg.LocalPath
}

// RulesPath returns the path of the rule file in the working tree.
func (r *Repository) RulesPath() string {
	return filepath.Join(r.cfg.LocalPath, filepath.FromSlash(r.cfg.Path))
}

// Sync clones the repository, or opens an existing clone and pulls it, and
// returns the checked out commit.
func (r *Repository) Sync(ctx context.Context) (*Commit, error) {
	r.mu.Lock()
	opened, err := r.open(ctx)
	r.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if opened {
		if _, err := r.Pull(ctx); err != nil {
			return nil, err
		}
	}
	return r.Head()
}

// open clones or opens the repository. It reports whether an existing clone
// was opened.
func (r *Repository) open(ctx context.Context) (bool, error) {
	if r.repo != nil {
		return true, nil
	}
	if r.cfg.CleanOnStart {
		if err := os.RemoveAll(r.cfg.LocalPath); err != nil {
			return false, fmt.Errorf("failed to clean existing clone: %w", err)
		}
	}

	if _, err := os.Stat(filepath.Join(r.cfg.LocalPath, ".git")); err == nil {
		repo, err := gogit.PlainOpen(r.cfg.LocalPath)
		if err != nil {
			return false, fmt.Errorf("failed to open existing clone: %w", err)
		}
		r.repo = repo
		r.logger.Info("Opened existing rules clone", "path", r.cfg.LocalPath)
		return true, nil
	}

	if err := os.MkdirAll(r.cfg.LocalPath, 0o755); err != nil {
		return false, fmt.Errorf("failed to create clone directory: %w", err)
	}
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	start := time.Now()
	repo, err := gogit.PlainCloneContext(ctx, r.cfg.LocalPath, false, &gogit.CloneOptions{
		URL:           r.cfg.Repository,
		ReferenceName: r.branch,
		SingleBranch:  r.cfg.Depth > 0,
		Depth:         r.cfg.Depth,
		Auth:          r.auth,
	})
	if err != nil {
		return false, fmt.Errorf("failed to clone %s: %w", r.cfg.Repository, err)
	}
	r.repo = repo
	r.logger.Info("Cloned rules repository",
		"repository", r.cfg.Repository,
		"branch", r.cfg.Branch,
		"duration", time.Since(start),
	)
	return false, nil
}

// Pull checks out the tracked branch and fast-forwards it to the remote.
func (r *Repository) Pull(ctx context.Context) (*PullResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.repo == nil {
		return nil, fmt.Errorf("repository not initialized, call Sync() first")
	}
	wt, err := r.repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("failed to get worktree: %w", err)
	}

	// A rollback leaves HEAD detached.
	if head, err := r.repo.Head(); err != nil || head.Name() != r.branch {
		if err := wt.Checkout(&gogit.CheckoutOptions{Branch: r.branch, Force: true}); err != nil {
			return nil, fmt.Errorf("failed to check out %s: %w", r.cfg.Branch, err)
		}
	}
	from, err := r.repo.Head()
	if err != nil {
		return nil, fmt.Errorf("failed to get HEAD: %w", err)
	}

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()
	err = wt.PullContext(ctx, &gogit.PullOptions{
		RemoteName:    "origin",
		ReferenceName: r.branch,
		SingleBranch:  r.cfg.Depth > 0,
		Depth:         r.cfg.Depth,
		Auth:          r.auth,
	})
	if err != nil && !errors.Is(err, gogit.NoErrAlreadyUpToDate) {
		return nil, fmt.Errorf("failed to pull: %w", err)
	}

	to, err := r.repo.Head()
	if err != nil {
		return nil, fmt.Errorf("failed to get HEAD: %w", err)
	}
	return &PullResult{
		From:       from.Hash().String(),
		To:         to.Hash().String(),
		HadChanges: from.Hash() != to.Hash(),
	}, nil
}

// Head returns the checked out commit.
func (r *Repository) Head() (*Commit, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.repo == nil {
		return nil, fmt.Errorf("repository not initialized, call Sync() first")
	}
	ref, err := r.repo.Head()
	if err != nil {
		return nil, fmt.Errorf("failed to get HEAD: %w", err)
	}
	return r.commit(ref.Hash())
}

func (r *Repository) commit(h plumbing.Hash) (*Commit, error) {
	c, err := r.repo.CommitObject(h)
	if err != nil {
		return nil, fmt.Errorf("failed to get commit %s: %w", h, err)
	}
	return &Commit{
		SHA:     c.Hash.String(),
		Author:  c.Author.Name,
		Message: c.Message,
		Time:    c.Author.When,
	}, nil
}

// RulesChanged reports whether the rule file differs between two commits.
func (r *Repository) RulesChanged(fromSHA, toSHA string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.repo == nil {
		return false, fmt.Errorf("repository not initialized")
	}
	from, err := r.fileHash(fromSHA)
	if err != nil {
		return false, err
	}
	to, err := r.fileHash(toSHA)
	if err != nil {
		return false, err
	}
	return from != to, nil
}

// fileHash returns the blob hash of the rule file at sha, or the zero hash
// when the file does not exist there.
func (r *Repository) fileHash(sha string) (plumbing.Hash, error) {
	c, err := r.repo.CommitObject(plumbing.NewHash(sha))
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("failed to get commit %s: %w", sha, err)
	}
	tree, err := c.Tree()
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("failed to get tree of %s: %w", sha, err)
	}
	entry, err := tree.FindEntry(r.cfg.Path)
	if err != nil {
		return plumbing.ZeroHash, nil
	}
	return entry.Hash, nil
}

// Checkout moves the working tree to sha, detaching HEAD. The next Pull
// returns to the tracked branch.
func (r *Repository) Checkout(sha string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.repo == nil {
		return fmt.Errorf("repository not initialized")
	}
	h := plumbing.NewHash(sha)
	if _, err := r.repo.CommitObject(h); err != nil {
		return fmt.Errorf("target commit not found: %w", err)
	}
	wt, err := r.repo.Worktree()
	if err != nil {
		return fmt.Errorf("failed to get worktree: %w", err)
	}
	if err := wt.Checkout(&gogit.CheckoutOptions{Hash: h, Force: true}); err != nil {
		return fmt.Errorf("failed to check out %s: %w", sha, err)
	}
	return nil
}

func (r *Repository) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.cfg.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, r.cfg.Timeout)
}
