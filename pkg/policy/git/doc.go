// Package git pulls the gateway rule file from a Git repository.
//
// The repository is cloned to a local directory and polled for new commits.
// When a commit changes the rule file, the reload callback runs against the
// file in the working tree. If the callback fails, the working tree is put
// back to the last commit that loaded, so a restart sees known-good rules:
//
//	repo, err := git.NewRepository(&cfg.Rules.Git, logger)
//	if err != nil {
//		return err
//	}
//	if _, err := repo.Sync(ctx); err != nil {
//		return err
//	}
//	cfg.Rules.FilePath = repo.RulesPath()
//
//	manager, err := rules.NewManager(ctx, loader, &cfg.Rules)
//	...
//	poller := git.NewPoller(repo, cfg.Rules.Git.PollInterval, func(ctx context.Context, c *git.Commit) error {
//		return manager.Reload(ctx)
//	}, logger)
//	go poller.Run(ctx)
//
// # Authentication
//
//   - token: HTTPS basic auth with a personal access token
//   - ssh: public key from a file that must not be group or world readable
//   - none: public or local repositories
package git
