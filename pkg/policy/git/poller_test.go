package git

import (
	"context"
	"errors"
	"testing"
	"time"
)

type reloadRecorder struct {
	commits []string
	err     error
}

func (r *reloadRecorder) reload(_ context.Context, c *Commit) error {
	r.commits = append(r.commits, c.SHA)
	return r.err
}

func TestPoller_Check(t *testing.T) {
	src := newSourceRepo(t, map[string]string{"policy/rules.yaml": "v1\n"})
	repo, err := NewRepository(src.config(t), testLogger())
	if err != nil {
		t.Fatalf("NewRepository() error = %v", err)
	}
	initial, err := repo.Sync(context.Background())
	if err != nil {
		t.Fatalf("Sync() error = %v", err)
	}

	rec := &reloadRecorder{}
	p := NewPoller(repo, time.Minute, rec.reload, testLogger())
	ctx := context.Background()

	// Nothing new.
	reloaded, err := p.Check(ctx)
	if err != nil || reloaded {
		t.Fatalf("Check() = %v, %v; want false, nil", reloaded, err)
	}

	// Unrelated files do not reload.
	docs := src.commit("docs", map[string]string{"README.md": "hello\n"})
	reloaded, err = p.Check(ctx)
	if err != nil || reloaded {
		t.Fatalf("Check() after docs commit = %v, %v; want false, nil", reloaded, err)
	}
	if p.LastGood() != docs {
		t.Errorf("LastGood() = %s, want %s", p.LastGood(), docs)
	}

	// A rules change reloads.
	v2 := src.commit("v2", map[string]string{"policy/rules.yaml": "v2\n"})
	reloaded, err = p.Check(ctx)
	if err != nil || !reloaded {
		t.Fatalf("Check() after rules commit = %v, %v; want true, nil", reloaded, err)
	}
	if len(rec.commits) != 1 || rec.commits[0] != v2 {
		t.Errorf("reloads = %v, want [%s]", rec.commits, v2)
	}
	if readFile(t, repo.RulesPath()) != "v2\n" {
		t.Error("working tree not at v2")
	}
	if initial.SHA == p.LastGood() {
		t.Error("LastGood() did not advance")
	}
}

func TestPoller_RollbackOnFailedReload(t *testing.T) {
	src := newSourceRepo(t, map[string]string{"policy/rules.yaml": "good\n"})
	repo, err := NewRepository(src.config(t), testLogger())
	if err != nil {
		t.Fatalf("NewRepository() error = %v", err)
	}
	good, err := repo.Sync(context.Background())
	if err != nil {
		t.Fatalf("Sync() error = %v", err)
	}

	rec := &reloadRecorder{err: errors.New("does not compile")}
	p := NewPoller(repo, time.Minute, rec.reload, testLogger())
	ctx := context.Background()

	src.commit("bad", map[string]string{"policy/rules.yaml": "bad\n"})
	if _, err := p.Check(ctx); err == nil {
		t.Fatal("expected error from failed reload")
	}
	if p.LastGood() != good.SHA {
		t.Errorf("LastGood() = %s, want %s", p.LastGood(), good.SHA)
	}
	if got := readFile(t, repo.RulesPath()); got != "good\n" {
		t.Errorf("working tree not rolled back, rules = %q", got)
	}

	// The failing commit is not retried, and the tree stays rolled back.
	reloaded, err := p.Check(ctx)
	if err != nil || reloaded {
		t.Fatalf("second Check() = %v, %v; want false, nil", reloaded, err)
	}
	if len(rec.commits) != 1 {
		t.Errorf("reload called %d times, want 1", len(rec.commits))
	}
	if got := readFile(t, repo.RulesPath()); got != "good\n" {
		t.Errorf("working tree moved off last good commit, rules = %q", got)
	}

	// A fixed commit loads.
	rec.err = nil
	fixed := src.commit("fix", map[string]string{"policy/rules.yaml": "fixed\n"})
	reloaded, err = p.Check(ctx)
	if err != nil || !reloaded {
		t.Fatalf("Check() after fix = %v, %v; want true, nil", reloaded, err)
	}
	if p.LastGood() != fixed {
		t.Errorf("LastGood() = %s, want %s", p.LastGood(), fixed)
	}
}

func TestPoller_RunStopsOnCancel(t *testing.T) {
	src := newSourceRepo(t, map[string]string{"policy/rules.yaml": "v1\n"})
	repo, err := NewRepository(src.config(t), testLogger())
	if err != nil {
		t.Fatalf("NewRepository() error = %v", err)
	}
	if _, err := repo.Sync(context.Background()); err != nil {
		t.Fatalf("Sync() error = %v", err)
	}

	rec := &reloadRecorder{}
	p := NewPoller(repo, 10*time.Millisecond, rec.reload, testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	src.commit("v2", map[string]string{"policy/rules.yaml": "v2\n"})
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) && readFile(t, repo.RulesPath()) != "v2\n" {
		time.Sleep(10 * time.Millisecond)
	}
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run() did not stop after cancel")
	}
	if len(rec.commits) == 0 {
		t.Error("expected a reload from the poll loop")
	}
}

func TestPoller_RunRequiresInterval(t *testing.T) {
	p := NewPoller(nil, 0, nil, testLogger())
	if err := p.Run(context.Background()); err == nil {
		t.Error("expected error for zero interval")
	}
}
