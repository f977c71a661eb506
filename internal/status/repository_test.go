package status

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"arbiter/internal/judge"
	appErr "arbiter/pkg/errors"
)

func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRepositoryWithClient(client)
}

func TestReportAndGetState(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if err := repo.ReportState(ctx, "s1", judge.StateRunning); err != nil {
		t.Fatalf("report state: %v", err)
	}
	state, err := repo.GetState(ctx, "s1")
	if err != nil {
		t.Fatalf("get state: %v", err)
	}
	if state != judge.StateRunning {
		t.Fatalf("state = %v, want running", state)
	}

	// Later reports overwrite.
	if err := repo.ReportState(ctx, "s1", judge.StateCompleted); err != nil {
		t.Fatalf("report state: %v", err)
	}
	state, err = repo.GetState(ctx, "s1")
	if err != nil {
		t.Fatalf("get state: %v", err)
	}
	if state != judge.StateCompleted {
		t.Fatalf("state = %v, want completed", state)
	}
}

func TestGetStateMiss(t *testing.T) {
	repo := newTestRepo(t)
	_, err := repo.GetState(context.Background(), "missing")
	if !appErr.Is(err, appErr.CacheMiss) {
		t.Fatalf("err = %v, want CacheMiss", err)
	}
}

func TestReportAndGetProgress(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if err := repo.ReportProgress(ctx, "s1", 3, 10); err != nil {
		t.Fatalf("report progress: %v", err)
	}
	progress, err := repo.GetProgress(ctx, "s1")
	if err != nil {
		t.Fatalf("get progress: %v", err)
	}
	if progress != "3/10" {
		t.Fatalf("progress = %q, want 3/10", progress)
	}
}

func TestGetProgressMiss(t *testing.T) {
	repo := newTestRepo(t)
	_, err := repo.GetProgress(context.Background(), "missing")
	if !appErr.Is(err, appErr.CacheMiss) {
		t.Fatalf("err = %v, want CacheMiss", err)
	}
}
