package cleanup

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/zebramusic/cloackroom-app-sub001/internal/metrics"
	"github.com/zebramusic/cloackroom-app-sub001/internal/model"
	"github.com/zebramusic/cloackroom-app-sub001/internal/repository"
)

type mockSessionSweeper struct {
	deleteExpiredFn func(ctx context.Context, nowMs int64) (int64, error)
}

func (m *mockSessionSweeper) DeleteExpired(ctx context.Context, nowMs int64) (int64, error) {
	return m.deleteExpiredFn(ctx, nowMs)
}

type mockResetSweeper struct {
	deleteStaleFn func(ctx context.Context, nowMs int64) (int64, error)
}

func (m *mockResetSweeper) DeleteStale(ctx context.Context, nowMs int64) (int64, error) {
	return m.deleteStaleFn(ctx, nowMs)
}

// recordingMetrics はRecordCleanupの呼び出しを記録する。
type recordingMetrics struct {
	metrics.Nop
	mu      sync.Mutex
	removed map[string]int64
}

func (r *recordingMetrics) RecordCleanup(kind string, removed int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.removed == nil {
		r.removed = make(map[string]int64)
	}
	r.removed[kind] += removed
}

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}

func fixed(n int64) func(context.Context, int64) (int64, error) {
	return func(context.Context, int64) (int64, error) { return n, nil }
}

func TestCleanupJob_Run_RecordsRemovals(t *testing.T) {
	var buf bytes.Buffer
	mc := &recordingMetrics{}
	job := NewCleanupJob(
		&mockSessionSweeper{deleteExpiredFn: fixed(3)},
		&mockResetSweeper{deleteStaleFn: fixed(2)},
		newTestLogger(&buf), mc,
	)

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if mc.removed[KindSessions] != 3 || mc.removed[KindResetTokens] != 2 {
		t.Errorf("removed = %v", mc.removed)
	}

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse log: %v\n%s", err, buf.String())
	}
	if entry["deleted_sessions"] != float64(3) || entry["deleted_reset_tokens"] != float64(2) {
		t.Errorf("log entry = %v", entry)
	}
}

func TestCleanupJob_Run_PassesCurrentTime(t *testing.T) {
	var gotSessions, gotResets int64
	job := NewCleanupJob(
		&mockSessionSweeper{deleteExpiredFn: func(_ context.Context, nowMs int64) (int64, error) {
			gotSessions = nowMs
			return 0, nil
		}},
		&mockResetSweeper{deleteStaleFn: func(_ context.Context, nowMs int64) (int64, error) {
			gotResets = nowMs
			return 0, nil
		}},
		newTestLogger(&bytes.Buffer{}), nil,
	)
	job.now = func() time.Time { return time.UnixMilli(42_000) }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if gotSessions != 42_000 || gotResets != 42_000 {
		t.Errorf("nowMs = %d/%d, want 42000", gotSessions, gotResets)
	}
}

func TestCleanupJob_Run_SessionFailureStillSweepsResets(t *testing.T) {
	var buf bytes.Buffer
	resetCalled := false
	job := NewCleanupJob(
		&mockSessionSweeper{deleteExpiredFn: func(context.Context, int64) (int64, error) {
			return 0, errors.New("connection refused")
		}},
		&mockResetSweeper{deleteStaleFn: func(context.Context, int64) (int64, error) {
			resetCalled = true
			return 1, nil
		}},
		newTestLogger(&buf), nil,
	)

	err := job.Run(context.Background())
	if err == nil {
		t.Fatal("expected error when session sweep fails")
	}
	if !resetCalled {
		t.Error("reset token sweep should run even if the session sweep fails")
	}
	if !strings.Contains(buf.String(), "connection refused") {
		t.Error("failure should be logged")
	}
}

func TestCleanupJob_Run_ResetFailure(t *testing.T) {
	job := NewCleanupJob(
		&mockSessionSweeper{deleteExpiredFn: fixed(0)},
		&mockResetSweeper{deleteStaleFn: func(context.Context, int64) (int64, error) {
			return 0, errors.New("timeout")
		}},
		newTestLogger(&bytes.Buffer{}), nil,
	)

	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error when reset sweep fails")
	}
}

// TestCleanupJob_Run_MemoryRepositories はインメモリリポジトリに対して削除が効くことを検証する。
func TestCleanupJob_Run_MemoryRepositories(t *testing.T) {
	ctx := context.Background()
	repos := repository.NewMemoryRepositories()
	now := time.UnixMilli(10_000)

	_ = repos.Sessions.Upsert(ctx, &model.Session{Token: "st_1.live", StaffID: "st_1", UserType: model.RoleStaff, CreatedAt: 1, ExpiresAt: 20_000})
	_ = repos.Sessions.Upsert(ctx, &model.Session{Token: "st_1.dead", StaffID: "st_1", UserType: model.RoleStaff, CreatedAt: 1, ExpiresAt: 5_000})
	_ = repos.PasswordResets.Create(ctx, &model.PasswordResetToken{Token: "rst.st_1.old", StaffID: "st_1", UserType: model.RoleStaff, CreatedAt: 1, ExpiresAt: 5_000})
	_ = repos.PasswordResets.Create(ctx, &model.PasswordResetToken{Token: "rst.st_1.new", StaffID: "st_1", UserType: model.RoleStaff, CreatedAt: 1, ExpiresAt: 20_000})

	job := NewCleanupJob(repos.Sessions, repos.PasswordResets, newTestLogger(&bytes.Buffer{}), nil)
	job.now = func() time.Time { return now }

	if err := job.Run(ctx); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if s, _ := repos.Sessions.FindByToken(ctx, "st_1.dead"); s != nil {
		t.Error("expired session should be removed")
	}
	if s, _ := repos.Sessions.FindByToken(ctx, "st_1.live"); s == nil {
		t.Error("live session should be kept")
	}
	if tok, _ := repos.PasswordResets.FindByToken(ctx, "rst.st_1.old"); tok != nil {
		t.Error("expired reset token should be removed")
	}
	if tok, _ := repos.PasswordResets.FindByToken(ctx, "rst.st_1.new"); tok == nil {
		t.Error("valid reset token should be kept")
	}
}

func TestCleanupJob_Start_StopsOnCancel(t *testing.T) {
	var mu sync.Mutex
	runs := 0
	job := NewCleanupJob(
		&mockSessionSweeper{deleteExpiredFn: func(context.Context, int64) (int64, error) {
			mu.Lock()
			runs++
			mu.Unlock()
			return 0, nil
		}},
		&mockResetSweeper{deleteStaleFn: fixed(0)},
		newTestLogger(&bytes.Buffer{}), nil,
	)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		job.Start(ctx, time.Hour)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for {
		mu.Lock()
		n := runs
		mu.Unlock()
		if n >= 1 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("Start should run once immediately")
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return after cancel")
	}
}
