package journal

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/huntsman-telescope/huntsman-core/internal/infrastructure/config"
	"github.com/huntsman-telescope/huntsman-core/internal/infrastructure/database"
	"github.com/huntsman-telescope/huntsman-core/migrations"
)

func openTestRepo(t *testing.T) (*SQLiteRepository, *database.DB) {
	t.Helper()
	ctx := context.Background()
	db, err := database.Open(ctx, config.DatabaseConfig{
		Path:    filepath.Join(t.TempDir(), "journal.db"),
		WALMode: true,
	})
	if err != nil {
		t.Fatalf("database.Open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := db.Migrate(ctx, migrations.FS); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	return NewSQLiteRepository(db.DB), db
}

func TestRecordAndList(t *testing.T) {
	repo, _ := openTestRepo(t)
	ctx := context.Background()
	base := time.Date(2026, 6, 21, 10, 0, 0, 0, time.UTC)

	entries := []*Entry{
		{RunID: "run-1", From: "starting", To: "ready", Duration: 1500 * time.Millisecond, At: base},
		{RunID: "run-1", From: "ready", To: "scheduling", At: base.Add(time.Second)},
		{RunID: "run-1", From: "scheduling", To: "parking", Forced: true, ObservationID: "obs-9", At: base.Add(2 * time.Second)},
		{RunID: "run-2", From: "starting", To: "ready", At: base.Add(time.Hour)},
	}
	for _, e := range entries {
		if err := repo.Record(ctx, e); err != nil {
			t.Fatalf("Record: %v", err)
		}
		if e.ID == "" {
			t.Fatal("Record did not assign an ID")
		}
	}

	all, err := repo.List(ctx, Filter{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if all.Total != 4 || len(all.Entries) != 4 {
		t.Fatalf("total = %d, len = %d, want 4", all.Total, len(all.Entries))
	}
	if all.Entries[0].RunID != "run-2" {
		t.Errorf("first entry run = %q, want newest (run-2)", all.Entries[0].RunID)
	}
	if all.Limit != defaultLimit {
		t.Errorf("Limit = %d, want %d", all.Limit, defaultLimit)
	}

	forced := all.Entries[1]
	if !forced.Forced || forced.ObservationID != "obs-9" || forced.To != "parking" {
		t.Errorf("forced entry = %+v", forced)
	}
	if got := all.Entries[3].Duration; got != 1500*time.Millisecond {
		t.Errorf("Duration = %v, want 1.5s", got)
	}
	if !all.Entries[3].At.Equal(base) {
		t.Errorf("At = %v, want %v", all.Entries[3].At, base)
	}
}

func TestListFilters(t *testing.T) {
	repo, _ := openTestRepo(t)
	ctx := context.Background()
	base := time.Date(2026, 6, 21, 10, 0, 0, 0, time.UTC)

	for i, to := range []string{"ready", "scheduling", "slewing", "observing", "parking"} {
		err := repo.Record(ctx, &Entry{RunID: "run-1", From: "x", To: to, At: base.Add(time.Duration(i) * time.Minute)})
		if err != nil {
			t.Fatalf("Record: %v", err)
		}
	}
	_ = repo.Record(ctx, &Entry{RunID: "run-2", From: "parking", To: "parked", At: base.Add(time.Hour)})

	tests := []struct {
		name   string
		filter Filter
		total  int
		count  int
	}{
		{"by run", Filter{RunID: "run-2"}, 1, 1},
		{"by state either side", Filter{State: "parking"}, 2, 2},
		{"since", Filter{Since: base.Add(3 * time.Minute)}, 3, 3},
		{"paged", Filter{RunID: "run-1", Limit: 2, Offset: 4}, 5, 1},
		{"limit clamped", Filter{Limit: 10_000}, 6, 6},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := repo.List(ctx, tt.filter)
			if err != nil {
				t.Fatalf("List: %v", err)
			}
			if res.Total != tt.total || len(res.Entries) != tt.count {
				t.Errorf("total = %d, count = %d, want %d, %d", res.Total, len(res.Entries), tt.total, tt.count)
			}
			if res.Limit > maxLimit {
				t.Errorf("Limit = %d exceeds max", res.Limit)
			}
		})
	}
}

func TestRecordParkAttempt(t *testing.T) {
	repo, db := openTestRepo(t)
	ctx := context.Background()

	if err := repo.RecordParkAttempt(ctx, &ParkAttempt{RunID: "run-1", Attempt: 1, Error: "mount timeout"}); err != nil {
		t.Fatalf("RecordParkAttempt: %v", err)
	}
	if err := repo.RecordParkAttempt(ctx, &ParkAttempt{RunID: "run-1", Attempt: 2}); err != nil {
		t.Fatalf("RecordParkAttempt: %v", err)
	}

	var n, failed int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*), COUNT(error) FROM park_attempts").Scan(&n, &failed); err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 2 || failed != 1 {
		t.Errorf("rows = %d, failed = %d, want 2, 1", n, failed)
	}
}
