package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/boalang/boa-client-go/pkg/models"
)

// testStore connects to BOA_TEST_DATABASE_URL, skipping when it is unset.
func testStore(t *testing.T) *Store {
	t.Helper()
	url := os.Getenv("BOA_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("BOA_TEST_DATABASE_URL not set")
	}

	s, err := New(url)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	if err := s.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	return s
}

func TestRecordAndListJobs(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	base := time.Date(2030, 1, 1, 12, 0, 0, 0, time.UTC)
	jobs := []models.Job{
		{ID: 900001, SubmittedAt: base, Dataset: models.Dataset{ID: 1, Name: "small"},
			CompileStatus: models.StatusFinished, ExecStatus: models.StatusRunning},
		{ID: 900002, SubmittedAt: base.Add(time.Hour), Dataset: models.Dataset{ID: 2, Name: "big"},
			CompileStatus: models.StatusError, ExecStatus: models.StatusWaiting},
	}
	t.Cleanup(func() {
		s.db.Exec(`DELETE FROM boa_jobs WHERE id IN (900001, 900002)`)
	})

	if err := s.RecordJobs(ctx, jobs); err != nil {
		t.Fatalf("RecordJobs: %v", err)
	}

	// Re-recording replaces the statuses.
	jobs[0].ExecStatus = models.StatusFinished
	if err := s.RecordJobs(ctx, jobs[:1]); err != nil {
		t.Fatalf("RecordJobs: %v", err)
	}

	got, err := s.ListJobs(ctx, 2)
	if err != nil {
		t.Fatalf("ListJobs: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("ListJobs returned %d jobs, want 2", len(got))
	}
	if got[0].ID != 900002 || got[1].ID != 900001 {
		t.Errorf("order = %d, %d; want newest first", got[0].ID, got[1].ID)
	}
	if got[1].ExecStatus != models.StatusFinished {
		t.Errorf("exec status = %v, want Finished", got[1].ExecStatus)
	}
	if got[0].Dataset != (models.Dataset{ID: 2, Name: "big"}) {
		t.Errorf("dataset = %v", got[0].Dataset)
	}
	if !got[1].SubmittedAt.Equal(base) {
		t.Errorf("submitted = %v, want %v", got[1].SubmittedAt, base)
	}
}

func TestMigrateIsIdempotent(t *testing.T) {
	s := testStore(t)
	if err := s.Migrate(context.Background()); err != nil {
		t.Errorf("second Migrate: %v", err)
	}
}
