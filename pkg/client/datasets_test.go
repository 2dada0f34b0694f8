package client

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/boalang/boa-client-go/pkg/apperrors"
	"github.com/boalang/boa-client-go/pkg/models"
)

func catalog() []any {
	return []any{
		map[string]any{"id": "1", "name": "small"},
		map[string]any{"id": "2", "name": "big"},
	}
}

func TestDatasets_CachedWithinTTL(t *testing.T) {
	f := newFakeBoa(t)
	f.reply("boa.datasets", catalog())
	c := f.loggedInClient(nil)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		ds, err := c.Datasets(ctx)
		if err != nil {
			t.Fatalf("Datasets: %v", err)
		}
		if len(ds) != 2 || ds[0] != (models.Dataset{ID: 1, Name: "small"}) {
			t.Errorf("Datasets = %v", ds)
		}
	}
	if n := len(f.callsTo("boa.datasets")); n != 1 {
		t.Fatalf("boa.datasets called %d times, want 1", n)
	}

	c.ResetDatasetCache()
	if _, err := c.Datasets(ctx); err != nil {
		t.Fatalf("Datasets: %v", err)
	}
	if n := len(f.callsTo("boa.datasets")); n != 2 {
		t.Errorf("boa.datasets called %d times after reset, want 2", n)
	}
}

func TestDatasets_RefetchAfterTTL(t *testing.T) {
	f := newFakeBoa(t)
	f.reply("boa.datasets", catalog())

	now := time.Date(2014, 5, 23, 12, 0, 0, 0, time.UTC)
	c := f.loggedInClient(func(cfg *Config) {
		cfg.Clock = func() time.Time { return now }
	})
	ctx := context.Background()

	c.Datasets(ctx)
	now = now.Add(23*time.Hour + 59*time.Minute)
	c.Datasets(ctx)
	if n := len(f.callsTo("boa.datasets")); n != 1 {
		t.Fatalf("boa.datasets called %d times within ttl, want 1", n)
	}

	now = now.Add(time.Minute)
	c.Datasets(ctx)
	if n := len(f.callsTo("boa.datasets")); n != 2 {
		t.Errorf("boa.datasets called %d times after ttl, want 2", n)
	}
}

func TestDatasets_EmptyCatalogIsCached(t *testing.T) {
	f := newFakeBoa(t)
	f.reply("boa.datasets", []any{})
	c := f.loggedInClient(nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ds, err := c.Datasets(ctx)
		if err != nil {
			t.Fatalf("Datasets: %v", err)
		}
		if len(ds) != 0 {
			t.Errorf("Datasets = %v, want empty", ds)
		}
	}
	if n := len(f.callsTo("boa.datasets")); n != 1 {
		t.Errorf("boa.datasets called %d times, want 1", n)
	}
}

func TestDatasets_CallerCannotMutateCache(t *testing.T) {
	f := newFakeBoa(t)
	f.reply("boa.datasets", catalog())
	c := f.loggedInClient(nil)

	ds, _ := c.Datasets(context.Background())
	ds[0].Name = "changed"

	again, _ := c.Datasets(context.Background())
	if again[0].Name != "small" {
		t.Errorf("cached catalog was modified: %v", again)
	}
}

func TestDatasets_ConcurrentCallersFetchOnce(t *testing.T) {
	f := newFakeBoa(t)
	f.reply("boa.datasets", catalog())
	c := f.loggedInClient(nil)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := c.Datasets(context.Background()); err != nil {
				t.Errorf("Datasets: %v", err)
			}
		}()
	}
	wg.Wait()

	if n := len(f.callsTo("boa.datasets")); n != 1 {
		t.Errorf("boa.datasets called %d times, want 1", n)
	}
}

func TestDataset_ByName(t *testing.T) {
	f := newFakeBoa(t)
	f.reply("boa.datasets", catalog())
	c := f.loggedInClient(nil)
	ctx := context.Background()

	d, ok, err := c.Dataset(ctx, "small")
	if err != nil || !ok {
		t.Fatalf("Dataset(small) = %v, %v, %v", d, ok, err)
	}
	if d != (models.Dataset{ID: 1, Name: "small"}) {
		t.Errorf("Dataset(small) = %v", d)
	}

	if _, ok, err := c.Dataset(ctx, "huge"); err != nil || ok {
		t.Errorf("Dataset(huge) ok=%v err=%v, want not found", ok, err)
	}

	names, err := c.DatasetNames(ctx)
	if err != nil {
		t.Fatalf("DatasetNames: %v", err)
	}
	if len(names) != 2 || names[0] != "small" || names[1] != "big" {
		t.Errorf("DatasetNames = %v", names)
	}

	if n := len(f.callsTo("boa.datasets")); n != 1 {
		t.Errorf("lookups bypassed the cache: %d calls", n)
	}
}

// blockingCatalog makes boa.datasets wait for release once it has started.
func blockingCatalog(f *fakeBoa) (started <-chan struct{}, release chan<- struct{}) {
	s := make(chan struct{})
	r := make(chan struct{})
	var once sync.Once
	f.handle("boa.datasets", func([]any) (any, error) {
		once.Do(func() { close(s) })
		<-r
		return catalog(), nil
	})
	return s, r
}

func TestDatasets_LogoutDuringFetchDoesNotRefillCache(t *testing.T) {
	f := newFakeBoa(t)
	started, release := blockingCatalog(f)
	c := f.loggedInClient(nil)
	ctx := context.Background()

	done := make(chan error, 1)
	go func() {
		_, err := c.Datasets(ctx)
		done <- err
	}()

	<-started
	if err := c.Logout(ctx); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	close(release)
	if err := <-done; err != nil {
		t.Fatalf("in-flight Datasets: %v", err)
	}

	if _, ok := c.DatasetsFetchedAt(); ok {
		t.Error("catalog fetched before logout was cached")
	}
	if _, err := c.Datasets(ctx); !errors.Is(err, apperrors.ErrNotLoggedIn) {
		t.Errorf("Datasets after logout: err = %v, want ErrNotLoggedIn", err)
	}
}

func TestDatasets_ResetDuringFetchDoesNotRefillCache(t *testing.T) {
	f := newFakeBoa(t)
	started, release := blockingCatalog(f)
	c := f.loggedInClient(nil)
	ctx := context.Background()

	done := make(chan error, 1)
	go func() {
		_, err := c.Datasets(ctx)
		done <- err
	}()

	<-started
	c.ResetDatasetCache()
	close(release)
	if err := <-done; err != nil {
		t.Fatalf("in-flight Datasets: %v", err)
	}

	if _, ok := c.DatasetsFetchedAt(); ok {
		t.Error("catalog fetched before reset was cached")
	}
}

func TestDatasetsFetchedAt(t *testing.T) {
	f := newFakeBoa(t)
	f.reply("boa.datasets", catalog())

	now := time.Date(2014, 5, 23, 12, 0, 0, 0, time.UTC)
	c := f.loggedInClient(func(cfg *Config) {
		cfg.Clock = func() time.Time { return now }
	})

	if _, ok := c.DatasetsFetchedAt(); ok {
		t.Error("nothing fetched yet, want ok=false")
	}
	if _, err := c.Datasets(context.Background()); err != nil {
		t.Fatalf("Datasets: %v", err)
	}
	at, ok := c.DatasetsFetchedAt()
	if !ok || !at.Equal(now) {
		t.Errorf("DatasetsFetchedAt = %v, %v; want %v, true", at, ok, now)
	}
}
