package client

import (
	"context"
	"slices"
	"time"

	"github.com/boalang/boa-client-go/internal/logging"
	"github.com/boalang/boa-client-go/pkg/models"
	"github.com/boalang/boa-client-go/pkg/protocol"
)

// Datasets returns the dataset catalog in server order. The catalog is
// reused for Config.DatasetTTL; a cached catalog is returned without
// checking the session.
func (c *Client) Datasets(ctx context.Context) ([]models.Dataset, error) {
	if ds, ok := c.datasets.Get(); ok {
		c.metrics.DatasetCacheLookup(true)
		return slices.Clone(ds), nil
	}

	c.datasetsMu.Lock()
	defer c.datasetsMu.Unlock()

	// Another caller may have filled the cache while we waited.
	if ds, ok := c.datasets.Get(); ok {
		c.metrics.DatasetCacheLookup(true)
		return slices.Clone(ds), nil
	}
	c.metrics.DatasetCacheLookup(false)

	epoch := c.currentEpoch()
	v, err := c.invoke(ctx, protocol.MethodDatasets)
	if err != nil {
		return nil, err
	}
	ds, err := protocol.ParseDatasets(v)
	if err != nil {
		return nil, err
	}

	if c.storeDatasets(epoch, ds) {
		logging.Debug("dataset catalog refreshed", logging.Int("datasets", len(ds)))
	} else {
		logging.Debug("session changed during catalog fetch, not caching")
	}
	return slices.Clone(ds), nil
}

// storeDatasets caches ds unless the session ended or the cache was reset
// since epoch.
func (c *Client) storeDatasets(epoch uint64, ds []models.Dataset) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.loggedIn || c.epoch != epoch {
		return false
	}
	c.datasets.Set(ds)
	return true
}

// ResetDatasetCache forces the next Datasets call to refetch. A fetch already
// in flight does not refill the cache.
func (c *Client) ResetDatasetCache() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.epoch++
	c.datasets.Reset()
}

// DatasetsFetchedAt reports when the cached catalog was fetched; ok is false
// when nothing is cached.
func (c *Client) DatasetsFetchedAt() (t time.Time, ok bool) {
	if _, ok := c.datasets.Get(); !ok {
		return time.Time{}, false
	}
	return c.datasets.FetchedAt(), true
}

// Dataset looks up a dataset by exact name. ok is false when no dataset has
// that name.
func (c *Client) Dataset(ctx context.Context, name string) (d models.Dataset, ok bool, err error) {
	ds, err := c.Datasets(ctx)
	if err != nil {
		return models.Dataset{}, false, err
	}
	for _, d := range ds {
		if d.Name == name {
			return d, true, nil
		}
	}
	return models.Dataset{}, false, nil
}

// DatasetNames returns the dataset names in server order.
func (c *Client) DatasetNames(ctx context.Context) ([]string, error) {
	ds, err := c.Datasets(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(ds))
	for i, d := range ds {
		names[i] = d.Name
	}
	return names, nil
}
