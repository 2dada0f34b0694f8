// Package cache provides client-side caches: a time-bounded single value and
// a size-bounded directory of finished job outputs.
package cache

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const entrySuffix = ".out"

// Entry describes one cached job output.
type Entry struct {
	JobID      int       `json:"job_id"`
	LocalPath  string    `json:"local_path"`
	Size       int64     `json:"size"`
	LastAccess time.Time `json:"last_access"`
}

// Cache manages locally cached job outputs. Output of a finished job never
// changes, so entries are only dropped to stay under maxSize.
type Cache struct {
	dir     string
	maxSize int64 // Maximum cache size in bytes

	mu      sync.RWMutex
	entries map[int]*Entry
	size    int64
}

// New creates a cache in dir, indexing outputs left by earlier runs.
func New(dir string, maxSize int64) (*Cache, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	c := &Cache{
		dir:     dir,
		maxSize: maxSize,
		entries: make(map[int]*Entry),
	}
	if err := c.load(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Cache) load() error {
	files, err := os.ReadDir(c.dir)
	if err != nil {
		return fmt.Errorf("read cache dir: %w", err)
	}
	for _, f := range files {
		name := f.Name()
		if f.IsDir() || !strings.HasSuffix(name, entrySuffix) {
			continue
		}
		id, err := strconv.Atoi(strings.TrimSuffix(name, entrySuffix))
		if err != nil {
			continue
		}
		info, err := f.Info()
		if err != nil {
			continue
		}
		c.entries[id] = &Entry{
			JobID:      id,
			LocalPath:  filepath.Join(c.dir, name),
			Size:       info.Size(),
			LastAccess: info.ModTime(),
		}
		c.size += info.Size()
	}
	return nil
}

func (c *Cache) path(jobID int) string {
	return filepath.Join(c.dir, strconv.Itoa(jobID)+entrySuffix)
}

// Get returns the local path if the job's output is cached.
func (c *Cache) Get(jobID int) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[jobID]
	if !ok {
		return "", false
	}
	entry.LastAccess = time.Now()
	return entry.LocalPath, true
}

// Open returns a reader over the cached output.
func (c *Cache) Open(jobID int) (io.ReadCloser, bool) {
	path, ok := c.Get(jobID)
	if !ok {
		return nil, false
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, false
	}
	return f, true
}

// Put stores a job's output read from r.
// Content is written atomically (temp file then rename); nothing is kept if
// r fails.
func (c *Cache) Put(jobID int, r io.Reader) (string, error) {
	tempPath := filepath.Join(c.dir, ".tmp-"+uuid.NewString())
	f, err := os.Create(tempPath)
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}

	written, err := io.Copy(f, r)
	f.Close()
	if err != nil {
		os.Remove(tempPath)
		return "", fmt.Errorf("write content: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if old, ok := c.entries[jobID]; ok {
		c.size -= old.Size
		delete(c.entries, jobID)
	}
	for c.size+written > c.maxSize {
		if !c.evictOldest() {
			break
		}
	}

	localPath := c.path(jobID)
	if err := os.Rename(tempPath, localPath); err != nil {
		os.Remove(tempPath)
		return "", fmt.Errorf("rename temp file: %w", err)
	}

	c.entries[jobID] = &Entry{
		JobID:      jobID,
		LocalPath:  localPath,
		Size:       written,
		LastAccess: time.Now(),
	}
	c.size += written

	return localPath, nil
}

// Evict removes a job's output from the cache.
func (c *Cache) Evict(jobID int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[jobID]
	if !ok {
		return nil
	}
	if err := os.Remove(entry.LocalPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove %s: %w", entry.LocalPath, err)
	}
	c.size -= entry.Size
	delete(c.entries, jobID)
	return nil
}

// evictOldest removes the least recently used entry.
// Must be called with lock held.
func (c *Cache) evictOldest() bool {
	var oldest *Entry
	for _, entry := range c.entries {
		if oldest == nil || entry.LastAccess.Before(oldest.LastAccess) {
			oldest = entry
		}
	}
	if oldest == nil {
		return false
	}

	os.Remove(oldest.LocalPath)
	c.size -= oldest.Size
	delete(c.entries, oldest.JobID)
	return true
}

// Stats returns cache statistics.
func (c *Cache) Stats() (size, maxSize int64, count int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.size, c.maxSize, len(c.entries)
}

// Clear removes every cached output and returns how many were removed.
func (c *Cache) Clear() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	count := 0
	for id, entry := range c.entries {
		os.Remove(entry.LocalPath)
		c.size -= entry.Size
		delete(c.entries, id)
		count++
	}
	return count
}

// Dir returns the cache directory path.
func (c *Cache) Dir() string {
	return c.dir
}
