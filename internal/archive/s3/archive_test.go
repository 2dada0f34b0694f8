package s3

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

// fakeS3 is a path-style S3 endpoint that stores PUT bodies in memory.
type fakeS3 struct {
	mu      sync.Mutex
	buckets map[string]bool
	objects map[string]string
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	p := strings.TrimPrefix(r.URL.Path, "/")
	bucket, key, _ := strings.Cut(p, "/")

	switch {
	case key == "" && r.Method == http.MethodHead:
		if !f.buckets[bucket] {
			w.WriteHeader(http.StatusNotFound)
			return
		}
	case key == "" && r.Method == http.MethodPut:
		f.buckets[bucket] = true
	case key != "" && r.Method == http.MethodPut:
		data, _ := io.ReadAll(r.Body)
		f.objects[p] = string(data)
		w.Header().Set("ETag", `"etag"`)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func newFakeS3() *fakeS3 {
	return &fakeS3{buckets: map[string]bool{}, objects: map[string]string{}}
}

func testArchiver(t *testing.T, f *fakeS3, prefix string) *Archiver {
	t.Helper()
	ts := httptest.NewServer(f)
	t.Cleanup(ts.Close)

	a, err := New(context.Background(), Config{
		Endpoint:  ts.URL,
		Bucket:    "boa-outputs",
		AccessKey: "minioadmin",
		SecretKey: "minioadmin",
		Region:    "us-east-1",
		Prefix:    prefix,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return a
}

func TestNew_CreatesBucket(t *testing.T) {
	f := newFakeS3()
	testArchiver(t, f, "")

	if !f.buckets["boa-outputs"] {
		t.Error("bucket was not created")
	}
}

func TestArchive(t *testing.T) {
	f := newFakeS3()
	f.buckets["boa-outputs"] = true
	a := testArchiver(t, f, "nightly")

	body := "counts[] = 1024\n"
	key, err := a.Archive(context.Background(), 7, strings.NewReader(body), int64(len(body)))
	if err != nil {
		t.Fatalf("Archive: %v", err)
	}
	if key != "nightly/jobs/7/output.txt" {
		t.Errorf("key = %q", key)
	}
	if got := f.objects["boa-outputs/nightly/jobs/7/output.txt"]; got != body {
		t.Errorf("stored %q, want %q", got, body)
	}
}

func TestKey_NoPrefix(t *testing.T) {
	a := &Archiver{}
	if got := a.Key(12); got != "jobs/12/output.txt" {
		t.Errorf("Key = %q", got)
	}
}
