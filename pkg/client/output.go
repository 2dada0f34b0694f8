package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"

	"github.com/boalang/boa-client-go/internal/logging"
	"github.com/boalang/boa-client-go/pkg/apperrors"
	"github.com/boalang/boa-client-go/pkg/models"
	"github.com/boalang/boa-client-go/pkg/protocol"
)

const chunkSize = 4096

// outputURL asks the server where a job's output can be downloaded.
func (c *Client) outputURL(ctx context.Context, id int) (string, error) {
	v, err := c.invoke(ctx, protocol.MethodJobOutput, jobArg(id))
	if err != nil {
		return "", err
	}
	return protocol.String(v)
}

// FetchOutput streams a job's full output into w, decompressed. Whatever was
// written before a failure stays in w.
func (c *Client) FetchOutput(ctx context.Context, id int, w io.Writer) (int64, error) {
	raw, err := c.outputURL(ctx, id)
	if err != nil {
		return 0, err
	}

	header := http.Header{}
	header.Set("Accept-Encoding", "gzip, deflate")

	n, err := c.download(ctx, raw, header, w)
	c.metrics.OutputFetch("full", n, err)
	if err == nil {
		logging.Debug("fetched job output", logging.JobID(id), logging.Int64("bytes", n))
	}
	return n, err
}

// Output returns a job's full output as text.
func (c *Client) Output(ctx context.Context, id int) (string, error) {
	var buf bytes.Buffer
	if _, err := c.FetchOutput(ctx, id, &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// OutputRange returns length bytes of a job's output starting at start. A
// length below 1 reads to the end. Compression is not negotiated for ranged
// reads.
func (c *Client) OutputRange(ctx context.Context, id int, start, length int64) (string, error) {
	raw, err := c.outputURL(ctx, id)
	if err != nil {
		return "", err
	}

	header := http.Header{}
	header.Set("Range", rangeHeader(start, length))
	// Stop the transport from asking for gzip on its own.
	header.Set("Accept-Encoding", "identity")

	var buf bytes.Buffer
	n, err := c.download(ctx, raw, header, &buf)
	c.metrics.OutputFetch("range", n, err)
	if err != nil {
		return "", err
	}
	logging.Debug("fetched job output range", logging.JobID(id), logging.String("range", header.Get("Range")), logging.Int64("bytes", n))
	return buf.String(), nil
}

func rangeHeader(start, length int64) string {
	if length < 1 {
		return fmt.Sprintf("bytes=%d-", start)
	}
	return fmt.Sprintf("bytes=%d-%d", start, start+length-1)
}

// OutputSize returns the size in bytes of a job's output.
func (c *Client) OutputSize(ctx context.Context, id int) (int64, error) {
	v, err := c.invoke(ctx, protocol.MethodJobOutputSize, jobArg(id))
	if err != nil {
		return 0, err
	}
	return protocol.Int64(v)
}

// OutputToFile downloads a job's output to path. The file is written under a
// temporary name in the same directory and renamed on success, so path never
// holds partial output.
func (c *Client) OutputToFile(ctx context.Context, id int, path string) (int64, error) {
	if err := c.ensureLoggedIn(protocol.MethodJobOutput); err != nil {
		return 0, err
	}

	tmp := filepath.Join(filepath.Dir(path), "."+filepath.Base(path)+"-"+uuid.NewString())
	f, err := os.Create(tmp)
	if err != nil {
		return 0, apperrors.OutputFetch(err.Error(), err)
	}

	n, err := c.FetchOutput(ctx, id, f)
	if cerr := f.Close(); err == nil && cerr != nil {
		err = apperrors.OutputFetch(cerr.Error(), cerr)
	}
	if err != nil {
		os.Remove(tmp)
		return 0, err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return 0, apperrors.OutputFetch(err.Error(), err)
	}
	return n, nil
}

// cachedOutput serves a finished job's output from the output cache, filling
// it on a miss. Without a cache, or for unfinished jobs, it fetches directly.
func (c *Client) cachedOutput(ctx context.Context, job models.Job) (string, error) {
	if c.outputs == nil || job.ExecStatus != models.StatusFinished {
		return c.Output(ctx, job.ID)
	}
	if err := c.ensureLoggedIn(protocol.MethodJobOutput); err != nil {
		return "", err
	}

	if rc, ok := c.outputs.Open(job.ID); ok {
		defer rc.Close()
		data, err := io.ReadAll(rc)
		if err == nil {
			c.metrics.OutputFetch("cache", int64(len(data)), nil)
			return string(data), nil
		}
		logging.Warn("unreadable cached output, refetching", logging.JobID(job.ID), logging.Err(err))
	}

	out, err := c.Output(ctx, job.ID)
	if err != nil {
		return "", err
	}
	if _, err := c.outputs.Put(job.ID, strings.NewReader(out)); err != nil {
		logging.Warn("failed to cache job output", logging.JobID(job.ID), logging.Err(err))
	}
	return out, nil
}

// evictOutput drops a job's output from the output cache.
func (c *Client) evictOutput(id int) {
	if c.outputs == nil {
		return
	}
	if err := c.outputs.Evict(id); err != nil {
		logging.Warn("failed to evict cached output", logging.JobID(id), logging.Err(err))
	}
}

// download GETs raw and copies the decoded body into w.
func (c *Client) download(ctx context.Context, raw string, header http.Header, w io.Writer) (int64, error) {
	u, err := url.Parse(raw)
	if err == nil && (u.Scheme == "" || u.Host == "") {
		err = fmt.Errorf("not an absolute URL")
	}
	if err != nil {
		return 0, apperrors.OutputFetch(raw, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return 0, apperrors.OutputFetch(raw, err)
	}
	for k, v := range header {
		req.Header[k] = v
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, apperrors.OutputFetch(err.Error(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		io.Copy(io.Discard, resp.Body)
		return 0, apperrors.OutputFetch(fmt.Sprintf("%s returned HTTP %s", raw, resp.Status), nil)
	}

	body, err := decodeBody(resp)
	if err != nil {
		return 0, apperrors.OutputFetch(err.Error(), err)
	}
	defer body.Close()

	n, err := io.CopyBuffer(w, body, make([]byte, chunkSize))
	if err != nil {
		return n, apperrors.OutputFetch(err.Error(), err)
	}
	return n, nil
}

// decodeBody undoes the response's declared content encoding.
func decodeBody(resp *http.Response) (io.ReadCloser, error) {
	switch strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding"))) {
	case "gzip":
		return gzip.NewReader(resp.Body)
	case "deflate":
		return flate.NewReader(resp.Body), nil
	default:
		return io.NopCloser(resp.Body), nil
	}
}
