package client

import (
	"context"
	"io"
	"net/url"
	"sync"

	"github.com/boalang/boa-client-go/internal/logging"
	"github.com/boalang/boa-client-go/pkg/models"
	"github.com/boalang/boa-client-go/pkg/poll"
)

// JobHandle is a job snapshot bound to the client that produced it. The id
// and dataset never change; Refresh replaces the rest.
type JobHandle struct {
	client *Client

	mu  sync.RWMutex
	job models.Job
}

func (c *Client) handle(job models.Job) *JobHandle {
	return &JobHandle{client: c, job: job}
}

// ID returns the job id.
func (h *JobHandle) ID() int { return h.job.ID }

// Dataset returns the dataset the job ran against.
func (h *JobHandle) Dataset() models.Dataset { return h.job.Dataset }

// Snapshot returns the job as last seen.
func (h *JobHandle) Snapshot() models.Job {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.job
}

func (h *JobHandle) String() string {
	return h.Snapshot().String()
}

// Refresh refetches the job and updates its submission time and statuses.
func (h *JobHandle) Refresh(ctx context.Context) error {
	job, err := h.client.fetchJob(ctx, h.job.ID)
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.job.SubmittedAt = job.SubmittedAt
	h.job.CompileStatus = job.CompileStatus
	h.job.ExecStatus = job.ExecStatus
	return nil
}

// Wait refreshes the job until it is done or ctx ends.
func (h *JobHandle) Wait(ctx context.Context, cfg poll.Config) error {
	return poll.Until(ctx, cfg, func(ctx context.Context) (bool, error) {
		if err := h.Refresh(ctx); err != nil {
			return false, err
		}
		job := h.Snapshot()
		logging.FromContext(ctx).Debug("job status",
			logging.JobID(job.ID),
			logging.String("compiler_status", job.CompileStatus.String()),
			logging.String("execution_status", job.ExecStatus.String()),
		)
		return job.Done(), nil
	})
}

// Stop stops the job.
func (h *JobHandle) Stop(ctx context.Context) error {
	return h.client.Stop(ctx, h.job.ID)
}

// Resubmit runs the job again.
func (h *JobHandle) Resubmit(ctx context.Context) error {
	return h.client.Resubmit(ctx, h.job.ID)
}

// Delete deletes the job.
func (h *JobHandle) Delete(ctx context.Context) error {
	return h.client.Delete(ctx, h.job.ID)
}

// SetPublic changes whether the job is publicly visible.
func (h *JobHandle) SetPublic(ctx context.Context, public bool) error {
	return h.client.SetPublic(ctx, h.job.ID, public)
}

// Public reports whether the job is publicly visible.
func (h *JobHandle) Public(ctx context.Context) (bool, error) {
	return h.client.Public(ctx, h.job.ID)
}

// URL returns the job's page on the Boa website.
func (h *JobHandle) URL(ctx context.Context) (*url.URL, error) {
	return h.client.URL(ctx, h.job.ID)
}

// PublicURL returns the job's public page.
func (h *JobHandle) PublicURL(ctx context.Context) (*url.URL, error) {
	return h.client.PublicURL(ctx, h.job.ID)
}

// CompilerErrors returns the job's compiler errors, if any.
func (h *JobHandle) CompilerErrors(ctx context.Context) ([]string, error) {
	return h.client.CompilerErrors(ctx, h.job.ID)
}

// Source returns the job's query source.
func (h *JobHandle) Source(ctx context.Context) (string, error) {
	return h.client.Source(ctx, h.job.ID)
}

// Output returns the job's full output. Output of a finished job is served
// from the client's output cache when one is configured.
func (h *JobHandle) Output(ctx context.Context) (string, error) {
	return h.client.cachedOutput(ctx, h.Snapshot())
}

// FetchOutput streams the job's full output into w.
func (h *JobHandle) FetchOutput(ctx context.Context, w io.Writer) (int64, error) {
	return h.client.FetchOutput(ctx, h.job.ID, w)
}

// OutputToFile saves the job's output to path.
func (h *JobHandle) OutputToFile(ctx context.Context, path string) (int64, error) {
	return h.client.OutputToFile(ctx, h.job.ID, path)
}

// OutputRange returns part of the job's output; see Client.OutputRange.
func (h *JobHandle) OutputRange(ctx context.Context, start, length int64) (string, error) {
	return h.client.OutputRange(ctx, h.job.ID, start, length)
}

// OutputSize returns the size of the job's output in bytes.
func (h *JobHandle) OutputSize(ctx context.Context) (int64, error) {
	return h.client.OutputSize(ctx, h.job.ID)
}
