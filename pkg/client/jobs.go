package client

import (
	"context"
	"net/url"

	"github.com/boalang/boa-client-go/pkg/apperrors"
	"github.com/boalang/boa-client-go/pkg/models"
	"github.com/boalang/boa-client-go/pkg/protocol"
)

// Job fetches a job by id.
func (c *Client) Job(ctx context.Context, id int) (*JobHandle, error) {
	job, err := c.fetchJob(ctx, id)
	if err != nil {
		return nil, err
	}
	return c.handle(job), nil
}

func (c *Client) fetchJob(ctx context.Context, id int) (models.Job, error) {
	v, err := c.invoke(ctx, protocol.MethodJob, id)
	if err != nil {
		return models.Job{}, err
	}
	return protocol.ParseJob(v)
}

// LastJob returns the most recently submitted job, or nil if there are none.
func (c *Client) LastJob(ctx context.Context) (*JobHandle, error) {
	jobs, err := c.JobListRange(ctx, false, 0, 1)
	if err != nil {
		return nil, err
	}
	if len(jobs) == 0 {
		return nil, nil
	}
	return jobs[0], nil
}

// JobList returns the user's jobs, or only their public jobs.
func (c *Client) JobList(ctx context.Context, publicOnly bool) ([]*JobHandle, error) {
	v, err := c.invoke(ctx, protocol.MethodJobs, publicOnly)
	if err != nil {
		return nil, err
	}
	return c.handles(v)
}

// JobListRange returns length jobs starting at offset, newest first.
func (c *Client) JobListRange(ctx context.Context, publicOnly bool, offset, length int) ([]*JobHandle, error) {
	v, err := c.invoke(ctx, protocol.MethodJobsRange, publicOnly, offset, length)
	if err != nil {
		return nil, err
	}
	return c.handles(v)
}

func (c *Client) handles(v any) ([]*JobHandle, error) {
	jobs, err := protocol.ParseJobs(v)
	if err != nil {
		return nil, err
	}
	out := make([]*JobHandle, len(jobs))
	for i, j := range jobs {
		out[i] = c.handle(j)
	}
	return out, nil
}

// JobCount returns how many jobs the user has.
func (c *Client) JobCount(ctx context.Context, publicOnly bool) (int, error) {
	v, err := c.invoke(ctx, protocol.MethodJobsCount, publicOnly)
	if err != nil {
		return 0, err
	}
	return protocol.Int(v)
}

// Submit submits a query against dataset.
func (c *Client) Submit(ctx context.Context, source string, dataset models.Dataset) (*JobHandle, error) {
	v, err := c.invoke(ctx, protocol.MethodSubmit, source, dataset.ID)
	if err != nil {
		return nil, err
	}
	job, err := protocol.ParseJob(v)
	if err != nil {
		return nil, err
	}
	return c.handle(job), nil
}

// Query submits a query against the first dataset of the catalog.
func (c *Client) Query(ctx context.Context, source string) (*JobHandle, error) {
	if err := c.ensureLoggedIn(protocol.MethodSubmit); err != nil {
		return nil, err
	}
	ds, err := c.Datasets(ctx)
	if err != nil {
		return nil, err
	}
	if len(ds) == 0 {
		return nil, apperrors.Malformed("server lists no datasets")
	}
	return c.Submit(ctx, source, ds[0])
}

// Stop stops a running job.
func (c *Client) Stop(ctx context.Context, id int) error {
	_, err := c.invoke(ctx, protocol.MethodJobStop, jobArg(id))
	return err
}

// Resubmit runs a job again. Its cached output, if any, is dropped.
func (c *Client) Resubmit(ctx context.Context, id int) error {
	if _, err := c.invoke(ctx, protocol.MethodJobResubmit, jobArg(id)); err != nil {
		return err
	}
	c.evictOutput(id)
	return nil
}

// Delete deletes a job and its cached output.
func (c *Client) Delete(ctx context.Context, id int) error {
	if _, err := c.invoke(ctx, protocol.MethodJobDelete, jobArg(id)); err != nil {
		return err
	}
	c.evictOutput(id)
	return nil
}

// SetPublic changes whether a job is publicly visible.
func (c *Client) SetPublic(ctx context.Context, id int, public bool) error {
	_, err := c.invoke(ctx, protocol.MethodJobSetPublic, jobArg(id), public)
	return err
}

// Public reports whether a job is publicly visible.
func (c *Client) Public(ctx context.Context, id int) (bool, error) {
	v, err := c.invoke(ctx, protocol.MethodJobPublic, jobArg(id))
	if err != nil {
		return false, err
	}
	n, err := protocol.Int(v)
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// URL returns the job's page on the Boa website.
func (c *Client) URL(ctx context.Context, id int) (*url.URL, error) {
	v, err := c.invoke(ctx, protocol.MethodJobURL, jobArg(id))
	if err != nil {
		return nil, err
	}
	return protocol.URL(v)
}

// PublicURL returns the job's public page on the Boa website.
func (c *Client) PublicURL(ctx context.Context, id int) (*url.URL, error) {
	v, err := c.invoke(ctx, protocol.MethodJobPublicURL, jobArg(id))
	if err != nil {
		return nil, err
	}
	return protocol.URL(v)
}

// CompilerErrors returns the job's compiler diagnostics, if any.
func (c *Client) CompilerErrors(ctx context.Context, id int) ([]string, error) {
	v, err := c.invoke(ctx, protocol.MethodJobCompilerErrors, jobArg(id))
	if err != nil {
		return nil, err
	}
	return protocol.Strings(v)
}

// Source returns the query source the job was submitted with.
func (c *Client) Source(ctx context.Context, id int) (string, error) {
	v, err := c.invoke(ctx, protocol.MethodJobSource, jobArg(id))
	if err != nil {
		return "", err
	}
	return protocol.String(v)
}
