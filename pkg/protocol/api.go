// Package protocol defines the Boa API remote procedures and converts their
// raw responses into typed records.
package protocol

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/boalang/boa-client-go/pkg/apperrors"
	"github.com/boalang/boa-client-go/pkg/models"
)

// Remote procedure names. These are a fixed wire contract.
const (
	MethodSystemConnect = "system.connect"

	MethodUserLogin  = "user.login"
	MethodUserLogout = "user.logout"
	MethodUserToken  = "user.token"

	MethodDatasets  = "boa.datasets"
	MethodJob       = "boa.job"
	MethodJobs      = "boa.jobs"
	MethodJobsCount = "boa.count"
	MethodJobsRange = "boa.range"
	MethodSubmit    = "boa.submit"

	MethodJobStop           = "job.stop"
	MethodJobResubmit       = "job.resubmit"
	MethodJobDelete         = "job.delete"
	MethodJobSetPublic      = "job.setpublic"
	MethodJobPublic         = "job.public"
	MethodJobURL            = "job.url"
	MethodJobPublicURL      = "job.publicurl"
	MethodJobCompilerErrors = "job.compilerErrors"
	MethodJobSource         = "job.source"
	MethodJobOutput         = "job.output"
	MethodJobOutputSize     = "job.outputsize"
)

// TimestampLayout is the server's submission time format,
// e.g. "2014-05-23 16:38:49 -0500".
const TimestampLayout = "2006-01-02 15:04:05 -0700"

// Session is the response of user.login and system.connect.
type Session struct {
	SessionName string
	SessionID   string
	Token       string
}

// Cookie returns the "<session_name>=<sessid>" header value.
func (s Session) Cookie() string {
	return s.SessionName + "=" + s.SessionID
}

// ParseSession extracts the session cookie parts, and the token when present.
func ParseSession(v any) (Session, error) {
	m, err := record(v, "session_name", "sessid")
	if err != nil {
		return Session{}, err
	}
	s := Session{}
	if s.SessionName, err = String(m["session_name"]); err != nil {
		return Session{}, err
	}
	if s.SessionID, err = String(m["sessid"]); err != nil {
		return Session{}, err
	}
	if tok, ok := m["token"]; ok {
		if s.Token, err = String(tok); err != nil {
			return Session{}, err
		}
	}
	return s, nil
}

// ParseToken extracts the anti-forgery token from a user.token response.
func ParseToken(v any) (string, error) {
	m, err := record(v, "token")
	if err != nil {
		return "", err
	}
	return String(m["token"])
}

// ParseDataset converts a {id, name} record.
func ParseDataset(v any) (models.Dataset, error) {
	m, err := record(v, "id", "name")
	if err != nil {
		return models.Dataset{}, err
	}
	id, err := Int(m["id"])
	if err != nil {
		return models.Dataset{}, err
	}
	name, err := String(m["name"])
	if err != nil {
		return models.Dataset{}, err
	}
	return models.Dataset{ID: id, Name: name}, nil
}

// ParseDatasets converts a list of dataset records, preserving server order.
func ParseDatasets(v any) ([]models.Dataset, error) {
	items, err := list(v)
	if err != nil {
		return nil, err
	}
	datasets := make([]models.Dataset, 0, len(items))
	for _, item := range items {
		d, err := ParseDataset(item)
		if err != nil {
			return nil, err
		}
		datasets = append(datasets, d)
	}
	return datasets, nil
}

// ParseJob converts a job record.
func ParseJob(v any) (models.Job, error) {
	m, err := record(v, "id", "submitted", "input", "compiler_status", "hadoop_status")
	if err != nil {
		return models.Job{}, err
	}

	var job models.Job
	if job.ID, err = Int(m["id"]); err != nil {
		return models.Job{}, err
	}
	if job.SubmittedAt, err = Timestamp(m["submitted"]); err != nil {
		return models.Job{}, err
	}
	if job.Dataset, err = ParseDataset(m["input"]); err != nil {
		return models.Job{}, err
	}
	if job.CompileStatus, err = ParseStatus("compiler_status", m["compiler_status"]); err != nil {
		return models.Job{}, err
	}
	if job.ExecStatus, err = ParseStatus("hadoop_status", m["hadoop_status"]); err != nil {
		return models.Job{}, err
	}
	return job, nil
}

// ParseJobs converts a list of job records, preserving server order.
func ParseJobs(v any) ([]models.Job, error) {
	items, err := list(v)
	if err != nil {
		return nil, err
	}
	jobs := make([]models.Job, 0, len(items))
	for _, item := range items {
		j, err := ParseJob(item)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, nil
}

// ParseStatus maps a status string onto the closed Status enum.
func ParseStatus(field string, v any) (models.Status, error) {
	s, err := String(v)
	if err != nil {
		return 0, err
	}
	switch s {
	case "Waiting":
		return models.StatusWaiting, nil
	case "Running":
		return models.StatusRunning, nil
	case "Finished":
		return models.StatusFinished, nil
	case "Error":
		return models.StatusError, nil
	}
	return 0, apperrors.Malformed("%s '%s' unknown", field, s)
}

// Strings converts a list of strings.
func Strings(v any) ([]string, error) {
	items, err := list(v)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		s, err := String(item)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// String asserts a string value.
func String(v any) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", apperrors.Malformed("expected string, got %T", v)
	}
	return s, nil
}

// Int converts a numeric string (or an XML-RPC integer) to int.
func Int(v any) (int, error) {
	switch n := v.(type) {
	case int64:
		return int(n), nil
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		if err != nil {
			return 0, apperrors.InvalidValue("number", n, err)
		}
		return i, nil
	}
	return 0, apperrors.Malformed("expected number, got %T", v)
}

// Int64 is Int for values that may exceed 32 bits, such as output sizes.
func Int64(v any) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64)
		if err != nil {
			return 0, apperrors.InvalidValue("number", n, err)
		}
		return i, nil
	}
	return 0, apperrors.Malformed("expected number, got %T", v)
}

// Timestamp parses a server timestamp in TimestampLayout.
func Timestamp(v any) (time.Time, error) {
	s, err := String(v)
	if err != nil {
		return time.Time{}, err
	}
	t, err := time.Parse(TimestampLayout, s)
	if err != nil {
		return time.Time{}, apperrors.InvalidValue("date", s, err)
	}
	return t, nil
}

// URL parses an absolute URL such as the one returned by job.url.
func URL(v any) (*url.URL, error) {
	s, err := String(v)
	if err != nil {
		return nil, err
	}
	u, err := url.Parse(s)
	if err == nil && (u.Scheme == "" || u.Host == "") {
		err = fmt.Errorf("missing scheme or host")
	}
	if err != nil {
		return nil, apperrors.InvalidValue("url", s, err)
	}
	return u, nil
}

// record asserts a struct value carrying every key.
func record(v any, keys ...string) (map[string]any, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return nil, apperrors.Malformed("expected struct, got %T", v)
	}
	for _, k := range keys {
		if _, ok := m[k]; !ok {
			return nil, apperrors.MissingKey(k)
		}
	}
	return m, nil
}

func list(v any) ([]any, error) {
	items, ok := v.([]any)
	if !ok {
		return nil, apperrors.Malformed("expected array, got %T", v)
	}
	return items, nil
}
