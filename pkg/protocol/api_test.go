package protocol

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boalang/boa-client-go/pkg/apperrors"
	"github.com/boalang/boa-client-go/pkg/models"
)

func jobRecord() map[string]any {
	return map[string]any{
		"id":              "7",
		"submitted":       "2014-05-23 16:38:49 -0500",
		"input":           map[string]any{"id": "1", "name": "small"},
		"compiler_status": "Finished",
		"hadoop_status":   "Running",
	}
}

func TestParseJob(t *testing.T) {
	job, err := ParseJob(jobRecord())
	require.NoError(t, err)

	assert.Equal(t, 7, job.ID)
	assert.Equal(t, models.Dataset{ID: 1, Name: "small"}, job.Dataset)
	assert.Equal(t, models.StatusFinished, job.CompileStatus)
	assert.Equal(t, models.StatusRunning, job.ExecStatus)

	want := time.Date(2014, 5, 23, 21, 38, 49, 0, time.UTC)
	assert.True(t, job.SubmittedAt.Equal(want), "submitted %v, want %v", job.SubmittedAt, want)
}

func TestParseJob_MissingKey(t *testing.T) {
	rec := jobRecord()
	delete(rec, "hadoop_status")

	_, err := ParseJob(rec)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrMalformedResponse))

	var appErr *apperrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "hadoop_status", appErr.Key)
	assert.Contains(t, err.Error(), "hadoop_status")
}

func TestParseJob_InvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value any
		raw   string
	}{
		{"bad id", "id", "seven", "seven"},
		{"bad timestamp", "submitted", "2014-05-23T16:38:49Z", "2014-05-23T16:38:49Z"},
		{"unknown status", "compiler_status", "Queued", ""},
		{"non-struct input", "input", "small", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := jobRecord()
			rec[tt.key] = tt.value

			_, err := ParseJob(rec)
			require.Error(t, err)
			assert.True(t, errors.Is(err, apperrors.ErrMalformedResponse))
			if tt.raw != "" {
				var appErr *apperrors.Error
				require.True(t, errors.As(err, &appErr))
				assert.Equal(t, tt.raw, appErr.Value)
			}
		})
	}
}

func TestParseDatasets_PreservesOrder(t *testing.T) {
	raw := []any{
		map[string]any{"id": "9", "name": "zeta"},
		map[string]any{"id": "1", "name": "alpha"},
		map[string]any{"id": int64(5), "name": "mid"},
	}

	datasets, err := ParseDatasets(raw)
	require.NoError(t, err)
	assert.Equal(t, []models.Dataset{
		{ID: 9, Name: "zeta"},
		{ID: 1, Name: "alpha"},
		{ID: 5, Name: "mid"},
	}, datasets)
}

func TestParseDatasets_Empty(t *testing.T) {
	datasets, err := ParseDatasets([]any{})
	require.NoError(t, err)
	assert.NotNil(t, datasets)
	assert.Empty(t, datasets)
}

func TestParseSession(t *testing.T) {
	s, err := ParseSession(map[string]any{
		"session_name": "SESSabc",
		"sessid":       "xyz",
		"token":        "tok",
	})
	require.NoError(t, err)
	assert.Equal(t, "SESSabc=xyz", s.Cookie())
	assert.Equal(t, "tok", s.Token)

	// system.connect carries no token
	s, err = ParseSession(map[string]any{"session_name": "S", "sessid": "1"})
	require.NoError(t, err)
	assert.Empty(t, s.Token)

	_, err = ParseSession(map[string]any{"session_name": "S"})
	assert.True(t, errors.Is(err, apperrors.ErrMalformedResponse))
}

func TestInt64(t *testing.T) {
	n, err := Int64("5000000000")
	require.NoError(t, err)
	assert.Equal(t, int64(5000000000), n)

	_, err = Int64("lots")
	assert.True(t, errors.Is(err, apperrors.ErrMalformedResponse))
}

func TestStrings(t *testing.T) {
	s, err := Strings([]any{"line 1: error", "line 2: error"})
	require.NoError(t, err)
	assert.Equal(t, []string{"line 1: error", "line 2: error"}, s)

	_, err = Strings([]any{"ok", int64(1)})
	assert.Error(t, err)
}

func TestURL(t *testing.T) {
	u, err := URL("http://boa.cs.iastate.edu/boa/?q=boa/job/7")
	require.NoError(t, err)
	assert.Equal(t, "boa.cs.iastate.edu", u.Host)

	_, err = URL("boa/job/7")
	assert.True(t, errors.Is(err, apperrors.ErrMalformedResponse))
}
