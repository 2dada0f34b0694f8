// Package models contains the value types returned by the Boa API.
package models

import (
	"fmt"
	"time"
)

// Dataset is an input dataset queries run against.
type Dataset struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

func (d Dataset) String() string {
	return fmt.Sprintf("%d, %s", d.ID, d.Name)
}

// Status is the state of a job's compile or execution phase.
type Status int

const (
	StatusWaiting Status = iota
	StatusRunning
	StatusFinished
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusWaiting:
		return "Waiting"
	case StatusRunning:
		return "Running"
	case StatusFinished:
		return "Finished"
	case StatusError:
		return "Error"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// MarshalText encodes the status by name.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Job is a snapshot of a submitted query.
type Job struct {
	ID            int       `json:"id"`
	SubmittedAt   time.Time `json:"submitted"`
	Dataset       Dataset   `json:"input"`
	CompileStatus Status    `json:"compiler_status"`
	ExecStatus    Status    `json:"hadoop_status"`
}

// Done reports whether the job can make no further progress: compilation
// failed, or execution finished or failed.
func (j Job) Done() bool {
	if j.CompileStatus == StatusError {
		return true
	}
	return j.ExecStatus == StatusFinished || j.ExecStatus == StatusError
}

func (j Job) String() string {
	return fmt.Sprintf("%d (%s) - %s - compiler_status(%s) execution_status(%s)",
		j.ID, j.SubmittedAt.Format(time.RFC1123Z), j.Dataset, j.CompileStatus, j.ExecStatus)
}
