package client

import "time"

// Recorder receives client instrumentation. Config.Metrics defaults to a
// recorder that drops everything.
type Recorder interface {
	RPCCall(method string, err error, d time.Duration)
	Login(result string)
	DatasetCacheLookup(hit bool)
	OutputFetch(kind string, bytes int64, err error)
}

type nopRecorder struct{}

func (nopRecorder) RPCCall(string, error, time.Duration) {}
func (nopRecorder) Login(string) {}
func (nopRecorder) DatasetCacheLookup(bool) {}
func (nopRecorder) OutputFetch(string, int64, error) {}
