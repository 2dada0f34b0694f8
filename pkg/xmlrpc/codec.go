// Package xmlrpc adapts github.com/kolo/xmlrpc to the Boa client: calls take
// a context, every request passes through a decorating transport, and
// failures are classified as *Fault, *StatusError or *TransportError.
//
// Results decode to natural Go types: string, int64, bool, float64,
// time.Time, []byte, []any and map[string]any.
package xmlrpc

import (
	"errors"
	"fmt"
	"io"

	kolo "github.com/kolo/xmlrpc"
)

// Fault is a structured error returned by the server in place of a result.
type Fault struct {
	Code    int
	Message string
}

// Error returns the raw fault string so callers can match on it.
func (f *Fault) Error() string {
	return f.Message
}

// EncodeCall serializes a methodCall with positional arguments.
func EncodeCall(method string, args ...any) ([]byte, error) {
	body, err := kolo.EncodeMethodCall(method, args...)
	if err != nil {
		return nil, fmt.Errorf("xmlrpc: encode %s: %w", method, err)
	}
	return body, nil
}

// DecodeResponse parses a methodResponse. A fault is returned as *Fault.
func DecodeResponse(r io.Reader) (any, error) {
	body, err := io.ReadAll(r)
	if err != nil {
		return nil, &TransportError{Err: err}
	}

	resp := kolo.Response(body)
	if err := resp.Err(); err != nil {
		var fe kolo.FaultError
		if errors.As(err, &fe) {
			return nil, &Fault{Code: fe.Code, Message: fe.String}
		}
		var fp *kolo.FaultError
		if errors.As(err, &fp) {
			return nil, &Fault{Code: fp.Code, Message: fp.String}
		}
		return nil, fmt.Errorf("xmlrpc: decode fault: %w", err)
	}

	var v any
	if err := resp.Unmarshal(&v); err != nil {
		return nil, fmt.Errorf("xmlrpc: decode response: %w", err)
	}
	return v, nil
}
