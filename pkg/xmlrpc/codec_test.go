package xmlrpc

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boalang/boa-client-go/pkg/xmlrpc/xmlrpctest"
)

func TestEncodeCall_PositionalArgs(t *testing.T) {
	body, err := EncodeCall("boa.range", false, 0, 10)
	require.NoError(t, err)

	method, args, err := xmlrpctest.DecodeCall(bytes.NewReader(body))
	require.NoError(t, err)
	assert.Equal(t, "boa.range", method)
	assert.Equal(t, []any{false, int64(0), int64(10)}, args)
}

func TestEncodeCall_EscapesText(t *testing.T) {
	src := `counts: output sum of int; if (a < b && c > d) counts << 1;`
	body, err := EncodeCall("boa.submit", src, 3)
	require.NoError(t, err)
	assert.NotContains(t, string(body), "a < b")

	_, args, err := xmlrpctest.DecodeCall(bytes.NewReader(body))
	require.NoError(t, err)
	require.Len(t, args, 2)
	assert.Equal(t, src, args[0])
}

func TestEncodeCall_NoArgs(t *testing.T) {
	body, err := EncodeCall("user.logout")
	require.NoError(t, err)

	method, args, err := xmlrpctest.DecodeCall(bytes.NewReader(body))
	require.NoError(t, err)
	assert.Equal(t, "user.logout", method)
	assert.Empty(t, args)
}

func TestDecodeResponse_Struct(t *testing.T) {
	body, err := xmlrpctest.EncodeResponse(map[string]any{
		"sessid":       "abc",
		"session_name": "SESS1",
		"token":        "tok",
		"user":         map[string]any{"uid": 12},
	})
	require.NoError(t, err)

	v, err := DecodeResponse(bytes.NewReader(body))
	require.NoError(t, err)

	m, ok := v.(map[string]any)
	require.True(t, ok, "expected struct, got %T", v)
	assert.Equal(t, "abc", m["sessid"])
	assert.Equal(t, "SESS1", m["session_name"])
	assert.Equal(t, map[string]any{"uid": int64(12)}, m["user"])
}

func TestDecodeResponse_ArrayOfStructs(t *testing.T) {
	body, err := xmlrpctest.EncodeResponse([]any{
		map[string]any{"id": "1", "name": "small"},
		map[string]any{"id": "2", "name": "big"},
	})
	require.NoError(t, err)

	v, err := DecodeResponse(bytes.NewReader(body))
	require.NoError(t, err)

	items, ok := v.([]any)
	require.True(t, ok)
	require.Len(t, items, 2)
	assert.Equal(t, "small", items[0].(map[string]any)["name"])
	assert.Equal(t, "big", items[1].(map[string]any)["name"])
}

func TestDecodeResponse_ScalarTypes(t *testing.T) {
	tests := []struct {
		name string
		xml  string
		want any
	}{
		{"int", "<int>7</int>", int64(7)},
		{"i4", "<i4>42</i4>", int64(42)},
		{"boolean", "<boolean>1</boolean>", true},
		{"double", "<double>2.5</double>", 2.5},
		{"string", "<string>1234</string>", "1234"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := "<methodResponse><params><param><value>" + tt.xml + "</value></param></params></methodResponse>"
			v, err := DecodeResponse(strings.NewReader(raw))
			require.NoError(t, err)
			assert.Equal(t, tt.want, v)
		})
	}
}

func TestDecodeResponse_Fault(t *testing.T) {
	v, err := DecodeResponse(bytes.NewReader(xmlrpctest.EncodeFault(406, "Already logged in as bob.")))
	assert.Nil(t, v)

	var fault *Fault
	require.True(t, errors.As(err, &fault), "expected *Fault, got %T", err)
	assert.Equal(t, 406, fault.Code)
	assert.Equal(t, "Already logged in as bob.", fault.Message)
	assert.Equal(t, "Already logged in as bob.", err.Error())
}
