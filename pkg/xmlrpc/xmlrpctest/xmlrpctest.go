// Package xmlrpctest provides the server half of XML-RPC for fake endpoints
// in tests: decoding method calls and encoding responses and faults.
package xmlrpctest

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	kolo "github.com/kolo/xmlrpc"
)

type methodCall struct {
	Name   string `xml:"methodName"`
	Params []struct {
		Inner string `xml:",innerxml"`
	} `xml:"params>param"`
}

// DecodeCall parses a methodCall, returning the method name and arguments
// decoded the same way client results are.
func DecodeCall(r io.Reader) (string, []any, error) {
	var call methodCall
	if err := xml.NewDecoder(r).Decode(&call); err != nil {
		return "", nil, fmt.Errorf("xmlrpctest: decode call: %w", err)
	}

	args := make([]any, 0, len(call.Params))
	for i, p := range call.Params {
		var v any
		resp := kolo.Response("<methodResponse><params><param>" + p.Inner + "</param></params></methodResponse>")
		if err := resp.Unmarshal(&v); err != nil {
			return "", nil, fmt.Errorf("xmlrpctest: argument %d of %s: %w", i, call.Name, err)
		}
		args = append(args, v)
	}
	return call.Name, args, nil
}

// EncodeResponse serializes a successful methodResponse carrying v.
func EncodeResponse(v any) ([]byte, error) {
	param, err := encodeValue(v)
	if err != nil {
		return nil, err
	}
	return []byte(xml.Header + "<methodResponse><params><param>" + param + "</param></params></methodResponse>"), nil
}

// EncodeFault serializes a fault methodResponse.
func EncodeFault(code int, message string) []byte {
	// A struct of an int and a string always encodes.
	param, _ := encodeValue(map[string]any{"faultCode": code, "faultString": message})
	return []byte(xml.Header + "<methodResponse><fault>" + param + "</fault></methodResponse>")
}

// encodeValue returns the <value> element kolo writes for v as a call
// parameter.
func encodeValue(v any) (string, error) {
	body, err := kolo.EncodeMethodCall("value", v)
	if err != nil {
		return "", fmt.Errorf("xmlrpctest: encode %T: %w", v, err)
	}
	s := string(body)
	start := strings.Index(s, "<param>")
	end := strings.LastIndex(s, "</param>")
	if start < 0 || end < start {
		return "", errors.New("xmlrpctest: unexpected method call encoding")
	}
	return s[start+len("<param>") : end], nil
}
