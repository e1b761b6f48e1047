package testutil

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func ExecuteRequest(req *http.Request, handler http.Handler) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

// NewJSONRequest builds a request whose body is body encoded as JSON. A string
// body is sent verbatim so tests can submit malformed payloads.
func NewJSONRequest(t testing.TB, method, target string, body any) *http.Request {
	t.Helper()

	var r io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		r = bytes.NewBufferString(b)
	default:
		data, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("encoding JSON request: %v", err)
		}
		r = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, target, r)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func CheckResponseCode(t testing.TB, expected, actual int) {
	t.Helper()
	if expected != actual {
		t.Fatalf("expected status %d, got %d", expected, actual)
	}
}

func DecodeJSONBody(t testing.TB, body io.Reader, dst any) {
	t.Helper()
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		t.Fatalf("decoding JSON response: %v", err)
	}
}

// CheckErrorKind asserts a JSON error response carries the given kind.
func CheckErrorKind(t testing.TB, rr *httptest.ResponseRecorder, kind string) {
	t.Helper()
	var payload struct {
		Error string `json:"error"`
		Kind  string `json:"kind"`
	}
	DecodeJSONBody(t, rr.Body, &payload)
	if payload.Kind != kind {
		t.Fatalf("expected error kind %q, got %q (error %q)", kind, payload.Kind, payload.Error)
	}
}
