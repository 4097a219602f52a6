package apiclient

import (
	"net/http"
	"strings"
	"testing"
)

func FuzzDecodeError(f *testing.F) {
	f.Add(500, `{"code":"DUPLICATE_NAME","message":"exists"}`)
	f.Add(404, `{"code":"NOT_FOUND"}`)
	f.Add(502, `<html>bad gateway</html>`)
	f.Add(400, ``)

	f.Fuzz(func(t *testing.T, status int, body string) {
		if status < 100 || status > 599 {
			return
		}
		apiErr := decodeError(status, strings.NewReader(body))
		if apiErr == nil {
			t.Fatalf("decodeError returned nil")
		}
		if apiErr.Status != status {
			t.Fatalf("status = %d, want %d", apiErr.Status, status)
		}
		// Registered status codes always fall back to a code derived from the status text.
		if http.StatusText(status) != "" && apiErr.Code == "" {
			t.Fatalf("empty code for status %d body %q", status, body)
		}
	})
}
