package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/angelmondragon/loyalty-portal/pkg/logger"
)

func TestLoggingLevelFollowsStatus(t *testing.T) {
	cases := []struct {
		status int
		want   string
		level  string
	}{
		{http.StatusOK, "request.complete", `"level":"info"`},
		{http.StatusNotFound, "request.rejected", `"level":"warn"`},
		{http.StatusBadGateway, "request.error", `"level":"error"`},
	}
	for _, tc := range cases {
		buf := &bytes.Buffer{}
		logg := logger.New(logger.Options{ServiceName: "test", Output: buf})
		handler := Logging(logg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
			_, _ = w.Write([]byte("body"))
		}))
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/auth/login", nil))

		entry := buf.String()
		if !bytes.Contains(buf.Bytes(), []byte(tc.want)) || !bytes.Contains(buf.Bytes(), []byte(tc.level)) {
			t.Fatalf("status %d: expected %s at %s; entry=%s", tc.status, tc.want, tc.level, entry)
		}
		if !bytes.Contains(buf.Bytes(), []byte(`"bytes":4`)) {
			t.Fatalf("expected byte count; entry=%s", entry)
		}
	}
}
