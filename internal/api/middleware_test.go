package api

import (
	"net/http"
	"testing"

	"github.com/rs/zerolog"
)

func TestRequestLevel(t *testing.T) {
	cases := []struct {
		status int
		path   string
		want   zerolog.Level
	}{
		{http.StatusOK, "/api/v1/tasks", zerolog.InfoLevel},
		{http.StatusOK, metricsPath, zerolog.DebugLevel},
		{http.StatusNotFound, "/api/v1/tasks/x", zerolog.WarnLevel},
		{http.StatusServiceUnavailable, metricsPath, zerolog.ErrorLevel},
		{http.StatusRequestEntityTooLarge, "/api/v1/merge", zerolog.WarnLevel},
	}
	for _, tc := range cases {
		if got := requestLevel(tc.status, tc.path); got != tc.want {
			t.Fatalf("requestLevel(%d, %q) = %s, want %s", tc.status, tc.path, got, tc.want)
		}
	}
}
