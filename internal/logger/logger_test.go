package logger

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/stemsi/jlpt-proctor/internal/response"
)

func TestRequestLoggerLevels(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		status    int
		wantLevel string
	}{
		{http.StatusOK, "debug"},
		{http.StatusNotFound, "warn"},
		{http.StatusInternalServerError, "error"},
	}

	for _, tt := range tests {
		var buf bytes.Buffer
		log := New(&buf, "debug", "json")

		r := gin.New()
		r.Use(RequestLogger(log))
		r.GET("/x", func(c *gin.Context) { c.Status(tt.status) })

		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/x", nil))

		var line map[string]any
		if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
			t.Fatalf("status %d: log line %q: %v", tt.status, buf.String(), err)
		}
		if line["level"] != tt.wantLevel {
			t.Errorf("status %d: level = %v, want %s", tt.status, line["level"], tt.wantLevel)
		}
		if line["path"] != "/x" || line["component"] != "http" {
			t.Errorf("status %d: fields = %v", tt.status, line)
		}
	}
}

func TestRequestLoggerCorrelatesAttempt(t *testing.T) {
	gin.SetMode(gin.TestMode)

	var buf bytes.Buffer
	r := gin.New()
	r.Use(response.RequestIDMiddleware(), RequestLogger(New(&buf, "debug", "json")))
	r.GET("/sessions/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/sessions/6f1c2a4e-0d3b-4c8e-9a57-2b1d0e9f3c11", nil)
	req.Header.Set("X-Request-ID", "req-7")
	r.ServeHTTP(httptest.NewRecorder(), req)

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("log line %q: %v", buf.String(), err)
	}
	if line["request_id"] != "req-7" || line["session_id"] != "6f1c2a4e-0d3b-4c8e-9a57-2b1d0e9f3c11" {
		t.Errorf("fields = %v", line)
	}
}
