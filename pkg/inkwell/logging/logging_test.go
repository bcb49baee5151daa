package logging

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"info":    slog.LevelInfo,
		"":        slog.LevelInfo,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestMiddlewareLogsRequest(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, "info")

	r := gin.New()
	r.Use(Middleware(logger))
	r.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, "pong")
	})

	req, _ := http.NewRequest("GET", "/ping", nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	out := buf.String()
	if !strings.Contains(out, "path=/ping") || !strings.Contains(out, "status=200") {
		t.Errorf("Unexpected log output: %s", out)
	}
}

func TestLevelFiltersDebug(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, "warn")
	logger.Info("hidden")
	logger.Warn("shown")

	if strings.Contains(buf.String(), "hidden") {
		t.Error("Info message should be filtered at warn level")
	}
	if !strings.Contains(buf.String(), "shown") {
		t.Error("Warn message should be logged")
	}
}
