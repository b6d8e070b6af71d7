package logger

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNew_JSONInProduction(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Writer: &buf, Environment: "production", Level: slog.LevelInfo})

	log.Info("book placed", "book_id", "book-1")

	out := buf.String()
	assert.Contains(t, out, `"msg":"book placed"`)
	assert.Contains(t, out, `"book_id":"book-1"`)
}

func TestNew_PrettyOutsideProduction(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Writer: &buf, Environment: "development", Level: slog.LevelDebug, NoColor: true})

	log.Debug("shelf created", "shelf_id", "shelf-1", "name", "Shelf 1")

	out := buf.String()
	assert.Contains(t, out, "DBG shelf created")
	assert.Contains(t, out, "shelf_id=shelf-1")
	assert.Contains(t, out, `name="Shelf 1"`)
	assert.True(t, strings.HasSuffix(out, "\n"))
}

func TestPrettyHandler_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Writer: &buf, Format: "pretty", Level: slog.LevelWarn, NoColor: true})

	log.Info("hidden")
	log.Warn("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "WRN shown")
}

func TestPrettyHandler_GroupsAndAttrs(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Writer: &buf, Format: "pretty", NoColor: true})

	log.Component("distributor").
		WithGroup("stats").
		Info("distribution done", slog.Int("placed", 3), slog.Int("overflow", 1))

	out := buf.String()
	assert.Contains(t, out, "component=distributor")
	assert.Contains(t, out, "stats.placed=3")
	assert.Contains(t, out, "stats.overflow=1")
}

func TestHelpers(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Writer: &buf, Format: "json"})

	log.WithError(errors.New("boom")).
		WithField("user_id", "user-1").
		WithFields(map[string]any{"op": "add_book"}).
		Info("failed")

	out := buf.String()
	assert.Contains(t, out, `"error":"boom"`)
	assert.Contains(t, out, `"user_id":"user-1"`)
	assert.Contains(t, out, `"op":"add_book"`)
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		"warn":    slog.LevelWarn,
		"error":   slog.LevelError,
		"bogus":   slog.LevelInfo,
		"":        slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}

func TestDiscard(t *testing.T) {
	assert.NotPanics(t, func() { Discard().Info("nothing") })
}
