package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/angas/gasquota/database"
)

type memorySaver struct {
	rows []database.LogEntryRow
}

func (m *memorySaver) SaveLogEntry(ctx context.Context, r database.LogEntryRow) error {
	m.rows = append(m.rows, r)
	return nil
}

func TestLevelFromString(t *testing.T) {
	tests := []struct {
		in   *string
		want slog.Level
	}{
		{nil, slog.LevelInfo},
		{ptr("debug"), slog.LevelDebug},
		{ptr("WARN"), slog.LevelWarn},
		{ptr("Error"), slog.LevelError},
		{ptr("verbose"), slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := LevelFromString(tt.in); got != tt.want {
			t.Errorf("LevelFromString(%v) got %v, wanted %v", tt.in, got, tt.want)
		}
	}
}

func TestSQLiteHandlerJSON(t *testing.T) {
	saver := &memorySaver{}
	logger := slog.New(NewSQLiteHandler(saver, slog.LevelInfo, LogAttrFormatJSON)).
		With(slog.String("module", "billing"))

	logger.Debug("dropped")
	logger.Info("period computed", slog.Float64("discount_mj", 1000))

	if len(saver.rows) != 1 {
		t.Fatalf("got %d rows, wanted 1", len(saver.rows))
	}
	row := saver.rows[0]
	if row.Message != "period computed" || row.Level != int(slog.LevelInfo) {
		t.Errorf("unexpected row %+v", row)
	}
	want := `[{"module":"billing"},{"discount_mj":"1000"}]`
	if row.Attrs != want {
		t.Errorf("got attrs %s, wanted %s", row.Attrs, want)
	}
}

func TestSQLiteHandlerText(t *testing.T) {
	saver := &memorySaver{}
	logger := slog.New(NewSQLiteHandler(saver, slog.LevelDebug, LogAttrFormatText)).WithGroup("req")

	logger.Warn("odd note", slog.String("note", "a=b;c"))

	if len(saver.rows) != 1 {
		t.Fatalf("got %d rows, wanted 1", len(saver.rows))
	}
	want := `req.note=a\=b\;c`
	if saver.rows[0].Attrs != want {
		t.Errorf("got attrs %q, wanted %q", saver.rows[0].Attrs, want)
	}
}

func TestMultiHandler(t *testing.T) {
	saver := &memorySaver{}
	var buf bytes.Buffer
	console := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	logger := slog.New(NewMultiHandler(console, NewSQLiteHandler(saver, slog.LevelWarn, LogAttrFormatJSON)))

	logger.Debug("only console")
	logger.Error("both", slog.String("module", "www"))

	if !strings.Contains(buf.String(), "only console") || !strings.Contains(buf.String(), "both") {
		t.Errorf("console missing records: %s", buf.String())
	}
	if len(saver.rows) != 1 || saver.rows[0].Message != "both" {
		t.Errorf("database got %+v, wanted only the error record", saver.rows)
	}
}

func TestConsoleHandlerWithoutTerminal(t *testing.T) {
	var buf bytes.Buffer
	slog.New(NewConsoleHandler(&buf, slog.LevelInfo)).Info("hello", slog.Int("n", 1))
	if !strings.Contains(buf.String(), "hello") || strings.Contains(buf.String(), "\x1b[") {
		t.Errorf("expected plain output, got %q", buf.String())
	}
}

func ptr(s string) *string {
	return &s
}
