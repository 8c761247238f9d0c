package logger

import (
	"bytes"
	"io"
	"log/slog"
)

// ColorTextHandler is a slog.TextHandler whose lines are wrapped in ANSI
// colors by level. Values are left alone because the text handler would
// quote escape codes placed inside the message.
type ColorTextHandler struct {
	*slog.TextHandler
}

func NewColorTextHandler(w io.Writer, opts *slog.HandlerOptions, color bool) *ColorTextHandler {
	if color {
		w = colorWriter{w: w}
	}
	return &ColorTextHandler{TextHandler: slog.NewTextHandler(w, opts)}
}

const colorReset = "\033[0m"

var levelColors = []struct {
	level, code []byte
}{
	{[]byte("level=ERROR"), []byte("\033[31m")}, // red
	{[]byte("level=WARN"), []byte("\033[33m")},  // yellow
	{[]byte("level=INFO"), []byte("\033[32m")},  // green
	{[]byte("level=DEBUG"), []byte("\033[36m")}, // cyan
}

// colorWriter relies on the text handler emitting each record with a
// single Write call.
type colorWriter struct {
	w io.Writer
}

func (c colorWriter) Write(p []byte) (int, error) {
	i := bytes.Index(p, []byte("level="))
	if i < 0 {
		return c.w.Write(p)
	}
	for _, lc := range levelColors {
		if !bytes.HasPrefix(p[i:], lc.level) {
			continue
		}
		line := bytes.TrimSuffix(p, []byte("\n"))
		buf := make([]byte, 0, len(p)+len(lc.code)+len(colorReset)+1)
		buf = append(buf, lc.code...)
		buf = append(buf, line...)
		buf = append(buf, colorReset...)
		buf = append(buf, '\n')
		if _, err := c.w.Write(buf); err != nil {
			return 0, err
		}
		return len(p), nil
	}
	return c.w.Write(p)
}
