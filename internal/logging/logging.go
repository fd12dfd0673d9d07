package logging

import (
	"io"
	"log/slog"
	"os"

	"github.com/lmittmann/tint"

	"github.com/njchilds90/gosecant/internal/config"
)

const timeFormat = "2006-01-02 15:04:05.000Z07:00"

// New builds a tint handler for text output or a JSON handler for json.
// Error attributes are highlighted in text output.
func New(output io.Writer, level slog.Level, format config.LogFormat) *slog.Logger {
	if format == config.LogFormatJSON {
		return slog.New(slog.NewJSONHandler(output, &slog.HandlerOptions{Level: level}))
	}
	handler := tint.NewHandler(output, &tint.Options{
		Level:      level,
		TimeFormat: timeFormat,
		NoColor:    !isTerminal(output),
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			if a.Value.Kind() == slog.KindAny {
				if _, ok := a.Value.Any().(error); ok {
					return tint.Attr(9, a)
				}
			}
			return a
		},
	})
	return slog.New(handler)
}

// FromConfig is New with the level and format taken from cfg.
func FromConfig(output io.Writer, cfg config.Config) *slog.Logger {
	return New(output, cfg.LogLevel, cfg.LogFormat)
}

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// isTerminal reports whether output is a character device such as a tty.
func isTerminal(output io.Writer) bool {
	f, ok := output.(*os.File)
	if !ok {
		return false
	}
	info, err := f.Stat()
	return err == nil && info.Mode()&os.ModeCharDevice != 0
}
