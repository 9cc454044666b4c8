package log

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/lmittmann/tint"
)

const (
	LevelAudit    = slog.Level(2)
	LevelSecurity = slog.LevelWarn
)

var current atomic.Pointer[slog.Logger]

func init() {
	current.Store(slog.New(jsonHandler(os.Stdout, slog.LevelInfo)))
}

// Setup installs the process logger: JSON lines by default, tint-colored
// console output when pretty is set.
func Setup(w io.Writer, level string, pretty bool) *slog.Logger {
	lvl := parseLevel(level)
	var h slog.Handler
	if pretty {
		h = tint.NewHandler(w, &tint.Options{
			Level:       lvl,
			TimeFormat:  time.RFC3339,
			ReplaceAttr: renameLevels,
		})
	} else {
		h = jsonHandler(w, lvl)
	}
	l := slog.New(h)
	current.Store(l)
	slog.SetDefault(l)
	return l
}

// SetOutput swaps the sink for JSON lines at info level (used by tests).
func SetOutput(w io.Writer) {
	current.Store(slog.New(jsonHandler(w, slog.LevelInfo)))
}

func Logger() *slog.Logger { return current.Load() }

func jsonHandler(w io.Writer, lvl slog.Level) slog.Handler {
	return slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: lvl,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if len(groups) > 0 {
				return a
			}
			switch a.Key {
			case slog.TimeKey:
				return slog.String("ts", a.Value.Time().UTC().Format(time.RFC3339))
			case slog.MessageKey:
				a.Key = "action"
			}
			return renameLevels(groups, a)
		},
	})
}

func renameLevels(_ []string, a slog.Attr) slog.Attr {
	if a.Key != slog.LevelKey {
		return a
	}
	lvl, ok := a.Value.Any().(slog.Level)
	if !ok {
		return a
	}
	switch lvl {
	case LevelAudit:
		return slog.String(slog.LevelKey, "audit")
	default:
		return slog.String(slog.LevelKey, strings.ToLower(lvl.String()))
	}
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

func write(level slog.Level, c *fiber.Ctx, action string, err error, fields map[string]any) {
	attrs := make([]slog.Attr, 0, 8)
	ctx := context.Background()
	if c != nil {
		ctx = c.UserContext()
		attrs = append(attrs,
			slog.String("ip", c.IP()),
			slog.String("method", c.Method()),
			slog.String("path", c.Path()),
			slog.Int("status", c.Response().StatusCode()),
		)
		if rid, ok := c.Locals("requestid").(string); ok && rid != "" {
			attrs = append(attrs, slog.String("req_id", rid))
		}
		if uid, ok := c.Locals("user_id").(string); ok && uid != "" {
			attrs = append(attrs, slog.String("user_id", uid))
		}
	}
	if err != nil {
		attrs = append(attrs, slog.String("err", err.Error()))
	}
	if len(fields) > 0 {
		attrs = append(attrs, slog.Any("fields", fields))
	}
	Logger().LogAttrs(ctx, level, action, attrs...)
}

func Info(c *fiber.Ctx, action string, fields map[string]any) {
	write(slog.LevelInfo, c, action, nil, fields)
}
func Audit(c *fiber.Ctx, action string, fields map[string]any) {
	write(LevelAudit, c, action, nil, fields)
}
func Security(c *fiber.Ctx, action string, fields map[string]any) {
	write(LevelSecurity, c, action, nil, fields)
}
func Error(c *fiber.Ctx, action string, err error, fields map[string]any) {
	write(slog.LevelError, c, action, err, fields)
}

// Background components (scheduler, sweeper, live hub) have no request.

func Event(action string, fields map[string]any) { write(slog.LevelInfo, nil, action, nil, fields) }
func Debug(action string, fields map[string]any) { write(slog.LevelDebug, nil, action, nil, fields) }
func Fail(action string, err error, fields map[string]any) {
	write(slog.LevelError, nil, action, err, fields)
}
