// Package logger builds the process slog.Logger: a colored console handler for
// terminals or JSON lines for collectors.
package logger

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"log/slog"
	"sync"

	"github.com/fatih/color"
)

type CustomHandlerOpts struct {
	SlogOpts slog.HandlerOptions
}

// CustomHandler prints "[time] LEVEL: message {attrs}" with the level colored.
type CustomHandler struct {
	opts   slog.HandlerOptions
	attrs  []slog.Attr
	groups []string

	mu *sync.Mutex
	l  *log.Logger
}

func NewCustomHandler(out io.Writer, opts CustomHandlerOpts) *CustomHandler {
	return &CustomHandler{
		opts: opts.SlogOpts,
		mu:   &sync.Mutex{},
		l:    log.New(out, "", 0),
	}
}

func (ch *CustomHandler) Enabled(_ context.Context, level slog.Level) bool {
	minLevel := slog.LevelInfo
	if ch.opts.Level != nil {
		minLevel = ch.opts.Level.Level()
	}
	return level >= minLevel
}

func (ch *CustomHandler) Handle(_ context.Context, r slog.Record) error {
	level := r.Level.String() + ":"
	switch {
	case r.Level < slog.LevelInfo:
		level = color.WhiteString(level)
	case r.Level < slog.LevelWarn:
		level = color.GreenString(level)
	case r.Level < slog.LevelError:
		level = color.YellowString(level)
	default:
		level = color.RedString(level)
	}
	timeStr := r.Time.Format("[15:04:05]")
	message := color.HiWhiteString(r.Message)

	fields := make(map[string]any, len(ch.attrs)+r.NumAttrs())
	for _, a := range ch.attrs {
		addField(fields, a)
	}
	r.Attrs(func(a slog.Attr) bool {
		addField(ch.target(fields), a)
		return true
	})

	ch.mu.Lock()
	defer ch.mu.Unlock()
	// Omit empty struct.
	if len(fields) == 0 {
		ch.l.Println(timeStr, level, message)
		return nil
	}
	j, err := json.Marshal(fields)
	if err != nil {
		return err
	}
	ch.l.Println(timeStr, level, message, color.WhiteString(string(j)))
	return nil
}

func (ch *CustomHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return ch
	}
	h := *ch
	h.attrs = append([]slog.Attr(nil), ch.attrs...)
	for _, a := range attrs {
		h.attrs = append(h.attrs, nest(ch.groups, a))
	}
	return &h
}

func (ch *CustomHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return ch
	}
	h := *ch
	h.groups = append(append([]string(nil), ch.groups...), name)
	return &h
}

// target returns the map record attrs belong in under the open groups.
func (ch *CustomHandler) target(fields map[string]any) map[string]any {
	for _, g := range ch.groups {
		sub, ok := fields[g].(map[string]any)
		if !ok {
			sub = map[string]any{}
			fields[g] = sub
		}
		fields = sub
	}
	return fields
}

func nest(groups []string, a slog.Attr) slog.Attr {
	for i := len(groups) - 1; i >= 0; i-- {
		a = slog.Attr{Key: groups[i], Value: slog.GroupValue(a)}
	}
	return a
}

func addField(fields map[string]any, a slog.Attr) {
	v := a.Value.Resolve()
	if a.Key == "" && v.Kind() != slog.KindGroup {
		return
	}
	switch v.Kind() {
	case slog.KindGroup:
		sub := fields
		if a.Key != "" {
			existing, ok := fields[a.Key].(map[string]any)
			if !ok {
				existing = map[string]any{}
				fields[a.Key] = existing
			}
			sub = existing
		}
		for _, ga := range v.Group() {
			addField(sub, ga)
		}
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			fields[a.Key] = err.Error()
			return
		}
		fields[a.Key] = v.Any()
	case slog.KindDuration:
		fields[a.Key] = v.Duration().String()
	default:
		fields[a.Key] = v.Any()
	}
}

// New returns a logger at level writing to out, as JSON lines or colored console output.
func New(out io.Writer, level slog.Leveler, asJSON bool) *slog.Logger {
	opts := slog.HandlerOptions{Level: level}
	if asJSON {
		return slog.New(slog.NewJSONHandler(out, &opts))
	}
	return slog.New(NewCustomHandler(out, CustomHandlerOpts{SlogOpts: opts}))
}
