// Package logging builds the slog loggers used by the binaries.
package logging

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"
)

// PrettyJSONHandler is a slog.Handler that writes one JSON object per
// record, indented for reading in a terminal. Non-finite floats, which
// the search uses as win and loss scores, are written as strings.
//
// It is not optimized for throughput.
type PrettyJSONHandler struct {
	w         io.Writer
	mu        *sync.Mutex
	level     slog.Leveler
	addSource bool
	indent    string

	attrs  []slog.Attr
	groups []string
}

// PrettyOptions extends slog.HandlerOptions with the indent string. An
// empty Indent writes compact single-line objects.
type PrettyOptions struct {
	slog.HandlerOptions
	Indent string
}

func NewPrettyJSONHandler(w io.Writer, opts *PrettyOptions) *PrettyJSONHandler {
	h := &PrettyJSONHandler{
		w:      w,
		mu:     &sync.Mutex{},
		level:  slog.LevelInfo,
		indent: "  ",
	}
	if opts != nil {
		if opts.Level != nil {
			h.level = opts.Level
		}
		h.addSource = opts.AddSource
		h.indent = opts.Indent
	}
	return h
}

func (h *PrettyJSONHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *PrettyJSONHandler) Handle(_ context.Context, r slog.Record) error {
	payload := make(map[string]any, 4+len(h.attrs)+r.NumAttrs())

	when := r.Time
	if when.IsZero() {
		when = time.Now()
	}
	payload[slog.TimeKey] = when.Format(time.RFC3339Nano)
	payload[slog.LevelKey] = r.Level.String()
	payload[slog.MessageKey] = r.Message
	if h.addSource {
		if src := sourceFromPC(r.PC); src != "" {
			payload[slog.SourceKey] = src
		}
	}

	// Attributes from WithAttrs were added under the groups open at the
	// time; they are stored already nested.
	for _, a := range h.attrs {
		addAttrToMap(payload, a)
	}
	dst := groupMap(payload, h.groups)
	r.Attrs(func(a slog.Attr) bool {
		addAttrToMap(dst, a)
		return true
	})

	var (
		b   []byte
		err error
	)
	if h.indent == "" {
		b, err = json.Marshal(payload)
	} else {
		b, err = json.MarshalIndent(payload, "", h.indent)
	}
	if err != nil {
		b = []byte(fmt.Sprintf(`{"time":%q,"level":%q,"msg":%q,"logerr":%q}`,
			payload[slog.TimeKey], payload[slog.LevelKey], r.Message, err.Error()))
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err = h.w.Write(append(b, '\n'))
	return err
}

func (h *PrettyJSONHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	clone := *h
	clone.attrs = append([]slog.Attr(nil), h.attrs...)
	for _, a := range attrs {
		// Wrap in the open groups so that later groups do not capture them.
		for i := len(h.groups) - 1; i >= 0; i-- {
			a = slog.Attr{Key: h.groups[i], Value: slog.GroupValue(a)}
		}
		clone.attrs = append(clone.attrs, a)
	}
	return &clone
}

func (h *PrettyJSONHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.groups = append(append([]string(nil), h.groups...), name)
	return &clone
}

func groupMap(root map[string]any, groups []string) map[string]any {
	dst := root
	for _, g := range groups {
		m, ok := dst[g].(map[string]any)
		if !ok {
			m = map[string]any{}
			dst[g] = m
		}
		dst = m
	}
	return dst
}

func addAttrToMap(dst map[string]any, attr slog.Attr) {
	v := attr.Value.Resolve()
	if attr.Equal(slog.Attr{}) {
		return
	}

	if v.Kind() == slog.KindGroup {
		group := v.Group()
		if len(group) == 0 {
			return
		}
		// Inline groups with an empty key.
		child := dst
		if attr.Key != "" {
			existing, ok := dst[attr.Key].(map[string]any)
			if !ok {
				existing = map[string]any{}
				dst[attr.Key] = existing
			}
			child = existing
		}
		for _, ga := range group {
			addAttrToMap(child, ga)
		}
		return
	}

	dst[attr.Key] = valueToAny(v)
}

func valueToAny(v slog.Value) any {
	switch v.Kind() {
	case slog.KindString:
		return v.String()
	case slog.KindInt64:
		return v.Int64()
	case slog.KindUint64:
		return v.Uint64()
	case slog.KindFloat64:
		f := v.Float64()
		if math.IsInf(f, 0) || math.IsNaN(f) {
			return strconv.FormatFloat(f, 'g', -1, 64)
		}
		return f
	case slog.KindBool:
		return v.Bool()
	case slog.KindDuration:
		return v.Duration().String()
	case slog.KindTime:
		return v.Time().Format(time.RFC3339Nano)
	case slog.KindAny:
		switch a := v.Any().(type) {
		case error:
			return a.Error()
		case json.Marshaler:
			return a
		case fmt.Stringer:
			return a.String()
		default:
			return a
		}
	default:
		return v.String()
	}
}

func sourceFromPC(pc uintptr) string {
	if pc == 0 {
		return ""
	}
	frames := runtime.CallersFrames([]uintptr{pc})
	f, _ := frames.Next()
	if f.File == "" {
		return ""
	}
	file := f.File
	if idx := strings.LastIndexByte(file, '/'); idx >= 0 {
		file = file[idx+1:]
	}
	return file + ":" + strconv.Itoa(f.Line)
}
