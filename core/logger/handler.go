package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
)

type logFormat string

const (
	formatJSON logFormat = "json"
	formatKV   logFormat = "kv"

	timeFormatMillis = "2006-01-02T15:04:05.000Z07:00"
)

type handlerConfig struct {
	level    slog.Leveler
	writer   *asyncWriter
	format   logFormat
	keyOrder []string
}

// structuredHandler renders each slog record as a single KV or JSON line
// with a stable key prefix, so bot logs stay grep-friendly regardless of
// which component emitted them.
type structuredHandler struct {
	cfg    handlerConfig
	attrs  []slog.Attr
	prefix string
}

func newStructuredHandler(cfg handlerConfig) *structuredHandler {
	if cfg.level == nil {
		cfg.level = slog.LevelInfo
	}
	if cfg.keyOrder == nil {
		cfg.keyOrder = append([]string(nil), defaultKeyOrder...)
	}
	return &structuredHandler{cfg: cfg}
}

func (h *structuredHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.cfg.level.Level()
}

// Handle renders the record and hands the finished line to the async writer.
func (h *structuredHandler) Handle(ctx context.Context, r slog.Record) error {
	if h.cfg.writer == nil {
		return fmt.Errorf("logger: writer not initialized")
	}

	fields := make(map[string]any, 16)
	ts := r.Time.UTC()
	fields["ts"] = ts.Truncate(time.Millisecond).Format(timeFormatMillis)
	fields["level"] = normalizeLevel(r.Level.String())
	if h.cfg.format == formatJSON {
		fields["ts_unix_nano"] = ts.UnixNano()
	}

	for _, a := range h.attrs {
		appendAttr(fields, h.prefix, a)
	}
	r.Attrs(func(a slog.Attr) bool {
		appendAttr(fields, h.prefix, a)
		return true
	})
	mergeContextMeta(ctx, fields)
	h.compactRID(fields)

	if v, _ := stringField(fields, "event"); v == "" {
		if r.Message != "" {
			fields["event"] = r.Message
		} else {
			fields["event"] = "unknown"
		}
	}
	if v, _ := stringField(fields, "component"); v == "" {
		fields["component"] = "app"
	}

	finalizeFields(fields)

	line, err := h.encode(fields)
	if err != nil {
		return err
	}
	if len(line) == 0 || line[len(line)-1] != '\n' {
		line = append(line, '\n')
	}
	return h.cfg.writer.Write(line)
}

func (h *structuredHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.attrs = append(append([]slog.Attr(nil), h.attrs...), attrs...)
	return &clone
}

func (h *structuredHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.prefix = joinKey(h.prefix, name)
	return &clone
}

// compactRID shortens the request id for readability. JSON output keeps the
// full value under rid_full; KV drops it to keep lines short.
func (h *structuredHandler) compactRID(fields map[string]any) {
	rid, _ := stringField(fields, "rid")
	compact := CompactRID(rid)
	if rid == "" || compact == "" || compact == rid {
		return
	}
	if h.cfg.format == formatJSON {
		if _, seen := fields["rid_full"]; !seen {
			fields["rid_full"] = rid
		}
	}
	fields["rid"] = compact
}

func appendAttr(fields map[string]any, prefix string, attr slog.Attr) {
	key := joinKey(prefix, attr.Key)
	if attr.Value.Kind() == slog.KindGroup {
		for _, child := range attr.Value.Group() {
			appendAttr(fields, key, child)
		}
		return
	}
	if key == "" {
		return
	}
	key, val, ok := fieldValue(key, attr.Value)
	if ok {
		fields[key] = val
	}
}

func joinKey(prefix, key string) string {
	switch {
	case prefix == "":
		return key
	case key == "":
		return prefix
	}
	return prefix + "." + key
}

// fieldValue normalizes a slog value into a loggable scalar. Durations are
// rewritten to millisecond fields so every latency key reads the same way.
func fieldValue(key string, val slog.Value) (string, any, bool) {
	switch val.Kind() {
	case slog.KindString:
		return key, strings.TrimSpace(val.String()), true
	case slog.KindBool:
		return key, val.Bool(), true
	case slog.KindInt64:
		return key, val.Int64(), true
	case slog.KindUint64:
		if u := val.Uint64(); u > math.MaxInt64 {
			return key, u, true
		}
		return key, int64(val.Uint64()), true
	case slog.KindFloat64:
		return key, val.Float64(), true
	case slog.KindDuration:
		return durationKey(key), RoundMS(val.Duration()).Milliseconds(), true
	case slog.KindTime:
		return key, val.Time().UTC().Format(time.RFC3339Nano), true
	case slog.KindAny:
		switch x := val.Any().(type) {
		case nil:
			return key, nil, false
		case error:
			return key, x.Error(), true
		case string:
			return key, strings.TrimSpace(x), true
		case time.Duration:
			return durationKey(key), RoundMS(x).Milliseconds(), true
		case fmt.Stringer:
			return key, x.String(), true
		default:
			return key, fmt.Sprint(x), true
		}
	default:
		return key, val.Any(), true
	}
}

func durationKey(key string) string {
	if key == "duration" {
		return "duration_ms"
	}
	if base, ok := strings.CutSuffix(key, "_duration"); ok {
		return base + "_duration_ms"
	}
	if !strings.HasSuffix(key, "_ms") {
		return key + "_ms"
	}
	return key
}

// mergeContextMeta copies request metadata from the context without
// overriding anything the caller set explicitly.
func mergeContextMeta(ctx context.Context, fields map[string]any) {
	if ctx == nil {
		return
	}
	setAbsent := func(key string, v any) {
		if _, ok := fields[key]; !ok {
			fields[key] = v
		}
	}
	if rid := RIDFrom(ctx); rid != "" {
		setAbsent("rid", rid)
	}
	if id := UserIDFrom(ctx); id != 0 {
		setAbsent("user_id", id)
	}
	if id := UpdateIDFrom(ctx); id != 0 {
		setAbsent("update_id", id)
	}
	if id := ChatIDFrom(ctx); id != 0 {
		setAbsent("chat_id", id)
	}
	if name := HandlerFrom(ctx); name != "" {
		setAbsent("handler", name)
	}
}

// finalizeFields canonicalizes the status/outcome enums and drops empty
// values so lines never carry key= noise.
func finalizeFields(fields map[string]any) {
	if s, ok := stringField(fields, "status"); ok && s != "" {
		if norm, valid := normalizeStatus(s); valid {
			fields["status"] = norm
		}
	}
	if o, ok := stringField(fields, "outcome"); ok && o != "" {
		if norm, valid := normalizeOutcome(o); valid {
			fields["outcome"] = norm
		} else {
			delete(fields, "outcome")
		}
	}
	for k, v := range fields {
		switch val := v.(type) {
		case nil:
			delete(fields, k)
		case string:
			if val == "" {
				delete(fields, k)
			}
		case fmt.Stringer:
			if val.String() == "" {
				delete(fields, k)
			}
		}
	}
}

func (h *structuredHandler) encode(fields map[string]any) ([]byte, error) {
	keys := renderOrder(fields, h.cfg.keyOrder)
	if h.cfg.format == formatJSON {
		return encodeJSON(fields, keys)
	}
	return encodeKV(fields, keys), nil
}

// renderOrder puts the configured priority keys first, then the rest sorted,
// so related lines diff cleanly.
func renderOrder(fields map[string]any, order []string) []string {
	keys := make([]string, 0, len(fields))
	seen := make(map[string]struct{}, len(order))
	for _, key := range order {
		if _, ok := fields[key]; ok {
			keys = append(keys, key)
			seen[key] = struct{}{}
		}
	}
	rest := make([]string, 0, len(fields)-len(keys))
	for k := range fields {
		if _, ok := seen[k]; !ok {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	return append(keys, rest...)
}

func encodeJSON(fields map[string]any, keys []string) ([]byte, error) {
	var b bytes.Buffer
	b.WriteByte('{')
	for i, key := range keys {
		data, err := json.Marshal(fields[key])
		if err != nil {
			return nil, err
		}
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Quote(key))
		b.WriteByte(':')
		b.Write(data)
	}
	b.WriteByte('}')
	return b.Bytes(), nil
}

func encodeKV(fields map[string]any, keys []string) []byte {
	var b bytes.Buffer
	for i, key := range keys {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(key)
		b.WriteByte('=')
		b.WriteString(kvValue(fields[key]))
	}
	return b.Bytes()
}

func kvValue(v any) string {
	switch x := v.(type) {
	case string:
		return kvQuote(x)
	case bool:
		return strconv.FormatBool(x)
	case int, int64, uint64, float64:
		return fmt.Sprint(x)
	default:
		return kvQuote(fmt.Sprint(x))
	}
}

func kvQuote(s string) string {
	needs := strings.IndexFunc(s, func(r rune) bool {
		return r <= 32 || r == '=' || r == '"'
	})
	if needs >= 0 {
		return strconv.Quote(s)
	}
	return s
}

func stringField(fields map[string]any, key string) (string, bool) {
	v, ok := fields[key]
	if !ok {
		return "", false
	}
	switch val := v.(type) {
	case string:
		return val, true
	case fmt.Stringer:
		return val.String(), true
	default:
		return fmt.Sprint(val), true
	}
}
