// Package gelf ships zap log entries to a Graylog GELF UDP input.
package gelf

import (
	"encoding/json"
	"net"
	"os"
	"time"

	"go.uber.org/zap/zapcore"
)

const service = "deductly-intake"

// Writer sends one GELF message per Write over UDP.
type Writer struct {
	conn     net.Conn
	hostname string
}

// New creates a GELF UDP writer connected to addr (e.g. "172.17.0.1:12201").
func New(addr string) (*Writer, error) {
	conn, err := net.Dial("udp", addr)
	if err != nil {
		return nil, err
	}
	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = service
	}
	return &Writer{conn: conn, hostname: hostname}, nil
}

// Write sends p as-is. Send errors are dropped so logging never fails.
func (w *Writer) Write(p []byte) (int, error) {
	w.conn.Write(p)
	return len(p), nil
}

func (w *Writer) Sync() error { return nil }

func (w *Writer) Close() error { return w.conn.Close() }

// Core is a zapcore.Core encoding entries as GELF 1.1 messages.
type Core struct {
	zapcore.LevelEnabler
	out      zapcore.WriteSyncer
	hostname string
	fields   []zapcore.Field
}

// NewCore wraps out, which receives one JSON message per entry.
func NewCore(out zapcore.WriteSyncer, hostname string, enab zapcore.LevelEnabler) *Core {
	return &Core{LevelEnabler: enab, out: out, hostname: hostname}
}

// NewCoreFor builds a Core on top of a Writer.
func NewCoreFor(w *Writer, enab zapcore.LevelEnabler) *Core {
	return NewCore(w, w.hostname, enab)
}

func (c *Core) With(fields []zapcore.Field) zapcore.Core {
	clone := *c
	clone.fields = append(append([]zapcore.Field(nil), c.fields...), fields...)
	return &clone
}

func (c *Core) Check(e zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(e.Level) {
		return ce.AddCore(e, c)
	}
	return ce
}

func (c *Core) Write(e zapcore.Entry, fields []zapcore.Field) error {
	enc := zapcore.NewMapObjectEncoder()
	for _, f := range c.fields {
		f.AddTo(enc)
	}
	for _, f := range fields {
		f.AddTo(enc)
	}

	msg := map[string]any{
		"version":       "1.1",
		"host":          c.hostname,
		"short_message": e.Message,
		"timestamp":     float64(e.Time.UnixNano()) / float64(time.Second),
		"level":         Severity(e.Level),
		"_service":      service,
	}
	if e.LoggerName != "" {
		msg["_logger"] = e.LoggerName
	}
	if e.Caller.Defined {
		msg["_caller"] = e.Caller.TrimmedPath()
	}
	if e.Stack != "" {
		msg["full_message"] = e.Stack
	}
	for k, v := range enc.Fields {
		if k == "id" {
			k = "field_id" // _id is reserved by GELF
		}
		msg["_"+k] = v
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return nil
	}
	c.out.Write(payload)
	return nil
}

func (c *Core) Sync() error { return c.out.Sync() }

// Severity maps a zap level to a syslog severity.
func Severity(l zapcore.Level) int {
	switch {
	case l >= zapcore.FatalLevel:
		return 2
	case l >= zapcore.ErrorLevel:
		return 3
	case l == zapcore.WarnLevel:
		return 4
	case l == zapcore.InfoLevel:
		return 6
	}
	return 7
}
