package slog

import (
	"bytes"
	"encoding/json"
	stdslog "log/slog"
	"testing"

	"github.com/unkn0wn-root/querycache"
)

func TestWritesAttrs(t *testing.T) {
	var buf bytes.Buffer
	l := Logger{L: stdslog.New(stdslog.NewJSONHandler(&buf, &stdslog.HandlerOptions{Level: stdslog.LevelDebug}))}

	l.Info("invalidated prefix", querycache.Fields{"prefix": "5:todos", "count": 2})

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("decode: %v (%s)", err, buf.String())
	}
	if rec["msg"] != "invalidated prefix" || rec["prefix"] != "5:todos" || rec["count"] != float64(2) {
		t.Fatalf("record: %v", rec)
	}
}

func TestBelowLevelIsSkipped(t *testing.T) {
	var buf bytes.Buffer
	l := Logger{L: stdslog.New(stdslog.NewJSONHandler(&buf, &stdslog.HandlerOptions{Level: stdslog.LevelWarn}))}

	l.Debug("quiet", querycache.Fields{"a": 1})
	if buf.Len() != 0 {
		t.Fatalf("debug written at warn level: %s", buf.String())
	}
}
