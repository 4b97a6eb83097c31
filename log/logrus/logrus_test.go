package logrus

import (
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/unkn0wn-root/querycache"
)

func TestFieldsAndErrorKey(t *testing.T) {
	base, hook := test.NewNullLogger()
	base.SetLevel(logrus.DebugLevel)
	l := New(base, "querycache")

	l.Warn("provider delete failed", querycache.Fields{"key": "5:todos", "err": errors.New("timeout")})

	e := hook.LastEntry()
	if e == nil || e.Level != logrus.WarnLevel {
		t.Fatalf("entry: %+v", e)
	}
	if e.Data["component"] != "querycache" || e.Data["key"] != "5:todos" {
		t.Fatalf("fields: %v", e.Data)
	}
	if err, _ := e.Data[logrus.ErrorKey].(error); err == nil || err.Error() != "timeout" {
		t.Fatalf("error field: %v", e.Data)
	}
}

func TestLevels(t *testing.T) {
	base, hook := test.NewNullLogger()
	base.SetLevel(logrus.DebugLevel)
	l := New(base, "x")

	l.Debug("d", nil)
	l.Info("i", nil)
	l.Error("e", nil)
	if n := len(hook.AllEntries()); n != 3 {
		t.Fatalf("got %d entries", n)
	}
}
