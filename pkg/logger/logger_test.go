package logger

import "testing"

func TestNewNoopDoesNotPanic(t *testing.T) {
	l := NewNoop()
	l.Debug("msg", "key", "value")
	l.Info("msg")
	l.Warn("msg", "count", 3)
	l.Error("msg", "err", errString("boom"))
}

type errString string

func (e errString) Error() string { return string(e) }

func TestFormatValueHandlesCommonTypes(t *testing.T) {
	cases := map[string]interface{}{
		"hello": "hello",
		"3":     3,
		"3.5":   3.5,
		"boom":  errString("boom"),
	}
	for want, v := range cases {
		if got := formatValue(v); got != want {
			t.Errorf("formatValue(%v) = %q, want %q", v, got, want)
		}
	}
}
