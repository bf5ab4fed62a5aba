package spattlog

import "testing"

func TestDebugGating(t *testing.T) {
	l := New("test")
	Debug = false
	l.Debugf("should not panic when gated off: %d", 1)
	Debug = true
	defer func() { Debug = false }()
	l.Debugf("should not panic when enabled: %d", 1)
	l.Infof("should not panic: %s", "ok")
}
