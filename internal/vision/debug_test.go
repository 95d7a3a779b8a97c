package vision

import (
	"bytes"
	"log"
	"strings"
	"testing"
)

func saveLoggers() (ops, diag, trace *log.Logger) {
	logMu.RLock()
	defer logMu.RUnlock()
	return opsLogger, diagLogger, traceLogger
}

func restoreLoggers(ops, diag, trace *log.Logger) {
	logMu.Lock()
	defer logMu.Unlock()
	opsLogger, diagLogger, traceLogger = ops, diag, trace
}

func TestSetLogWriters(t *testing.T) {
	ops, diag, trace := saveLoggers()
	defer restoreLoggers(ops, diag, trace)

	var opsBuf, diagBuf, traceBuf bytes.Buffer
	SetLogWriters(LogWriters{Ops: &opsBuf, Diag: &diagBuf, Trace: &traceBuf})

	Opsf("ops message %d", 1)
	Diagf("diag message %d", 2)
	Tracef("trace message %d", 3)

	if got := opsBuf.String(); !strings.Contains(got, "ops message 1") {
		t.Errorf("ops output = %q, want to contain 'ops message 1'", got)
	}
	if !strings.Contains(opsBuf.String(), "[vision] ") {
		t.Errorf("ops output %q missing stream prefix", opsBuf.String())
	}
	if got := diagBuf.String(); !strings.Contains(got, "diag message 2") {
		t.Errorf("diag output = %q, want to contain 'diag message 2'", got)
	}
	if got := traceBuf.String(); !strings.Contains(got, "trace message 3") {
		t.Errorf("trace output = %q, want to contain 'trace message 3'", got)
	}

	// Streams are independent.
	if strings.Contains(opsBuf.String(), "diag message") {
		t.Error("diag message leaked into the ops stream")
	}
}

func TestLogWritersNilDisablesStream(t *testing.T) {
	ops, diag, trace := saveLoggers()
	defer restoreLoggers(ops, diag, trace)

	var opsBuf bytes.Buffer
	SetLogWriters(LogWriters{Ops: &opsBuf})

	// Disabled streams must not panic and must stay quiet.
	Diagf("dropped %s", "diag")
	Tracef("dropped %s", "trace")
	Opsf("kept")

	if !strings.Contains(opsBuf.String(), "kept") {
		t.Errorf("ops output = %q, want to contain 'kept'", opsBuf.String())
	}

	SetLogWriters(LogWriters{})
	opsBuf.Reset()
	Opsf("should not appear")
	if opsBuf.Len() > 0 {
		t.Errorf("ops output after disabling = %q, want empty", opsBuf.String())
	}
}
