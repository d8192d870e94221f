package infra

import (
	"fmt"
	"runtime"
	"strings"

	log "github.com/sirupsen/logrus"
)

// Recoverable runs f in its own goroutine, restarting after every panic until
// the budget is spent. A negative budget restarts forever. An exhausted budget
// abandons the job with an error logged; it never takes the process down.
func Recoverable(budget int, job string, f func()) {
	entry := log.WithField("job", job)
	go func() {
		for left := budget; ; {
			if runOnce(entry, f) {
				return
			}
			if left == 0 {
				entry.Error("panic budget exhausted, job abandoned")
				return
			}
			if left > 0 {
				left--
			}
			entry.Debug("restarting job after panic")
		}
	}()
}

// runOnce reports whether f returned without panicking.
func runOnce(entry *log.Entry, f func()) (completed bool) {
	defer func() {
		if r := recover(); r != nil {
			entry.WithField("panic", fmt.Sprint(r)).
				WithField("origin", panicOrigin()).
				Error("job panicked")
		}
	}()
	f()
	return true
}

// panicOrigin walks past the runtime's own frames to the first application
// frame of the panic.
func panicOrigin() string {
	pc := make([]uintptr, 16)
	n := runtime.Callers(3, pc)
	frames := runtime.CallersFrames(pc[:n])
	for {
		frame, more := frames.Next()
		if frame.Function != "" && !strings.HasPrefix(frame.Function, "runtime.") {
			return fmt.Sprintf("%s:%d", frame.Function, frame.Line)
		}
		if !more {
			return "unknown"
		}
	}
}
