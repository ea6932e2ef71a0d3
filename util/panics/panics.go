// Package panics provides the one recovery point every long-running
// goroutine in the node wraps itself in, so an unhandled panic is logged
// with its stack traces before the process exits with status 1, rather
// than taking the whole process down silently. The exit is immediate:
// deferred functions and other shutdown steps do not run.
package panics

import (
	"os"
	"runtime/debug"

	"github.com/btcsuite/btclog"
)

// HandlePanic recovers a panic on the calling goroutine, logs it at the
// critical level along with a stack trace, and exits the process. It must
// be deferred at the top of every spawned goroutine.
func HandlePanic(log btclog.Logger, goroutineStackTrace []byte) {
	err := recover()
	if err == nil {
		return
	}
	log.Criticalf("Fatal error: %v", err)
	if goroutineStackTrace != nil {
		log.Criticalf("Goroutine stack trace: %s", goroutineStackTrace)
	}
	log.Criticalf("Stack trace: %s", debug.Stack())
	os.Exit(1)
}

// GoroutineWrapperFunc returns a function with the signature of `go`'s
// argument that runs fn recovering any panic through HandlePanic, the
// "spawn" helper every package with a log.go declares.
func GoroutineWrapperFunc(log btclog.Logger) func(fn func()) {
	return func(fn func()) {
		stackTrace := debug.Stack()
		go func() {
			defer HandlePanic(log, stackTrace)
			fn()
		}()
	}
}
