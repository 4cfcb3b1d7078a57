package common

import (
	"fmt"
	"os"
	"runtime"

	"github.com/ternarybob/arbor"
)

// stackSize bounds the captured trace of a recovered panic
const stackSize = 4096

// PanicStack returns the current goroutine's stack, for logging from a deferred recover
func PanicStack() string {
	buf := make([]byte, stackSize)
	return string(buf[:runtime.Stack(buf, false)])
}

// SafeGo runs fn in a goroutine and logs, rather than propagates, a panic.
// Used for the HTTP listener and the session sweeper.
func SafeGo(logger arbor.ILogger, name string, fn func()) {
	go func() {
		defer func() {
			r := recover()
			if r == nil {
				return
			}
			if logger == nil {
				fmt.Fprintf(os.Stderr, "panic in goroutine %s: %v\n%s\n", name, r, PanicStack())
				return
			}
			logger.Error().
				Str("goroutine", name).
				Str("panic", fmt.Sprint(r)).
				Str("stack", PanicStack()).
				Msg("Recovered from panic in goroutine")
		}()

		fn()
	}()
}
