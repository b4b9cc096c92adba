package util

import (
	"runtime/debug"

	"github.com/mtecstake/autostake/internal/logging"
)

// SafeGoWithName runs fn on its own goroutine. A panic is logged under
// name with its stack and does not take the process down, so a crashed
// event loop only ends that loop.
func SafeGoWithName(name string, fn func()) {
	go func() {
		defer func() {
			r := recover()
			if r == nil {
				return
			}
			logging.Error("goroutine panic recovered",
				logging.Component(name),
				"panic", r,
				"stack", string(debug.Stack()),
			)
		}()
		fn()
	}()
}
