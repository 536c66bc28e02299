// Package logging gates debug output on top of the standard logger.
package logging

import (
	"log"
	"sync/atomic"
)

var debugEnabled atomic.Bool

// SetDebug turns debug output on or off process-wide.
func SetDebug(enabled bool) {
	debugEnabled.Store(enabled)
}

func DebugEnabled() bool {
	return debugEnabled.Load()
}

// Debugf logs with a DEBUG: prefix when debug output is enabled.
func Debugf(format string, args ...interface{}) {
	if !debugEnabled.Load() {
		return
	}
	log.Printf("DEBUG: "+format, args...)
}
