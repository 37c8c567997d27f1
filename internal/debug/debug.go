// Package debug reports whether protocol debugging was requested
// through the environment, following the same convention as the C
// libwayland client.
package debug

import (
	"os"
	"strconv"
)

var enabled bool

func init() {
	level, err := strconv.ParseInt(os.Getenv("WAYLAND_DEBUG"), 10, 0)
	if err != nil {
		return
	}
	enabled = level > 0
}

// Enabled reports whether $WAYLAND_DEBUG asked for protocol traffic
// to be logged.
func Enabled() bool {
	return enabled
}
