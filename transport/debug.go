package transport

import "fmt"

// debugEnabled gates verbose per-packet/per-frame tracing, mirroring
// net/http2's http2VerboseLogs flag: off by default since this runs in the
// hot path of every Read/Write call.
var debugEnabled = false

func debug(format string, args ...interface{}) {
	if !debugEnabled {
		return
	}
	fmt.Printf(format+"\n", args...)
}

func sprint(args ...interface{}) string {
	return fmt.Sprint(args...)
}
