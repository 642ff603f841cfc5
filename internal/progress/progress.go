// Package progress implements the caller-supplied progress callback
// named by the design notes on global mutable progress state: a
// fixed-rate, `\r`-terminated variant count on stdout that never
// affects control flow (§7).
package progress

import (
	"fmt"
	"io"
	"os"

	"golang.org/x/sys/unix"
)

// Reporter is called once per pipeline batch with the cumulative
// variant count processed so far.
type Reporter func(count uint64)

// New returns a Reporter that writes a `\r`-terminated running count to
// w, or a no-op Reporter if w is not a terminal — matching the
// original's behavior of only ever driving an interactive stderr/stdout,
// never polluting piped output with carriage returns.
func New(w io.Writer) Reporter {
	if !isTerminal(w) {
		return func(uint64) {}
	}
	return func(count uint64) {
		fmt.Fprintf(w, "\r%d variants processed", count)
	}
}

// isTerminal reports whether w is a terminal file descriptor. Only
// *os.File can be a terminal; anything else (a bytes.Buffer in tests,
// a redirected pipe wrapped by something other than *os.File) is not.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	_, err := unix.IoctlGetTermios(int(f.Fd()), ioctlTermiosReq)
	return err == nil
}
