package testutil

import (
	"bytes"
	"log"
	"testing"
)

// CaptureLog redirects the standard logger into the returned buffer until
// the test ends.
func CaptureLog(t testing.TB) *bytes.Buffer {
	t.Helper()

	var buf bytes.Buffer
	out, flags := log.Writer(), log.Flags()
	log.SetOutput(&buf)
	log.SetFlags(0)
	t.Cleanup(func() {
		log.SetOutput(out)
		log.SetFlags(flags)
	})

	return &buf
}
