package cli

import (
	"io"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

// captureOutput runs fn with os.Stdout redirected into a pipe and returns
// what it printed. The pipe is drained while fn runs so long listings cannot
// fill it, and stdout is restored even when fn stops the test early.
func captureOutput(t *testing.T, fn func()) string {
	t.Helper()
	r, w, err := os.Pipe()
	require.NoError(t, err)

	saved := os.Stdout
	os.Stdout = w
	t.Cleanup(func() {
		os.Stdout = saved
		_ = w.Close()
	})

	printed := make(chan string, 1)
	go func() {
		data, _ := io.ReadAll(r)
		_ = r.Close()
		printed <- string(data)
	}()

	fn()
	os.Stdout = saved
	require.NoError(t, w.Close())
	return <-printed
}
