package progress

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewNonTerminalIsNoop(t *testing.T) {
	var buf bytes.Buffer
	r := New(&buf)
	r(8192)
	r(16384)
	require.Empty(t, buf.String())
}
