package quic

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/ventosilenzioso/go-quicmini/pkg/wire"
)

func TestReassemblerOutOfOrderWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.bin")
	r, err := NewReassembler(path)
	require.NoError(t, err)

	frames := []*wire.StreamFrame{
		wire.NewStreamFrame(0, 5, []byte("world"), true),
		wire.NewStreamFrame(0, 0, []byte("hello"), false),
	}
	for _, f := range frames {
		require.NoError(t, r.Write(f))
	}
	require.True(t, r.Done(), "Done() should be true once the FIN frame has been written")
	require.NoError(t, r.Close())

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "helloworld", string(got))
}
