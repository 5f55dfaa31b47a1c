package cnms

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodeBufferWriteAndOverflow(t *testing.T) {
	buf := newCodeBuffer(make([]byte, 4))
	require.True(t, buf.Write([]byte{1, 2, 3}))
	assert.Equal(t, 3, buf.Len())
	assert.Equal(t, 1, buf.Remaining())

	// Refuses without partial writes.
	assert.False(t, buf.Write([]byte{4, 5}))
	assert.Equal(t, 3, buf.Len())

	require.True(t, buf.Write([]byte{4}))
	assert.Equal(t, 0, buf.Remaining())
}

func TestCodeBufferEmitInstEncoding(t *testing.T) {
	backing := make([]byte, 16)
	buf := newCodeBuffer(backing)
	require.True(t, buf.EmitInst(Inst{Op: OpPushI32, Arg: 0x01020304}))
	assert.Equal(t, instSize, buf.Len())
	assert.Equal(t, byte(OpPushI32), backing[0])
	assert.Equal(t, []byte{0x04, 0x03, 0x02, 0x01}, backing[1:5])
}

func TestCodeBufferEmitInstNegativeArg(t *testing.T) {
	backing := make([]byte, 16)
	buf := newCodeBuffer(backing)
	require.True(t, buf.EmitInst(Inst{Op: OpJump, Arg: -1}))
	assert.Equal(t, []byte{0xFF, 0xFF, 0xFF, 0xFF}, backing[1:5])
}
