package cnms

// CodeBuffer is a sequential, host-owned byte sink the compiler writes
// instructions into. It never allocates: Buf is supplied by the host at
// construction and Write reports overflow instead of growing it, so the
// host keeps full ownership of the code-buffer byte range.
type CodeBuffer struct {
	Buf    []byte
	cursor int
}

func newCodeBuffer(buf []byte) *CodeBuffer {
	return &CodeBuffer{Buf: buf}
}

// Len reports how many bytes have been written so far.
func (c *CodeBuffer) Len() int {
	return c.cursor
}

// Remaining reports how many bytes are left before the buffer overflows.
func (c *CodeBuffer) Remaining() int {
	return len(c.Buf) - c.cursor
}

// Write appends p to the buffer, returning false (without writing
// anything) if doing so would overrun the host-supplied capacity.
func (c *CodeBuffer) Write(p []byte) bool {
	if len(p) > c.Remaining() {
		return false
	}
	copy(c.Buf[c.cursor:], p)
	c.cursor += len(p)
	return true
}

// EmitInst encodes one Inst as a 1-byte opcode followed by a 4-byte
// little-endian signed argument, and appends it to the buffer.
func (c *CodeBuffer) EmitInst(in Inst) bool {
	var b [5]byte
	b[0] = byte(in.Op)
	arg := uint32(in.Arg)
	b[1] = byte(arg)
	b[2] = byte(arg >> 8)
	b[3] = byte(arg >> 16)
	b[4] = byte(arg >> 24)
	return c.Write(b[:])
}

// instSize is the on-the-wire size of one encoded Inst, matching EmitInst.
const instSize = 5
