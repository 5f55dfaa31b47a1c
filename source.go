package cnms

// SourceView is a half-open window into a source buffer. It never copies
// the underlying bytes; Start and End are byte offsets into Src.
type SourceView struct {
	Src   []byte
	Start int
	End   int
}

// Text returns the bytes the view covers.
func (v SourceView) Text() []byte {
	return v.Src[v.Start:v.End]
}

func (v SourceView) String() string {
	return string(v.Text())
}

// Location is a 1-based line/column pair resolved from a byte offset.
type Location struct {
	Line int
	Col  int
}

// locate walks src from the start counting newlines to turn a byte
// offset into a line/column pair. It is O(n) in the offset rather than
// O(log n) because diagnostics are rare and the source buffer is held
// once per compilation, not indexed.
func locate(src []byte, offset int) Location {
	line, col := 1, 1
	if offset > len(src) {
		offset = len(src)
	}
	for i := 0; i < offset; i++ {
		if src[i] == '\n' {
			line++
			col = 1
		} else {
			col++
		}
	}
	return Location{Line: line, Col: col}
}
