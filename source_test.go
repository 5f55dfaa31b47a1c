package cnms

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSourceViewText(t *testing.T) {
	src := []byte("let x = 1;")
	v := SourceView{Src: src, Start: 4, End: 5}
	assert.Equal(t, []byte("x"), v.Text())
	assert.Equal(t, "x", v.String())
}

func TestLocate(t *testing.T) {
	src := []byte("line one\nline two\nline three")
	for _, test := range []struct {
		name   string
		offset int
		want   Location
	}{
		{"start of buffer", 0, Location{Line: 1, Col: 1}},
		{"mid first line", 5, Location{Line: 1, Col: 6}},
		{"start of second line", 9, Location{Line: 2, Col: 1}},
		{"mid third line", 24, Location{Line: 3, Col: 7}},
		{"clamped past end", 10000, Location{Line: 3, Col: 11}},
	} {
		t.Run(test.name, func(t *testing.T) {
			assert.Equal(t, test.want, locate(src, test.offset))
		})
	}
}
