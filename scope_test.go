package cnms

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScopeStackShadowing(t *testing.T) {
	s := newScopeStack(8)
	require.True(t, s.Declare(Binding{Name: "x", Type: TypeRef{{Kind: KindI32}}}))

	s.Push()
	require.True(t, s.Declare(Binding{Name: "x", Type: TypeRef{{Kind: KindBool}}}))
	b, ok := s.Resolve("x")
	require.True(t, ok)
	assert.Equal(t, KindBool, b.Type[0].Kind)

	s.Pop()
	b2, ok2 := s.Resolve("x")
	require.True(t, ok2)
	assert.Equal(t, KindI32, b2.Type[0].Kind)
}

func TestScopeStackRejectsRedeclarationInSameScope(t *testing.T) {
	s := newScopeStack(8)
	require.True(t, s.Declare(Binding{Name: "x", Type: TypeRef{{Kind: KindI32}}}))
	assert.False(t, s.Declare(Binding{Name: "x", Type: TypeRef{{Kind: KindBool}}}))
}

func TestScopeStackResolveMissingName(t *testing.T) {
	s := newScopeStack(8)
	_, ok := s.Resolve("missing")
	assert.False(t, ok)
}

func TestScopeStackDepthBound(t *testing.T) {
	s := newScopeStack(2) // base frame + 1 more allowed
	assert.True(t, s.Push())
	assert.False(t, s.Push())
}

func TestScopeStackVirtualStackPointer(t *testing.T) {
	s := newScopeStack(8)
	require.Equal(t, 0, s.VSP())

	// A bool then an i32: the second slot pads to 4-byte alignment.
	assert.Equal(t, 0, s.Alloc(1, 1))
	assert.Equal(t, 4, s.Alloc(4, 4))
	require.Equal(t, 8, s.VSP())

	s.Push()
	assert.Equal(t, 8, s.Alloc(8, 8))
	require.Equal(t, 16, s.VSP())
	s.Pop()

	// Block exit releases the inner block's slots.
	assert.Equal(t, 8, s.VSP())
}
