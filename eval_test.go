package cnms

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func checkExpr(t *testing.T, c *Compiler, scopes *ScopeStack, src string) (exprResult, *diagBag) {
	t.Helper()
	bag := &diagBag{}
	lex := newLexer([]byte(src), bag)
	ep := newExprParser(c, lex, bag)
	return ep.parseExpr(scopes), bag
}

func TestCheckExprLiteralsAndArithmetic(t *testing.T) {
	c := newTestCompiler()
	scopes := newScopeStack(64)
	for _, test := range []struct {
		name string
		src  string
		kind TypeKind
	}{
		{"int literal", "1", KindI32},
		{"float literal", "1.5", KindF64},
		{"bool literal", "true", KindBool},
		{"string literal is arrptr", "\"hi\"", KindArrPtr},
		{"addition promotes", "1 + 2", KindI32},
		{"mixed arithmetic widens", "(1 as i64) + 2", KindI64},
		{"comparison is bool", "1 < 2", KindBool},
		{"logical and is bool", "true && false", KindBool},
	} {
		t.Run(test.name, func(t *testing.T) {
			got, bag := checkExpr(t, c, scopes, test.src)
			require.Equal(t, 0, bag.errors)
			assert.Equal(t, test.kind, got.Type[0].Kind)
		})
	}
}

func TestCheckExprNumberLiteralTyping(t *testing.T) {
	c := newTestCompiler()
	scopes := newScopeStack(64)
	for _, test := range []struct {
		name string
		src  string
		kind TypeKind
	}{
		{"small decimal is i32", "7", KindI32},
		{"decimal overflowing i32 is u32", "3000000000", KindU32},
		{"negation of a small literal stays i32", "-1", KindI32},
		{"hex literal is u32", "0xFF", KindU32},
		{"plain float is f64", "1.5", KindF64},
		{"f-suffixed float is f32", "1.5f", KindF32},
	} {
		t.Run(test.name, func(t *testing.T) {
			got, bag := checkExpr(t, c, scopes, test.src)
			require.Equal(t, 0, bag.errors)
			assert.Equal(t, test.kind, got.Type[0].Kind)
		})
	}
}

func TestCheckExprConditionalUnifiesArithmetic(t *testing.T) {
	c := newTestCompiler()
	scopes := newScopeStack(64)
	got, bag := checkExpr(t, c, scopes, "if true then 1 else 2")
	require.Equal(t, 0, bag.errors)
	assert.Equal(t, KindI32, got.Type[0].Kind)
}

func TestCheckExprConditionalRejectsIncompatibleBranches(t *testing.T) {
	c := newTestCompiler()
	scopes := newScopeStack(64)
	_, bag := checkExpr(t, c, scopes, `if true then 1 else "s"`)
	assert.Equal(t, 1, bag.errors)
}

func TestCheckExprAssignmentRequiresLValue(t *testing.T) {
	c := newTestCompiler()
	scopes := newScopeStack(64)
	_, bag := checkExpr(t, c, scopes, "1 = 2")
	assert.Equal(t, 1, bag.errors)
}

func TestCheckExprAssignmentRejectsConstTarget(t *testing.T) {
	c := newTestCompiler()
	scopes := newScopeStack(64)
	scopes.Declare(Binding{Name: "x", Type: TypeRef{{Kind: KindI32, Mut: false}}, Class: LValue})
	_, bag := checkExpr(t, c, scopes, "x = 2")
	assert.Equal(t, 1, bag.errors)
}

func TestCheckExprAssignmentAllowsMutTarget(t *testing.T) {
	c := newTestCompiler()
	scopes := newScopeStack(64)
	scopes.Declare(Binding{Name: "x", Type: TypeRef{{Kind: KindI32, Mut: true}}, Class: LValue})
	got, bag := checkExpr(t, c, scopes, "x = 2")
	require.Equal(t, 0, bag.errors)
	assert.Equal(t, KindI32, got.Type[0].Kind)
}

func TestCheckExprAddressOfRequiresLValue(t *testing.T) {
	c := newTestCompiler()
	scopes := newScopeStack(64)
	_, bag := checkExpr(t, c, scopes, "&1")
	assert.Equal(t, 1, bag.errors)

	scopes.Declare(Binding{Name: "y", Type: TypeRef{{Kind: KindI32, Mut: true}}, Class: LValue})
	got, bag2 := checkExpr(t, c, scopes, "&y")
	require.Equal(t, 0, bag2.errors)
	assert.Equal(t, KindRef, got.Type[0].Kind)
	assert.True(t, got.Type[0].Mut)
}

func TestCheckExprSizeofLenofTypeofAlignof(t *testing.T) {
	c := newTestCompiler()
	scopes := newScopeStack(64)
	for _, test := range []struct {
		name string
		src  string
	}{
		{"sizeof type", "sizeof(i32)"},
		{"sizeof value", "sizeof(1)"},
		{"alignof type", "alignof(i32)"},
	} {
		t.Run(test.name, func(t *testing.T) {
			got, bag := checkExpr(t, c, scopes, test.src)
			require.Equal(t, 0, bag.errors)
			assert.Equal(t, KindUSize, got.Type[0].Kind)
		})
	}

	scopes.Declare(Binding{Name: "arr", Type: TypeRef{{Kind: KindArr, Aux: 4}, {Kind: KindI8}}, Class: LValue})
	got, bag := checkExpr(t, c, scopes, "lenof(arr)")
	require.Equal(t, 0, bag.errors)
	assert.Equal(t, KindUSize, got.Type[0].Kind)

	got2, bag2 := checkExpr(t, c, scopes, "typeof(arr)")
	require.Equal(t, 0, bag2.errors)
	assert.Equal(t, KindArr, got2.Type[0].Kind)
}

func TestCheckExprLenofRejectsNonArray(t *testing.T) {
	c := newTestCompiler()
	scopes := newScopeStack(64)
	_, bag := checkExpr(t, c, scopes, "lenof(1)")
	assert.Equal(t, 1, bag.errors)
}

func TestCheckExprStructLiteralAndFieldAccess(t *testing.T) {
	c := newTestCompiler()
	idx, _ := c.userTypes.declare("Point", UserStruct, SourceView{}, false)
	fields := []Field{
		{Name: "x", Type: TypeRef{{Kind: KindI32}}},
		{Name: "y", Type: TypeRef{{Kind: KindI32}}},
	}
	size, align := layoutStruct(c, fields)
	c.userTypes.fill(idx, UserType{Kind: UserStruct, EnumOwner: -1, Fields: fields, Size: size, Align: align})

	scopes := newScopeStack(64)
	got, bag := checkExpr(t, c, scopes, "Point{x: 1, y: 2}")
	require.Equal(t, 0, bag.errors)
	assert.Equal(t, KindStruct, got.Type[0].Kind)

	scopes.Declare(Binding{Name: "p", Type: TypeRef{{Kind: KindStruct, Mut: true, Aux: int32(idx)}}, Class: LValue})
	got2, bag2 := checkExpr(t, c, scopes, "p.x")
	require.Equal(t, 0, bag2.errors)
	assert.Equal(t, KindI32, got2.Type[0].Kind)
	assert.Equal(t, LValue, got2.Class)

	_, bag3 := checkExpr(t, c, scopes, "Point{x: 1, z: 2}")
	assert.Equal(t, 1, bag3.errors)
}

func TestCheckExprFieldAccessThroughPointerRequiresArrow(t *testing.T) {
	c := newTestCompiler()
	idx, _ := c.userTypes.declare("Point", UserStruct, SourceView{}, false)
	fields := []Field{{Name: "x", Type: TypeRef{{Kind: KindI32}}}}
	size, align := layoutStruct(c, fields)
	c.userTypes.fill(idx, UserType{Kind: UserStruct, EnumOwner: -1, Fields: fields, Size: size, Align: align})

	scopes := newScopeStack(64)
	scopes.Declare(Binding{
		Name:  "pp",
		Type:  TypeRef{{Kind: KindPtr, Mut: true}, {Kind: KindStruct, Mut: true, Aux: int32(idx)}},
		Class: LValue,
	})

	_, bag := checkExpr(t, c, scopes, "pp.x")
	assert.Equal(t, 1, bag.errors)

	got, bag2 := checkExpr(t, c, scopes, "pp->x")
	require.Equal(t, 0, bag2.errors)
	assert.Equal(t, KindI32, got.Type[0].Kind)
}

func TestCheckExprFieldAccessThroughReferenceAutoDerefs(t *testing.T) {
	c := newTestCompiler()
	idx, _ := c.userTypes.declare("Point", UserStruct, SourceView{}, false)
	fields := []Field{{Name: "x", Type: TypeRef{{Kind: KindI32}}}}
	size, align := layoutStruct(c, fields)
	c.userTypes.fill(idx, UserType{Kind: UserStruct, EnumOwner: -1, Fields: fields, Size: size, Align: align})

	scopes := newScopeStack(64)
	scopes.Declare(Binding{
		Name:  "qr",
		Type:  TypeRef{{Kind: KindRef, Mut: true}, {Kind: KindStruct, Mut: true, Aux: int32(idx)}},
		Class: LValue,
	})

	got, bag := checkExpr(t, c, scopes, "qr.x")
	require.Equal(t, 0, bag.errors)
	assert.Equal(t, KindI32, got.Type[0].Kind)

	_, bag2 := checkExpr(t, c, scopes, "qr->x")
	assert.Equal(t, 1, bag2.errors)
}

func TestCheckExprIndexing(t *testing.T) {
	c := newTestCompiler()
	scopes := newScopeStack(64)
	scopes.Declare(Binding{Name: "arr", Type: TypeRef{{Kind: KindArr, Aux: 4}, {Kind: KindI32}}, Class: LValue})

	got, bag := checkExpr(t, c, scopes, "arr[0]")
	require.Equal(t, 0, bag.errors)
	assert.Equal(t, KindI32, got.Type[0].Kind)
	assert.Equal(t, LValue, got.Class)

	_, bag2 := checkExpr(t, c, scopes, "arr[true]")
	assert.Equal(t, 1, bag2.errors)
}

func TestCheckExprCall(t *testing.T) {
	c := newTestCompiler()
	idx, _ := c.userTypes.declare("add", UserFn, SourceView{}, false)
	params := []Param{{Name: "a", Type: TypeRef{{Kind: KindI32}}}, {Name: "b", Type: TypeRef{{Kind: KindI32}}}}
	c.userTypes.fill(idx, UserType{Kind: UserFn, EnumOwner: -1, Params: params, Return: TypeRef{{Kind: KindI32}}})

	scopes := newScopeStack(64)
	got, bag := checkExpr(t, c, scopes, "add(1, 2)")
	require.Equal(t, 0, bag.errors)
	assert.Equal(t, KindI32, got.Type[0].Kind)

	_, bag2 := checkExpr(t, c, scopes, "add(1)")
	assert.Equal(t, 1, bag2.errors)

	_, bag3 := checkExpr(t, c, scopes, `add(1, "s")`)
	assert.Equal(t, 1, bag3.errors)
}

func TestCheckExprUndeclaredIdentifier(t *testing.T) {
	c := newTestCompiler()
	scopes := newScopeStack(64)
	_, bag := checkExpr(t, c, scopes, "nope")
	assert.Equal(t, 1, bag.errors)
}

func TestCheckExprCharLiteralTyping(t *testing.T) {
	c := newTestCompiler()
	scopes := newScopeStack(64)
	for _, test := range []struct {
		name string
		src  string
		kind TypeKind
	}{
		{"ascii char", "'a'", KindChar},
		{"simple escape", "'\\n'", KindChar},
		{"hex escape", "'\\x41'", KindChar},
		{"wide unicode escape", "'\\u00E9'", KindU32},
		{"multi-byte utf8", "'é'", KindU32},
	} {
		t.Run(test.name, func(t *testing.T) {
			got, bag := checkExpr(t, c, scopes, test.src)
			require.Equal(t, 0, bag.errors)
			assert.Equal(t, test.kind, got.Type[0].Kind)
		})
	}
}

func TestCheckExprUnaryPlusAndNot(t *testing.T) {
	c := newTestCompiler()
	scopes := newScopeStack(64)

	got, bag := checkExpr(t, c, scopes, "+1")
	require.Equal(t, 0, bag.errors)
	assert.Equal(t, KindI32, got.Type[0].Kind)

	got2, bag2 := checkExpr(t, c, scopes, "!true")
	require.Equal(t, 0, bag2.errors)
	assert.Equal(t, KindBool, got2.Type[0].Kind)

	_, bag3 := checkExpr(t, c, scopes, "+true")
	assert.Equal(t, 1, bag3.errors)
}

func TestCheckExprFieldOfRValueStructIsRValue(t *testing.T) {
	c := newTestCompiler()
	idx, _ := c.userTypes.declare("Point", UserStruct, SourceView{}, false)
	fields := []Field{{Name: "x", Type: TypeRef{{Kind: KindI32, Mut: true}}}}
	size, align := layoutStruct(c, fields)
	c.userTypes.fill(idx, UserType{Kind: UserStruct, EnumOwner: -1, Fields: fields, Size: size, Align: align})

	scopes := newScopeStack(64)
	got, bag := checkExpr(t, c, scopes, "Point{x: 1}.x")
	require.Equal(t, 0, bag.errors)
	assert.Equal(t, RValue, got.Class)

	// A literal's field has no storage to assign through.
	_, bag2 := checkExpr(t, c, scopes, "Point{x: 1}.x = 5")
	assert.Equal(t, 1, bag2.errors)
}

func TestCheckExprIndexOfRValueArrayIsRValue(t *testing.T) {
	c := newTestCompiler()
	scopes := newScopeStack(64)
	scopes.Declare(Binding{Name: "arr", Type: TypeRef{{Kind: KindArr, Mut: true, Aux: 4}, {Kind: KindI32, Mut: true}}, Class: LValue})

	// A conditional expression is an r-value even when both branches
	// name the same array, so its element is too.
	got, bag := checkExpr(t, c, scopes, "(if true then arr else arr)[0]")
	require.Equal(t, 0, bag.errors)
	assert.Equal(t, RValue, got.Class)

	_, bag2 := checkExpr(t, c, scopes, "(if true then arr else arr)[0] = 1")
	assert.Equal(t, 1, bag2.errors)
}

func TestCheckExprIndexThroughSliceIsAlwaysLValue(t *testing.T) {
	c := newTestCompiler()
	scopes := newScopeStack(64)
	scopes.Declare(Binding{Name: "s", Type: TypeRef{{Kind: KindSlice, Mut: true}, {Kind: KindI32, Mut: true}}, Class: LValue})

	got, bag := checkExpr(t, c, scopes, "(if true then s else s)[0]")
	require.Equal(t, 0, bag.errors)
	assert.Equal(t, LValue, got.Class)
}
