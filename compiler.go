package cnms

import "fmt"

// Default resource bounds, used whenever an Option does not override
// them: generous enough for realistic programs, small enough that a
// pathological or adversarial input hits a reported resource error
// instead of growing without bound.
const (
	DefaultMaxUserTypes     = 4096
	DefaultMaxScopeDepth    = 256
	DefaultMaxTypeLevels    = 1 << 20
	DefaultMaxRecursionDepth = 32
)

// SymbolKind classifies one entry of a compile's top-level symbol
// table.
type SymbolKind int

const (
	SymFunc SymbolKind = iota
	SymGlobal
	SymStruct
	SymEnum
	SymTypedef
)

var symbolKindNames = map[SymbolKind]string{
	SymFunc: "fn", SymGlobal: "global", SymStruct: "struct",
	SymEnum: "enum", SymTypedef: "typedef",
}

func (k SymbolKind) String() string {
	if n, ok := symbolKindNames[k]; ok {
		return n
	}
	return "unknown"
}

// Symbol is one top-level name the host can look up after a successful
// compile: a function (with its code offset, or its external id for an
// external function), a global variable (with
// its data-segment offset), or a user type (with its registry index).
type Symbol struct {
	Name  string
	Kind  SymbolKind
	Index int // user-type registry index, for SymStruct/SymEnum/SymTypedef/SymFunc
	Value int32
}

// Result is the outcome of one Compile call.
type Result struct {
	Errors       int
	Warnings     int
	BytesWritten int
	Symbols      []Symbol
}

// Option configures a Compiler at construction time. Options are plain
// functions over the Compiler value rather than a config struct, the
// idiomatic Go shape for a long, rarely-changed list of optional knobs.
type Option func(*Compiler)

// WithDiagnosticSink routes every diagnostic the compiler raises to sink
// in addition to incrementing the error/warning counters. A nil sink
// (the default) drops messages while still counting them.
func WithDiagnosticSink(sink DiagnosticSink) Option {
	return func(c *Compiler) { c.diag.sink = sink }
}

// WithSymbolResolver supplies the callback used to resolve each
// external function registered with RegisterExternal to the host's
// opaque handle.
func WithSymbolResolver(r SymbolResolver) Option {
	return func(c *Compiler) { c.resolver = r }
}

// WithMaxUserTypes overrides the bound on how many struct/enum/typedef/
// function entries one compilation may register.
func WithMaxUserTypes(n int) Option {
	return func(c *Compiler) { c.maxUserTypes = n }
}

// WithMaxScopeDepth overrides the bound on nested block depth.
func WithMaxScopeDepth(n int) Option {
	return func(c *Compiler) { c.maxScopeDepth = n }
}

// WithMaxTypeLevels overrides the bound on the cumulative number of
// type-encoding Levels one compilation may produce.
func WithMaxTypeLevels(n int) Option {
	return func(c *Compiler) { c.maxTypeLevels = n }
}

// WithMaxRecursionDepth overrides the bound on how deeply the type
// parser and expression parser may recurse into each other before a
// resource diagnostic is reported instead of overflowing the Go stack.
func WithMaxRecursionDepth(n int) Option {
	return func(c *Compiler) { c.maxRecursionDepth = n }
}

// Compiler holds every piece of state one compilation touches: the
// source buffer, the output code buffer, the diagnostic sink and
// counters, the user-type registry, and the resource bounds each pool
// is checked against. A Compiler is created once per compilation via
// NewCompiler and is never reused or shared across goroutines; a host
// wanting parallel compiles instantiates one Compiler per goroutine.
type Compiler struct {
	src  []byte
	code *CodeBuffer
	diag *diagBag

	userTypes *UserTypeRegistry
	resolver  SymbolResolver

	maxUserTypes      int
	maxScopeDepth     int
	maxTypeLevels     int
	typeLevelsUsed    int
	nextExternalID    int
	maxRecursionDepth int
	recursionDepth    int
	codeOverflow      bool
	dataSize          int
}

// NewCompiler constructs a Compiler over a borrowed source buffer and a
// host-owned code buffer. Neither slice is copied; both must outlive
// the Compiler.
func NewCompiler(src []byte, code []byte, opts ...Option) *Compiler {
	c := &Compiler{
		src:               src,
		code:              newCodeBuffer(code),
		diag:              &diagBag{},
		maxUserTypes:      DefaultMaxUserTypes,
		maxScopeDepth:     DefaultMaxScopeDepth,
		maxTypeLevels:     DefaultMaxTypeLevels,
		maxRecursionDepth: DefaultMaxRecursionDepth,
	}
	for _, o := range opts {
		o(c)
	}
	c.userTypes = newUserTypeRegistry(c.maxUserTypes)
	return c
}

// chargeTypeLevels debits n Levels from the type-level pool budget,
// reporting a resource diagnostic at area the first time the budget is
// exhausted. Every caller that appends a freshly parsed TypeRef to a
// registry entry or binding should account for it here so pool
// exhaustion is a reported error rather than unbounded growth.
func (c *Compiler) chargeTypeLevels(n int, area SourceView) bool {
	c.typeLevelsUsed += n
	if c.typeLevelsUsed > c.maxTypeLevels {
		if c.typeLevelsUsed-n <= c.maxTypeLevels {
			c.diag.errorf(CategoryResource, 9001, area, "type-level pool exhausted (limit %d)", c.maxTypeLevels)
		}
		return false
	}
	return true
}

// pushRecursion counts one more level of the type parser's and
// expression parser's mutual descent, reporting false once the
// recursion limit is exceeded so a caller can return an error sentinel
// instead of recursing further: pathological nesting becomes a
// reported error, not a stack overflow. Every call must be
// paired with popRecursion regardless of the return value, so the depth
// counter unwinds correctly whether or not the caller kept recursing.
func (c *Compiler) pushRecursion() bool {
	c.recursionDepth++
	return c.recursionDepth <= c.maxRecursionDepth
}

// popRecursion undoes one pushRecursion.
func (c *Compiler) popRecursion() {
	c.recursionDepth--
}

// Compile parses and type-checks the entire source buffer as one
// translation unit, returning the error/warning counts, the number of
// bytes written to the code buffer, and the top-level symbol table.
// filename is used only for diagnostic formatting.
func (c *Compiler) Compile(filename string) Result {
	c.diag.filename = filename

	lex := newLexer(c.src, c.diag)
	ep := newExprParser(c, lex, c.diag)
	scopes := newScopeStack(c.maxScopeDepth)
	tp := &parser{c: c, p: ep, scopes: scopes}

	var symbols []Symbol
	for !ep.at(TokEOF) {
		sym, ok := tp.parseTopLevel()
		if ok {
			symbols = append(symbols, sym)
		}
		if ep.at(TokEOF) {
			break
		}
	}

	// Resolved last: RegisterExternal entries exist before Compile is
	// called, but source-level extern fn declarations are only added to
	// the registry during the parse loop above.
	c.resolveExternals()

	for i := 0; i < c.userTypes.Len(); i++ {
		ut := c.userTypes.Get(i)
		if ut.Kind == UserFn && ut.External {
			symbols = append(symbols, Symbol{Name: ut.Name, Kind: SymFunc, Index: i, Value: int32(ut.ExternalID)})
		}
	}

	return Result{
		Errors:       c.diag.errors,
		Warnings:     c.diag.warnings,
		BytesWritten: c.code.Len(),
		Symbols:      symbols,
	}
}

// DumpState renders the user-type registry and the code buffer's
// write cursor for debugging, using go-spew the same way a host
// harness inspects compiler internals during development.
func (c *Compiler) DumpState() string {
	return fmt.Sprintf("usertypes=%s codeBytesWritten=%d errors=%d",
		dumpUserTypes(c.userTypes), c.code.Len(), c.diag.errors)
}
