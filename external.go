package cnms

// Handle is an opaque value the host's symbol resolver hands back for a
// registered name; the VM later dispatches external calls through it.
// cnms never interprets the bits itself.
type Handle uintptr

// SymbolResolver maps an external function's name to the host's opaque
// callable. A nil resolver means external
// declarations are registered but never resolved; calling one at
// runtime is then the host's problem, not the compiler's.
type SymbolResolver func(name string) (Handle, bool)

// FuncSig describes one external function's signature for registration
// before compilation: cnms records it as a UserFn entry with the
// External flag set and a small integer id, so the VM can later dispatch
// on that id through the host-supplied table instead of the name.
type FuncSig struct {
	Params []Param
	Return TypeRef
}

// RegisterExternal declares name as an external function available to
// the source being compiled, with the given signature. It must be
// called before Compile. A duplicate name is rejected.
func (c *Compiler) RegisterExternal(name string, sig FuncSig) error {
	idx, status := c.userTypes.declare(name, UserFn, SourceView{}, false)
	if status == declareDuplicate {
		return Diagnostic{
			Severity: SeverityError,
			Category: CategorySemantic,
			Code:     5001,
			Message:  "duplicate external function name " + name,
		}
	}
	if status == declareExhausted {
		return Diagnostic{
			Severity: SeverityError,
			Category: CategoryResource,
			Code:     9000,
			Message:  "user-type registry exhausted (limit " + itoa(c.maxUserTypes) + ")",
		}
	}
	id := c.nextExternalID
	c.nextExternalID++
	c.userTypes.fill(idx, UserType{
		Kind:       UserFn,
		EnumOwner:  -1,
		Params:     sig.Params,
		Return:     sig.Return,
		HasBody:    false,
		External:   true,
		ExternalID: id,
	})
	return nil
}

// resolveExternals runs the host's SymbolResolver (if any) over every
// external function declared so far, reporting an error for each one it
// does not find. It is called once, at the end of Compile, after the
// top-level parse loop, so it covers both RegisterExternal
// pre-registrations and source-level `extern fn` declarations, which are
// only added to the registry during parsing.
func (c *Compiler) resolveExternals() {
	if c.resolver == nil {
		return
	}
	for i := 0; i < c.userTypes.Len(); i++ {
		ut := c.userTypes.Get(i)
		if ut.Kind != UserFn || !ut.External {
			continue
		}
		if _, ok := c.resolver(ut.Name); !ok {
			c.diag.errorf(CategorySemantic, 5002, SourceView{}, "external function %q has no registered implementation", ut.Name)
		}
	}
}
