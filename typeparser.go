package cnms

// typeParser parses a type expression into a TypeRef, expanding typedefs
// and template arguments as it goes. It shares the token cursor with the
// expression parser (eval.go) since types and expressions are mutually
// recursive: sizeof(T) and `expr as T` casts both need a type inside an
// expression context, and a typedef's stored encoding can itself embed
// template placeholders that only get resolved once the caller supplies
// actual arguments.
type typeParser struct {
	c *Compiler

	// templateParams names the generic parameters in scope while parsing
	// a typedef's right-hand side (set by the typedef declaration parser
	// for the duration of that one parse, then cleared). An identifier
	// matching one of these names resolves to a KindTemplate placeholder
	// instead of a registry lookup.
	templateParams []string
}

// parseType parses one full type expression (pointer/ref/array/slice
// modifiers around a base name or built-in keyword) and returns the
// resulting TypeRef, charging its Levels against the compiler's
// type-level budget.
// constByDefault controls whether a bare, unqualified type is treated as
// const (true at top level, e.g. function parameter and return types)
// or mutable (false inside a `let` declaration's type annotation). The
// two positions deliberately default differently: declared storage is
// usually written to, declared interfaces usually are not.
func (tp *typeParser) parseType(p *exprParser, constByDefault bool) TypeRef {
	startTok := p.cur
	t := tp.parseTypeAt(p, constByDefault, 0)
	if t.IsError() {
		return t
	}
	if !p.c.chargeTypeLevels(len(t), startTok.Text) {
		return ErrorType
	}
	return t
}

// parseTypeAt is parseType's recursive worker; depth counts how many
// indirection levels (ref/ptr/arrptr/slice/array) enclose the type being
// parsed right now, so that the `any` wildcard can be rejected when it
// appears bare (depth 0) and accepted under at least one indirection.
func (tp *typeParser) parseTypeAt(p *exprParser, constByDefault bool, depth int) TypeRef {
	if !p.c.pushRecursion() {
		defer p.c.popRecursion()
		p.errorf(CategoryResource, 9002, p.cur.Text, "type nesting exceeds recursion limit (limit %d)", p.c.maxRecursionDepth)
		return ErrorType
	}
	defer p.c.popRecursion()

	mut := !constByDefault
	for {
		switch p.cur.Kind {
		case TokConst:
			p.advance()
			mut = false
			continue
		case TokMut:
			p.advance()
			mut = true
			continue
		}
		break
	}

	switch p.cur.Kind {
	case TokAmp:
		p.advance()
		inner := tp.parseTypeAt(p, constByDefault, depth+1)
		return append(TypeRef{{Kind: KindRef, Mut: mut}}, inner...)
	case TokStar:
		p.advance()
		inner := tp.parseTypeAt(p, constByDefault, depth+1)
		return append(TypeRef{{Kind: KindPtr, Mut: mut}}, inner...)
	case TokLBrack:
		p.advance()
		if p.cur.Kind == TokRBrack {
			p.advance()
			inner := tp.parseTypeAt(p, constByDefault, depth+1)
			return append(TypeRef{{Kind: KindSlice, Mut: mut}}, inner...)
		}
		if p.cur.Kind == TokStar {
			p.advance()
			p.expect(TokRBrack, "expected ']' after '[*'")
			inner := tp.parseTypeAt(p, constByDefault, depth+1)
			return append(TypeRef{{Kind: KindArrPtr, Mut: mut}}, inner...)
		}
		lenTok := p.cur
		n := p.parseConstArrayLen(lenTok)
		p.expect(TokRBrack, "expected ']' after array length")
		inner := tp.parseTypeAt(p, constByDefault, depth+1)
		return append(TypeRef{{Kind: KindArr, Mut: mut, Aux: n}}, inner...)
	case TokAny:
		loc := p.cur.Text
		p.advance()
		if depth == 0 {
			p.errorf(CategoryType, 2004, loc, "'any' is only legal under indirection (&any, *any, &[]any)")
			return ErrorType
		}
		return TypeRef{{Kind: KindAny, Mut: mut}}
	case TokVoid, TokBool, TokChar_, TokI8, TokU8, TokI16, TokU16, TokI32,
		TokU32, TokI64, TokU64, TokISize, TokUSize, TokF32, TokF64:
		kind, _ := typeKeyword(p.cur.Kind)
		p.advance()
		return TypeRef{{Kind: kind, Mut: mut}}
	case TokFn:
		return tp.parsePfnType(p, constByDefault, mut)
	case TokIdent:
		name := p.cur.Text.String()
		loc := p.cur.Text
		p.advance()
		return tp.resolveNamed(p, name, loc, mut)
	default:
		p.errorf(CategoryType, 2001, p.cur.Text, "expected a type, found %s", p.cur.Kind)
		return ErrorType
	}
}

// parsePfnType parses a function-pointer type: `fn(T, U) -> R`. An
// omitted `-> R` defaults to void, matching a bare procedure signature.
func (tp *typeParser) parsePfnType(p *exprParser, constByDefault bool, mut bool) TypeRef {
	p.advance() // fn
	p.expect(TokLParen, "expected '(' in function pointer type")
	var params TypeRef
	n := 0
	for !p.at(TokRParen) && !p.at(TokEOF) {
		if n > 0 {
			p.expect(TokComma, "expected ',' between parameter types")
		}
		params = append(params, tp.parseTypeAt(p, true, 1)...)
		n++
	}
	p.expect(TokRParen, "expected ')' to close function pointer parameter list")
	var ret TypeRef
	if p.match(TokArrow) {
		ret = tp.parseTypeAt(p, true, 0)
	} else {
		ret = TypeRef{{Kind: KindVoid}}
	}
	out := append(TypeRef{{Kind: KindPfn, Mut: mut, Aux: int32(n)}}, params...)
	return append(out, ret...)
}

// parseConstArrayLen parses the integer literal inside an array type's
// brackets. Non-constant array lengths are not supported; the length
// must be decided at type-check time so Length and SizeAlign can walk
// the pool without evaluating code.
func (p *exprParser) parseConstArrayLen(tok Token) int32 {
	if tok.Kind != TokInt {
		p.errorf(CategoryType, 2002, tok.Text, "array length must be an integer literal")
		return 0
	}
	p.advance()
	n := parseIntLiteral(tok.Text.Text())
	return int32(n)
}

// resolveNamed looks up a declared struct, enum or typedef by name,
// expanding typedef bodies (and, for generic typedefs, substituting
// `<...>` actual arguments for template placeholders) into a new
// TypeRef.
func (tp *typeParser) resolveNamed(p *exprParser, name string, loc SourceView, mut bool) TypeRef {
	for i, param := range tp.templateParams {
		if param == name {
			return TypeRef{{Kind: KindTemplate, Mut: mut, Aux: int32(i)}}
		}
	}
	idx, ok := tp.c.userTypes.Lookup(name)
	if !ok {
		p.errorf(CategoryType, 2003, loc, "undeclared type %q", name)
		return ErrorType
	}
	ut := tp.c.userTypes.Get(idx)
	switch ut.Kind {
	case UserStruct:
		return TypeRef{{Kind: KindStruct, Mut: mut, Aux: int32(idx)}}
	case UserEnum:
		return TypeRef{{Kind: KindEnum, Mut: mut, Aux: int32(idx)}}
	case UserTypedef:
		var args []TypeRef
		if ut.NumParams > 0 {
			p.expect(TokLAngle, "expected '<' to supply template arguments")
			for i := 0; i < ut.NumParams; i++ {
				if i > 0 {
					p.expect(TokComma, "expected ',' between template arguments")
				}
				args = append(args, tp.parseTypeAt(p, true, 0))
			}
			p.expect(TokRAngle, "expected '>' after template arguments")
		}
		return tp.expandTypedef(ut.Aliased, args, mut)
	}
	return ErrorType
}

// expandTypedef copies a stored typedef encoding, substituting each
// KindTemplate placeholder with the corresponding actual argument's full
// encoding (which may itself span more than one level), and merging mut
// into the leading level the way a qualifier written before a typedef
// name qualifies its expansion rather than just its first cell.
func (tp *typeParser) expandTypedef(aliased TypeRef, args []TypeRef, mut bool) TypeRef {
	out := expandLevels(aliased, args)
	if len(out) > 0 {
		out[0].Mut = mut
	}
	return out
}

// expandLevels substitutes template placeholders throughout levels,
// recursing into every nested type a compound level owns (an array's
// element, a function pointer's parameters and return type) rather than
// copying compound levels verbatim, since a placeholder can appear
// arbitrarily deep inside one.
func expandLevels(levels []Level, args []TypeRef) TypeRef {
	if len(levels) == 0 {
		return nil
	}
	l := levels[0]
	switch l.Kind {
	case KindTemplate:
		var sub TypeRef
		if int(l.Aux) < len(args) {
			sub = append(TypeRef{}, args[l.Aux]...)
		} else {
			sub = TypeRef{l}
		}
		return append(sub, expandLevels(levels[1:], args)...)
	case KindRef, KindPtr, KindArrPtr, KindSlice:
		inner := expandLevels(levels[1:], args)
		return append(TypeRef{l}, inner...)
	case KindArr:
		elemLen := Length(levels[1:])
		inner := expandLevels(levels[1:1+elemLen], args)
		rest := expandLevels(levels[1+elemLen:], args)
		out := append(TypeRef{l}, inner...)
		return append(out, rest...)
	case KindPfn:
		n := int(l.Aux)
		pos := 1
		out := TypeRef{l}
		for i := 0; i < n; i++ {
			plen := Length(levels[pos:])
			out = append(out, expandLevels(levels[pos:pos+plen], args)...)
			pos += plen
		}
		retLen := Length(levels[pos:])
		out = append(out, expandLevels(levels[pos:pos+retLen], args)...)
		pos += retLen
		return append(out, expandLevels(levels[pos:], args)...)
	default:
		n := Length(levels)
		head := append(TypeRef{}, levels[:n]...)
		rest := expandLevels(levels[n:], args)
		return append(head, rest...)
	}
}

func parseIntLiteral(text []byte) int64 {
	var n int64
	if len(text) > 1 && text[0] == '0' && (text[1] == 'x' || text[1] == 'X') {
		for _, c := range text[2:] {
			n = n*16 + int64(hexVal(c))
		}
		return n
	}
	for _, c := range text {
		if c < '0' || c > '9' {
			break
		}
		n = n*10 + int64(c-'0')
	}
	return n
}

func hexVal(c byte) int {
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0')
	case c >= 'a' && c <= 'f':
		return int(c-'a') + 10
	case c >= 'A' && c <= 'F':
		return int(c-'A') + 10
	}
	return 0
}
