package cnms

// parser drives top-level declaration and function-body parsing. It
// shares the expression parser's token cursor (eval.go) and type parser
// (typeparser.go): a single-pass compile threads one cursor through
// every grammar level.
type parser struct {
	c      *Compiler
	p      *exprParser
	scopes *ScopeStack

	// currentReturn is the enclosing function's declared return type,
	// consulted by return statements; loopDepth counts enclosing while
	// loops so break/continue outside one is rejected.
	currentReturn TypeRef
	loopDepth     int
}

// emit appends one instruction to the host's code buffer. Emission is
// gated on a clean error counter: once any diagnostic has been raised
// the bytes would be garbage anyway, so parsing continues but writing
// stops. Overflowing the host-supplied capacity is reported once, by
// limit name, as a resource diagnostic.
func (tp *parser) emit(in Inst, loc SourceView) {
	if tp.c.diag.errors > 0 {
		return
	}
	if !tp.c.code.EmitInst(in) && !tp.c.codeOverflow {
		tp.c.codeOverflow = true
		tp.p.errorf(CategoryResource, 9007, loc, "code buffer overflow (capacity %d)", len(tp.c.code.Buf))
	}
}

// reportRegistryExhausted reports the user-type registry's resource
// limit by name so the host can reconfigure and retry, distinguishing
// pool exhaustion from a genuine duplicate-name error.
func (tp *parser) reportRegistryExhausted(loc SourceView) {
	tp.p.errorf(CategoryResource, 9000, loc, "user-type registry exhausted (limit %d)", tp.c.maxUserTypes)
}

// parseTopLevel parses and registers exactly one top-level declaration,
// returning the symbol it introduces (if any) and whether the caller
// should record it. Struct/enum/typedef/global declarations report their
// own symbol; extern fn declarations do not; the registry sweep at the
// end of Compile records every external UserFn exactly once, whether it
// came from RegisterExternal or from source.
func (tp *parser) parseTopLevel() (Symbol, bool) {
	switch tp.p.cur.Kind {
	case TokStruct:
		return tp.parseStructDecl()
	case TokEnum:
		return tp.parseEnumDecl()
	case TokTypedef:
		return tp.parseTypedefDecl()
	case TokExtern:
		tp.parseExternFnDecl()
		return Symbol{}, false
	case TokFn:
		return tp.parseFnDecl()
	case TokLet:
		return tp.parseGlobalLet()
	default:
		tp.p.errorf(CategorySyntax, 1001, tp.p.cur.Text, "expected a top-level declaration, found %s", tp.p.cur.Kind)
		tp.p.advance()
		return Symbol{}, false
	}
}

// parseStructDecl parses `struct Name;` (forward declaration) or
// `struct Name { field: type, ... }`, computing the full layout via
// layoutStruct once every member's type is known.
func (tp *parser) parseStructDecl() (Symbol, bool) {
	tp.p.advance() // struct
	nameTok := tp.p.expect(TokIdent, "expected a struct name")
	name := nameTok.Text.String()

	if tp.p.match(TokSemicolon) {
		idx, status := tp.c.userTypes.declare(name, UserStruct, nameTok.Text, true)
		switch status {
		case declareDuplicate:
			tp.p.errorf(CategorySemantic, 1010, nameTok.Text, "redeclaration of %q", name)
			return Symbol{}, false
		case declareExhausted:
			tp.reportRegistryExhausted(nameTok.Text)
			return Symbol{}, false
		}
		return Symbol{Name: name, Kind: SymStruct, Index: idx}, true
	}

	idx, status := tp.c.userTypes.declare(name, UserStruct, nameTok.Text, true)
	switch status {
	case declareDuplicate:
		tp.p.errorf(CategorySemantic, 1010, nameTok.Text, "redeclaration of %q", name)
	case declareExhausted:
		tp.reportRegistryExhausted(nameTok.Text)
	}

	fields := tp.parseFieldList()

	// The body is still parsed for error recovery, but a duplicate name
	// must not overwrite the registry entry it collided with.
	if status == declareExhausted || status == declareDuplicate {
		return Symbol{}, false
	}

	size, align := layoutStruct(tp.c, fields)
	tp.c.userTypes.fill(idx, UserType{Kind: UserStruct, EnumOwner: -1, Fields: fields, Size: size, Align: align})
	return Symbol{Name: name, Kind: SymStruct, Index: idx}, true
}

// parseFieldList parses the `{ name: type, ... }` body shared by struct
// declarations and enum variants.
func (tp *parser) parseFieldList() []Field {
	tp.p.expect(TokLBrace, "expected '{' to open field list")
	var fields []Field
	for !tp.p.at(TokRBrace) && !tp.p.at(TokEOF) {
		fieldTok := tp.p.expect(TokIdent, "expected a field name")
		tp.p.expect(TokColon, "expected ':' after field name")
		ftype := tp.p.types.parseType(tp.p, true)
		fields = append(fields, Field{Name: fieldTok.Text.String(), Type: ftype})
		if !tp.p.match(TokComma) {
			break
		}
	}
	tp.p.expect(TokRBrace, "expected '}' to close field list")
	tp.p.match(TokSemicolon)
	return fields
}

// parseEnumDecl parses `enum Name(idType) { Variant, Variant2 { f: type }, ... }`.
// Each variant becomes a hidden struct user-type whose EnumOwner points
// back at the enum; layoutEnum then computes where variant payloads
// begin and the enum's overall size and alignment.
func (tp *parser) parseEnumDecl() (Symbol, bool) {
	tp.p.advance() // enum
	nameTok := tp.p.expect(TokIdent, "expected an enum name")
	name := nameTok.Text.String()

	idx, status := tp.c.userTypes.declare(name, UserEnum, nameTok.Text, true)
	switch status {
	case declareDuplicate:
		tp.p.errorf(CategorySemantic, 1020, nameTok.Text, "redeclaration of %q", name)
	case declareExhausted:
		tp.reportRegistryExhausted(nameTok.Text)
	}

	idType := TypeRef{{Kind: KindI32}}
	if tp.p.match(TokLParen) {
		idType = tp.p.types.parseType(tp.p, true)
		tp.p.expect(TokRParen, "expected ')' after enum id type")
	}

	tp.p.expect(TokLBrace, "expected '{' to open enum body")
	var members []Enumerator
	var variantIdxs []int
	var nextValue int64
	for !tp.p.at(TokRBrace) && !tp.p.at(TokEOF) {
		variantTok := tp.p.expect(TokIdent, "expected a variant name")
		variantName := variantTok.Text.String()
		var fields []Field
		if tp.p.at(TokLBrace) {
			fields = tp.parseFieldList()
		}
		vsize, valign := layoutStruct(tp.c, fields)
		vidx, vstatus := tp.c.userTypes.declare(name+"."+variantName, UserStruct, variantTok.Text, false)
		switch vstatus {
		case declareDuplicate:
			tp.p.errorf(CategorySemantic, 1021, variantTok.Text, "duplicate variant %q", variantName)
		case declareExhausted:
			tp.reportRegistryExhausted(variantTok.Text)
		default:
			tp.c.userTypes.fill(vidx, UserType{Kind: UserStruct, EnumOwner: idx, Fields: fields, Size: vsize, Align: valign})
		}
		if vstatus != declareExhausted {
			variantIdxs = append(variantIdxs, vidx)
		}
		members = append(members, Enumerator{Name: variantName, Value: nextValue})
		nextValue++
		if !tp.p.match(TokComma) {
			break
		}
	}
	tp.p.expect(TokRBrace, "expected '}' to close enum body")
	tp.p.match(TokSemicolon)

	if status == declareExhausted || status == declareDuplicate {
		return Symbol{}, false
	}

	dataOffset, size, align := layoutEnum(tp.c, idType, variantIdxs)
	tp.c.userTypes.fill(idx, UserType{
		Kind: UserEnum, EnumOwner: -1,
		Underlying: idType, Members: members, VariantIdxs: variantIdxs,
		DataOffset: dataOffset, Size: size, Align: align,
	})
	return Symbol{Name: name, Kind: SymEnum, Index: idx}, true
}

// parseTypedefDecl parses `typedef Name = type;` or a generic
// `typedef Name<T, U> = type;`. The template parameter names are placed
// in scope on the shared type parser only for the duration of parsing
// the right-hand side, so any occurrence of T or U inside it resolves to
// a KindTemplate placeholder instead of an undeclared-type error.
func (tp *parser) parseTypedefDecl() (Symbol, bool) {
	tp.p.advance() // typedef
	nameTok := tp.p.expect(TokIdent, "expected a typedef name")
	name := nameTok.Text.String()

	var params []string
	if tp.p.match(TokLAngle) {
		for {
			paramTok := tp.p.expect(TokIdent, "expected a template parameter name")
			params = append(params, paramTok.Text.String())
			if !tp.p.match(TokComma) {
				break
			}
		}
		tp.p.expect(TokRAngle, "expected '>' after template parameters")
	}

	tp.p.expect(TokAssign, "expected '=' in typedef declaration")
	tp.p.types.templateParams = params
	aliased := tp.p.types.parseType(tp.p, true)
	tp.p.types.templateParams = nil
	tp.p.expect(TokSemicolon, "expected ';' after typedef declaration")

	idx, status := tp.c.userTypes.declare(name, UserTypedef, nameTok.Text, false)
	switch status {
	case declareDuplicate:
		tp.p.errorf(CategorySemantic, 1030, nameTok.Text, "redeclaration of %q", name)
		return Symbol{}, false
	case declareExhausted:
		tp.reportRegistryExhausted(nameTok.Text)
		return Symbol{}, false
	}
	tp.c.userTypes.fill(idx, UserType{Kind: UserTypedef, EnumOwner: -1, Aliased: aliased, NumParams: len(params)})
	return Symbol{Name: name, Kind: SymTypedef, Index: idx}, true
}

// parseFnSignature parses the `(name: type, ...)` parameter list shared
// by fn declarations and extern fn declarations. parseReturnType parses
// the optional `-> type` that follows; a missing one defaults to void.
func (tp *parser) parseFnSignature() []Param {
	tp.p.expect(TokLParen, "expected '(' after function name")
	var params []Param
	for !tp.p.at(TokRParen) && !tp.p.at(TokEOF) {
		pnameTok := tp.p.expect(TokIdent, "expected a parameter name")
		tp.p.expect(TokColon, "expected ':' after parameter name")
		ptype := tp.p.types.parseType(tp.p, true)
		params = append(params, Param{Name: pnameTok.Text.String(), Type: ptype})
		if !tp.p.match(TokComma) {
			break
		}
	}
	tp.p.expect(TokRParen, "expected ')' to close parameter list")
	return params
}

func (tp *parser) parseReturnType() TypeRef {
	if tp.p.match(TokArrow) {
		return tp.p.types.parseType(tp.p, true)
	}
	return TypeRef{{Kind: KindVoid}}
}

// parseFnDecl parses `fn name(...) -> ret;` (a bare forward declaration)
// or `fn name(...) -> ret { body }` (a full declaration with code).
func (tp *parser) parseFnDecl() (Symbol, bool) {
	tp.p.advance() // fn
	nameTok := tp.p.expect(TokIdent, "expected a function name")
	name := nameTok.Text.String()
	params := tp.parseFnSignature()
	ret := tp.parseReturnType()

	if tp.p.match(TokSemicolon) {
		idx, status := tp.c.userTypes.declare(name, UserFn, nameTok.Text, true)
		switch status {
		case declareDuplicate:
			tp.p.errorf(CategorySemantic, 1040, nameTok.Text, "redeclaration of %q", name)
			return Symbol{}, false
		case declareExhausted:
			tp.reportRegistryExhausted(nameTok.Text)
			return Symbol{}, false
		}
		tp.c.userTypes.fill(idx, UserType{Kind: UserFn, EnumOwner: -1, Params: params, Return: ret, HasBody: false})
		tp.c.userTypes.Get(idx).Forward = true
		return Symbol{Name: name, Kind: SymFunc, Index: idx}, true
	}

	idx, status := tp.c.userTypes.declare(name, UserFn, nameTok.Text, false)
	switch status {
	case declareDuplicate:
		tp.p.errorf(CategorySemantic, 1040, nameTok.Text, "redeclaration of %q", name)
	case declareForwardMatch:
		prior := tp.c.userTypes.Get(idx)
		if !signaturesMatch(prior.Params, prior.Return, params, ret) {
			tp.p.errorf(CategorySemantic, 1041, nameTok.Text, "definition of %q does not match its forward declaration", name)
		}
	case declareExhausted:
		tp.reportRegistryExhausted(nameTok.Text)
	}

	codeOffset := tp.c.code.Len()
	savedReturn, savedDepth := tp.currentReturn, tp.loopDepth
	tp.currentReturn, tp.loopDepth = ret, 0

	if !tp.scopes.Push() {
		tp.reportScopeDepthExceeded(nameTok.Text)
	}
	for _, prm := range params {
		psize, palign := tp.c.SizeAlign(prm.Type)
		slot := tp.scopes.Alloc(psize, palign)
		tp.scopes.Declare(Binding{
			Name: prm.Name, Type: prm.Type, Class: LValue,
			Store: Storage{Kind: StorageStack, Offset: slot},
			Loc:   nameTok.Text,
		})
	}
	tp.parseBlock()
	tp.scopes.Pop()

	// The function epilogue is the only instruction the front end itself
	// is responsible for; everything between codeOffset and here belongs
	// to the back end.
	tp.emit(Inst{Op: OpReturn}, nameTok.Text)

	tp.currentReturn, tp.loopDepth = savedReturn, savedDepth

	if status == declareExhausted || status == declareDuplicate {
		return Symbol{}, false
	}

	tp.c.userTypes.fill(idx, UserType{
		Kind: UserFn, EnumOwner: -1, Params: params, Return: ret,
		HasBody: true, CodeOffset: codeOffset,
	})
	return Symbol{Name: name, Kind: SymFunc, Index: idx, Value: int32(codeOffset)}, true
}

// parseExternFnDecl parses `extern fn name(...) -> ret;`. A name that
// already names a host-registered external (RegisterExternal, called
// before Compile) is accepted as a confirming re-declaration rather than
// an error, since the host and the source agreeing on an external's
// existence is the expected, common case; a name that collides with
// anything else is a genuine redeclaration error. It never returns a
// symbol of its own; the registry sweep at the end of Compile records
// every external UserFn exactly once regardless of which path declared
// it.
func (tp *parser) parseExternFnDecl() {
	tp.p.advance() // extern
	tp.p.expect(TokFn, "expected 'fn' after extern")
	nameTok := tp.p.expect(TokIdent, "expected a function name")
	name := nameTok.Text.String()
	params := tp.parseFnSignature()
	ret := tp.parseReturnType()
	tp.p.expect(TokSemicolon, "expected ';' after extern function declaration")

	idx, status := tp.c.userTypes.declare(name, UserFn, nameTok.Text, false)
	switch status {
	case declareDuplicate:
		prior := tp.c.userTypes.Get(idx)
		if prior.Kind == UserFn && prior.External {
			if !signaturesMatch(prior.Params, prior.Return, params, ret) {
				tp.p.errorf(CategorySemantic, 1051, nameTok.Text, "extern declaration of %q does not match its registered signature", name)
			}
			return
		}
		tp.p.errorf(CategorySemantic, 1050, nameTok.Text, "redeclaration of %q", name)
		return
	case declareExhausted:
		tp.reportRegistryExhausted(nameTok.Text)
		return
	}

	id := tp.c.nextExternalID
	tp.c.nextExternalID++
	tp.c.userTypes.fill(idx, UserType{
		Kind: UserFn, EnumOwner: -1, Params: params, Return: ret,
		HasBody: false, External: true, ExternalID: id,
	})
}

// parseGlobalLet parses a top-level `let name: type = expr;`, requiring
// at least one of the type annotation or the initializer (the same rule
// parseLetStmt applies to locals). Globals live in the data segment; the
// symbol records the offset so the host can find the value.
func (tp *parser) parseGlobalLet() (Symbol, bool) {
	nameTok, finalType := tp.parseLetCommon()
	size, align := tp.c.SizeAlign(finalType)
	offset := alignUp(tp.c.dataSize, align)
	tp.c.dataSize = offset + size
	if !tp.scopes.Declare(Binding{
		Name: nameTok.Text.String(), Type: finalType, Class: LValue,
		Store: Storage{Kind: StorageData, Offset: offset},
		Loc:   nameTok.Text,
	}) {
		tp.p.errorf(CategorySemantic, 1062, nameTok.Text, "redeclaration of %q", nameTok.Text.String())
	}
	return Symbol{Name: nameTok.Text.String(), Kind: SymGlobal, Index: -1, Value: int32(offset)}, true
}

// parseLetCommon parses the `let name[: type][ = expr];` shape shared by
// global and local declarations, returning the declared name token and
// the binding's resolved type. A declared type with no initializer uses
// it as-is; an initializer with no declared type takes the
// initializer's type; both present requires the initializer convert to
// the declared type; neither is a syntax error.
func (tp *parser) parseLetCommon() (Token, TypeRef) {
	tp.p.advance() // let
	nameTok := tp.p.expect(TokIdent, "expected a variable name")

	var declared TypeRef
	hasDeclared := false
	if tp.p.match(TokColon) {
		declared = tp.p.types.parseType(tp.p, false)
		hasDeclared = true
	}

	var init exprResult
	hasInit := false
	if tp.p.match(TokAssign) {
		init = tp.p.parseExpr(tp.scopes)
		hasInit = true
	}
	tp.p.expect(TokSemicolon, "expected ';' after 'let' declaration")

	switch {
	case hasDeclared && hasInit:
		if !init.Type.IsError() && !CanConvert(init.Type, declared) {
			tp.p.errorf(CategoryType, 1060, nameTok.Text, "cannot initialize %v with %v", declared, init.Type)
		}
		return nameTok, declared
	case hasDeclared:
		return nameTok, declared
	case hasInit:
		return nameTok, init.Type
	}
	tp.p.errorf(CategorySyntax, 1061, nameTok.Text, "'let' requires a type annotation or an initializer")
	return nameTok, ErrorType
}

// parseBlock parses a `{ stmt... }` block, opening and closing its own
// nested scope.
func (tp *parser) parseBlock() {
	open := tp.p.cur
	tp.p.expect(TokLBrace, "expected '{' to open block")
	if !tp.scopes.Push() {
		tp.reportScopeDepthExceeded(open.Text)
	}
	for !tp.p.at(TokRBrace) && !tp.p.at(TokEOF) {
		tp.parseStmt()
	}
	tp.p.expect(TokRBrace, "expected '}' to close block")
	tp.scopes.Pop()
}

// reportScopeDepthExceeded reports the scope stack's resource limit by
// name (the same taxonomy reportRegistryExhausted uses for the user-type
// registry), once a nested block pushes past maxScopeDepth.
func (tp *parser) reportScopeDepthExceeded(loc SourceView) {
	tp.p.errorf(CategoryResource, 9006, loc, "scope nesting exceeds limit (limit %d)", tp.c.maxScopeDepth)
}

// parseStmt parses one statement inside a function body.
func (tp *parser) parseStmt() {
	switch tp.p.cur.Kind {
	case TokLBrace:
		tp.parseBlock()
	case TokLet:
		tp.parseLetStmt()
	case TokIf:
		tp.parseIfStmt()
	case TokWhile:
		tp.parseWhileStmt()
	case TokReturn:
		tp.parseReturnStmt()
	case TokBreak:
		tok := tp.p.advance()
		if tp.loopDepth == 0 {
			tp.p.errorf(CategorySemantic, 1070, tok.Text, "'break' outside a loop")
		}
		tp.p.expect(TokSemicolon, "expected ';' after 'break'")
	case TokContinue:
		tok := tp.p.advance()
		if tp.loopDepth == 0 {
			tp.p.errorf(CategorySemantic, 1071, tok.Text, "'continue' outside a loop")
		}
		tp.p.expect(TokSemicolon, "expected ';' after 'continue'")
	default:
		tp.p.parseExpr(tp.scopes)
		tp.p.expect(TokSemicolon, "expected ';' after expression statement")
	}
}

// parseLetStmt parses a local `let` declaration and adds it to the
// innermost open scope. Shadowing an outer binding is legal but worth a
// warning, since a shadowed name in a short function body is usually a
// typo rather than intent.
func (tp *parser) parseLetStmt() {
	nameTok, finalType := tp.parseLetCommon()
	name := nameTok.Text.String()
	_, shadowed := tp.scopes.Resolve(name)
	size, align := tp.c.SizeAlign(finalType)
	slot := tp.scopes.Alloc(size, align)
	if !tp.scopes.Declare(Binding{
		Name: name, Type: finalType, Class: LValue,
		Store: Storage{Kind: StorageStack, Offset: slot},
		Loc:   nameTok.Text,
	}) {
		tp.p.errorf(CategorySemantic, 1082, nameTok.Text, "redeclaration of %q", name)
	} else if shadowed {
		tp.p.diag.warnf(CategorySemantic, 1083, nameTok.Text, "declaration of %q shadows an earlier binding", name)
	}
}

// parseIfStmt parses `if cond { ... }` with an optional `else` clause
// (itself another if statement, for an else-if chain, or a block). This
// is the statement form; the `if E then E else E` conditional expression
// (eval.go's parseCondExpr) is a distinct grammar production reached only
// inside an expression.
func (tp *parser) parseIfStmt() {
	tp.p.advance() // if
	cond := tp.p.parseBinaryExpr(tp.scopes, 1)
	if !cond.Type.IsError() && !CanConvert(cond.Type, TypeRef{{Kind: KindBool}}) {
		tp.p.errorf(CategoryType, 1090, tp.p.cur.Text, "if-condition must be convertible to bool")
	}
	tp.parseBlock()
	if tp.p.match(TokElse) {
		if tp.p.at(TokIf) {
			tp.parseIfStmt()
		} else {
			tp.parseBlock()
		}
	}
}

// parseWhileStmt parses `while cond { ... }`, tracking loop depth so
// break/continue inside the body are accepted.
func (tp *parser) parseWhileStmt() {
	tp.p.advance() // while
	cond := tp.p.parseBinaryExpr(tp.scopes, 1)
	if !cond.Type.IsError() && !CanConvert(cond.Type, TypeRef{{Kind: KindBool}}) {
		tp.p.errorf(CategoryType, 1091, tp.p.cur.Text, "while-condition must be convertible to bool")
	}
	tp.loopDepth++
	tp.parseBlock()
	tp.loopDepth--
}

// parseReturnStmt parses `return;` or `return expr;`, checking the
// value (or its absence) against the enclosing function's declared
// return type.
func (tp *parser) parseReturnStmt() {
	tok := tp.p.advance() // return
	var val exprResult
	hasVal := false
	if !tp.p.at(TokSemicolon) {
		val = tp.p.parseExpr(tp.scopes)
		hasVal = true
	}
	tp.p.expect(TokSemicolon, "expected ';' after 'return'")

	retIsVoid := len(tp.currentReturn) == 0 || tp.currentReturn[0].Kind == KindVoid
	switch {
	case !hasVal && !retIsVoid:
		tp.p.errorf(CategorySemantic, 1092, tok.Text, "missing return value for a non-void function")
	case hasVal && retIsVoid:
		tp.p.errorf(CategorySemantic, 1093, tok.Text, "unexpected return value in a void function")
	case hasVal && !val.Type.IsError() && !CanConvert(val.Type, tp.currentReturn):
		tp.p.errorf(CategoryType, 1094, tok.Text, "cannot convert %v to return type %v", val.Type, tp.currentReturn)
	}
}
