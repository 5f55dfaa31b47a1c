package cnms

import (
	"strconv"
	"strings"
	"unicode/utf8"
)

// exprParser is the shared cursor for type-checking expressions and the
// type expressions nested inside them (casts, sizeof). It holds exactly
// one token of lookahead, matching the lexer's own single-token
// lookahead contract.
type exprParser struct {
	lex   *Lexer
	cur   Token
	diag  *diagBag
	c     *Compiler
	types *typeParser
}

func newExprParser(c *Compiler, lex *Lexer, diag *diagBag) *exprParser {
	p := &exprParser{lex: lex, diag: diag, c: c}
	p.types = &typeParser{c: c}
	p.advance()
	return p
}

func (p *exprParser) advance() Token {
	prev := p.cur
	p.cur = p.lex.Next()
	return prev
}

func (p *exprParser) at(kind TokenKind) bool {
	return p.cur.Kind == kind
}

func (p *exprParser) match(kind TokenKind) bool {
	if p.at(kind) {
		p.advance()
		return true
	}
	return false
}

func (p *exprParser) expect(kind TokenKind, msg string) Token {
	if !p.at(kind) {
		p.errorf(CategorySyntax, 3001, p.cur.Text, "%s (found %s)", msg, p.cur.Kind)
		return p.cur
	}
	return p.advance()
}

func (p *exprParser) errorf(cat Category, code int, area SourceView, format string, args ...any) {
	p.diag.errorf(cat, code, area, format, args...)
}

// exprResult is the outcome of type-checking one expression: its type and
// whether it names a storage location.
type exprResult struct {
	Type  TypeRef
	Class ValueClass
}

func errResult() exprResult { return exprResult{Type: ErrorType, Class: RValue} }

// precedence returns the binding power of a binary operator token, or 0
// if the token does not continue a binary expression. Lower numbers
// bind more loosely; unary, postfix, and primary expressions are parsed
// outside this table at the top of the climb.
func precedence(kind TokenKind) int {
	switch kind {
	case TokAssign:
		return 1
	case TokOrOr:
		return 2
	case TokAndAnd:
		return 3
	case TokPipe:
		return 4
	case TokCaret:
		return 5
	case TokAmp:
		return 6
	case TokEq, TokNeq:
		return 7
	case TokLAngle, TokRAngle, TokLeq, TokGeq:
		return 8
	case TokShl, TokShr:
		return 9
	case TokPlus, TokMinus:
		return 10
	case TokStar, TokSlash, TokPercent:
		return 11
	case TokAs:
		return 12
	}
	return 0
}

func isRightAssoc(kind TokenKind) bool {
	return kind == TokAssign
}

// parseExpr type-checks one expression at the lowest precedence: the
// `if E then E else E` conditional expression sits below assignment, so
// it is checked for here rather than given a precedence slot in the
// binary climb (the ternary shape has three operands, not two).
func (p *exprParser) parseExpr(scopes *ScopeStack) exprResult {
	if p.at(TokIf) {
		return p.parseCondExpr(scopes)
	}
	return p.parseBinaryExpr(scopes, 1)
}

// parseCondExpr type-checks `if cond then yes else no`. Both branches
// must unify: either they are arithmetic (in which case the result is
// their arithmeticConversion) or they must be the same type, ignoring
// mutability qualifiers.
func (p *exprParser) parseCondExpr(scopes *ScopeStack) exprResult {
	ifTok := p.advance()
	cond := p.parseExpr(scopes)
	if !cond.Type.IsError() && !CanConvert(cond.Type, TypeRef{{Kind: KindBool}}) {
		p.errorf(CategoryType, 4002, ifTok.Text, "if-condition must be convertible to bool")
	}
	p.expect(TokThen, "expected 'then' after if-condition")
	yes := p.parseExpr(scopes)
	p.expect(TokElse, "expected 'else' in conditional expression")
	no := p.parseExpr(scopes)
	if yes.Type.IsError() || no.Type.IsError() {
		return errResult()
	}
	if isArithmetic(yes.Type) && isArithmetic(no.Type) {
		return exprResult{Type: arithmeticConversion(yes.Type, no.Type), Class: RValue}
	}
	if Equals(yes.Type, no.Type, true) {
		return exprResult{Type: yes.Type, Class: RValue}
	}
	p.errorf(CategoryType, 4003, ifTok.Text, "branches of conditional expression have incompatible types %v and %v", yes.Type, no.Type)
	return errResult()
}

// parseBinaryExpr implements precedence climbing: it parses one unary
// expression, then repeatedly folds in operators whose precedence is at
// least minPrec, recursing at minPrec+1 (or minPrec for right-associative
// operators) to parse each operator's right-hand side.
func (p *exprParser) parseBinaryExpr(scopes *ScopeStack, minPrec int) exprResult {
	if !p.c.pushRecursion() {
		defer p.c.popRecursion()
		p.errorf(CategoryResource, 9003, p.cur.Text, "expression nesting exceeds recursion limit (limit %d)", p.c.maxRecursionDepth)
		return errResult()
	}
	defer p.c.popRecursion()

	left := p.parseUnaryExpr(scopes)
	for {
		prec := precedence(p.cur.Kind)
		if prec == 0 || prec < minPrec {
			return left
		}
		op := p.advance()
		if op.Kind == TokAs {
			target := p.types.parseType(p, true)
			left = p.checkCast(op, left, target)
			continue
		}
		nextMin := prec + 1
		if isRightAssoc(op.Kind) {
			nextMin = prec
		}
		right := p.parseBinaryExpr(scopes, nextMin)
		left = p.checkBinary(op, left, right)
	}
}

func (p *exprParser) checkCast(op Token, operand exprResult, target TypeRef) exprResult {
	if operand.Type.IsError() || target.IsError() {
		return errResult()
	}
	if !CanConvert(operand.Type, target) && !(isArithmetic(operand.Type) && isArithmetic(target)) {
		p.errorf(CategoryType, 4001, op.Text, "cannot cast %v to %v", operand.Type, target)
		return errResult()
	}
	return exprResult{Type: target, Class: RValue}
}

func (p *exprParser) checkBinary(op Token, left, right exprResult) exprResult {
	if left.Type.IsError() || right.Type.IsError() {
		return errResult()
	}
	switch op.Kind {
	case TokAssign:
		if left.Class != LValue {
			p.errorf(CategorySemantic, 4010, op.Text, "left-hand side of assignment is not an l-value")
			return errResult()
		}
		if len(left.Type) > 0 && !left.Type[0].Mut {
			p.errorf(CategorySemantic, 4011, op.Text, "cannot assign to a const l-value")
			return errResult()
		}
		if !CanConvert(right.Type, left.Type) {
			p.errorf(CategoryType, 4012, op.Text, "cannot assign %v to %v", right.Type, left.Type)
			return errResult()
		}
		return exprResult{Type: left.Type, Class: RValue}
	case TokAndAnd, TokOrOr:
		if !CanConvert(left.Type, TypeRef{{Kind: KindBool}}) || !CanConvert(right.Type, TypeRef{{Kind: KindBool}}) {
			p.errorf(CategoryType, 4013, op.Text, "operands of %s must be convertible to bool", op.Kind)
			return errResult()
		}
		return exprResult{Type: TypeRef{{Kind: KindBool}}, Class: RValue}
	case TokEq, TokNeq:
		if isArithmetic(left.Type) && isArithmetic(right.Type) {
			return exprResult{Type: TypeRef{{Kind: KindBool}}, Class: RValue}
		}
		if Equals(left.Type, right.Type, true) {
			return exprResult{Type: TypeRef{{Kind: KindBool}}, Class: RValue}
		}
		p.errorf(CategoryType, 4014, op.Text, "cannot compare %v and %v", left.Type, right.Type)
		return errResult()
	case TokLAngle, TokRAngle, TokLeq, TokGeq:
		if !isArithmetic(left.Type) || !isArithmetic(right.Type) {
			p.errorf(CategoryType, 4015, op.Text, "relational operator %s requires arithmetic operands", op.Kind)
			return errResult()
		}
		return exprResult{Type: TypeRef{{Kind: KindBool}}, Class: RValue}
	case TokAmp, TokPipe, TokCaret, TokShl, TokShr:
		if !isArithmetic(left.Type) || !isArithmetic(right.Type) ||
			left.Type[0].Kind == KindF32 || left.Type[0].Kind == KindF64 ||
			right.Type[0].Kind == KindF32 || right.Type[0].Kind == KindF64 {
			p.errorf(CategoryType, 4016, op.Text, "bitwise operator %s requires integer operands", op.Kind)
			return errResult()
		}
		return exprResult{Type: arithmeticConversion(left.Type, right.Type), Class: RValue}
	case TokPlus, TokMinus, TokStar, TokSlash, TokPercent:
		if isArithmetic(left.Type) && isArithmetic(right.Type) {
			return exprResult{Type: arithmeticConversion(left.Type, right.Type), Class: RValue}
		}
		if (op.Kind == TokPlus || op.Kind == TokMinus) && left.Type[0].Kind == KindPtr && isArithmetic(right.Type) {
			return exprResult{Type: left.Type, Class: RValue}
		}
		p.errorf(CategoryType, 4017, op.Text, "operator %s requires arithmetic operands", op.Kind)
		return errResult()
	}
	p.errorf(CategorySyntax, 4018, op.Text, "unexpected operator %s", op.Kind)
	return errResult()
}

// parseUnaryExpr handles prefix operators: &, *, -, !, ~, and sizeof.
func (p *exprParser) parseUnaryExpr(scopes *ScopeStack) exprResult {
	if !p.c.pushRecursion() {
		defer p.c.popRecursion()
		p.errorf(CategoryResource, 9005, p.cur.Text, "expression nesting exceeds recursion limit (limit %d)", p.c.maxRecursionDepth)
		return errResult()
	}
	defer p.c.popRecursion()

	switch p.cur.Kind {
	case TokAmp:
		op := p.advance()
		operand := p.parseUnaryExpr(scopes)
		if operand.Class != LValue {
			p.errorf(CategorySemantic, 4020, op.Text, "cannot take the address of an r-value")
			return errResult()
		}
		mut := len(operand.Type) > 0 && operand.Type[0].Mut
		return exprResult{Type: append(TypeRef{{Kind: KindRef, Mut: mut}}, operand.Type...), Class: RValue}
	case TokStar:
		op := p.advance()
		operand := p.parseUnaryExpr(scopes)
		if operand.Type.IsError() {
			return errResult()
		}
		k := operand.Type[0].Kind
		if k != KindPtr && k != KindRef && k != KindArrPtr {
			p.errorf(CategoryType, 4021, op.Text, "cannot dereference non-pointer type")
			return errResult()
		}
		return exprResult{Type: operand.Type[1:], Class: LValue}
	case TokPlus, TokMinus:
		op := p.advance()
		operand := p.parseUnaryExpr(scopes)
		if !isArithmetic(operand.Type) {
			p.errorf(CategoryType, 4022, op.Text, "unary %s requires an arithmetic operand", op.Kind)
			return errResult()
		}
		return exprResult{Type: arithmeticPromotion(operand.Type), Class: RValue}
	case TokNot:
		p.advance()
		operand := p.parseUnaryExpr(scopes)
		if !CanConvert(operand.Type, TypeRef{{Kind: KindBool}}) {
			p.errorf(CategoryType, 4023, p.cur.Text, "! requires an operand convertible to bool")
			return errResult()
		}
		return exprResult{Type: TypeRef{{Kind: KindBool}}, Class: RValue}
	case TokTilde:
		p.advance()
		operand := p.parseUnaryExpr(scopes)
		if !isArithmetic(operand.Type) {
			p.errorf(CategoryType, 4024, p.cur.Text, "~ requires an integer operand")
			return errResult()
		}
		return exprResult{Type: arithmeticPromotion(operand.Type), Class: RValue}
	case TokSizeof, TokAlignof:
		kw := p.cur.Kind
		p.advance()
		p.expect(TokLParen, "expected '(' after "+kw.String())
		var t TypeRef
		if typeStartsHere(p.cur.Kind) {
			t = p.types.parseType(p, true)
		} else {
			t = p.parseExpr(scopes).Type
		}
		p.expect(TokRParen, "expected ')' to close "+kw.String())
		if t.IsError() {
			return errResult()
		}
		return exprResult{Type: TypeRef{{Kind: KindUSize}}, Class: RValue}
	case TokLenof:
		p.advance()
		p.expect(TokLParen, "expected '(' after lenof")
		operand := p.parseExpr(scopes)
		p.expect(TokRParen, "expected ')' to close lenof")
		if operand.Type.IsError() {
			return errResult()
		}
		switch operand.Type[0].Kind {
		case KindArr, KindSlice, KindArrPtr:
		default:
			p.errorf(CategoryType, 4025, p.cur.Text, "lenof requires an array or slice operand")
			return errResult()
		}
		return exprResult{Type: TypeRef{{Kind: KindUSize}}, Class: RValue}
	case TokTypeof:
		p.advance()
		p.expect(TokLParen, "expected '(' after typeof")
		var t TypeRef
		if typeStartsHere(p.cur.Kind) {
			t = p.types.parseType(p, true)
		} else {
			t = p.parseExpr(scopes).Type
		}
		p.expect(TokRParen, "expected ')' to close typeof")
		return exprResult{Type: t, Class: RValue}
	}
	return p.parsePostfixExpr(scopes)
}

// pfnTypeOf builds the inline pfn TypeRef encoding for a registered
// function declaration or function pointer signature: KindPfn(Aux =
// param count) followed by each parameter's type, then the return type.
func pfnTypeOf(ut *UserType) TypeRef {
	out := TypeRef{{Kind: KindPfn, Aux: int32(len(ut.Params))}}
	for _, prm := range ut.Params {
		out = append(out, prm.Type...)
	}
	return append(out, ut.Return...)
}

// parseStructLiteral type-checks `Name{field: expr, ...}`. Every named
// field must exist on the struct and its value must convert to the
// field's declared type; fields may appear in any order, and the
// result is an r-value (a literal has no storage location of its own
// until it is assigned to one).
func (p *exprParser) parseStructLiteral(scopes *ScopeStack, nameTok Token, structIdx int) exprResult {
	ut := p.c.userTypes.Get(structIdx)
	p.expect(TokLBrace, "expected '{' to open struct literal")
	for !p.at(TokRBrace) && !p.at(TokEOF) {
		fieldTok := p.expect(TokIdent, "expected a field name")
		p.expect(TokColon, "expected ':' after field name")
		val := p.parseExpr(scopes)
		fieldName := fieldTok.Text.String()
		var found *Field
		for i := range ut.Fields {
			if ut.Fields[i].Name == fieldName {
				found = &ut.Fields[i]
				break
			}
		}
		if found == nil {
			p.errorf(CategorySemantic, 4060, fieldTok.Text, "struct %q has no field %q", ut.Name, fieldName)
		} else if !val.Type.IsError() && !CanConvert(val.Type, found.Type) {
			p.errorf(CategoryType, 4061, fieldTok.Text, "cannot convert %v to field %q's type %v", val.Type, fieldName, found.Type)
		}
		if !p.match(TokComma) {
			break
		}
	}
	p.expect(TokRBrace, "expected '}' to close struct literal")
	return exprResult{Type: TypeRef{{Kind: KindStruct, Mut: true, Aux: int32(structIdx)}}, Class: RValue}
}

func typeStartsHere(kind TokenKind) bool {
	switch kind {
	case TokAmp, TokStar, TokLBrack, TokConst, TokMut:
		return true
	}
	_, ok := typeKeyword(kind)
	return ok
}

// parsePostfixExpr handles field access (. and ->), indexing, and calls
// applied left-to-right after a primary expression.
func (p *exprParser) parsePostfixExpr(scopes *ScopeStack) exprResult {
	if !p.c.pushRecursion() {
		defer p.c.popRecursion()
		p.errorf(CategoryResource, 9004, p.cur.Text, "expression nesting exceeds recursion limit (limit %d)", p.c.maxRecursionDepth)
		return errResult()
	}
	defer p.c.popRecursion()

	result := p.parsePrimaryExpr(scopes)
	for {
		switch p.cur.Kind {
		case TokDot:
			op := p.advance()
			result = p.checkFieldAccess(op, result, false)
		case TokArrow:
			op := p.advance()
			result = p.checkFieldAccess(op, result, true)
		case TokLBrack:
			op := p.advance()
			index := p.parseExpr(scopes)
			p.expect(TokRBrack, "expected ']' to close index")
			result = p.checkIndex(op, result, index)
		case TokLParen:
			op := p.advance()
			var args []exprResult
			for !p.at(TokRParen) && !p.at(TokEOF) {
				args = append(args, p.parseExpr(scopes))
				if !p.match(TokComma) {
					break
				}
			}
			p.expect(TokRParen, "expected ')' to close call")
			result = p.checkCall(op, result, args)
		default:
			return result
		}
	}
}

func (p *exprParser) checkFieldAccess(op Token, base exprResult, arrow bool) exprResult {
	if base.Type.IsError() {
		return errResult()
	}
	// Going through a pointer or reference always lands on addressable
	// storage; a field of a plain struct value is only as addressable as
	// the struct expression itself was.
	target := base.Type
	class := base.Class
	if arrow {
		if target[0].Kind != KindPtr {
			p.errorf(CategoryType, 4030, op.Text, "'->' requires a pointer operand")
			return errResult()
		}
		target = target[1:]
		class = LValue
	} else if target[0].Kind == KindRef {
		target = target[1:]
		class = LValue
	} else if target[0].Kind == KindPtr {
		p.errorf(CategoryType, 4031, op.Text, "use '->' to access a field through a pointer")
		return errResult()
	}
	if target[0].Kind != KindStruct {
		p.errorf(CategoryType, 4032, op.Text, "field access requires a struct operand")
		return errResult()
	}
	name := p.expect(TokIdent, "expected a field name")
	ut := p.c.userTypes.Get(int(target[0].Aux))
	for _, f := range ut.Fields {
		if f.Name == name.Text.String() {
			return exprResult{Type: f.Type, Class: class}
		}
	}
	p.errorf(CategorySemantic, 4033, name.Text, "struct %q has no field %q", ut.Name, name.Text.String())
	return errResult()
}

// checkCall type-checks a function-pointer or function-declaration call:
// the callee's type must be a pfn encoding (KindPfn, Aux = parameter
// count, followed by each parameter type then the return type), the
// argument count must match exactly (no variadics), and each argument
// must be convertible to its corresponding parameter type.
func (p *exprParser) checkCall(op Token, callee exprResult, args []exprResult) exprResult {
	if callee.Type.IsError() {
		return errResult()
	}
	if callee.Type[0].Kind != KindPfn {
		p.errorf(CategoryType, 4050, op.Text, "called expression is not a function or function pointer")
		return errResult()
	}
	n := int(callee.Type[0].Aux)
	rest := callee.Type[1:]
	paramTypes := make([]TypeRef, 0, n)
	for i := 0; i < n; i++ {
		plen := Length(rest)
		paramTypes = append(paramTypes, rest[:plen])
		rest = rest[plen:]
	}
	retLen := Length(rest)
	ret := rest[:retLen]
	if len(args) != n {
		p.errorf(CategorySemantic, 4051, op.Text, "expected %d argument(s), found %d", n, len(args))
		return errResult()
	}
	for i, a := range args {
		if a.Type.IsError() {
			return errResult()
		}
		if !CanConvert(a.Type, paramTypes[i]) {
			p.errorf(CategoryType, 4052, op.Text, "argument %d: cannot convert %v to %v", i+1, a.Type, paramTypes[i])
			return errResult()
		}
	}
	return exprResult{Type: ret, Class: RValue}
}

func (p *exprParser) checkIndex(op Token, base, index exprResult) exprResult {
	if base.Type.IsError() || index.Type.IsError() {
		return errResult()
	}
	if !isArithmetic(index.Type) || index.Type[0].Kind == KindF32 || index.Type[0].Kind == KindF64 {
		p.errorf(CategoryType, 4034, op.Text, "index must be an integer")
		return errResult()
	}
	switch base.Type[0].Kind {
	case KindArr:
		// An element of an in-place array is only addressable if the
		// array expression itself was.
		return exprResult{Type: base.Type[1:], Class: base.Class}
	case KindSlice, KindArrPtr:
		return exprResult{Type: base.Type[1:], Class: LValue}
	}
	p.errorf(CategoryType, 4035, op.Text, "cannot index non-array type")
	return errResult()
}

// parsePrimaryExpr handles literals, identifiers, and parenthesized
// expressions.
func (p *exprParser) parsePrimaryExpr(scopes *ScopeStack) exprResult {
	switch p.cur.Kind {
	case TokInt:
		tok := p.advance()
		return exprResult{Type: TypeRef{{Kind: intLiteralKind(tok.Text.String())}}, Class: RValue}
	case TokFloat:
		tok := p.advance()
		return exprResult{Type: TypeRef{{Kind: floatLiteralKind(tok.Text.String())}}, Class: RValue}
	case TokString:
		p.advance()
		return exprResult{Type: TypeRef{{Kind: KindArrPtr}, {Kind: KindChar, Mut: false}}, Class: RValue}
	case TokChar:
		tok := p.advance()
		return exprResult{Type: TypeRef{{Kind: charLiteralKind(tok.Text.String())}}, Class: RValue}
	case TokTrue, TokFalse:
		p.advance()
		return exprResult{Type: TypeRef{{Kind: KindBool}}, Class: RValue}
	case TokNull:
		p.advance()
		return exprResult{Type: TypeRef{{Kind: KindPtr}, {Kind: KindVoid}}, Class: RValue}
	case TokIdent:
		tok := p.advance()
		name := tok.Text.String()
		if p.at(TokLBrace) {
			if idx, ok := p.c.userTypes.Lookup(name); ok && p.c.userTypes.Get(idx).Kind == UserStruct {
				return p.parseStructLiteral(scopes, tok, idx)
			}
		}
		b, ok := scopes.Resolve(name)
		if ok {
			return exprResult{Type: b.Type, Class: b.Class}
		}
		if idx, fok := p.c.userTypes.Lookup(name); fok && p.c.userTypes.Get(idx).Kind == UserFn {
			return exprResult{Type: pfnTypeOf(p.c.userTypes.Get(idx)), Class: RValue}
		}
		p.errorf(CategorySemantic, 4040, tok.Text, "undeclared identifier %q", name)
		return errResult()
	case TokLParen:
		p.advance()
		inner := p.parseExpr(scopes)
		p.expect(TokRParen, "expected ')' to close parenthesized expression")
		return inner
	}
	p.errorf(CategorySyntax, 4041, p.cur.Text, "expected an expression, found %s", p.cur.Kind)
	p.advance()
	return errResult()
}

// intLiteralKind picks the smallest fitting type for an integer literal
// lexeme: the lexer only produces the lexeme, the parser chooses
// signed-then-unsigned, 32-then-64. A hex literal (no
// leading sign is ever lexed into a literal) is tried unsigned-only,
// since a bit pattern like 0xFF is conventionally an unsigned quantity
// even though it would also fit a signed 32-bit cell.
func intLiteralKind(text string) TypeKind {
	if len(text) > 1 && text[0] == '0' && (text[1] == 'x' || text[1] == 'X') {
		v, err := strconv.ParseUint(text[2:], 16, 64)
		if err != nil {
			return KindU32
		}
		if v <= 0xFFFFFFFF {
			return KindU32
		}
		return KindU64
	}
	if _, err := strconv.ParseInt(text, 10, 32); err == nil {
		return KindI32
	}
	if _, err := strconv.ParseUint(text, 10, 32); err == nil {
		return KindU32
	}
	if _, err := strconv.ParseInt(text, 10, 64); err == nil {
		return KindI64
	}
	return KindU64
}

// charLiteralKind types a character literal from its lexeme (quotes
// included): the one-byte ASCII case is char; a multi-byte UTF-8
// character or a \u/\U escape above 0x7F is u32.
func charLiteralKind(text string) TypeKind {
	if len(text) < 3 {
		return KindChar
	}
	content := text[1 : len(text)-1]
	if content[0] == '\\' && len(content) > 1 {
		switch content[1] {
		case 'u', 'U':
			if v, err := strconv.ParseUint(content[2:], 16, 32); err == nil && v > 0x7F {
				return KindU32
			}
		}
		return KindChar
	}
	r, size := utf8.DecodeRuneInString(content)
	if size > 1 && r > 0x7F {
		return KindU32
	}
	return KindChar
}

// floatLiteralKind reports f32 iff the lexeme carries the trailing 'f'
// suffix the lexer retains verbatim on the literal's source view;
// otherwise a floating literal defaults to f64.
func floatLiteralKind(text string) TypeKind {
	if strings.HasSuffix(text, "f") || strings.HasSuffix(text, "F") {
		return KindF32
	}
	return KindF64
}
