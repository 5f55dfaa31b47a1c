package cnms

// TokenKind enumerates every lexical category the scanner produces.
type TokenKind int

const (
	TokEOF TokenKind = iota
	TokIdent
	TokInt
	TokFloat
	TokString
	TokChar

	// Keywords
	TokFn
	TokLet
	TokMut
	TokConst
	TokStruct
	TokEnum
	TokTypedef
	TokExtern
	TokIf
	TokElse
	TokWhile
	TokFor
	TokReturn
	TokBreak
	TokContinue
	TokAs
	TokSizeof
	TokTrue
	TokFalse
	TokNull
	TokAny
	TokTypeof
	TokLenof
	TokAlignof
	TokThen

	// Built-in type keywords
	TokVoid
	TokBool
	TokChar_
	TokI8
	TokU8
	TokI16
	TokU16
	TokI32
	TokU32
	TokI64
	TokU64
	TokISize
	TokUSize
	TokF32
	TokF64

	// Operators
	TokPlus
	TokMinus
	TokStar
	TokSlash
	TokPercent
	TokAssign
	TokEq
	TokNeq
	TokLeq
	TokGeq
	TokAndAnd
	TokOrOr
	TokNot
	TokAmp
	TokPipe
	TokCaret
	TokTilde
	TokShl
	TokShr
	TokArrow
	TokDot
	TokComma
	TokColon
	TokSemicolon
	TokQuestion

	// Punctuation
	TokLParen
	TokRParen
	TokLBrace
	TokRBrace
	TokLBrack
	TokRBrack
	TokLAngle
	TokRAngle
)

var keywords = map[string]TokenKind{
	"fn": TokFn, "let": TokLet, "mut": TokMut, "const": TokConst,
	"struct": TokStruct, "enum": TokEnum, "typedef": TokTypedef,
	"extern": TokExtern, "if": TokIf, "else": TokElse, "while": TokWhile,
	"for": TokFor, "return": TokReturn, "break": TokBreak,
	"continue": TokContinue, "as": TokAs, "sizeof": TokSizeof,
	"true": TokTrue, "false": TokFalse, "null": TokNull, "any": TokAny,
	"typeof": TokTypeof, "lenof": TokLenof, "alignof": TokAlignof,
	"then": TokThen,
	"void": TokVoid, "bool": TokBool, "char": TokChar_,
	"i8": TokI8, "u8": TokU8, "i16": TokI16, "u16": TokU16,
	"i32": TokI32, "u32": TokU32, "i64": TokI64, "u64": TokU64,
	"isize": TokISize, "usize": TokUSize, "f32": TokF32, "f64": TokF64,
}

var tokenNames = map[TokenKind]string{
	TokEOF: "eof", TokIdent: "identifier", TokInt: "integer literal",
	TokFloat: "float literal", TokString: "string literal", TokChar: "char literal",
	TokFn: "fn", TokLet: "let", TokMut: "mut", TokConst: "const",
	TokStruct: "struct", TokEnum: "enum", TokTypedef: "typedef",
	TokExtern: "extern", TokIf: "if", TokElse: "else", TokWhile: "while",
	TokFor: "for", TokReturn: "return", TokBreak: "break",
	TokContinue: "continue", TokAs: "as", TokSizeof: "sizeof",
	TokTrue: "true", TokFalse: "false", TokNull: "null", TokAny: "any",
	TokTypeof: "typeof", TokLenof: "lenof", TokAlignof: "alignof",
	TokThen: "then",
	TokPlus: "+", TokMinus: "-", TokStar: "*", TokSlash: "/", TokPercent: "%",
	TokAssign: "=", TokEq: "==", TokNeq: "!=",
	TokLeq: "<=", TokGeq: ">=", TokAndAnd: "&&", TokOrOr: "||", TokNot: "!",
	TokAmp: "&", TokPipe: "|", TokCaret: "^", TokTilde: "~",
	TokShl: "<<", TokShr: ">>", TokArrow: "->", TokDot: ".", TokComma: ",",
	TokColon: ":", TokSemicolon: ";", TokQuestion: "?",
	TokLParen: "(", TokRParen: ")", TokLBrace: "{", TokRBrace: "}",
	TokLBrack: "[", TokRBrack: "]", TokLAngle: "<", TokRAngle: ">",
}

func (k TokenKind) String() string {
	if n, ok := tokenNames[k]; ok {
		return n
	}
	return "unknown"
}

// Token is one lexeme: its kind, the source span it covers, and the
// 1-based line/column of its first byte.
type Token struct {
	Kind TokenKind
	Text SourceView
	Line int
	Col  int
}

func (t Token) String() string {
	return t.Text.String()
}

// typeKeyword reports whether kind names one of the built-in POD type
// keywords, and if so the TypeKind it encodes.
func typeKeyword(kind TokenKind) (TypeKind, bool) {
	switch kind {
	case TokVoid:
		return KindVoid, true
	case TokBool:
		return KindBool, true
	case TokChar_:
		return KindChar, true
	case TokI8:
		return KindI8, true
	case TokU8:
		return KindU8, true
	case TokI16:
		return KindI16, true
	case TokU16:
		return KindU16, true
	case TokI32:
		return KindI32, true
	case TokU32:
		return KindU32, true
	case TokI64:
		return KindI64, true
	case TokU64:
		return KindU64, true
	case TokISize:
		return KindISize, true
	case TokUSize:
		return KindUSize, true
	case TokF32:
		return KindF32, true
	case TokF64:
		return KindF64, true
	}
	return 0, false
}
