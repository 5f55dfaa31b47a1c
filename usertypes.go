package cnms

// UserTypeKind distinguishes the four kinds of named entry a program can
// declare: struct, enum, typedef and function.
type UserTypeKind int

const (
	UserStruct UserTypeKind = iota
	UserEnum
	UserTypedef
	UserFn
)

// Field describes one member of a struct, including its byte offset
// within the struct's layout.
type Field struct {
	Name   string
	Type   TypeRef
	Offset int
}

// Enumerator is one named constant of an enum, carrying its underlying
// integer value.
type Enumerator struct {
	Name  string
	Value int64
}

// Param is one named, typed parameter of a function signature.
type Param struct {
	Name string
	Type TypeRef
}

// UserType is one entry of the append-only user type registry: a
// struct's fields and layout, an enum's underlying type and members, a
// typedef's aliased encoding (possibly still carrying unexpanded
// template placeholders), or a function pointer signature / function
// declaration.
type UserType struct {
	Kind UserTypeKind
	Name string
	Loc  SourceView

	// Forward marks an entry registered by name only (a forward struct,
	// enum, or function declaration); the same index is replaced in
	// place by the full definition once it is parsed.
	Forward bool
	// EnumOwner is the registry index of the enum this entry is a
	// hidden variant struct of, or -1 if this entry is not a variant.
	EnumOwner int

	// Struct
	Fields []Field
	Size   int
	Align  int

	// Enum
	Underlying  TypeRef
	Members     []Enumerator
	VariantIdxs []int // registry indices of each variant's hidden struct
	DataOffset  int

	// Typedef
	Aliased   TypeRef
	NumParams int // number of template placeholders Aliased may reference

	// Function pointer signature / function declaration
	Params     []Param
	Return     TypeRef
	HasBody    bool // a declaration with a body, not a bare signature
	External   bool
	ExternalID int
	CodeOffset int // code-buffer offset recorded when the body starts being parsed
}

// UserTypeRegistry is the append-only table of struct/enum/typedef
// declarations a compilation accumulates. Entries are referenced by
// index from KindStruct/KindEnum Levels, never by pointer, so the
// registry can grow (via append) without invalidating any TypeRef
// already handed out.
type UserTypeRegistry struct {
	entries []UserType
	byName  map[string]int
	max     int
}

func newUserTypeRegistry(max int) *UserTypeRegistry {
	return &UserTypeRegistry{byName: make(map[string]int), max: max}
}

// Lookup returns the index of a previously declared user type by name.
func (r *UserTypeRegistry) Lookup(name string) (int, bool) {
	i, ok := r.byName[name]
	return i, ok
}

// Get returns the UserType at index i.
func (r *UserTypeRegistry) Get(i int) *UserType {
	return &r.entries[i]
}

// Len returns the number of registered user types.
func (r *UserTypeRegistry) Len() int {
	return len(r.entries)
}

// declareStatus reports the outcome of declare: declareNew means a fresh
// slot was reserved; declareForwardMatch means the prior entry was a
// forward declaration the caller may now replace in place;
// declareDuplicate means it was a full definition and the new
// declaration is a duplicate name error; declareExhausted means the
// registry is full.
type declareStatus int

const (
	declareNew declareStatus = iota
	declareForwardMatch
	declareDuplicate
	declareExhausted
)

// declare reserves a new, not-yet-filled slot for name so that
// self-referential types (a struct containing a pointer to itself) can
// resolve the name to an index before the body finishes parsing. It
// fails once the registry hits its configured bound, reported as a
// resource diagnostic by the caller. If name already names a forward
// declaration of the same kind, the existing index is returned instead
// so the full definition can replace it in place.
func (r *UserTypeRegistry) declare(name string, kind UserTypeKind, loc SourceView, forward bool) (int, declareStatus) {
	if idx, exists := r.byName[name]; exists {
		prior := &r.entries[idx]
		if prior.Forward && prior.Kind == kind {
			prior.Forward = forward
			prior.Loc = loc
			return idx, declareForwardMatch
		}
		// The existing index is still returned on a genuine duplicate so a
		// caller like extern fn registration can inspect what it collided
		// with (e.g. a host-registered external of the same name) instead
		// of just erroring blindly.
		return idx, declareDuplicate
	}
	if len(r.entries) >= r.max {
		return 0, declareExhausted
	}
	idx := len(r.entries)
	r.entries = append(r.entries, UserType{Kind: kind, Name: name, Loc: loc, Forward: forward, EnumOwner: -1})
	r.byName[name] = idx
	return idx, declareNew
}

// fill replaces the reserved slot at idx with its full definition. The
// caller is responsible for setting ut.EnumOwner (-1 if this entry is
// not a hidden enum-variant struct).
func (r *UserTypeRegistry) fill(idx int, ut UserType) {
	name := r.entries[idx].Name
	ut.Name = name
	ut.Forward = false
	r.entries[idx] = ut
}

// signaturesMatch compares two function signatures by value: same
// parameter count, structurally equal parameter types (qualifiers
// included), structurally equal return type. Parameter names are not
// part of a signature.
func signaturesMatch(aParams []Param, aRet TypeRef, bParams []Param, bRet TypeRef) bool {
	if len(aParams) != len(bParams) || !Equals(aRet, bRet, false) {
		return false
	}
	for i := range aParams {
		if !Equals(aParams[i].Type, bParams[i].Type, false) {
			return false
		}
	}
	return true
}

// layoutStruct computes field offsets, total size and alignment for a
// struct given its fields' already-resolved types, padding each field
// to its own alignment and the whole struct to its largest member's
// alignment, the same rule C uses for default struct layout.
func layoutStruct(c *Compiler, fields []Field) (size, align int) {
	align = 1
	offset := 0
	for i := range fields {
		fsize, falign := c.SizeAlign(fields[i].Type)
		if falign > align {
			align = falign
		}
		offset = alignUp(offset, falign)
		fields[i].Offset = offset
		offset += fsize
	}
	size = alignUp(offset, align)
	return size, align
}

// layoutEnum computes the data offset (where the active variant's
// payload begins), overall size, and alignment for an enum given its id
// type and the sizes/alignments of its already-registered variant
// structs: dataOffset = align_up(idSize, variantAlign),
// size = align_up(dataOffset + max(variantSize), enumAlign), where
// enumAlign is the larger of the id's alignment and the variants'.
func layoutEnum(c *Compiler, idType TypeRef, variantIdxs []int) (dataOffset, size, align int) {
	idSize, idAlign := c.SizeAlign(idType)
	align = idAlign
	maxVariantSize, maxVariantAlign := 0, 1
	for _, vidx := range variantIdxs {
		v := c.userTypes.Get(vidx)
		if v.Size > maxVariantSize {
			maxVariantSize = v.Size
		}
		if v.Align > maxVariantAlign {
			maxVariantAlign = v.Align
		}
	}
	if maxVariantAlign > align {
		align = maxVariantAlign
	}
	dataOffset = alignUp(idSize, maxVariantAlign)
	size = alignUp(dataOffset+maxVariantSize, align)
	return dataOffset, size, align
}

func alignUp(n, align int) int {
	if align <= 1 {
		return n
	}
	return (n + align - 1) / align * align
}
