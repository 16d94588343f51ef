// Package entity implements the front end's single mutable entity table:
// scope stack, namespace stack, symbol table, user-type table, and type
// aliases. It is the shared state the lexer, parser, post-parser, and
// checker all read and write, per spec.md §3/§4.3.
package entity

import (
	"fmt"
	"sort"
	"strings"

	"github.com/tak-lang/tak/internal/ast"
)

// Table is the entity table. A *ast.Symbol obtained from SymTable stays
// valid for the lifetime of the table: Go never relocates a map value's
// backing allocation when pointed to through its value, only the map's own
// bucket bookkeeping, which satisfies the handle-stability invariant
// spec.md §4.3/§5 requires without any extra arena discipline.
type Table struct {
	currSymIndex uint32

	NamespaceStack []string
	ScopeStack     []map[string]uint32
	SymTable       map[uint32]*ast.Symbol
	TypeTable      map[string]*ast.UserType
	TypeAliases    map[string]ast.TypeData
}

// New returns an entity table with the global scope (index 0) already
// pushed; it is never popped.
func New() *Table {
	t := &Table{
		SymTable:    make(map[uint32]*ast.Symbol),
		TypeTable:   make(map[string]*ast.UserType),
		TypeAliases: make(map[string]ast.TypeData),
	}
	t.PushScope()
	return t
}

// PushScope opens a new lexical scope.
func (t *Table) PushScope() {
	t.ScopeStack = append(t.ScopeStack, make(map[string]uint32))
}

// PopScope closes the innermost scope. The global scope (index 0) is never
// popped, matching the original's defensive no-op on an empty stack.
func (t *Table) PopScope() {
	if len(t.ScopeStack) <= 1 {
		return
	}
	t.ScopeStack = t.ScopeStack[:len(t.ScopeStack)-1]
}

// ScopedSymbolExists searches inner-to-outer for name.
func (t *Table) ScopedSymbolExists(name string) bool {
	for i := len(t.ScopeStack) - 1; i >= 0; i-- {
		if _, ok := t.ScopeStack[i][name]; ok {
			return true
		}
	}
	return false
}

// ScopedSymbolExistsAtCurrentScope restricts the search to the innermost
// scope only.
func (t *Table) ScopedSymbolExistsAtCurrentScope(name string) bool {
	if len(t.ScopeStack) == 0 {
		return false
	}
	_, ok := t.ScopeStack[len(t.ScopeStack)-1][name]
	return ok
}

// LookupScopedSymbol returns the symbol index bound to name in the
// innermost enclosing scope, or InvalidSymbolIndex.
func (t *Table) LookupScopedSymbol(name string) uint32 {
	for i := len(t.ScopeStack) - 1; i >= 0; i-- {
		if idx, ok := t.ScopeStack[i][name]; ok {
			return idx
		}
	}
	return ast.InvalidSymbolIndex
}

// LookupUniqueSymbol fetches a symbol by its stable index. Callers only
// ever pass an index previously handed out by this table, so a missing
// entry is a front-end bug, not a user error.
func (t *Table) LookupUniqueSymbol(index uint32) *ast.Symbol {
	sym, ok := t.SymTable[index]
	if !ok {
		panic(fmt.Sprintf("internal error: failed to look up unique symbol with index %d", index))
	}
	return sym
}

// DeleteUniqueSymbol removes a symbol from the table, used by post-parser
// garbage collection of generic-base leftovers.
func (t *Table) DeleteUniqueSymbol(index uint32) {
	delete(t.SymTable, index)
}

// CreateSymbol installs a new symbol at the innermost scope. name is the
// leaf identifier (spec.md §3's Symbol.name); the scope-stack entry is
// keyed by the fully qualified canonical name (current namespace prefix +
// leaf) so that GetCanonicalName's namespaced lookup (which always probes
// fully qualified candidates) finds it. At global scope with an empty
// namespace stack this canonical form is simply `\` + leaf, matching
// GetCanonicalName's own fallback. The caller must ensure no symbol of
// the same name already exists in this scope; this mirrors the original's
// assert(!scope_stack_.back().contains(name)).
func (t *Table) CreateSymbol(name, file string, pos int, line uint32, kind ast.TypeKind, flags ast.TypeFlags, data *ast.TypeData) *ast.Symbol {
	t.currSymIndex++
	idx := t.currSymIndex

	typ := ast.TypeData{}
	if data != nil {
		typ = *data
	}
	typ.Flags |= flags
	typ.Kind = kind
	if kind == ast.KindProcedure {
		typ.Name = ""
	}

	namespace := t.NamespaceAsString()
	sym := &ast.Symbol{
		SymbolIndex: idx,
		Name:        name,
		Type:        typ,
		SrcPos:      pos,
		LineNumber:  line,
		File:        file,
		Namespace:   namespace,
	}

	key := name
	if len(t.ScopeStack) == 1 {
		// Global/namespace scope: key by the fully qualified canonical
		// name so namespaced lookups resolve it; block-local scopes key
		// by the bare leaf since namespaces never nest into them.
		key = namespace + name
	}

	t.ScopeStack[len(t.ScopeStack)-1][key] = idx
	t.SymTable[idx] = sym
	return sym
}

// CreatePlaceholderSymbol installs a forward-reference placeholder at the
// global scope. canonicalName is the fully qualified name the reference
// resolved to (GetCanonicalSymName's fallback: "the form a new
// declaration would take"); the scope-stack entry is keyed by that
// canonical string (so a later real declaration computing the same
// canonical key finds and rewrites this entry) while Symbol.Name stores
// only the leaf per spec.md §3. It performs no existence check of its own
// and overwrites any global entry under canonicalName; its caller,
// parseIdentifierRef, calls it only after ScopedSymbolExists(canonicalName)
// has returned false.
func (t *Table) CreatePlaceholderSymbol(canonicalName, file string, pos int, line uint32) uint32 {
	t.currSymIndex++
	idx := t.currSymIndex

	leaf := canonicalName
	namespace := "\\"
	if i := strings.LastIndexByte(canonicalName, '\\'); i >= 0 {
		leaf = canonicalName[i+1:]
		namespace = canonicalName[:i+1]
	}

	sym := &ast.Symbol{
		SymbolIndex: idx,
		Name:        leaf,
		Flags:       ast.PLACEHOLDER,
		SrcPos:      pos,
		LineNumber:  line,
		File:        file,
		Namespace:   namespace,
	}
	sym.Type.Flags |= ast.PLACEHOLDER

	t.ScopeStack[0][canonicalName] = idx
	t.SymTable[idx] = sym
	return idx
}

// CreateGenericProcPermutation mangles base.Name with the bracketed,
// comma-joined string form of params and either returns an existing
// permutation symbol of that name, or installs a fresh one flagged GENPERM
// referring back to base via Type.SymRef.
func (t *Table) CreateGenericProcPermutation(base *ast.Symbol, params []ast.TypeData) *ast.Symbol {
	var b strings.Builder
	b.WriteString(base.Name)
	b.WriteByte('[')
	for i, p := range params {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(p.String())
	}
	b.WriteByte(']')
	name := b.String()

	if t.ScopedSymbolExists(name) {
		return t.LookupUniqueSymbol(t.LookupScopedSymbol(name))
	}

	t.currSymIndex++
	idx := t.currSymIndex

	paramsCopy := append([]ast.TypeData(nil), params...)
	sym := &ast.Symbol{
		SymbolIndex: idx,
		Name:        name,
		SrcPos:      base.SrcPos,
		LineNumber:  base.LineNumber,
		File:        base.File,
		Namespace:   base.Namespace,
		Flags:       ast.GENPERM,
		Type: ast.TypeData{
			Kind:       ast.KindProcedure,
			SymRef:     base.SymbolIndex,
			Parameters: &paramsCopy,
		},
	}

	t.ScopeStack[0][name] = idx
	t.SymTable[idx] = sym
	return sym
}

// EnterNamespace pushes name onto the namespace stack, rejecting a name
// that duplicates any ancestor already on the path.
func (t *Table) EnterNamespace(name string) bool {
	for _, ns := range t.NamespaceStack {
		if ns == name {
			return false
		}
	}
	t.NamespaceStack = append(t.NamespaceStack, name)
	return true
}

// LeaveNamespace pops the innermost namespace segment.
func (t *Table) LeaveNamespace() {
	if len(t.NamespaceStack) == 0 {
		return
	}
	t.NamespaceStack = t.NamespaceStack[:len(t.NamespaceStack)-1]
}

// NamespaceExists reports whether name is anywhere on the current
// namespace stack.
func (t *Table) NamespaceExists(name string) bool {
	for _, ns := range t.NamespaceStack {
		if ns == name {
			return true
		}
	}
	return false
}

// NamespaceAsString renders the current namespace stack as `\seg1\seg2\`.
func (t *Table) NamespaceAsString() string {
	var b strings.Builder
	b.WriteByte('\\')
	for _, ns := range t.NamespaceStack {
		b.WriteString(ns)
		b.WriteByte('\\')
	}
	return b.String()
}

// GetCanonicalName implements the tak:: (namespaced, authoritative per
// spec.md §9/OQ-2) longest-matching-prefix algorithm: scan the namespace
// stack outer to inner, keep the last prefix for which a symbol or type
// actually exists, and fall back to the fully qualified name (the form a
// new declaration at the current position would take) if none do.
func (t *Table) GetCanonicalName(name string, isSymbol bool) string {
	if name == "" {
		panic("internal error: GetCanonicalName called with an empty name")
	}
	if name[0] == '\\' {
		return name
	}

	begin := name
	if i := strings.IndexByte(name, '\\'); i >= 0 {
		begin = name[:i]
	}

	lastExists := ""
	namespaces := "\\"

	exists := func(candidate string) bool {
		if isSymbol {
			return t.ScopedSymbolExists(candidate)
		}
		return t.TypeExists(candidate) || t.TypeAliasExists(candidate)
	}

	for _, ns := range t.NamespaceStack {
		if exists(namespaces + name) {
			lastExists = namespaces + name
		}
		if ns == begin {
			break
		}
		namespaces += ns + "\\"
	}

	if exists(namespaces + name) {
		lastExists = namespaces + name
	}

	if lastExists != "" {
		return lastExists
	}
	return namespaces + name
}

// GetCanonicalTypeName resolves name as a type or type alias reference.
func (t *Table) GetCanonicalTypeName(name string) string {
	if t.TypeExists(name) || t.TypeAliasExists(name) {
		return name
	}
	return t.GetCanonicalName(name, false)
}

// GetCanonicalSymName resolves name as a symbol reference.
func (t *Table) GetCanonicalSymName(name string) string {
	if t.ScopedSymbolExists(name) {
		return name
	}
	return t.GetCanonicalName(name, true)
}

// TypeExists reports whether name is a registered struct (real or
// placeholder).
func (t *Table) TypeExists(name string) bool {
	_, ok := t.TypeTable[name]
	return ok
}

// CreateType installs a real struct type. The caller must ensure name is
// not already registered (matching the original's assert).
func (t *Table) CreateType(name string, members []ast.MemberData) {
	t.TypeTable[name] = &ast.UserType{Members: members}
}

// CreatePlaceholderType installs a forward-reference placeholder struct.
func (t *Table) CreatePlaceholderType(name, file string, pos int, line uint32) {
	t.TypeTable[name] = &ast.UserType{
		Flags:         ast.PLACEHOLDER,
		PosFirstUsed:  pos,
		LineFirstUsed: line,
	}
}

// DeleteType removes a struct entry, used by post-parser garbage
// collection of generic-base type-table entries (spec.md §4.4).
func (t *Table) DeleteType(name string) {
	delete(t.TypeTable, name)
}

// LookupType fetches a struct entry by canonical name.
func (t *Table) LookupType(name string) *ast.UserType {
	ut, ok := t.TypeTable[name]
	if !ok {
		panic(fmt.Sprintf("internal error: failed to look up type %q", name))
	}
	return ut
}

// LookupTypeMembers is a convenience accessor mirroring the original's
// lookup_type_members.
func (t *Table) LookupTypeMembers(name string) []ast.MemberData {
	return t.LookupType(name).Members
}

// CreateTypeAlias installs a generic type-parameter alias.
func (t *Table) CreateTypeAlias(name string, data ast.TypeData) {
	t.TypeAliases[name] = data
}

// TypeAliasExists reports whether name is currently aliased.
func (t *Table) TypeAliasExists(name string) bool {
	_, ok := t.TypeAliases[name]
	return ok
}

// LookupTypeAlias fetches the TypeData an alias currently stands for.
func (t *Table) LookupTypeAlias(name string) ast.TypeData {
	return t.TypeAliases[name]
}

// DeleteTypeAlias removes an alias, used when a generic permutation's
// re-parse finishes (spec.md §4.4).
func (t *Table) DeleteTypeAlias(name string) {
	delete(t.TypeAliases, name)
}

// AllSymbols returns every installed symbol sorted by index, the same
// deterministic order checkLeftoverPlaceholders sweeps in, for debug
// dumping (cmd/takc's --dump-symbols).
func (t *Table) AllSymbols() []*ast.Symbol {
	indexes := make([]uint32, 0, len(t.SymTable))
	for idx := range t.SymTable {
		indexes = append(indexes, idx)
	}
	sort.Slice(indexes, func(i, j int) bool { return indexes[i] < indexes[j] })
	out := make([]*ast.Symbol, len(indexes))
	for i, idx := range indexes {
		out[i] = t.SymTable[idx]
	}
	return out
}

// AllTypeNames returns every installed struct type's canonical name,
// sorted, for debug dumping (cmd/takc's --dump-types).
func (t *Table) AllTypeNames() []string {
	names := make([]string, 0, len(t.TypeTable))
	for name := range t.TypeTable {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
