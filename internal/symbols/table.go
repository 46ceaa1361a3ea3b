package symbols

import (
	"fmt"
	"strconv"

	"fortio.org/safecast"
	"golang.org/x/text/unicode/norm"

	"shaderpipe/internal/source"
)

// Table is the symbol arena of one compilation unit. Symbols are never
// reused or freed, so a SymbolID stays valid across every Program derived
// from the unit.
type Table struct {
	data  []Symbol
	taken map[string]struct{} // NFC form of every name in use
	next  map[string]int      // next numeric suffix per base name
}

// NewTable creates an empty table.
func NewTable() *Table {
	return &Table{
		data:  make([]Symbol, 1, 64), // index 0 reserved for NoSymbolID
		taken: make(map[string]struct{}, 64),
		next:  make(map[string]int),
	}
}

// Declare allocates a symbol for a source-level declaration. Several
// symbols may share a name when they live in different scopes.
func (t *Table) Declare(kind SymbolKind, name string, span source.Span) SymbolID {
	id := t.alloc(Symbol{Name: name, Kind: kind, Span: span})
	t.taken[norm.NFC.String(name)] = struct{}{}
	return id
}

// Fresh mints a synthetic symbol whose name differs from every name in the
// table, comparing names in Unicode NFC form. The result is base when free,
// otherwise base_1, base_2, ...
func (t *Table) Fresh(kind SymbolKind, base string) SymbolID {
	base = norm.NFC.String(base)
	name := base
	if _, used := t.taken[name]; used {
		n := t.next[base]
		for {
			n++
			name = base + "_" + strconv.Itoa(n)
			if _, used := t.taken[name]; !used {
				break
			}
		}
		t.next[base] = n
	}
	t.taken[name] = struct{}{}
	return t.alloc(Symbol{Name: name, Kind: kind, Flags: SymbolSynthetic})
}

func (t *Table) alloc(sym Symbol) SymbolID {
	n, err := safecast.Conv[uint32](len(t.data))
	if err != nil {
		panic(fmt.Errorf("symbol arena overflow: %w", err))
	}
	t.data = append(t.data, sym)
	return SymbolID(n)
}

// Get returns the symbol pointer or nil if ID is invalid.
func (t *Table) Get(id SymbolID) *Symbol {
	if t == nil || !id.IsValid() || int(id) >= len(t.data) {
		return nil
	}
	return &t.data[id]
}

// Name returns the display name of id, or "<invalid>".
func (t *Table) Name(id SymbolID) string {
	if s := t.Get(id); s != nil {
		return s.Name
	}
	return "<invalid>"
}

// Kind returns the kind of id.
func (t *Table) Kind(id SymbolID) SymbolKind {
	if s := t.Get(id); s != nil {
		return s.Kind
	}
	return SymbolInvalid
}

// Mark adds flags to a symbol.
func (t *Table) Mark(id SymbolID, flags SymbolFlags) {
	if s := t.Get(id); s != nil {
		s.Flags |= flags
	}
}

// Len reports total number of symbols excluding the sentinel.
func (t *Table) Len() int { return len(t.data) - 1 }

// Data exposes the underlying slice without the sentinel.
func (t *Table) Data() []Symbol {
	if len(t.data) <= 1 {
		return nil
	}
	return t.data[1:]
}

// Clone returns an independent copy of the table.
func (t *Table) Clone() *Table {
	out := &Table{
		data:  make([]Symbol, len(t.data), cap(t.data)),
		taken: make(map[string]struct{}, len(t.taken)),
		next:  make(map[string]int, len(t.next)),
	}
	copy(out.data, t.data)
	for k := range t.taken {
		out.taken[k] = struct{}{}
	}
	for k, v := range t.next {
		out.next[k] = v
	}
	return out
}

// Restore rebuilds a table from symbols previously returned by Data, so
// that Data()[i] gets SymbolID(i+1) again.
func Restore(syms []Symbol) *Table {
	t := NewTable()
	for _, s := range syms {
		t.alloc(s)
		t.taken[norm.NFC.String(s.Name)] = struct{}{}
	}
	return t
}
