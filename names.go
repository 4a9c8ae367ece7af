package framesize

import (
	"github.com/tetratelabs/wabin/wasm"
)

// NameTable maps function names to function indices.
type NameTable map[string]uint32

// NewNameTable builds a NameTable from the function names of a name
// section. A name that appears twice keeps its last index.
func NewNameTable(names wasm.NameMap) NameTable {
	t := make(NameTable, len(names))
	for _, na := range names {
		if na == nil {
			continue
		}
		t[na.Name] = na.Index
	}
	return t
}

// Lookup returns the function index registered for name.
func (t NameTable) Lookup(name string) (uint32, bool) {
	idx, ok := t[name]
	return idx, ok
}

// byIndex inverts the table. When several names share an index the
// lexicographically smallest wins, so the result does not depend on map
// iteration order.
func (t NameTable) byIndex() map[uint32]string {
	inv := make(map[uint32]string, len(t))
	for name, idx := range t {
		if prev, ok := inv[idx]; !ok || name < prev {
			inv[idx] = name
		}
	}
	return inv
}
