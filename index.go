package framesize

import (
	"fmt"
)

// IndexSpace maps between the function index space of a module, where
// imported functions come first, and the position of a function body in the
// code section.
type IndexSpace struct {
	// Base is the number of imported functions.
	Base uint32
	// Defined is the number of code section entries.
	Defined uint32
}

// ToCodeLocal returns the code section position of a function index.
func (s IndexSpace) ToCodeLocal(global uint32) (uint32, error) {
	if global < s.Base {
		return 0, fmt.Errorf("%w: func[%d]", ErrNotLocallyDefined, global)
	}
	local := global - s.Base
	if local >= s.Defined {
		return 0, fmt.Errorf("%w: func[%d]", ErrDanglingNameReference, global)
	}
	return local, nil
}

// ToGlobal returns the function index of a code section position.
func (s IndexSpace) ToGlobal(local uint32) uint32 {
	return s.Base + local
}
