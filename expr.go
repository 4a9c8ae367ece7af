package framesize

import (
	"fmt"
)

// Expr is a symbolic value tracked while replaying a prologue. The set of
// implementations is closed: Immediate, UnknownGlobal, UnknownLocal and
// Computed.
type Expr interface {
	fmt.Stringer
	isExpr()
}

// Immediate is a constant pushed by the function.
type Immediate struct {
	Value int64
}

// UnknownGlobal is the incoming value of a global the prologue has not
// written yet.
type UnknownGlobal struct {
	Index uint32
}

// UnknownLocal is the value of a local the prologue has not written yet.
// Declared locals start at zero; they are still treated as unknown.
type UnknownLocal struct {
	Index uint32
}

// Computed is Base minus a constant.
type Computed struct {
	Base  Expr
	Minus int64
}

func (Immediate) isExpr()     {}
func (UnknownGlobal) isExpr() {}
func (UnknownLocal) isExpr()  {}
func (Computed) isExpr()      {}

func (e Immediate) String() string     { return fmt.Sprintf("%d", e.Value) }
func (e UnknownGlobal) String() string { return fmt.Sprintf("global[%d]", e.Index) }
func (e UnknownLocal) String() string  { return fmt.Sprintf("local[%d]", e.Index) }
func (e Computed) String() string      { return fmt.Sprintf("(%s - %d)", e.Base, e.Minus) }

// Sub returns lhs - rhs. Only an unknown global minus an immediate is
// supported; every other combination is rejected instead of approximated.
func Sub(lhs, rhs Expr) (Expr, error) {
	base, ok := lhs.(UnknownGlobal)
	if !ok {
		return nil, fmt.Errorf("%w: %s - %s", ErrUnsupportedExpression, lhs, rhs)
	}
	imm, ok := rhs.(Immediate)
	if !ok {
		return nil, fmt.Errorf("%w: %s - %s", ErrUnsupportedExpression, lhs, rhs)
	}
	return Computed{Base: base, Minus: imm.Value}, nil
}
