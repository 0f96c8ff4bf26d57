package tensor

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// String renders the tensor for debugging. Rank-2 tensors are printed as
// matrices; other ranks print their shape and flat data.
func (t *Tensor) String() string {
	if t == nil {
		return "<nil>"
	}
	if t.data == nil {
		return "Tensor(unbound)"
	}
	if t.rank == 2 {
		m := mat.NewDense(t.dims[0], t.dims[1], t.data)
		return fmt.Sprintf("Tensor%v\n%v", t.Shape(), mat.Formatted(m, mat.Squeeze()))
	}
	return fmt.Sprintf("Tensor%v %v", t.Shape(), t.data)
}
