package tensor

import (
	"golang.org/x/sys/cpu"
	"gonum.org/v1/gonum/floats"
)

// fastKernels selects the vectorised kernel implementations. gonum's floats
// routines dispatch to assembly on these targets.
var fastKernels = cpu.X86.HasAVX2 || cpu.ARM64.HasASIMD

// FastKernels reports whether the vectorised kernels are in use.
func FastKernels() bool {
	return fastKernels
}

// addKernel computes dst += src. Both slices have the same length.
func addKernel(dst, src []float64) {
	if fastKernels {
		addFast(dst, src)
		return
	}
	addScalar(dst, src)
}

func addFast(dst, src []float64) {
	floats.Add(dst, src)
}

func addScalar(dst, src []float64) {
	for i := range dst {
		dst[i] += src[i]
	}
}

// columnSumKernel adds each of the rows of src [rows, cols] into dst [cols].
// Rows are accumulated in order, so both paths round identically.
func columnSumKernel(dst, src []float64, rows, cols int) {
	if fastKernels {
		columnSumFast(dst, src, rows, cols)
		return
	}
	columnSumScalar(dst, src, rows, cols)
}

func columnSumFast(dst, src []float64, rows, cols int) {
	dst = dst[:cols]
	for i := 0; i < rows; i++ {
		floats.Add(dst, src[i*cols:(i+1)*cols])
	}
}

func columnSumScalar(dst, src []float64, rows, cols int) {
	for i := 0; i < rows; i++ {
		offset := i * cols
		for j := 0; j < cols; j++ {
			dst[j] += src[offset+j]
		}
	}
}
