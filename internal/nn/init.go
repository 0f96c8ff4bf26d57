package nn

import (
	"math"
	"math/rand/v2"

	"github.com/born-ml/gograd/internal/tensor"
	"gonum.org/v1/gonum/stat/distuv"
)

// Xavier (Glorot) initialization for weights.
//
// Fills t with values drawn from a uniform distribution:
// U(-sqrt(6/(fan_in + fan_out)), sqrt(6/(fan_in + fan_out)))
//
// This initialization helps maintain variance of activations across layers.
func Xavier(t *tensor.Tensor, fanIn, fanOut int, src rand.Source) {
	bound := math.Sqrt(6.0 / float64(fanIn+fanOut))
	dist := distuv.Uniform{Min: -bound, Max: bound, Src: src}

	data := t.Data()
	for i := range data {
		data[i] = dist.Rand()
	}
}
