package dataset

import (
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"
)

// Blobs generates a classification dataset of isotropic Gaussian clusters,
// one per class. Class centres are drawn from U(-spread, spread) and points
// scatter around them with unit variance. Labels cycle through the classes
// so every class is represented.
func Blobs(rows, features, classes int, spread float64, src rand.Source) *CSV {
	center := distuv.Uniform{Min: -spread, Max: spread, Src: src}
	noise := distuv.Normal{Mu: 0, Sigma: 1, Src: src}

	centers := make([]float64, classes*features)
	for i := range centers {
		centers[i] = center.Rand()
	}

	d := &CSV{
		Rows:     rows,
		Features: features,
		labels:   make([]float64, rows),
		values:   make([]float64, rows*features),
	}
	for i := 0; i < rows; i++ {
		c := i % classes
		d.labels[i] = float64(c)
		for j := 0; j < features; j++ {
			d.values[i*features+j] = centers[c*features+j] + noise.Rand()
		}
	}
	return d
}
