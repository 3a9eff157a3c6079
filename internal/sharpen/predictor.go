package sharpen

import (
	"log"

	"gonum.org/v1/gonum/mat"
)

// predict applies a fitted model to a flattened sample matrix (rows =
// pixels, columns = fine bands) and returns one prediction per row. When
// chunkSize > 0 the backend sees fixed-size batches, bounding its working
// set on large rasters; batching does not change the predictions.
func predict(m *Model, X *mat.Dense, chunkSize int) []float64 {
	if m.InScaler != nil {
		X = m.InScaler.Transform(X)
	}

	n, d := X.Dims()
	var out []float64
	if chunkSize <= 0 || chunkSize >= n {
		out = m.Reg.Predict(X)
	} else {
		out = make([]float64, n)
		chunks := (n + chunkSize - 1) / chunkSize
		for chunk := 0; chunk < chunks; chunk++ {
			ini := chunk * chunkSize
			end := ini + chunkSize
			if end > n {
				end = n
			}
			batch := X.Slice(ini, end, 0, d).(*mat.Dense)
			copy(out[ini:end], m.Reg.Predict(batch))
		}
		log.Printf("Finished predicting on %d samples in %d chunks", n, chunks)
	}

	if m.OutScaler != nil {
		out = m.OutScaler.InverseVec(out)
	}
	return out
}

// sampleMatrix flattens a rectangular region of per-band pixel data into a
// prediction matrix. bands holds one full-size row-major grid per band;
// the region is [r0, r1) x [c0, c1) of a grid with the given column count.
func sampleMatrix(bands [][]float64, cols, r0, r1, c0, c1 int) *mat.Dense {
	n := (r1 - r0) * (c1 - c0)
	X := mat.NewDense(n, len(bands), nil)
	i := 0
	for r := r0; r < r1; r++ {
		for c := c0; c < c1; c++ {
			for b, band := range bands {
				X.Set(i, b, band[r*cols+c])
			}
			i++
		}
	}
	return X
}
