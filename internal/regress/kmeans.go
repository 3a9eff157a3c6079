package regress

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// KMeans partitions the rows of X into k clusters with Lloyd's algorithm and
// returns a cluster label per row. Initialization picks k distinct random
// rows using the given seed, so results are deterministic for a fixed seed.
// An empty cluster is reseeded from the point farthest from its centroid.
func KMeans(X *mat.Dense, k, maxIter int, seed int64) []int {
	n, d := X.Dims()
	if k <= 0 || n == 0 {
		return make([]int, n)
	}
	if k > n {
		k = n
	}
	if maxIter <= 0 {
		maxIter = 100
	}

	rng := rand.New(rand.NewSource(seed))
	centroids := mat.NewDense(k, d, nil)
	for i, p := range rng.Perm(n)[:k] {
		centroids.SetRow(i, X.RawRowView(p))
	}

	labels := make([]int, n)
	counts := make([]int, k)
	for iter := 0; iter < maxIter; iter++ {
		changed := false
		for i := 0; i < n; i++ {
			best, bestDist := 0, math.Inf(1)
			for c := 0; c < k; c++ {
				dist := sqDist(X, i, centroids, c)
				if dist < bestDist {
					best, bestDist = c, dist
				}
			}
			if labels[i] != best {
				labels[i] = best
				changed = true
			}
		}
		if !changed && iter > 0 {
			break
		}

		// Recompute centroids.
		centroids.Zero()
		for c := range counts {
			counts[c] = 0
		}
		for i := 0; i < n; i++ {
			c := labels[i]
			counts[c]++
			for j := 0; j < d; j++ {
				centroids.Set(c, j, centroids.At(c, j)+X.At(i, j))
			}
		}
		for c := 0; c < k; c++ {
			if counts[c] == 0 {
				continue
			}
			inv := 1 / float64(counts[c])
			for j := 0; j < d; j++ {
				centroids.Set(c, j, centroids.At(c, j)*inv)
			}
		}
		for c := 0; c < k; c++ {
			if counts[c] == 0 {
				centroids.SetRow(c, X.RawRowView(farthestPoint(X, centroids, labels)))
			}
		}
	}
	return labels
}

func farthestPoint(X *mat.Dense, centroids *mat.Dense, labels []int) int {
	n, _ := X.Dims()
	best, bestDist := 0, -1.0
	for i := 0; i < n; i++ {
		dist := sqDist(X, i, centroids, labels[i])
		if dist > bestDist {
			best, bestDist = i, dist
		}
	}
	return best
}
