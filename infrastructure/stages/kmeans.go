package stages

import (
	"math/rand"
)

// observation is one weighted clustering input row.
type observation struct {
	vector []float64
	weight float64
}

// kmeansResult is the outcome of a single k-means restart.
type kmeansResult struct {
	centroids   [][]float64
	assignments []int
	wcss        float64
	iterations  int
}

// runKMeans executes one restart of weighted Lloyd's k-means over the
// observations. Every step is deterministic given the rng: initial centroids
// are drawn from the rng, distance ties assign to the lower centroid index,
// and an emptied cluster is reseeded on the point contributing most to the
// within-cluster sum of squares.
//
// The result's assignments and WCSS come from a final assignment pass
// against the returned centroids, so they are mutually consistent whether
// the loop converged or hit the iteration cap.
func runKMeans(rng *rand.Rand, obs []observation, k, maxIterations int) kmeansResult {
	centroids := initialCentroids(rng, obs, k)
	assignments := make([]int, len(obs))
	for i := range assignments {
		assignments[i] = -1
	}

	iterations := 0
	for iterations < maxIterations {
		iterations++

		changed := false
		for i, o := range obs {
			c := nearestCentroid(o.vector, centroids)
			if c != assignments[i] {
				assignments[i] = c
				changed = true
			}
		}

		reseeded := recomputeCentroids(obs, assignments, centroids)
		if !changed && !reseeded {
			break
		}
	}

	var wcss float64
	for i, o := range obs {
		c := nearestCentroid(o.vector, centroids)
		assignments[i] = c
		wcss += o.weight * squaredDistance(o.vector, centroids[c])
	}

	return kmeansResult{
		centroids:   centroids,
		assignments: assignments,
		wcss:        wcss,
		iterations:  iterations,
	}
}

// initialCentroids draws k starting centroids from the observations. It
// prefers k distinct vectors so replicated rows cannot collapse the start
// into coincident centroids; when fewer distinct vectors exist the remainder
// is filled with duplicates and the empty-cluster reseed takes over.
func initialCentroids(rng *rand.Rand, obs []observation, k int) [][]float64 {
	perm := rng.Perm(len(obs))

	centroids := make([][]float64, 0, k)
	for _, idx := range perm {
		if len(centroids) == k {
			break
		}
		candidate := obs[idx].vector
		if containsVector(centroids, candidate) {
			continue
		}
		centroids = append(centroids, cloneVector(candidate))
	}
	for _, idx := range perm {
		if len(centroids) == k {
			break
		}
		centroids = append(centroids, cloneVector(obs[idx].vector))
	}
	return centroids
}

// recomputeCentroids moves each centroid to the weighted mean of its
// assigned observations. A cluster with no weight is reseeded on the
// observation farthest from its current centroid; the caller must run
// another assignment pass when that happens.
func recomputeCentroids(obs []observation, assignments []int, centroids [][]float64) bool {
	k := len(centroids)
	dim := len(centroids[0])

	sums := make([][]float64, k)
	for c := range sums {
		sums[c] = make([]float64, dim)
	}
	weights := make([]float64, k)

	for i, o := range obs {
		c := assignments[i]
		weights[c] += o.weight
		for j, v := range o.vector {
			sums[c][j] += v * o.weight
		}
	}

	reseeded := false
	for c := 0; c < k; c++ {
		if weights[c] > 0 {
			for j := range sums[c] {
				centroids[c][j] = sums[c][j] / weights[c]
			}
			continue
		}
		idx := farthestObservation(obs, assignments, centroids)
		copy(centroids[c], obs[idx].vector)
		reseeded = true
	}
	return reseeded
}

// farthestObservation returns the index of the observation contributing the
// most weighted distance to its assigned centroid. Ties keep the lowest
// index so reseeding stays deterministic.
func farthestObservation(obs []observation, assignments []int, centroids [][]float64) int {
	best, bestDist := 0, -1.0
	for i, o := range obs {
		d := o.weight * squaredDistance(o.vector, centroids[assignments[i]])
		if d > bestDist {
			best, bestDist = i, d
		}
	}
	return best
}

// nearestCentroid returns the index of the closest centroid by squared
// Euclidean distance. Ties go to the lower index.
func nearestCentroid(vector []float64, centroids [][]float64) int {
	best := 0
	bestDist := squaredDistance(vector, centroids[0])
	for c := 1; c < len(centroids); c++ {
		if d := squaredDistance(vector, centroids[c]); d < bestDist {
			best, bestDist = c, d
		}
	}
	return best
}

// totalSumOfSquares is the weighted sum of squared distances from every
// observation to the weighted global mean. Together with the best WCSS it
// yields the between-cluster share of variance reported in diagnostics.
func totalSumOfSquares(obs []observation) float64 {
	if len(obs) == 0 {
		return 0
	}
	dim := len(obs[0].vector)
	mean := make([]float64, dim)

	var total float64
	for _, o := range obs {
		total += o.weight
		for j, v := range o.vector {
			mean[j] += v * o.weight
		}
	}
	if total <= 0 {
		return 0
	}
	for j := range mean {
		mean[j] /= total
	}

	var tss float64
	for _, o := range obs {
		tss += o.weight * squaredDistance(o.vector, mean)
	}
	return tss
}

func squaredDistance(a, b []float64) float64 {
	var sum float64
	for i, v := range a {
		d := v - b[i]
		sum += d * d
	}
	return sum
}

func containsVector(vectors [][]float64, candidate []float64) bool {
	for _, v := range vectors {
		if vectorsEqual(v, candidate) {
			return true
		}
	}
	return false
}

func vectorsEqual(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i, v := range a {
		if v != b[i] {
			return false
		}
	}
	return true
}

func cloneVector(v []float64) []float64 {
	out := make([]float64, len(v))
	copy(out, v)
	return out
}
