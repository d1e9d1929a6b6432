// Package cluster provides sub-clustering over the co-embedding and the
// heuristic quality flags used to drop off-target or low-quality clusters.
package cluster

import (
	"fmt"
	"math"
	"math/rand"
	"sync"

	"github.com/carbocation/pfx"
)

// KMeans clusters points with k-means++ seeding and Lloyd iterations. The
// result is deterministic for a fixed seed. The assignment step runs chunked
// across goroutines since it dominates runtime on tens of thousands of cells.
func KMeans(points [][]float64, k, maxIter int, seed int64) (assign []int, centroids [][]float64, err error) {
	if k < 1 {
		return nil, nil, pfx.Err(fmt.Errorf("cluster: k must be positive, got %d", k))
	}
	if len(points) < k {
		return nil, nil, pfx.Err(fmt.Errorf("cluster: %d points cannot form %d clusters", len(points), k))
	}

	dims := len(points[0])
	for i, p := range points {
		if len(p) != dims {
			return nil, nil, pfx.Err(fmt.Errorf("cluster: point %d has %d dims, want %d", i, len(p), dims))
		}
	}

	rng := rand.New(rand.NewSource(seed))
	centroids = seedPlusPlus(points, k, rng)
	assign = make([]int, len(points))

	for iter := 0; iter < maxIter; iter++ {
		changed := assignAll(points, centroids, assign)

		// Recompute centroids
		counts := make([]int, k)
		next := make([][]float64, k)
		for c := range next {
			next[c] = make([]float64, dims)
		}
		for i, c := range assign {
			counts[c]++
			for d := 0; d < dims; d++ {
				next[c][d] += points[i][d]
			}
		}
		for c := range next {
			if counts[c] == 0 {
				// Empty cluster: reseed from the point farthest from its
				// centroid so k survives.
				next[c] = append([]float64{}, points[farthestPoint(points, centroids, assign)]...)
				continue
			}
			for d := 0; d < dims; d++ {
				next[c][d] /= float64(counts[c])
			}
		}
		centroids = next

		if changed == 0 {
			break
		}
	}

	return assign, centroids, nil
}

func seedPlusPlus(points [][]float64, k int, rng *rand.Rand) [][]float64 {
	centroids := make([][]float64, 0, k)
	centroids = append(centroids, append([]float64{}, points[rng.Intn(len(points))]...))

	d2 := make([]float64, len(points))
	for len(centroids) < k {
		var sum float64
		for i, p := range points {
			best := math.Inf(1)
			for _, c := range centroids {
				if d := sqDist(p, c); d < best {
					best = d
				}
			}
			d2[i] = best
			sum += best
		}

		// Sample proportional to squared distance; fall back to uniform when
		// every point coincides with a centroid.
		var pick int
		if sum > 0 {
			r := rng.Float64() * sum
			for i, d := range d2 {
				r -= d
				if r <= 0 {
					pick = i
					break
				}
			}
		} else {
			pick = rng.Intn(len(points))
		}

		centroids = append(centroids, append([]float64{}, points[pick]...))
	}

	return centroids
}

func assignAll(points [][]float64, centroids [][]float64, assign []int) (changed int) {
	const chunk = 2048

	var mu sync.Mutex
	var wg sync.WaitGroup

	for lo := 0; lo < len(points); lo += chunk {
		hi := lo + chunk
		if hi > len(points) {
			hi = len(points)
		}

		wg.Add(1)
		go func(lo, hi int) {
			defer wg.Done()

			localChanged := 0
			for i := lo; i < hi; i++ {
				best, bestD := 0, math.Inf(1)
				for c, cent := range centroids {
					if d := sqDist(points[i], cent); d < bestD {
						best, bestD = c, d
					}
				}
				if assign[i] != best {
					assign[i] = best
					localChanged++
				}
			}

			mu.Lock()
			changed += localChanged
			mu.Unlock()
		}(lo, hi)
	}
	wg.Wait()

	return changed
}

func farthestPoint(points [][]float64, centroids [][]float64, assign []int) int {
	worst, worstD := 0, -1.0
	for i, p := range points {
		if d := sqDist(p, centroids[assign[i]]); d > worstD {
			worst, worstD = i, d
		}
	}

	return worst
}

func sqDist(a, b []float64) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}

	return sum
}
