package colour

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"math/rand"
	"sort"

	"github.com/lucasb-eyer/go-colorful"
)

// KMeansExtractor implements color extraction using k-means clustering.
// Clustering runs in CIE L*a*b* so distances track perceived difference.
type KMeansExtractor struct {
	maxIterations  int
	convergence    float64
	maxSamples     int
	alphaThreshold int
	seed           int64
}

// NewKMeansExtractor creates a new KMeansExtractor. Zero-valued options select defaults.
func NewKMeansExtractor(opts ExtractorOptions) *KMeansExtractor {
	opts = opts.resolved()
	return &KMeansExtractor{
		maxIterations:  20,
		convergence:    0.5,
		maxSamples:     opts.MaxSamples,
		alphaThreshold: *opts.AlphaThreshold,
		seed:           *opts.Seed,
	}
}

// Extract extracts colors from an image using k-means clustering.
// Returns colors ordered by cluster size with their relative weights.
func (e *KMeansExtractor) Extract(img image.Image, count int) (*Palette, error) {
	if count < 1 {
		return nil, fmt.Errorf("%w: color count must be at least 1, got %d", ErrInvalidRequest, count)
	}

	pixels, err := samplePixels(img, e.maxSamples, e.alphaThreshold)
	if err != nil {
		return nil, err
	}

	// Count unique colours in first-seen order.
	unique := make([]RGB, 0, len(pixels))
	hits := make(map[RGB]int)
	for _, p := range pixels {
		rgb := RGB{R: p.R, G: p.G, B: p.B}
		if _, ok := hits[rgb]; !ok {
			unique = append(unique, rgb)
		}
		hits[rgb]++
	}

	// If we want at least as many colors as exist, rank the unique colors.
	if count >= len(unique) {
		sort.SliceStable(unique, func(i, j int) bool {
			return hits[unique[i]] > hits[unique[j]]
		})
		colors := make([]color.Color, len(unique))
		weights := make([]float64, len(unique))
		for i, rgb := range unique {
			colors[i] = rgb
			weights[i] = float64(hits[rgb]) / float64(len(pixels))
		}
		return NewPaletteWithWeights(colors, weights), nil
	}

	points := make([]point3D, len(pixels))
	for i, p := range pixels {
		points[i] = toLab(RGB{R: p.R, G: p.G, B: p.B})
	}

	centroids, sizes := e.kmeans(points, count)
	return clustersToPalette(centroids, sizes, len(points)), nil
}

// clustersToPalette converts centroids to swatches, merging clusters that
// round to the same colour and dropping empty ones.
func clustersToPalette(centroids []point3D, sizes []int, total int) *Palette {
	type cluster struct {
		rgb  RGB
		size int
	}
	merged := make([]cluster, 0, len(centroids))
	seen := make(map[RGB]int)
	for i, c := range centroids {
		if sizes[i] == 0 {
			continue
		}
		rgb := fromLab(c)
		if j, ok := seen[rgb]; ok {
			merged[j].size += sizes[i]
			continue
		}
		seen[rgb] = len(merged)
		merged = append(merged, cluster{rgb: rgb, size: sizes[i]})
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].size > merged[j].size
	})

	colors := make([]color.Color, len(merged))
	weights := make([]float64, len(merged))
	for i, c := range merged {
		colors[i] = c.rgb
		weights[i] = float64(c.size) / float64(total)
	}
	return NewPaletteWithWeights(colors, weights)
}

// point3D represents a point in L*a*b* colour space.
type point3D struct {
	L, A, B float64
}

// distance returns the squared Euclidean distance between two points.
func (p point3D) distance(other point3D) float64 {
	dl := p.L - other.L
	da := p.A - other.A
	db := p.B - other.B
	return dl*dl + da*da + db*db
}

func toLab(rgb RGB) point3D {
	l, a, b := colorful.Color{
		R: float64(rgb.R) / 255,
		G: float64(rgb.G) / 255,
		B: float64(rgb.B) / 255,
	}.Lab()
	return point3D{L: l, A: a, B: b}
}

func fromLab(p point3D) RGB {
	r, g, b := colorful.Lab(p.L, p.A, p.B).Clamped().RGB255()
	return RGB{R: r, G: g, B: b}
}

// kmeans performs k-means clustering on the points.
// Returns centroids and the number of points assigned to each.
func (e *KMeansExtractor) kmeans(points []point3D, k int) ([]point3D, []int) {
	rng := rand.New(rand.NewSource(e.seed)) // #nosec G404 - deterministic clustering, not security sensitive

	centroids := e.initializeCentroidsKMeansPlusPlus(rng, points, k)
	assignments := make([]int, len(points))

	for iter := 0; iter < e.maxIterations; iter++ {
		changed := 0
		for i, point := range points {
			nearest := findNearestCentroid(point, centroids)
			if iter == 0 || assignments[i] != nearest {
				assignments[i] = nearest
				changed++
			}
		}

		// Fewer than 1% of assignments moved.
		if iter > 0 && float64(changed)/float64(len(points)) < 0.01 {
			break
		}

		newCentroids := recalculateCentroids(points, assignments, centroids)

		totalMovement := 0.0
		for i := range centroids {
			totalMovement += math.Sqrt(centroids[i].distance(newCentroids[i]))
		}
		centroids = newCentroids

		if totalMovement/float64(k) < e.convergence {
			break
		}
	}

	sizes := make([]int, len(centroids))
	for i, point := range points {
		assignments[i] = findNearestCentroid(point, centroids)
		sizes[assignments[i]]++
	}
	return centroids, sizes
}

// initializeCentroidsKMeansPlusPlus picks initial centroids with probability
// proportional to squared distance from the nearest chosen centroid.
func (e *KMeansExtractor) initializeCentroidsKMeansPlusPlus(rng *rand.Rand, points []point3D, k int) []point3D {
	centroids := make([]point3D, 0, k)
	centroids = append(centroids, points[rng.Intn(len(points))])

	distances := make([]float64, len(points))
	for len(centroids) < k {
		total := 0.0
		for i, point := range points {
			minDist := math.MaxFloat64
			for _, c := range centroids {
				minDist = min(minDist, point.distance(c))
			}
			distances[i] = minDist
			total += minDist
		}

		// Every point coincides with a centroid.
		if total == 0 {
			break
		}

		target := rng.Float64() * total
		cumulative := 0.0
		chosen, farthest := -1, 0
		for i, dist := range distances {
			if dist > distances[farthest] {
				farthest = i
			}
			cumulative += dist
			if chosen < 0 && cumulative >= target && dist > 0 {
				chosen = i
			}
		}
		if chosen < 0 {
			chosen = farthest
		}
		centroids = append(centroids, points[chosen])
	}

	return centroids
}

// findNearestCentroid finds the index of the nearest centroid to a point.
func findNearestCentroid(point point3D, centroids []point3D) int {
	minDist := math.MaxFloat64
	nearest := 0
	for i, c := range centroids {
		if d := point.distance(c); d < minDist {
			minDist = d
			nearest = i
		}
	}
	return nearest
}

// recalculateCentroids moves each centroid to the mean of its points.
// Empty clusters keep their previous position.
func recalculateCentroids(points []point3D, assignments []int, previous []point3D) []point3D {
	k := len(previous)
	sums := make([]point3D, k)
	counts := make([]int, k)

	for i, point := range points {
		c := assignments[i]
		sums[c].L += point.L
		sums[c].A += point.A
		sums[c].B += point.B
		counts[c]++
	}

	centroids := make([]point3D, k)
	for i := range k {
		if counts[i] == 0 {
			centroids[i] = previous[i]
			continue
		}
		n := float64(counts[i])
		centroids[i] = point3D{L: sums[i].L / n, A: sums[i].A / n, B: sums[i].B / n}
	}
	return centroids
}
