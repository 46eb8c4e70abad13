package mesh

import (
	"cmp"
	"math"
	"slices"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/idelchi/meshmark/internal/fault"
)

// degenerateRatio bounds the smallest-to-largest eigenvalue ratio below which
// the vertex cloud is treated as flat (or worse) and the eigenbasis as undefined.
const degenerateRatio = 1e-12

// Basis is the principal-axis frame of a vertex cloud.
// Axes are unit vectors ordered by descending variance, each sign-normalized
// so that its largest-magnitude component is positive.
type Basis struct {
	Axes   [3]Vec3
	Values [3]float64
}

// Project returns the coordinates of p in the basis.
func (b Basis) Project(p Vec3) Vec3 {
	return Vec3{p.Dot(b.Axes[0]), p.Dot(b.Axes[1]), p.Dot(b.Axes[2])}
}

// Basis returns the eigenbasis of the mean-centered vertex covariance.
// It fails with fault.KindDegenerateGeometry when the covariance is singular.
func (m *Model) Basis() (Basis, error) {
	if m.basis != nil {
		return *m.basis, nil
	}

	if m.Len() == 0 {
		return Basis{}, fault.New(fault.KindDegenerateGeometry, "mesh has no vertices")
	}

	// Accumulating over sorted vertices makes the covariance bit-identical
	// for every physical ordering of the same facets.
	vertices := sortedVertices(m.Vertices())
	centroid := m.Centroid()

	data := make([]float64, 0, 3*len(vertices))
	for _, v := range vertices {
		data = append(data, v[0]-centroid[0], v[1]-centroid[1], v[2]-centroid[2])
	}

	centered := mat.NewDense(len(vertices), 3, data)

	denominator := float64(len(vertices) - 1)
	if denominator < 1 {
		denominator = 1
	}

	var covariance mat.SymDense
	covariance.SymOuterK(1/denominator, centered.T())

	var eigen mat.EigenSym
	if ok := eigen.Factorize(&covariance, true); !ok {
		return Basis{}, fault.New(fault.KindDegenerateGeometry, "covariance eigen-decomposition did not converge")
	}

	values := eigen.Values(nil)

	var vectors mat.Dense
	eigen.VectorsTo(&vectors)

	// gonum returns ascending eigenvalues.
	largest, smallest := values[2], values[0]
	if !(largest > 0) || smallest <= largest*degenerateRatio {
		return Basis{}, fault.New(fault.KindDegenerateGeometry,
			"vertex covariance is singular (eigenvalues %g, %g, %g)", values[0], values[1], values[2])
	}

	var basis Basis

	for i := range 3 {
		col := 2 - i

		axis := Vec3{vectors.At(0, col), vectors.At(1, col), vectors.At(2, col)}
		basis.Axes[i] = normalizeSign(axis)
		basis.Values[i] = values[col]
	}

	m.basis = &basis

	logger().Debug("principal axes computed",
		"solid", m.Name,
		"variance", basis.Values,
	)

	return basis, nil
}

// Ref returns the canonical facet order: facet ids sorted by the
// lexicographic (x, y, z) position of their centroid in the principal-axis
// frame. The result does not depend on the facets' order in the file.
//
// Facets whose projected centroids coincide are ordered by their full
// geometry. Facets that are geometrically identical cannot be told apart;
// they are counted in Ties and logged, and a mesh containing them is not
// guaranteed to round-trip a watermark.
//
// The returned slice is a copy of the cached order.
func (m *Model) Ref() ([]int, error) {
	if m.ref == nil && m.refErr == nil {
		m.ref, m.ties, m.refErr = m.canonicalize()
	}

	if m.refErr != nil {
		return nil, m.refErr
	}

	return slices.Clone(m.ref), nil
}

// Ties returns the number of adjacent facet pairs in Ref that are
// geometrically identical. Valid after Ref has succeeded.
func (m *Model) Ties() int {
	return m.ties
}

type rankedFacet struct {
	id    int
	key   Vec3
	facet Facet
}

func (m *Model) canonicalize() ([]int, int, error) {
	basis, err := m.Basis()
	if err != nil {
		return nil, 0, err
	}

	ranked := make([]rankedFacet, m.Len())
	for id, f := range m.facets {
		ranked[id] = rankedFacet{id: id, key: basis.Project(f.Centroid()), facet: f}
	}

	slices.SortStableFunc(ranked, func(a, b rankedFacet) int {
		if c := compareVec(a.key, b.key); c != 0 {
			return c
		}

		return compareFacet(a.facet, b.facet)
	})

	ref := make([]int, len(ranked))
	ties, keyTies := 0, 0

	for i, r := range ranked {
		ref[i] = r.id

		if i == 0 || compareVec(ranked[i-1].key, r.key) != 0 {
			continue
		}

		keyTies++

		if compareFacet(ranked[i-1].facet, r.facet) == 0 {
			ties++
		}
	}

	if keyTies > 0 {
		logger().Debug("projected centroids coincide, ordered by geometry", "solid", m.Name, "pairs", keyTies)
	}

	if ties > 0 {
		logger().Warn("canonical order is ambiguous",
			"solid", m.Name,
			"kind", fault.KindTieAmbiguity,
			"identical_facet_pairs", ties,
		)
	}

	return ref, ties, nil
}

func normalizeSign(v Vec3) Vec3 {
	dominant := 0

	for i := 1; i < 3; i++ {
		if math.Abs(v[i]) > math.Abs(v[dominant]) {
			dominant = i
		}
	}

	if v[dominant] < 0 {
		return Vec3{-v[0], -v[1], -v[2]}
	}

	return v
}

func compareVec(a, b Vec3) int {
	for i := range 3 {
		if c := cmp.Compare(a[i], b[i]); c != 0 {
			return c
		}
	}

	return 0
}

func compareFacet(a, b Facet) int {
	if c := compareVec(a.Normal, b.Normal); c != 0 {
		return c
	}

	for i := range 3 {
		if c := compareVec(a.Vertices[i], b.Vertices[i]); c != 0 {
			return c
		}
	}

	return 0
}

func sortedVertices(vertices []Vec3) []Vec3 {
	slices.SortFunc(vertices, compareVec)

	return vertices
}

func meanOf(vertices []Vec3) Vec3 {
	columns := [3][]float64{}

	for i := range columns {
		columns[i] = make([]float64, len(vertices))
	}

	for row, v := range vertices {
		for i := range 3 {
			columns[i][row] = v[i]
		}
	}

	var mean Vec3

	if len(vertices) == 0 {
		return mean
	}

	for i := range 3 {
		mean[i] = stat.Mean(columns[i], nil)
	}

	return mean
}
