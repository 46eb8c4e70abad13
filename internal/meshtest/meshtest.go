// Package meshtest provides mesh fixtures for tests.
//
// All helpers call t.Fatalf on failure rather than returning errors.
package meshtest

import (
	"math/rand/v2"
	"os"
	"path/filepath"
	"testing"

	"github.com/idelchi/meshmark/internal/mesh"
)

// Random returns a model of n facets with pseudo-random vertices inside an
// elongated box, so the principal axes are well separated. The same seed
// always yields the same model.
func Random(seed uint64, n int) *mesh.Model {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))

	point := func() mesh.Vec3 {
		return mesh.Vec3{rng.Float64() * 40, rng.Float64() * 15, rng.Float64() * 4}
	}

	facets := make([]mesh.Facet, n)
	for i := range facets {
		facets[i] = mesh.Facet{
			Normal:   mesh.Vec3{rng.NormFloat64(), rng.NormFloat64(), rng.NormFloat64()},
			Vertices: [3]mesh.Vec3{point(), point(), point()},
		}
	}

	return mesh.New("fixture", facets)
}

// Shuffled returns a copy of m with its facets physically reordered, and the
// permutation used: facet j of the copy is facet perm[j] of m.
func Shuffled(seed uint64, m *mesh.Model) (*mesh.Model, []int) {
	rng := rand.New(rand.NewPCG(seed, ^seed))
	perm := rng.Perm(m.Len())

	facets := make([]mesh.Facet, m.Len())
	for j, id := range perm {
		f, _ := m.Facet(id)
		facets[j] = f
	}

	return mesh.New(m.Name, facets), perm
}

// WriteFile writes m as ASCII STL into dir and returns the path.
func WriteFile(t *testing.T, dir, name string, m *mesh.Model) string {
	t.Helper()

	path := filepath.Join(dir, name)

	file, err := os.Create(path)
	if err != nil {
		t.Fatalf("creating %s: %v", path, err)
	}
	defer file.Close()

	if err := m.Write(file, nil); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}

	return path
}
