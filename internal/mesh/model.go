// Package mesh holds triangulated surface meshes read from ASCII STL and
// derives the canonical, file-order-independent facet ordering used for
// watermarking.
//
// A Model is not safe for concurrent use: derived values (centroid,
// eigenbasis, canonical order) are cached on first access.
package mesh

import (
	"fmt"

	"github.com/idelchi/meshmark/internal/fault"
)

// Vec3 is a point or direction in model space.
type Vec3 [3]float64

// Add returns v+o.
func (v Vec3) Add(o Vec3) Vec3 {
	return Vec3{v[0] + o[0], v[1] + o[1], v[2] + o[2]}
}

// Dot returns the scalar product of v and o.
func (v Vec3) Dot(o Vec3) float64 {
	return v[0]*o[0] + v[1]*o[1] + v[2]*o[2]
}

// Facet is one triangle: an outward normal and three vertices.
type Facet struct {
	Normal   Vec3
	Vertices [3]Vec3
}

// Centroid returns (v1+v2+v3)/3.
func (f Facet) Centroid() Vec3 {
	sum := f.Vertices[0].Add(f.Vertices[1]).Add(f.Vertices[2])

	return Vec3{sum[0] / 3, sum[1] / 3, sum[2] / 3}
}

// Model is an ordered sequence of facets. A facet's id is its index,
// which equals its position in the file it was parsed from.
type Model struct {
	// Name is taken from the `solid` header line.
	Name string

	facets []Facet

	// Caches, populated on first access. Only a re-parse (a new Model) resets them.
	centroid *Vec3
	basis    *Basis
	ref      []int
	ties     int
	refErr   error
}

// New builds a model from facets in the given order.
func New(name string, facets []Facet) *Model {
	owned := make([]Facet, len(facets))
	copy(owned, facets)

	return &Model{Name: name, facets: owned}
}

// Len returns the number of facets.
func (m *Model) Len() int {
	return len(m.facets)
}

// Facet returns the facet with the given id.
func (m *Model) Facet(id int) (Facet, error) {
	if id < 0 || id >= len(m.facets) {
		return Facet{}, fault.New(fault.KindInvalidArgument, "facet id %d out of range [0,%d)", id, len(m.facets))
	}

	return m.facets[id], nil
}

// Vertices returns the flattened vertex list: 3 points per facet, in facet order.
func (m *Model) Vertices() []Vec3 {
	out := make([]Vec3, 0, 3*len(m.facets))

	for _, f := range m.facets {
		out = append(out, f.Vertices[:]...)
	}

	return out
}

// Centroid returns the component-wise mean of all vertices.
func (m *Model) Centroid() Vec3 {
	if m.centroid == nil {
		c := meanOf(sortedVertices(m.Vertices()))
		m.centroid = &c
	}

	return *m.centroid
}

func (m *Model) String() string {
	return fmt.Sprintf("%q with %d facets", m.Name, m.Len())
}
