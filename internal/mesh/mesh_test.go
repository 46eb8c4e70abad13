package mesh_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/idelchi/meshmark/internal/fault"
	"github.com/idelchi/meshmark/internal/mesh"
	"github.com/idelchi/meshmark/internal/meshtest"
)

const twoFacets = `solid wedge
  facet normal 0.000000e+00 0.000000e+00 -1.000000e+00
    outer loop
      vertex 0.000000e+00 0.000000e+00 0.000000e+00
      vertex 1.000000e+00 0.000000e+00 0.000000e+00
      vertex 0.000000e+00 1.000000e+00 0.000000e+00
    endloop
  endfacet
  facet normal 0 0 1
    outer loop
      vertex 0 0 2.5e-1
      vertex 1 0 2.5e-1
      vertex 0 1 2.5e-1
    endloop
  endfacet
endsolid wedge
`

func TestParse(t *testing.T) {
	t.Parallel()

	m, err := mesh.Parse(strings.NewReader(twoFacets))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if m.Name != "wedge" {
		t.Errorf("Name = %q, want %q", m.Name, "wedge")
	}

	if m.Len() != 2 {
		t.Fatalf("Len = %d, want 2", m.Len())
	}

	second, err := m.Facet(1)
	if err != nil {
		t.Fatalf("Facet(1): %v", err)
	}

	if second.Normal != (mesh.Vec3{0, 0, 1}) {
		t.Errorf("Facet(1).Normal = %v, want [0 0 1]", second.Normal)
	}

	if second.Vertices[1] != (mesh.Vec3{1, 0, 0.25}) {
		t.Errorf("Facet(1).Vertices[1] = %v, want [1 0 0.25]", second.Vertices[1])
	}

	if got := len(m.Vertices()); got != 6 {
		t.Errorf("len(Vertices) = %d, want 6", got)
	}

	if _, err := m.Facet(2); !fault.IsKind(err, fault.KindInvalidArgument) {
		t.Errorf("Facet(2) error = %v, want InvalidArgument", err)
	}
}

func TestCentroid(t *testing.T) {
	t.Parallel()

	m, err := mesh.Parse(strings.NewReader(twoFacets))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	want := mesh.Vec3{1.0 / 3, 1.0 / 3, 0.125}
	got := m.Centroid()

	for i := range 3 {
		if diff := got[i] - want[i]; diff > 1e-12 || diff < -1e-12 {
			t.Fatalf("Centroid = %v, want %v", got, want)
		}
	}
}

func TestParseErrors(t *testing.T) {
	t.Parallel()

	facet := func(vertices int, closeLoop, closeFacet bool) string {
		var b strings.Builder

		b.WriteString("facet normal 0 0 1\nouter loop\n")

		for range vertices {
			b.WriteString("vertex 1 2 3\n")
		}

		if closeLoop {
			b.WriteString("endloop\n")
		}

		if closeFacet {
			b.WriteString("endfacet\n")
		}

		return b.String()
	}

	tests := []struct {
		name  string
		input string
	}{
		{name: "two vertices", input: "solid s\n" + facet(2, true, true) + "endsolid s\n"},
		{name: "four vertices", input: "solid s\n" + facet(4, true, true) + "endsolid s\n"},
		{name: "missing endloop", input: "solid s\n" + facet(3, false, true) + "endsolid s\n"},
		{name: "missing endfacet", input: "solid s\n" + facet(3, true, false) + facet(3, true, true) + "endsolid s\n"},
		{name: "unterminated at eof", input: "solid s\n" + facet(3, true, false)},
		{name: "missing endsolid", input: "solid s\n" + facet(3, true, true)},
		{name: "missing header", input: facet(3, true, true) + "endsolid s\n"},
		{name: "no facets", input: "solid s\nendsolid s\n"},
		{name: "bad number", input: "solid s\nfacet normal 0 0 x\n"},
		{name: "non-finite", input: "solid s\nfacet normal 0 0 NaN\n"},
		{name: "empty input", input: ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			_, err := mesh.Parse(strings.NewReader(tc.input))
			if !fault.IsKind(err, fault.KindParse) {
				t.Errorf("Parse error = %v, want kind %s", err, fault.KindParse)
			}
		})
	}
}

func TestWriteRoundTrip(t *testing.T) {
	t.Parallel()

	m := meshtest.Random(7, 50)

	order := make([]int, m.Len())
	for i := range order {
		order[i] = m.Len() - 1 - i
	}

	var buf bytes.Buffer
	if err := m.Write(&buf, order); err != nil {
		t.Fatalf("Write: %v", err)
	}

	back, err := mesh.Parse(&buf)
	if err != nil {
		t.Fatalf("Parse(Write): %v", err)
	}

	if back.Name != m.Name || back.Len() != m.Len() {
		t.Fatalf("round trip gave %v, want %v", back, m)
	}

	for pos, id := range order {
		want, _ := m.Facet(id)
		got, _ := back.Facet(pos)

		if got != want {
			t.Fatalf("facet at position %d = %v, want %v (bit-identical)", pos, got, want)
		}
	}
}

func TestWriteRejectsNonPermutation(t *testing.T) {
	t.Parallel()

	m := meshtest.Random(1, 3)

	for _, order := range [][]int{{0, 1}, {0, 1, 1}, {0, 1, 3}, {-1, 0, 1}} {
		if err := m.Write(&bytes.Buffer{}, order); !fault.IsKind(err, fault.KindInvalidArgument) {
			t.Errorf("Write(%v) error = %v, want InvalidArgument", order, err)
		}
	}
}
