package mesh

import (
	"bufio"
	"fmt"
	"io"
	"strconv"

	"github.com/idelchi/meshmark/internal/fault"
)

const indent = "    "

// Write serializes the model as ASCII STL, emitting facets in the given order.
// A nil order writes facets in id order.
//
// Numbers use the shortest scientific form that parses back to the same
// float64, so re-reading the output yields bit-identical geometry.
func (m *Model) Write(w io.Writer, order []int) error {
	if order == nil {
		order = identity(m.Len())
	}

	if err := m.checkPermutation(order); err != nil {
		return err
	}

	bw := bufio.NewWriter(w)
	buf := make([]byte, 0, 256)

	buf = append(buf, "solid "...)
	buf = append(buf, m.Name...)
	buf = append(buf, '\n')

	for _, id := range order {
		buf = appendFacet(buf, m.facets[id])

		if _, err := bw.Write(buf); err != nil {
			return fmt.Errorf("writing facet %d: %w", id, err)
		}

		buf = buf[:0]
	}

	buf = append(buf, "endsolid "...)
	buf = append(buf, m.Name...)
	buf = append(buf, '\n')

	if _, err := bw.Write(buf); err != nil {
		return fmt.Errorf("writing trailer: %w", err)
	}

	if err := bw.Flush(); err != nil {
		return fmt.Errorf("flushing mesh: %w", err)
	}

	return nil
}

func appendFacet(buf []byte, f Facet) []byte {
	buf = append(buf, indent+"facet normal"...)
	buf = appendVec(buf, f.Normal)
	buf = append(buf, '\n')
	buf = append(buf, indent+indent+"outer loop\n"...)

	for _, v := range f.Vertices {
		buf = append(buf, indent+indent+indent+"vertex"...)
		buf = appendVec(buf, v)
		buf = append(buf, '\n')
	}

	buf = append(buf, indent+indent+"endloop\n"...)
	buf = append(buf, indent+"endfacet\n"...)

	return buf
}

func appendVec(buf []byte, v Vec3) []byte {
	for _, c := range v {
		buf = append(buf, ' ')
		buf = strconv.AppendFloat(buf, c, 'e', -1, 64)
	}

	return buf
}

// checkPermutation verifies that order lists every facet id exactly once.
func (m *Model) checkPermutation(order []int) error {
	if len(order) != m.Len() {
		return fault.New(fault.KindInvalidArgument, "order has %d ids, mesh has %d facets", len(order), m.Len())
	}

	seen := make([]bool, m.Len())

	for _, id := range order {
		if id < 0 || id >= m.Len() || seen[id] {
			return fault.New(fault.KindInvalidArgument, "order is not a permutation of facet ids (id %d)", id)
		}

		seen[id] = true
	}

	return nil
}

func identity(n int) []int {
	ids := make([]int, n)
	for i := range ids {
		ids[i] = i
	}

	return ids
}
