package mesh

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/idelchi/meshmark/internal/fault"
)

const maxLineSize = 1 << 20

// parser tracks where inside the solid/facet/loop nesting the scanner is.
type parser struct {
	line     int
	name     string
	header   bool
	inFacet  bool
	inLoop   bool
	looped   bool
	normal   Vec3
	vertices []Vec3
	facets   []Facet
}

// ParseFile opens and parses the ASCII STL file at path.
func ParseFile(path string) (*Model, error) {
	file, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, fault.Wrap(fault.KindIO, err, "opening mesh %q", path)
	}
	defer file.Close()

	return Parse(file)
}

// Parse reads an ASCII STL stream. Facet ids are assigned in read order.
//
// Structural problems (a loop without exactly three vertices, a facet or
// solid missing its closing marker, malformed numbers) fail with a
// fault.KindParse error naming the offending line.
func Parse(r io.Reader) (*Model, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	p := &parser{}

	for scanner.Scan() {
		p.line++

		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}

		done, err := p.consume(fields)
		if err != nil {
			return nil, err
		}

		if done {
			if len(p.facets) == 0 {
				return nil, fault.New(fault.KindParse, "solid %q has no facets", p.name)
			}

			return New(p.name, p.facets), nil
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fault.Wrap(fault.KindIO, err, "reading mesh")
	}

	switch {
	case !p.header:
		return nil, fault.New(fault.KindParse, "missing solid header")
	case p.inFacet:
		return nil, fault.New(fault.KindParse, "line %d: unterminated facet at end of input", p.line)
	default:
		return nil, fault.New(fault.KindParse, "line %d: missing endsolid", p.line)
	}
}

//nolint:cyclop // one case per STL keyword
func (p *parser) consume(fields []string) (bool, error) {
	keyword := fields[0]

	if !p.header {
		if keyword != "solid" {
			return false, p.errorf("expected solid header, got %q", keyword)
		}

		p.header = true
		p.name = strings.Join(fields[1:], " ")

		return false, nil
	}

	switch keyword {
	case "facet":
		if p.inFacet {
			return false, p.errorf("facet opened before previous facet was closed")
		}

		if len(fields) != 5 || fields[1] != "normal" {
			return false, p.errorf("expected `facet normal nx ny nz`")
		}

		normal, err := p.vector(fields[2:])
		if err != nil {
			return false, err
		}

		p.inFacet, p.looped, p.normal, p.vertices = true, false, normal, p.vertices[:0]
	case "outer":
		if !p.inFacet || p.inLoop || p.looped {
			return false, p.errorf("unexpected outer loop")
		}

		p.inLoop = true
	case "vertex":
		if !p.inLoop {
			return false, p.errorf("vertex outside of a loop")
		}

		if len(fields) != 4 {
			return false, p.errorf("expected `vertex x y z`")
		}

		vertex, err := p.vector(fields[1:])
		if err != nil {
			return false, err
		}

		p.vertices = append(p.vertices, vertex)
	case "endloop":
		if !p.inLoop {
			return false, p.errorf("endloop without outer loop")
		}

		if len(p.vertices) != 3 {
			return false, p.errorf("facet has %d vertices, want 3", len(p.vertices))
		}

		p.inLoop, p.looped = false, true
	case "endfacet":
		if !p.inFacet || !p.looped {
			return false, p.errorf("endfacet without a closed loop")
		}

		p.facets = append(p.facets, Facet{
			Normal:   p.normal,
			Vertices: [3]Vec3{p.vertices[0], p.vertices[1], p.vertices[2]},
		})
		p.inFacet = false
	case "endsolid":
		if p.inFacet {
			return false, p.errorf("endsolid inside an unterminated facet")
		}

		return true, nil
	default:
		return false, p.errorf("unknown keyword %q", keyword)
	}

	return false, nil
}

func (p *parser) vector(fields []string) (Vec3, error) {
	var v Vec3

	for i, field := range fields {
		value, err := strconv.ParseFloat(field, 64)
		if err != nil {
			return v, fault.Wrap(fault.KindParse, err, "line %d: invalid number %q", p.line, field)
		}

		if math.IsNaN(value) || math.IsInf(value, 0) {
			return v, p.errorf("non-finite number %q", field)
		}

		v[i] = value
	}

	return v, nil
}

func (p *parser) errorf(format string, args ...any) error {
	return fault.New(fault.KindParse, "line %d: %s", p.line, fmt.Sprintf(format, args...))
}
