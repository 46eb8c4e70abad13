// Package watermark hides a per-recipient fingerprint in the facet order of
// an ASCII STL mesh and recovers it.
//
// Embedding writes the same facets in a new order and changes no coordinate.
// Extraction needs only the marked file: the reference order is rebuilt from
// geometry, which the reordering does not touch.
package watermark

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/idelchi/meshmark/internal/fault"
	"github.com/idelchi/meshmark/internal/fileutil"
	"github.com/idelchi/meshmark/internal/fingerprint"
	"github.com/idelchi/meshmark/internal/mesh"
	"github.com/idelchi/meshmark/internal/permcodec"
)

// Options configures an Engine.
type Options struct {
	// Algorithm selects the fingerprint hash. Empty means MD5.
	Algorithm fingerprint.Algorithm
	// PreserveTimestamps copies the input modification time onto the output.
	PreserveTimestamps bool
}

// Engine embeds and extracts fingerprints. It holds no per-call state and
// is safe for concurrent use on distinct files.
type Engine struct {
	generator fingerprint.Generator
	preserve  bool
}

// New returns an engine configured by opts.
func New(opts Options) *Engine {
	return &Engine{
		generator: fingerprint.Generator{Algorithm: opts.Algorithm},
		preserve:  opts.PreserveTimestamps,
	}
}

// Result describes one embed or extract call.
type Result struct {
	Input  string
	Output string // empty for Extract

	Fingerprint fingerprint.Fingerprint
	// Text is Fingerprint rendered in the requested base.
	Text string

	Facets   int
	Capacity int
	Ties     int
	Size     int64 // output size in bytes, embed only
}

// Embed derives the fingerprint of rawFile, id and appendix, and writes the
// facets of rawFile to outFile in the order that encodes it.
//
// Nothing is written when any step fails. outFile may equal rawFile.
func (e *Engine) Embed(ctx context.Context, rawFile, id, appendix, outFile string, base int) (res Result, err error) {
	res = Result{Input: rawFile, Output: outFile}

	if err := checkBase(base); err != nil {
		return res, err
	}

	if err := ctx.Err(); err != nil {
		return res, err
	}

	fp, err := e.generator.SumFile(rawFile, id, appendix)
	if err != nil {
		return res, err
	}

	model, err := mesh.ParseFile(rawFile)
	if err != nil {
		return res, err
	}

	ref, err := model.Ref()
	if err != nil {
		return res, err
	}

	res.Fingerprint = fp
	res.Facets = model.Len()
	res.Capacity = permcodec.Capacity(model.Len())
	res.Ties = model.Ties()

	order, err := permcodec.Encode(ref, fp.Bits())
	if err != nil {
		return res, fmt.Errorf("%q: %w", rawFile, err)
	}

	logger().Debug("encoded fingerprint",
		slog.String("file", rawFile),
		slog.Int("facets", res.Facets),
		slog.Int("capacity", res.Capacity),
		slog.Int("guaranteed", permcodec.GuaranteedCapacity(res.Facets)),
	)

	if err := ctx.Err(); err != nil {
		return res, err
	}

	size, err := e.write(model, order, rawFile, outFile)
	if err != nil {
		return res, err
	}

	res.Size = size
	res.Text = fp.MustFormat(base)

	logger().Info("embedded fingerprint",
		slog.String("input", rawFile),
		slog.String("output", outFile),
		slog.String("fingerprint", fp.String()),
	)

	return res, nil
}

func (e *Engine) write(model *mesh.Model, order []int, rawFile, outFile string) (size int64, err error) {
	tc, err := fileutil.NewTempContext(rawFile, outFile)
	if err != nil {
		return 0, fault.Wrap(fault.KindIO, err, "preparing atomic write")
	}

	defer tc.CleanupOnError(&err)

	if err = model.Write(tc.TmpFile, order); err != nil {
		return 0, fault.Wrap(fault.KindIO, err, "writing %q", outFile)
	}

	if err = tc.Commit(); err != nil {
		return 0, fault.Wrap(fault.KindIO, err, "committing %q", outFile)
	}

	size, err = fileutil.FinalizeOutput(outFile, e.preserve, tc.SrcInfo.ModTime())
	if err != nil {
		return 0, fault.Wrap(fault.KindIO, err, "%q was written, but finalizing it failed", outFile)
	}

	return size, nil
}

// Extract recovers the fingerprint carried by the facet order of fileName.
//
// A mesh that cannot carry a full fingerprint fails with
// fault.KindCapacityExceeded. Extract cannot tell a marked file from an
// unmarked one: an unmarked mesh yields an arbitrary fingerprint.
func (e *Engine) Extract(ctx context.Context, fileName string, base int) (Result, error) {
	res := Result{Input: fileName}

	if err := checkBase(base); err != nil {
		return res, err
	}

	if err := ctx.Err(); err != nil {
		return res, err
	}

	model, err := mesh.ParseFile(fileName)
	if err != nil {
		return res, err
	}

	ref, err := model.Ref()
	if err != nil {
		return res, err
	}

	res.Facets = model.Len()
	res.Capacity = permcodec.Capacity(model.Len())
	res.Ties = model.Ties()

	// Facets are read in file order, so the physical order is the identity.
	physical := make([]int, model.Len())
	for i := range physical {
		physical[i] = i
	}

	bits, err := permcodec.Decode(ref, physical, fingerprint.Bits)
	if err != nil {
		return res, err
	}

	if len(bits) < fingerprint.Bits {
		return res, fault.New(fault.KindCapacityExceeded,
			"%q: %d facets carry %d bits, a fingerprint needs %d", fileName, res.Facets, len(bits), fingerprint.Bits)
	}

	fp, err := fingerprint.FromBits(bits)
	if err != nil {
		return res, err
	}

	res.Fingerprint = fp
	res.Text = fp.MustFormat(base)

	logger().Info("extracted fingerprint",
		slog.String("input", fileName),
		slog.String("fingerprint", fp.String()),
	)

	return res, nil
}

// MinFacets is the smallest facet count for which every fingerprint embeds.
func MinFacets() int {
	n := 2
	for permcodec.GuaranteedCapacity(n) < fingerprint.Bits {
		n++
	}

	return n
}

func checkBase(base int) error {
	switch base {
	case 2, 10, 16:
		return nil
	default:
		return fault.New(fault.KindInvalidArgument, "unsupported base %d (want 2, 10 or 16)", base)
	}
}
