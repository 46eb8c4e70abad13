// Package permcodec maps bit strings to permutations of a reference order
// and back.
//
// Each output position is chosen by halving the window of remaining
// candidates: a 1 bit keeps the upper half (floor), a 0 bit the lower half
// (ceil). Once the window holds a single candidate, it is emitted and removed
// from the pool by swapping in the last element. A pool of m candidates thus
// absorbs floor(log2 m) or ceil(log2 m) bits per position.
package permcodec

import (
	"math"
	"math/big"
	"math/bits"
	"slices"

	"github.com/idelchi/meshmark/internal/fault"
)

// exactCapacityLimit is the largest n for which Capacity computes n! exactly.
const exactCapacityLimit = 4096

// Capacity returns floor(log2(n!)), the number of bits a permutation of n
// elements could carry under an optimal code. Encode never accepts more.
func Capacity(n int) int {
	if n < 2 {
		return 0
	}

	if n <= exactCapacityLimit {
		return new(big.Int).MulRange(1, int64(n)).BitLen() - 1
	}

	lg, _ := math.Lgamma(float64(n) + 1)

	return int(lg / math.Ln2)
}

// GuaranteedCapacity returns the length up to which every message encodes:
// the sum of floor(log2 m) for m = 2..n. It never exceeds Capacity(n).
// Longer messages, up to Capacity(n), encode only if their bits happen to
// follow the longer halving paths.
func GuaranteedCapacity(n int) int {
	total := 0

	for m := 2; m <= n; m++ {
		total += bits.Len(uint(m)) - 1
	}

	return total
}

// Padding returns the number of zero bits appended to every message before
// encoding: floor(log2 n). It is enough to finish the halving path that the
// last message bit started.
func Padding(n int) int {
	if n < 1 {
		return 0
	}

	return bits.Len(uint(n)) - 1
}

// Encode returns the permutation of ref that carries message.
//
// The returned order has the same length and elements as ref. Elements after
// the last one selected by a bit are appended as a deterministic tail (the
// pool's first element, then the rest reversed) so that Decode can consume
// them.
//
// Encode fails with fault.KindCapacityExceeded, before producing any output,
// when the message is longer than Capacity(len(ref)) or when the pool would
// run out before every message bit is consumed.
func Encode(ref []int, message Bits) ([]int, error) {
	if err := checkRef(ref); err != nil {
		return nil, err
	}

	if err := message.validate(); err != nil {
		return nil, err
	}

	n := len(ref)

	if limit := Capacity(n); len(message) > limit {
		return nil, fault.New(fault.KindCapacityExceeded,
			"message of %d bits exceeds capacity of %d bits for %d elements", len(message), limit, n)
	}

	pool := slices.Clone(ref)
	order := make([]int, 0, n)
	cursor, window := 0, len(pool)
	consumed := 0
	padded := len(message) + Padding(n)

	for consumed < padded && len(pool) > 1 {
		var bit byte
		if consumed < len(message) {
			bit = message[consumed]
		}

		half := window / 2
		if bit == 1 {
			cursor += window - half
			window = half
		} else {
			window -= half
		}

		consumed++

		if window == 1 {
			order = append(order, pool[cursor])
			pool = swapRemove(pool, cursor)
			cursor, window = 0, len(pool)
		}
	}

	if consumed < len(message) {
		return nil, fault.New(fault.KindCapacityExceeded,
			"message of %d bits does not fit: %d elements absorb only %d of them along this path",
			len(message), n, consumed)
	}

	order = append(order, pool[0])

	for i := len(pool) - 1; i >= 1; i-- {
		order = append(order, pool[i])
	}

	return order, nil
}

// Unlimited makes Decode return every bit an order carries.
const Unlimited = -1

// Decode recovers the bit string carried by order, a permutation (or a prefix
// of one) of ref. The result includes the zero padding and the bits implied
// by the deterministic tail; callers truncate to the payload length.
//
// A non-negative limit stops decoding once that many bits are available and
// truncates the result to limit, so a limit of 0 yields no bits. Pass
// Unlimited to decode everything the order carries. The result is shorter
// than limit when the order cannot carry that many bits.
func Decode(ref, order []int, limit int) (Bits, error) {
	if err := checkRef(ref); err != nil {
		return nil, err
	}

	if len(order) > len(ref) {
		return nil, fault.New(fault.KindInvalidArgument, "order has %d elements, reference has %d", len(order), len(ref))
	}

	pool := slices.Clone(ref)

	position := make(map[int]int, len(pool))
	for i, id := range pool {
		position[id] = i
	}

	out := make(Bits, 0, max(limit, 0))

	for _, id := range order {
		if limit >= 0 && len(out) >= limit {
			break
		}

		pos, ok := position[id]
		if !ok {
			return nil, fault.New(fault.KindInvalidArgument, "element %d is not in the remaining pool", id)
		}

		for window := len(pool); window > 1; {
			half := (window + 1) / 2
			if pos >= half {
				out = append(out, 1)
				pos -= half
				window /= 2
			} else {
				out = append(out, 0)
				window = half
			}
		}

		last := len(pool) - 1
		at := position[id]

		position[pool[last]] = at
		delete(position, id)

		pool = swapRemove(pool, at)
	}

	if limit >= 0 && len(out) > limit {
		out = out[:limit]
	}

	return out, nil
}

// swapRemove deletes pool[i] by moving the last element into its slot.
func swapRemove(pool []int, i int) []int {
	last := len(pool) - 1
	pool[i] = pool[last]

	return pool[:last]
}

func checkRef(ref []int) error {
	if len(ref) == 0 {
		return fault.New(fault.KindInvalidArgument, "reference order is empty")
	}

	seen := make(map[int]struct{}, len(ref))

	for _, id := range ref {
		if _, ok := seen[id]; ok {
			return fault.New(fault.KindInvalidArgument, "reference order repeats element %d", id)
		}

		seen[id] = struct{}{}
	}

	return nil
}
