package permcodec_test

import (
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/idelchi/meshmark/internal/fault"
	"github.com/idelchi/meshmark/internal/permcodec"
)

func bitsOf(t *testing.T, s string) permcodec.Bits {
	t.Helper()

	b, err := permcodec.ParseBits(s)
	require.NoError(t, err)

	return b
}

func TestEncodeFixtures(t *testing.T) {
	t.Parallel()

	ref := []int{0, 1}

	ord, err := permcodec.Encode(ref, bitsOf(t, ""))
	require.NoError(t, err)
	require.Equal(t, []int{0, 1}, ord)

	ord, err = permcodec.Encode(ref, bitsOf(t, "1"))
	require.NoError(t, err)
	require.Equal(t, []int{1, 0}, ord)

	got, err := permcodec.Decode(ref, []int{1, 0}, 1)
	require.NoError(t, err)
	require.Equal(t, "1", got.String())

	require.Equal(t, []int{0, 1}, ref, "Encode must not mutate ref")
}

func TestCapacity(t *testing.T) {
	t.Parallel()

	tests := []struct {
		n, capacity, guaranteed int
	}{
		{0, 0, 0},
		{1, 0, 0},
		{2, 1, 1},
		{3, 2, 2},
		{4, 4, 4},
		{5, 6, 6},
		{6, 9, 8},
		{10, 21, 19},
		{35, 132, 118},
		{37, 143, 128},
	}

	for _, tc := range tests {
		require.Equal(t, tc.capacity, permcodec.Capacity(tc.n), "Capacity(%d)", tc.n)
		require.Equal(t, tc.guaranteed, permcodec.GuaranteedCapacity(tc.n), "GuaranteedCapacity(%d)", tc.n)
	}

	// Large n switches to the log-gamma estimate; it must stay monotone across the switch.
	require.Less(t, permcodec.Capacity(4096), permcodec.Capacity(4097))
}

func TestRoundTrip(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewPCG(1, 2))

	for n := 2; n <= 200; n += 7 {
		ref := rng.Perm(n)

		for range 20 {
			length := rng.IntN(permcodec.GuaranteedCapacity(n) + 1)

			message := make(permcodec.Bits, length)
			for i := range message {
				message[i] = byte(rng.IntN(2))
			}

			ord, err := permcodec.Encode(ref, message)
			require.NoError(t, err, "n=%d len=%d", n, length)

			require.Len(t, ord, n)
			require.ElementsMatch(t, ref, ord, "Encode must return a permutation of ref")

			decoded, err := permcodec.Decode(ref, ord, permcodec.Unlimited)
			require.NoError(t, err)
			require.GreaterOrEqual(t, len(decoded), length)
			require.Equal(t, message.String(), decoded[:length].String(), "n=%d", n)

			limited, err := permcodec.Decode(ref, ord, length)
			require.NoError(t, err)
			require.Equal(t, message.String(), limited.String())
		}
	}
}

func TestDecodeLimit(t *testing.T) {
	t.Parallel()

	ref := rand.New(rand.NewPCG(5, 6)).Perm(20)
	message := permcodec.Bits{1, 0, 1, 1, 0, 0, 1}

	ord, err := permcodec.Encode(ref, message)
	require.NoError(t, err)

	for _, limit := range []int{0, 1, len(message)} {
		got, err := permcodec.Decode(ref, ord, limit)
		require.NoError(t, err)
		require.Len(t, got, limit)
		require.Equal(t, message[:limit].String(), got.String())
	}

	all, err := permcodec.Decode(ref, ord, permcodec.Unlimited)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(all), permcodec.GuaranteedCapacity(len(ref)))
	require.Equal(t, message.String(), all[:len(message)].String())
}

func TestFingerprintSizedPayload(t *testing.T) {
	t.Parallel()

	// 37 elements are the smallest pool that takes every 128-bit digest.
	ref := rand.New(rand.NewPCG(3, 4)).Perm(37)
	message := permcodec.FromBytes([]byte("0123456789abcdef"))
	require.Len(t, message, 128)

	ord, err := permcodec.Encode(ref, message)
	require.NoError(t, err)

	decoded, err := permcodec.Decode(ref, ord, 128)
	require.NoError(t, err)
	require.Equal(t, message, decoded)
	require.Equal(t, []byte("0123456789abcdef"), decoded.Bytes())
}

func TestCapacityExceeded(t *testing.T) {
	t.Parallel()

	ref := []int{4, 2, 9, 7, 1, 0}

	tooLong := make(permcodec.Bits, permcodec.Capacity(len(ref))+1)

	_, err := permcodec.Encode(ref, tooLong)
	require.True(t, fault.IsKind(err, fault.KindCapacityExceeded), "got %v", err)

	// Nine 1 bits follow the short halving path at every step: six elements absorb only eight.
	allOnes := bitsOf(t, "111111111")

	_, err = permcodec.Encode(ref, allOnes)
	require.True(t, fault.IsKind(err, fault.KindCapacityExceeded), "got %v", err)

	_, err = permcodec.Encode([]int{5}, bitsOf(t, "1"))
	require.True(t, fault.IsKind(err, fault.KindCapacityExceeded), "got %v", err)
}

func TestSmallPools(t *testing.T) {
	t.Parallel()

	ord, err := permcodec.Encode([]int{5}, nil)
	require.NoError(t, err)
	require.Equal(t, []int{5}, ord)

	bits, err := permcodec.Decode([]int{5}, []int{5}, permcodec.Unlimited)
	require.NoError(t, err)
	require.Empty(t, bits)

	_, err = permcodec.Encode(nil, nil)
	require.True(t, fault.IsKind(err, fault.KindInvalidArgument), "got %v", err)

	_, err = permcodec.Decode(nil, nil, permcodec.Unlimited)
	require.True(t, fault.IsKind(err, fault.KindInvalidArgument), "got %v", err)
}

func TestInvalidInput(t *testing.T) {
	t.Parallel()

	_, err := permcodec.Encode([]int{1, 1}, nil)
	require.True(t, fault.IsKind(err, fault.KindInvalidArgument), "duplicate ref: %v", err)

	_, err = permcodec.Encode([]int{0, 1}, permcodec.Bits{2})
	require.True(t, fault.IsKind(err, fault.KindInvalidArgument), "bad bit: %v", err)

	_, err = permcodec.Decode([]int{0, 1}, []int{0, 0}, permcodec.Unlimited)
	require.True(t, fault.IsKind(err, fault.KindInvalidArgument), "repeated element: %v", err)

	_, err = permcodec.Decode([]int{0, 1}, []int{0, 1, 2}, permcodec.Unlimited)
	require.True(t, fault.IsKind(err, fault.KindInvalidArgument), "too long: %v", err)

	_, err = permcodec.ParseBits("01x")
	require.True(t, fault.IsKind(err, fault.KindInvalidArgument), "bad char: %v", err)
}

// TestExhaustiveSmallPools enumerates every permutation and every message for small n.
func TestExhaustiveSmallPools(t *testing.T) {
	t.Parallel()

	for n := 2; n <= 8; n++ {
		ref := make([]int, n)
		for i := range ref {
			ref[i] = i
		}

		capacity := permcodec.Capacity(n)

		// Distinct capacity-length prefixes realized by all n! orderings.
		prefixes := make(map[string]struct{})

		for _, perm := range permutations(ref) {
			decoded, err := permcodec.Decode(ref, perm, permcodec.Unlimited)
			require.NoError(t, err)
			require.GreaterOrEqual(t, len(decoded), permcodec.GuaranteedCapacity(n))

			if len(decoded) >= capacity {
				prefixes[decoded[:capacity].String()] = struct{}{}
			}
		}

		// Every message that encodes decodes back, through a distinct ordering.
		orders := make(map[string]struct{})
		encodable := 0

		for value := range 1 << capacity {
			message := numberBits(value, capacity)

			ord, err := permcodec.Encode(ref, message)
			if err != nil {
				require.True(t, fault.IsKind(err, fault.KindCapacityExceeded), "n=%d: %v", n, err)

				continue
			}

			encodable++
			orders[permcodec.FromBytes(intsAsBytes(ord)).String()] = struct{}{}

			decoded, err := permcodec.Decode(ref, ord, capacity)
			require.NoError(t, err)
			require.Equal(t, message.String(), decoded.String(), "n=%d", n)
		}

		require.Len(t, orders, encodable, "n=%d: two messages share an ordering", n)
		require.Len(t, prefixes, encodable, "n=%d: realizable prefixes differ from encodable messages", n)
		require.LessOrEqual(t, encodable, 1<<capacity)

		if permcodec.GuaranteedCapacity(n) == capacity {
			require.Equal(t, 1<<capacity, encodable, "n=%d: every capacity-length message must encode", n)
		}

		// Every message up to the guaranteed length encodes.
		guaranteed := permcodec.GuaranteedCapacity(n)
		for value := range 1 << guaranteed {
			message := numberBits(value, guaranteed)

			ord, err := permcodec.Encode(ref, message)
			require.NoError(t, err, "n=%d message=%s", n, message)

			decoded, err := permcodec.Decode(ref, ord, guaranteed)
			require.NoError(t, err)
			require.Equal(t, message.String(), decoded.String())
		}
	}
}

func numberBits(value, width int) permcodec.Bits {
	bits := make(permcodec.Bits, width)
	for i := range width {
		bits[width-1-i] = byte(value>>i) & 1
	}

	return bits
}

func intsAsBytes(ids []int) []byte {
	out := make([]byte, len(ids))
	for i, id := range ids {
		out[i] = byte(id)
	}

	return out
}

func permutations(items []int) [][]int {
	if len(items) <= 1 {
		return [][]int{slices.Clone(items)}
	}

	var out [][]int

	for i := range items {
		rest := slices.Concat(items[:i], items[i+1:])

		for _, tail := range permutations(rest) {
			out = append(out, append([]int{items[i]}, tail...))
		}
	}

	return out
}
