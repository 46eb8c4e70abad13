package transit_test

import (
	"bytes"
	"crypto/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/idelchi/meshmark/internal/transit"
)

func sharedKey(t *testing.T) []byte {
	t.Helper()

	hexKey, err := transit.GenerateSharedKey()
	require.NoError(t, err)
	require.Len(t, hexKey, 64)

	key, err := transit.ParseSharedKey(hexKey)
	require.NoError(t, err)

	return key
}

func seal(t *testing.T, plaintext, key []byte) []byte {
	t.Helper()

	var sealed bytes.Buffer
	require.NoError(t, transit.Seal(bytes.NewReader(plaintext), &sealed, key))

	return sealed.Bytes()
}

func TestSealOpenRoundTrip(t *testing.T) {
	t.Parallel()

	key := sharedKey(t)

	large := make([]byte, 200*1024+17)
	_, err := rand.Read(large)
	require.NoError(t, err)

	exact := bytes.Repeat([]byte{0x5a}, 64*1024)

	for name, plaintext := range map[string][]byte{
		"empty": {},
		"small": []byte("solid part\nendsolid part\n"),
		"exact": exact,
		"large": large,
	} {
		sealed := seal(t, plaintext, key)

		var opened bytes.Buffer
		require.NoError(t, transit.Open(bytes.NewReader(sealed), &opened, key), name)
		require.Len(t, opened.Bytes(), len(plaintext), name)
		require.True(t, bytes.Equal(plaintext, opened.Bytes()), name)
	}
}

func TestSealIsDeterministic(t *testing.T) {
	t.Parallel()

	key := sharedKey(t)
	plaintext := []byte("same input, same envelope")

	require.Equal(t, seal(t, plaintext, key), seal(t, plaintext, key))
	require.NotEqual(t, seal(t, plaintext, key), seal(t, plaintext, sharedKey(t)))
}

func TestOpenDetectsTampering(t *testing.T) {
	t.Parallel()

	key := sharedKey(t)
	plaintext := make([]byte, 150*1024)
	sealed := seal(t, plaintext, key)

	flipped := bytes.Clone(sealed)
	flipped[len(flipped)/2] ^= 0x01

	// Header plus the first full chunk, without the final one.
	truncated := sealed[:5+4+64*1024+16]

	tests := map[string][]byte{
		"flipped bit":   flipped,
		"truncated":     truncated,
		"trailing data": append(bytes.Clone(sealed), 0),
		"bad magic":     append([]byte("XXXX"), sealed[4:]...),
		"empty":         {},
	}

	for name, input := range tests {
		err := transit.Open(bytes.NewReader(input), &bytes.Buffer{}, key)
		require.ErrorIs(t, err, transit.ErrEnvelope, name)
	}

	err := transit.Open(bytes.NewReader(sealed), &bytes.Buffer{}, sharedKey(t))
	require.ErrorIs(t, err, transit.ErrEnvelope, "wrong key")
}

func TestParseSharedKey(t *testing.T) {
	t.Parallel()

	_, err := transit.ParseSharedKey("abcd")
	require.Error(t, err)

	_, err = transit.ParseSharedKey(strings.Repeat("zz", 32))
	require.Error(t, err)

	key, err := transit.ParseSharedKey("  " + strings.Repeat("0f", 32) + "\n")
	require.NoError(t, err)
	require.Len(t, key, transit.SharedKeySize)

	require.Error(t, transit.Seal(strings.NewReader("x"), &bytes.Buffer{}, []byte("short")))
}

func TestAgeRoundTrip(t *testing.T) {
	t.Parallel()

	alice, err := transit.GenerateKeypair()
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(alice.PublicKey, "age1"))
	require.True(t, strings.HasPrefix(alice.PrivateKey, "AGE-SECRET-KEY-1"))
	require.NoError(t, transit.ParsePublicKey(alice.PublicKey))

	escrow, err := transit.GenerateKeypair()
	require.NoError(t, err)

	plaintext := []byte("solid part\nendsolid part\n")

	ciphertext, err := transit.Encrypt(plaintext, alice.PublicKey, escrow.PublicKey)
	require.NoError(t, err)
	require.NotContains(t, string(ciphertext), "solid part")

	for _, kp := range []transit.Keypair{alice, escrow} {
		got, err := transit.Decrypt(ciphertext, kp.PrivateKey)
		require.NoError(t, err)
		require.Equal(t, plaintext, got)
	}

	stranger, err := transit.GenerateKeypair()
	require.NoError(t, err)

	_, err = transit.Decrypt(ciphertext, stranger.PrivateKey)
	require.Error(t, err)
}

func TestAgeErrors(t *testing.T) {
	t.Parallel()

	_, err := transit.Encrypt([]byte("x"))
	require.Error(t, err)

	_, err = transit.Encrypt([]byte("x"), "not-a-key")
	require.Error(t, err)

	_, err = transit.Decrypt([]byte("x"), "not-a-key")
	require.Error(t, err)

	require.Error(t, transit.ParsePublicKey("age1bogus"))
}
