// Package inbox is a content-addressed store for received parcels.
//
// Objects are written once and keyed by a CIDv1 (raw codec, sha2-256
// multihash), so a sender can name what it uploaded without trusting the
// receiver, and a stored object cannot be silently replaced.
package inbox

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
)

var (
	// ErrNotFound is returned when no object has the requested id.
	ErrNotFound = errors.New("inbox: object not found")
	// ErrInvalidID is returned for ids that do not parse as a CID.
	ErrInvalidID = errors.New("inbox: invalid content id")
	// ErrMismatch is returned when stored bytes no longer hash to their id.
	ErrMismatch = errors.New("inbox: content does not match id")
	// ErrImmutable is returned when a Put would replace different bytes under the same id.
	ErrImmutable = errors.New("inbox: object is immutable")
)

// ID returns the content id of data.
func ID(data []byte) (cid.Cid, error) {
	sum, err := multihash.Sum(data, multihash.SHA2_256, -1)
	if err != nil {
		return cid.Undef, fmt.Errorf("hashing content: %w", err)
	}

	return cid.NewCidV1(cid.Raw, sum), nil
}

// Store keeps objects under root, fanned out by the first two id characters.
type Store struct {
	root string
}

// New returns a store rooted at root, creating the directory if needed.
func New(root string) (*Store, error) {
	if root == "" {
		return nil, errors.New("inbox: root directory is required")
	}

	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("creating inbox %q: %w", root, err)
	}

	return &Store{root: root}, nil
}

// Put stores data and returns its id. Storing the same bytes twice is a no-op,
// also when two Puts race. Objects appear under their id only once complete.
func (s *Store) Put(data []byte) (string, error) {
	id, err := ID(data)
	if err != nil {
		return "", err
	}

	path := s.pathFor(id)
	dir := filepath.Dir(path)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating shard directory: %w", err)
	}

	tmp, err := stage(dir, data)
	if err != nil {
		return "", fmt.Errorf("writing %s: %w", id, err)
	}
	defer os.Remove(tmp)

	// Link fails on an existing target, which keeps stored objects immutable.
	if err := os.Link(tmp, path); err != nil {
		if !errors.Is(err, os.ErrExist) {
			return "", fmt.Errorf("storing %s: %w", id, err)
		}

		existing, rerr := s.get(id)
		if rerr != nil || !bytes.Equal(existing, data) {
			return "", ErrImmutable
		}
	}

	return id.String(), nil
}

// stage writes data to a read-only temporary file in dir and returns its path.
func stage(dir string, data []byte) (string, error) {
	file, err := os.CreateTemp(dir, ".put-*")
	if err != nil {
		return "", err
	}

	name := file.Name()

	if _, err := file.Write(data); err != nil {
		file.Close()
		os.Remove(name)

		return "", err
	}

	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(name)

		return "", err
	}

	if err := file.Close(); err != nil {
		os.Remove(name)

		return "", err
	}

	if err := os.Chmod(name, 0o444); err != nil {
		os.Remove(name)

		return "", err
	}

	return name, nil
}

// Get returns the bytes stored under id after checking they still hash to it.
func (s *Store) Get(id string) ([]byte, error) {
	parsed, err := cid.Decode(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidID, id)
	}

	return s.get(parsed)
}

// Has reports whether an object with id is stored.
func (s *Store) Has(id string) bool {
	parsed, err := cid.Decode(id)
	if err != nil {
		return false
	}

	_, err = os.Stat(s.pathFor(parsed))

	return err == nil
}

func (s *Store) get(id cid.Cid) ([]byte, error) {
	data, err := os.ReadFile(s.pathFor(id))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}

		return nil, fmt.Errorf("reading %s: %w", id, err)
	}

	got, err := ID(data)
	if err != nil {
		return nil, err
	}

	if !got.Equals(id) {
		return nil, fmt.Errorf("%w: %s", ErrMismatch, id)
	}

	return data, nil
}

func (s *Store) pathFor(id cid.Cid) string {
	name := id.String()

	return filepath.Join(s.root, name[:2], name)
}
