// Package transit protects meshes on their way to a recipient.
//
// Two modes are offered. Public-key mode uses age x25519 recipients, so a
// sender needs only the recipient's public key. Shared-key mode seals a
// stream into a chunked envelope of AES-SIV ciphertexts, each bound to the
// envelope header, its index and whether it is the last chunk, so chunks
// cannot be reordered, spliced between envelopes or dropped from the end.
package transit
