package schema

import (
	"bytes"
	"encoding/hex"

	"github.com/zeebo/blake3"
)

// Payload is an immutable byte sequence used to exercise write/read and
// send/receive paths.
type Payload struct {
	data []byte
}

// NewPayload returns a [Payload] holding a private copy of data.
func NewPayload(data []byte) Payload {
	return Payload{data: bytes.Clone(data)}
}

// PayloadString returns a [Payload] of the bytes of s.
func PayloadString(s string) Payload {
	return Payload{data: []byte(s)}
}

// Bytes returns a copy of the payload's bytes.
func (p Payload) Bytes() []byte {
	return bytes.Clone(p.data)
}

// Len returns the length of the payload in bytes.
func (p Payload) Len() int {
	return len(p.data)
}

// Digest returns the hex-encoded BLAKE3 digest of the payload.
func (p Payload) Digest() string {
	return Digest(p.data)
}

// Equal reports whether the payload holds exactly the given bytes.
func (p Payload) Equal(data []byte) bool {
	return bytes.Equal(p.data, data)
}

func (p Payload) String() string {
	return string(p.data)
}

// Digest returns the hex-encoded BLAKE3 digest of data.
func Digest(data []byte) string {
	sum := blake3.Sum256(data)

	return hex.EncodeToString(sum[:])
}

// VerifyPayload compares the observed bytes against the expected [Payload]
// and returns a [*MismatchError] describing both when they differ.
func VerifyPayload(what string, expected Payload, observed []byte) error {
	if expected.Equal(observed) {
		return nil
	}

	return &MismatchError{
		What:     what,
		Expected: expected.Bytes(),
		Observed: bytes.Clone(observed),
	}
}
