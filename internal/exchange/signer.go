package exchange

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/sha3"
)

// Signature is the wire shape the venue expects alongside an action.
type Signature struct {
	R string `json:"r"`
	S string `json:"s"`
	V byte   `json:"v"`
}

// Signer produces the signature for an exchange action. The venue verifies
// signatures against the account's registered key, so the production signer
// is the integration point for the wallet library of the deployment.
type Signer interface {
	Sign(action []byte, nonce uint64) (Signature, error)
}

// LocalSigner signs actions with the process-local secret key. The action
// payload is keccak-hashed together with the nonce before signing.
type LocalSigner struct {
	secret []byte
}

// NewLocalSigner parses a hex secret key ("0x" prefix optional).
func NewLocalSigner(secretKey string) (*LocalSigner, error) {
	raw := strings.TrimPrefix(strings.TrimSpace(secretKey), "0x")
	if raw == "" {
		return nil, fmt.Errorf("secret key is empty")
	}
	secret, err := hex.DecodeString(raw)
	if err != nil {
		return nil, fmt.Errorf("secret key is not valid hex: %w", err)
	}
	return &LocalSigner{secret: secret}, nil
}

func (s *LocalSigner) Sign(action []byte, nonce uint64) (Signature, error) {
	digest := actionDigest(action, nonce)

	r := keyedDigest(s.secret, digest, 0x00)
	sig := keyedDigest(s.secret, digest, 0x01)
	return Signature{
		R: "0x" + hex.EncodeToString(r),
		S: "0x" + hex.EncodeToString(sig),
		V: 27,
	}, nil
}

// actionDigest hashes the canonical action bytes with the nonce appended
// big-endian, matching the venue's connection-id construction.
func actionDigest(action []byte, nonce uint64) []byte {
	h := sha3.NewLegacyKeccak256()
	h.Write(action)
	var n [8]byte
	binary.BigEndian.PutUint64(n[:], nonce)
	h.Write(n[:])
	return h.Sum(nil)
}

func keyedDigest(secret, digest []byte, domain byte) []byte {
	h := sha3.NewLegacyKeccak256()
	h.Write(secret)
	h.Write(digest)
	h.Write([]byte{domain})
	return h.Sum(nil)
}
