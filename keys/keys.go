package keys

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/x509"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

const (
	SeedSize      = ed25519.SeedSize
	PublicKeySize = ed25519.PublicKeySize
	SignatureSize = ed25519.SignatureSize
)

// DER container prefixes for Ed25519 (RFC 8410, OID 1.3.101.112). The raw key
// material always follows the prefix at a fixed offset, so encode/decode are
// explicit splices rather than opaque ASN.1 round-trips. The constants are
// unit-tested against crypto/x509 output.
var (
	// pkcs8Prefix precedes the 32-byte seed in a PKCS#8 PrivateKeyInfo:
	// SEQUENCE { version 0, AlgorithmIdentifier { id-Ed25519 },
	// OCTET STRING { OCTET STRING seed } }.
	pkcs8Prefix = []byte{
		0x30, 0x2e, 0x02, 0x01, 0x00, 0x30, 0x05, 0x06,
		0x03, 0x2b, 0x65, 0x70, 0x04, 0x22, 0x04, 0x20,
	}
	// spkiPrefix precedes the 32-byte public key in a SubjectPublicKeyInfo:
	// SEQUENCE { AlgorithmIdentifier { id-Ed25519 }, BIT STRING key }.
	spkiPrefix = []byte{
		0x30, 0x2a, 0x30, 0x05, 0x06, 0x03, 0x2b, 0x65,
		0x70, 0x03, 0x21, 0x00,
	}
)

// Keypair holds a freshly generated Ed25519 keypair as 64-character lowercase
// hex strings: the raw 32-byte public key and the raw 32-byte private seed.
// The two are generated together; the seed is never derivable from the public
// key.
type Keypair struct {
	PublicKey  string
	PrivateKey string
}

// Generate creates a new Ed25519 keypair and extracts the raw key material by
// stripping the fixed container headers from the standard encoded forms.
func Generate() (Keypair, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return Keypair{}, err
	}

	pkcs8, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return Keypair{}, err
	}
	seed, err := ParsePKCS8Seed(pkcs8)
	if err != nil {
		return Keypair{}, err
	}

	spki, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return Keypair{}, err
	}
	rawPub, err := ParsePKIXPublicKey(spki)
	if err != nil {
		return Keypair{}, err
	}

	return Keypair{
		PublicKey:  hex.EncodeToString(rawPub),
		PrivateKey: hex.EncodeToString(seed),
	}, nil
}

// MarshalSeedPKCS8 reconstructs the PKCS#8 container for a raw 32-byte seed.
func MarshalSeedPKCS8(seed []byte) ([]byte, error) {
	if len(seed) != SeedSize {
		return nil, fmt.Errorf("seed must be %d bytes, got %d", SeedSize, len(seed))
	}
	out := make([]byte, 0, len(pkcs8Prefix)+SeedSize)
	out = append(out, pkcs8Prefix...)
	return append(out, seed...), nil
}

// ParsePKCS8Seed strips the PKCS#8 container header and returns the raw seed.
func ParsePKCS8Seed(der []byte) ([]byte, error) {
	if len(der) != len(pkcs8Prefix)+SeedSize {
		return nil, fmt.Errorf("unexpected PKCS#8 length %d", len(der))
	}
	if !hasPrefix(der, pkcs8Prefix) {
		return nil, errors.New("not an Ed25519 PKCS#8 container")
	}
	return append([]byte(nil), der[len(pkcs8Prefix):]...), nil
}

// MarshalPublicKeyPKIX reconstructs the SubjectPublicKeyInfo container for a
// raw 32-byte public key.
func MarshalPublicKeyPKIX(pub []byte) ([]byte, error) {
	if len(pub) != PublicKeySize {
		return nil, fmt.Errorf("public key must be %d bytes, got %d", PublicKeySize, len(pub))
	}
	out := make([]byte, 0, len(spkiPrefix)+PublicKeySize)
	out = append(out, spkiPrefix...)
	return append(out, pub...), nil
}

// ParsePKIXPublicKey strips the SubjectPublicKeyInfo header and returns the
// raw public key.
func ParsePKIXPublicKey(der []byte) ([]byte, error) {
	if len(der) != len(spkiPrefix)+PublicKeySize {
		return nil, fmt.Errorf("unexpected SPKI length %d", len(der))
	}
	if !hasPrefix(der, spkiPrefix) {
		return nil, errors.New("not an Ed25519 SPKI container")
	}
	return append([]byte(nil), der[len(spkiPrefix):]...), nil
}

// ParseSeedHex decodes a hex-encoded Ed25519 seed, accepting surrounding
// whitespace and an optional 0x prefix.
func ParseSeedHex(seedHex string) ([]byte, error) {
	seedHex = strings.TrimSpace(seedHex)
	seedHex = strings.TrimPrefix(seedHex, "0x")
	data, err := hex.DecodeString(seedHex)
	if err != nil {
		return nil, err
	}
	if len(data) != SeedSize {
		return nil, fmt.Errorf("expected seed length of %d bytes, got %d", SeedSize, len(data))
	}
	return data, nil
}

// ParsePublicKeyHex decodes a hex-encoded raw Ed25519 public key.
func ParsePublicKeyHex(pubHex string) ([]byte, error) {
	pubHex = strings.TrimSpace(pubHex)
	pubHex = strings.TrimPrefix(pubHex, "0x")
	data, err := hex.DecodeString(pubHex)
	if err != nil {
		return nil, err
	}
	if len(data) != PublicKeySize {
		return nil, fmt.Errorf("expected public key length of %d bytes, got %d", PublicKeySize, len(data))
	}
	return data, nil
}

func hasPrefix(b, prefix []byte) bool {
	if len(b) < len(prefix) {
		return false
	}
	for i := range prefix {
		if b[i] != prefix[i] {
			return false
		}
	}
	return true
}
