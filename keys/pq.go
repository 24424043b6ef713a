package keys

import (
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"fmt"
	"io"

	"github.com/cloudflare/circl/sign/dilithium/mode3"
	"golang.org/x/crypto/sha3"
)

// Dilithium3 co-attestation.
//
// EXPERIMENTAL: a post-quantum signature over the same canonical signing input
// the Ed25519 protocol uses. Co-attestations are stored as extra metadata
// fields, which the signing reduction strips, so they never affect the
// Ed25519 protocol bytes.

func digestFor(hashAlg string, message []byte) ([]byte, error) {
	switch hashAlg {
	case "sha256":
		s := sha256.Sum256(message)
		return s[:], nil
	case "sha512":
		s := sha512.Sum512(message)
		return s[:], nil
	case "sha3-256":
		s := sha3.Sum256(message)
		return s[:], nil
	default:
		return nil, fmt.Errorf("unsupported hash algorithm: %q", hashAlg)
	}
}

// GenerateDilithium3Keypair returns a new Dilithium3 keypair.
func GenerateDilithium3Keypair(rand io.Reader) (*mode3.PublicKey, *mode3.PrivateKey, error) {
	return mode3.GenerateKey(rand)
}

// AttestDilithium3 returns a base64 dilithium3 signature over hash(message).
// hashAlg must be one of: sha256, sha512, sha3-256.
func AttestDilithium3(message []byte, hashAlg string, privateKey *mode3.PrivateKey) (string, error) {
	if privateKey == nil {
		return "", fmt.Errorf("missing private key")
	}
	digest, err := digestFor(hashAlg, message)
	if err != nil {
		return "", err
	}
	sig := make([]byte, mode3.SignatureSize)
	mode3.SignTo(privateKey, digest, sig)
	return base64.StdEncoding.EncodeToString(sig), nil
}

// VerifyDilithium3 checks a base64 dilithium3 co-attestation over message.
func VerifyDilithium3(message []byte, hashAlg string, publicKey *mode3.PublicKey, sigB64 string) (bool, error) {
	if publicKey == nil {
		return false, fmt.Errorf("missing public key")
	}
	digest, err := digestFor(hashAlg, message)
	if err != nil {
		return false, err
	}
	sig, err := base64.StdEncoding.DecodeString(sigB64)
	if err != nil {
		return false, fmt.Errorf("invalid signature base64: %w", err)
	}
	if len(sig) != mode3.SignatureSize {
		return false, fmt.Errorf("invalid dilithium3 signature length")
	}
	return mode3.Verify(publicKey, digest, sig), nil
}
