package profile

import (
	"crypto/ed25519"
	"crypto/x509"
	"encoding/hex"
	"fmt"

	"aieos.dev/identity/keys"
)

// Sign computes the profile signature with the given hex-encoded 32-byte
// private seed and returns it as a 128-character lowercase hex string.
//
// The seed is re-wrapped in its PKCS#8 container and loaded through the
// standard parser, then the canonical signing input is signed with pure
// Ed25519 (the algorithm consumes the message directly; there is no separate
// digest pass). Signing is a privileged operation: every failure is returned
// as a hard error, never a silently invalid signature.
func Sign(p Profile, privateKeyHex string) (string, error) {
	seed, err := hex.DecodeString(privateKeyHex)
	if err != nil {
		return "", wrapError(KindKey, RuleInvalidKeyHex, "private key is not valid hex", err)
	}
	if len(seed) != keys.SeedSize {
		return "", newError(KindKey, RuleInvalidKeyLength,
			fmt.Sprintf("private key must be %d bytes, got %d", keys.SeedSize, len(seed)))
	}

	pkcs8, err := keys.MarshalSeedPKCS8(seed)
	if err != nil {
		return "", wrapError(KindKey, RuleKeyContainer, "rebuild private key container", err)
	}
	parsed, err := x509.ParsePKCS8PrivateKey(pkcs8)
	if err != nil {
		return "", wrapError(KindKey, RuleKeyContainer, "load private key container", err)
	}
	priv, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return "", newError(KindKey, RuleKeyContainer, "container did not hold an Ed25519 key")
	}

	msg, err := SignInput(p)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(ed25519.Sign(priv, msg)), nil
}

// Verify checks the profile's stored signature against its stored public key.
//
// The signing input is recomputed from the profile itself; no precomputed
// canonical form is trusted. Extra metadata fields (alias, entity_id, ...)
// are stripped by the reduction and cannot affect the outcome. Verification
// consumes untrusted input: a missing or malformed key, signature, or profile
// yields false, never an error or panic.
func Verify(p Profile) bool {
	md := p.Metadata()
	if md == nil {
		return false
	}
	pubHex, ok := md[PublicKeyField].(string)
	if !ok || pubHex == "" {
		return false
	}
	sigHex, ok := md[SignatureField].(string)
	if !ok || sigHex == "" {
		return false
	}

	rawPub, err := keys.ParsePublicKeyHex(pubHex)
	if err != nil {
		return false
	}
	spki, err := keys.MarshalPublicKeyPKIX(rawPub)
	if err != nil {
		return false
	}
	parsed, err := x509.ParsePKIXPublicKey(spki)
	if err != nil {
		return false
	}
	pub, ok := parsed.(ed25519.PublicKey)
	if !ok {
		return false
	}

	sig, err := hex.DecodeString(sigHex)
	if err != nil || len(sig) != keys.SignatureSize {
		return false
	}
	msg, err := SignInput(p)
	if err != nil {
		return false
	}
	return ed25519.Verify(pub, msg, sig)
}
