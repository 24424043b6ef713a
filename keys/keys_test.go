package keys

import (
	"bytes"
	"crypto/ed25519"
	"crypto/x509"
	"encoding/hex"
	"strings"
	"testing"
)

// The container prefixes are fixed constants. These tests pin them against
// crypto/x509, the known-good encoder.

func TestPKCS8Prefix_MatchesX509(t *testing.T) {
	seed := bytes.Repeat([]byte{0x5a}, SeedSize)
	priv := ed25519.NewKeyFromSeed(seed)

	want, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		t.Fatalf("x509 marshal: %v", err)
	}
	got, err := MarshalSeedPKCS8(seed)
	if err != nil {
		t.Fatalf("MarshalSeedPKCS8: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("spliced PKCS#8 differs from x509:\n got %x\nwant %x", got, want)
	}

	back, err := ParsePKCS8Seed(want)
	if err != nil {
		t.Fatalf("ParsePKCS8Seed: %v", err)
	}
	if !bytes.Equal(back, seed) {
		t.Fatalf("seed round trip mismatch")
	}
}

func TestSPKIPrefix_MatchesX509(t *testing.T) {
	seed := bytes.Repeat([]byte{0xa5}, SeedSize)
	pub := ed25519.NewKeyFromSeed(seed).Public().(ed25519.PublicKey)

	want, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		t.Fatalf("x509 marshal: %v", err)
	}
	got, err := MarshalPublicKeyPKIX(pub)
	if err != nil {
		t.Fatalf("MarshalPublicKeyPKIX: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("spliced SPKI differs from x509:\n got %x\nwant %x", got, want)
	}

	back, err := ParsePKIXPublicKey(want)
	if err != nil {
		t.Fatalf("ParsePKIXPublicKey: %v", err)
	}
	if !bytes.Equal(back, []byte(pub)) {
		t.Fatalf("public key round trip mismatch")
	}
}

func TestContainerHeaders_KnownVectors(t *testing.T) {
	// RFC 8410 headers for OID 1.3.101.112.
	if got := hex.EncodeToString(pkcs8Prefix); got != "302e020100300506032b657004220420" {
		t.Fatalf("pkcs8 prefix drifted: %s", got)
	}
	if got := hex.EncodeToString(spkiPrefix); got != "302a300506032b6570032100" {
		t.Fatalf("spki prefix drifted: %s", got)
	}
}

func TestContainerParsers_RejectMalformed(t *testing.T) {
	if _, err := ParsePKCS8Seed([]byte{0x30, 0x2e}); err == nil {
		t.Fatalf("short PKCS#8 accepted")
	}
	bad := append(append([]byte(nil), pkcs8Prefix...), bytes.Repeat([]byte{1}, SeedSize)...)
	bad[0] = 0x31
	if _, err := ParsePKCS8Seed(bad); err == nil {
		t.Fatalf("corrupted PKCS#8 header accepted")
	}

	if _, err := ParsePKIXPublicKey([]byte{0x30}); err == nil {
		t.Fatalf("short SPKI accepted")
	}
	bad = append(append([]byte(nil), spkiPrefix...), bytes.Repeat([]byte{1}, PublicKeySize)...)
	bad[3] = 0xff
	if _, err := ParsePKIXPublicKey(bad); err == nil {
		t.Fatalf("corrupted SPKI header accepted")
	}

	if _, err := MarshalSeedPKCS8(make([]byte, SeedSize-1)); err == nil {
		t.Fatalf("short seed accepted")
	}
	if _, err := MarshalPublicKeyPKIX(make([]byte, PublicKeySize+1)); err == nil {
		t.Fatalf("long public key accepted")
	}
}

func TestGenerate(t *testing.T) {
	kp, err := Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(kp.PublicKey) != 2*PublicKeySize || len(kp.PrivateKey) != 2*SeedSize {
		t.Fatalf("unexpected hex lengths: pub=%d priv=%d", len(kp.PublicKey), len(kp.PrivateKey))
	}
	if kp.PublicKey != strings.ToLower(kp.PublicKey) || kp.PrivateKey != strings.ToLower(kp.PrivateKey) {
		t.Fatalf("keys are not lowercase hex")
	}

	seed, err := hex.DecodeString(kp.PrivateKey)
	if err != nil {
		t.Fatalf("private key is not hex: %v", err)
	}
	pub := ed25519.NewKeyFromSeed(seed).Public().(ed25519.PublicKey)
	if hex.EncodeToString(pub) != kp.PublicKey {
		t.Fatalf("public key does not correspond to the seed")
	}

	other, err := Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if other.PrivateKey == kp.PrivateKey {
		t.Fatalf("two generated keypairs share a seed")
	}
}

func TestParseSeedHex(t *testing.T) {
	seed := bytes.Repeat([]byte{0x0f}, SeedSize)
	want := hex.EncodeToString(seed)

	for _, in := range []string{want, "0x" + want, "  " + want + "\n"} {
		got, err := ParseSeedHex(in)
		if err != nil {
			t.Fatalf("ParseSeedHex(%q): %v", in, err)
		}
		if !bytes.Equal(got, seed) {
			t.Fatalf("ParseSeedHex(%q) mismatch", in)
		}
	}

	for _, in := range []string{"", "zz", want[:62], want + "ab"} {
		if _, err := ParseSeedHex(in); err == nil {
			t.Fatalf("ParseSeedHex(%q) accepted", in)
		}
	}
}

func TestParsePublicKeyHex(t *testing.T) {
	pub := bytes.Repeat([]byte{0xf0}, PublicKeySize)
	want := hex.EncodeToString(pub)

	got, err := ParsePublicKeyHex("0x" + want)
	if err != nil {
		t.Fatalf("ParsePublicKeyHex: %v", err)
	}
	if !bytes.Equal(got, pub) {
		t.Fatalf("ParsePublicKeyHex mismatch")
	}

	if _, err := ParsePublicKeyHex(want[:10]); err == nil {
		t.Fatalf("short public key accepted")
	}
}
