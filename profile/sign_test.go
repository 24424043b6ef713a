package profile

import (
	"bytes"
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"strings"
	"testing"

	"aieos.dev/identity/keys"
)

// testKeypair derives a deterministic keypair from a repeated fill byte.
func testKeypair(t *testing.T, fill byte) (pubHex, seedHex string) {
	t.Helper()
	seed := bytes.Repeat([]byte{fill}, ed25519.SeedSize)
	priv := ed25519.NewKeyFromSeed(seed)
	pub := priv.Public().(ed25519.PublicKey)
	return hex.EncodeToString(pub), hex.EncodeToString(seed)
}

func agentProfile(t *testing.T, pubHex, name string) Profile {
	t.Helper()
	return parseProfile(t, `{
		"standard": {"protocol": "AIEOS", "version": "1.2"},
		"identity": {"names": ["`+name+`"]},
		"metadata": {"public_key": "`+pubHex+`", "signature": ""}
	}`)
}

func TestSignVerify_RoundTrip(t *testing.T) {
	pubHex, seedHex := testKeypair(t, 0x11)
	p := agentProfile(t, pubHex, "Ada")

	sig, err := Sign(p, seedHex)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if len(sig) != 2*keys.SignatureSize {
		t.Fatalf("signature hex length %d, want %d", len(sig), 2*keys.SignatureSize)
	}
	if sig != strings.ToLower(sig) {
		t.Fatalf("signature is not lowercase hex: %s", sig)
	}

	p.SetSignature(sig)
	if !Verify(p) {
		t.Fatalf("freshly signed profile does not verify")
	}
}

func TestSign_Deterministic(t *testing.T) {
	pubHex, seedHex := testKeypair(t, 0x22)
	p := agentProfile(t, pubHex, "Ada")

	first, err := Sign(p, seedHex)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	second, err := Sign(p, seedHex)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if first != second {
		t.Fatalf("signatures differ across identical signing runs")
	}
}

func TestSign_MatchesStdlibVerify(t *testing.T) {
	pubHex, seedHex := testKeypair(t, 0x33)
	p := agentProfile(t, pubHex, "Ada")

	sigHex, err := Sign(p, seedHex)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	sig, err := hex.DecodeString(sigHex)
	if err != nil {
		t.Fatalf("decode signature: %v", err)
	}
	msg := signInput(t, p)

	seed, _ := hex.DecodeString(seedHex)
	pub := ed25519.NewKeyFromSeed(seed).Public().(ed25519.PublicKey)
	if !ed25519.Verify(pub, msg, sig) {
		t.Fatalf("signature does not verify against the canonical sign input")
	}
}

func TestVerify_DetectsTamper(t *testing.T) {
	pubHex, seedHex := testKeypair(t, 0x44)
	p := agentProfile(t, pubHex, "Ada")

	sig, err := Sign(p, seedHex)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	p.SetSignature(sig)
	if !Verify(p) {
		t.Fatalf("signed profile does not verify")
	}

	p["identity"].(map[string]any)["names"] = []any{"Eve"}
	if Verify(p) {
		t.Fatalf("tampered profile still verifies")
	}

	p["identity"].(map[string]any)["names"] = []any{"Ada"}
	if !Verify(p) {
		t.Fatalf("restored profile no longer verifies")
	}
}

func TestVerify_IgnoresMetadataExtras(t *testing.T) {
	pubHex, seedHex := testKeypair(t, 0x55)
	p := agentProfile(t, pubHex, "Ada")

	sig, err := Sign(p, seedHex)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	p.SetSignature(sig)

	md := p.Metadata()
	md["alias"] = "agent-ada"
	md["entity_id"] = "e-42"
	md["attempt"] = json.Number("7")
	if !Verify(p) {
		t.Fatalf("metadata extras broke verification")
	}
}

func TestSign_InvalidKeyHex(t *testing.T) {
	p := agentProfile(t, "aa", "Ada")
	_, err := Sign(p, "not-hex-at-all")
	if err == nil {
		t.Fatalf("expected error for non-hex key")
	}
	if !IsKind(err, KindKey) || RuleID(err) != RuleInvalidKeyHex {
		t.Fatalf("unexpected error classification: kind ok=%v rule=%s", IsKind(err, KindKey), RuleID(err))
	}
}

func TestSign_InvalidKeyLength(t *testing.T) {
	p := agentProfile(t, "aa", "Ada")
	for _, n := range []int{0, 16, 31, 33, 64} {
		seedHex := strings.Repeat("ab", n)
		_, err := Sign(p, seedHex)
		if err == nil {
			t.Fatalf("expected error for %d-byte key", n)
		}
		if RuleID(err) != RuleInvalidKeyLength {
			t.Fatalf("%d-byte key: got rule %s, want %s", n, RuleID(err), RuleInvalidKeyLength)
		}
	}
}

func TestVerify_NeverErrors(t *testing.T) {
	pubHex, _ := testKeypair(t, 0x66)
	cases := map[string]Profile{
		"nil profile":        nil,
		"empty profile":      {},
		"empty metadata":     parseProfile(t, `{"metadata":{}}`),
		"metadata not a map": parseProfile(t, `{"metadata":"x"}`),
		"missing signature":  parseProfile(t, `{"metadata":{"public_key":"`+pubHex+`"}}`),
		"missing public key": parseProfile(t, `{"metadata":{"signature":"`+strings.Repeat("ab", 64)+`"}}`),
		"public key not a string": parseProfile(t,
			`{"metadata":{"public_key":7,"signature":"`+strings.Repeat("ab", 64)+`"}}`),
		"public key not hex": parseProfile(t,
			`{"metadata":{"public_key":"zz","signature":"`+strings.Repeat("ab", 64)+`"}}`),
		"public key wrong length": parseProfile(t,
			`{"metadata":{"public_key":"abcd","signature":"`+strings.Repeat("ab", 64)+`"}}`),
		"signature not hex": parseProfile(t,
			`{"metadata":{"public_key":"`+pubHex+`","signature":"zz"}}`),
		"signature wrong length": parseProfile(t,
			`{"metadata":{"public_key":"`+pubHex+`","signature":"abcd"}}`),
		"signature forged": parseProfile(t,
			`{"metadata":{"public_key":"`+pubHex+`","signature":"`+strings.Repeat("ab", 64)+`"}}`),
	}
	for name, p := range cases {
		if Verify(p) {
			t.Fatalf("%s: Verify returned true", name)
		}
	}
}

func TestVerify_AfterJSONRoundTrip(t *testing.T) {
	pubHex, seedHex := testKeypair(t, 0x77)
	p := agentProfile(t, pubHex, "Ada")
	p["capabilities"] = map[string]any{"max_tokens": json.Number("8192")}

	sig, err := Sign(p, seedHex)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	p.SetSignature(sig)

	wire, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	decoded, err := Parse(wire)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !Verify(decoded) {
		t.Fatalf("profile does not verify after a JSON round trip")
	}
}
