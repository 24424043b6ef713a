package keys

import (
	"testing"
)

// deterministicReader yields a repeatable byte stream so keypairs are stable
// across test runs.
type deterministicReader struct{ next byte }

func (r *deterministicReader) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = r.next
		r.next++
	}
	return len(p), nil
}

func TestDilithium3Attestation(t *testing.T) {
	pub, priv, err := GenerateDilithium3Keypair(&deterministicReader{})
	if err != nil {
		t.Fatalf("generate keypair: %v", err)
	}

	msg := []byte(`{"metadata":{"public_key":"aa"}}`)
	for _, alg := range []string{"sha256", "sha512", "sha3-256"} {
		sig, err := AttestDilithium3(msg, alg, priv)
		if err != nil {
			t.Fatalf("%s: attest: %v", alg, err)
		}
		ok, err := VerifyDilithium3(msg, alg, pub, sig)
		if err != nil {
			t.Fatalf("%s: verify: %v", alg, err)
		}
		if !ok {
			t.Fatalf("%s: attestation does not verify", alg)
		}

		tampered := append([]byte(nil), msg...)
		tampered[0] = '['
		ok, err = VerifyDilithium3(tampered, alg, pub, sig)
		if err != nil {
			t.Fatalf("%s: verify tampered: %v", alg, err)
		}
		if ok {
			t.Fatalf("%s: tampered message still verifies", alg)
		}
	}
}

func TestDilithium3Attestation_Errors(t *testing.T) {
	pub, priv, err := GenerateDilithium3Keypair(&deterministicReader{next: 7})
	if err != nil {
		t.Fatalf("generate keypair: %v", err)
	}
	msg := []byte("msg")

	if _, err := AttestDilithium3(msg, "md5", priv); err == nil {
		t.Fatalf("unsupported hash accepted on attest")
	}
	if _, err := AttestDilithium3(msg, "sha256", nil); err == nil {
		t.Fatalf("nil private key accepted")
	}
	if _, err := VerifyDilithium3(msg, "sha256", nil, ""); err == nil {
		t.Fatalf("nil public key accepted")
	}
	if _, err := VerifyDilithium3(msg, "sha256", pub, "!!not-base64!!"); err == nil {
		t.Fatalf("invalid base64 accepted")
	}
	if _, err := VerifyDilithium3(msg, "sha256", pub, "YWJj"); err == nil {
		t.Fatalf("short signature accepted")
	}
}
