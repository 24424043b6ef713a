package grpcregistry

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"aieos.dev/identity/profile"
)

func signedProfile(t *testing.T, fill byte, name string) profile.Profile {
	t.Helper()
	seed := bytes.Repeat([]byte{fill}, ed25519.SeedSize)
	pub := ed25519.NewKeyFromSeed(seed).Public().(ed25519.PublicKey)

	p, err := profile.Parse([]byte(`{
		"standard": {"protocol": "AIEOS", "version": "1.2"},
		"identity": {"names": ["` + name + `"]},
		"metadata": {"public_key": "` + hex.EncodeToString(pub) + `", "signature": "", "alias": "agent"}
	}`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	sig, err := profile.Sign(p, hex.EncodeToString(seed))
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	p.SetSignature(sig)
	return p
}

func newTestClient(t *testing.T) *Client {
	t.Helper()
	lis := bufconn.Listen(1024 * 1024)
	srv := grpc.NewServer()
	RegisterRegistryServer(srv, &Server{Store: NewMemStore()})

	go func() {
		_ = srv.Serve(lis)
	}()
	t.Cleanup(srv.Stop)

	dialer := func(ctx context.Context, s string) (net.Conn, error) { return lis.Dial() }
	cc, err := grpc.DialContext(
		context.Background(),
		"bufnet",
		grpc.WithContextDialer(dialer),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("DialContext: %v", err)
	}
	t.Cleanup(func() { cc.Close() })

	client := NewClient(cc)
	client.Timeout = 2 * time.Second
	return client
}

func TestGRPCRegistry_RoundTrip(t *testing.T) {
	client := newTestClient(t)
	p := signedProfile(t, 0x01, "Ada")

	id, err := client.Register(p)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if id == "" {
		t.Fatalf("expected a server-assigned entity id")
	}

	rec, verified, err := client.Lookup(id)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if !verified {
		t.Fatalf("stored profile does not verify")
	}
	if rec.EntityID != id || !rec.Registered {
		t.Fatalf("unexpected record: %+v", rec)
	}
	if rec.Alias != "agent" {
		t.Fatalf("alias not taken from metadata: %q", rec.Alias)
	}

	updated := signedProfile(t, 0x01, "Ada Lovelace")
	rec, err = client.Update(id, updated)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	names := rec.Profile["identity"].(map[string]any)["names"].([]any)
	if names[0] != "Ada Lovelace" {
		t.Fatalf("update did not take: %v", names)
	}
}

func TestGRPCRegistry_NotFound(t *testing.T) {
	client := newTestClient(t)

	if _, _, err := client.Lookup("missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := client.Update("missing", signedProfile(t, 0x02, "Ada")); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGRPCRegistry_RefusesUnsignedProfile(t *testing.T) {
	client := newTestClient(t)

	p := signedProfile(t, 0x03, "Ada")
	p.SetSignature("")
	if _, err := client.Register(p); !errors.Is(err, ErrUnsignedProfile) {
		t.Fatalf("expected ErrUnsignedProfile, got %v", err)
	}
}

func TestGRPCRegistry_ServerRejectsUnsigned(t *testing.T) {
	// Bypass the client-side check to exercise the server boundary.
	client := newTestClient(t)
	p := signedProfile(t, 0x04, "Ada")
	p["identity"].(map[string]any)["names"] = []any{"Eve"}

	body, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err = client.client.Register(ctx, wrapperspb.Bytes(body))
	if !errors.Is(mapRPC(err), ErrUnsignedProfile) {
		t.Fatalf("expected ErrUnsignedProfile, got %v", err)
	}
}

func TestGRPCRegistry_Verify(t *testing.T) {
	client := newTestClient(t)

	ok, err := client.Verify(signedProfile(t, 0x05, "Ada"))
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !ok {
		t.Fatalf("signed profile reported unverified")
	}

	tampered := signedProfile(t, 0x05, "Ada")
	tampered["identity"].(map[string]any)["names"] = []any{"Eve"}
	ok, err = client.Verify(tampered)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if ok {
		t.Fatalf("tampered profile reported verified")
	}
}
