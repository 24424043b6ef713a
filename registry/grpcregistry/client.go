package grpcregistry

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"aieos.dev/identity/profile"
	"aieos.dev/identity/registry"
)

// Client wraps the Registry gRPC service behind the same shapes the HTTP
// client exposes.
type Client struct {
	cc     *grpc.ClientConn
	client RegistryClient

	// Timeout applies per RPC when non-zero.
	Timeout time.Duration
}

type DialOptions struct {
	// Timeout applies to the initial dial when non-zero.
	Timeout time.Duration

	// MaxMsgBytes sets both send/recv max sizes when non-zero.
	MaxMsgBytes int
}

func Dial(target string, opts DialOptions) (*Client, error) {
	dialOpts := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	}
	if opts.MaxMsgBytes > 0 {
		dialOpts = append(dialOpts,
			grpc.WithDefaultCallOptions(
				grpc.MaxCallRecvMsgSize(opts.MaxMsgBytes),
				grpc.MaxCallSendMsgSize(opts.MaxMsgBytes),
			),
		)
	}

	ctx := context.Background()
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	cc, err := grpc.DialContext(ctx, target, dialOpts...)
	if err != nil {
		return nil, err
	}
	return &Client{cc: cc, client: NewRegistryClient(cc)}, nil
}

// NewClient wraps an existing connection (useful with bufconn in tests).
func NewClient(cc *grpc.ClientConn) *Client {
	return &Client{cc: cc, client: NewRegistryClient(cc)}
}

func (c *Client) Close() error {
	if c == nil || c.cc == nil {
		return nil
	}
	return c.cc.Close()
}

// Register submits a signed profile and returns the server-assigned entity id.
// The signature is checked locally before the RPC is made.
func (c *Client) Register(p profile.Profile) (string, error) {
	if !profile.Verify(p) {
		return "", ErrUnsignedProfile
	}
	body, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("grpcregistry: encode profile: %w", err)
	}
	ctx, cancel := c.ctx()
	defer cancel()
	reply, err := c.client.Register(ctx, wrapperspb.Bytes(body))
	if err != nil {
		return "", mapRPC(err)
	}
	return reply.GetValue(), nil
}

// Update replaces a registered profile.
func (c *Client) Update(entityID string, p profile.Profile) (*registry.Record, error) {
	if !profile.Verify(p) {
		return nil, ErrUnsignedProfile
	}
	body, err := json.Marshal(registry.Record{EntityID: entityID, Profile: p})
	if err != nil {
		return nil, fmt.Errorf("grpcregistry: encode record: %w", err)
	}
	ctx, cancel := c.ctx()
	defer cancel()
	reply, err := c.client.Update(ctx, wrapperspb.Bytes(body))
	if err != nil {
		return nil, mapRPC(err)
	}
	return decodeRecord(reply.GetValue())
}

// Lookup fetches a record and reports whether its profile verifies.
func (c *Client) Lookup(entityID string) (*registry.Record, bool, error) {
	ctx, cancel := c.ctx()
	defer cancel()
	reply, err := c.client.Lookup(ctx, wrapperspb.String(entityID))
	if err != nil {
		return nil, false, mapRPC(err)
	}
	rec, err := decodeRecord(reply.GetValue())
	if err != nil {
		return nil, false, err
	}
	return rec, profile.Verify(rec.Profile), nil
}

// Verify asks the server whether the profile's signature verifies. Like the
// local check, transportable failures collapse to false only on the server
// side; RPC failures surface as errors.
func (c *Client) Verify(p profile.Profile) (bool, error) {
	body, err := json.Marshal(p)
	if err != nil {
		return false, fmt.Errorf("grpcregistry: encode profile: %w", err)
	}
	ctx, cancel := c.ctx()
	defer cancel()
	reply, err := c.client.Verify(ctx, wrapperspb.Bytes(body))
	if err != nil {
		return false, mapRPC(err)
	}
	return reply.GetValue(), nil
}

func (c *Client) ctx() (context.Context, context.CancelFunc) {
	if c.Timeout <= 0 {
		return context.WithCancel(context.Background())
	}
	return context.WithTimeout(context.Background(), c.Timeout)
}

func decodeRecord(b []byte) (*registry.Record, error) {
	var rec registry.Record
	if err := json.Unmarshal(b, &rec); err != nil {
		return nil, fmt.Errorf("grpcregistry: decode record: %w", err)
	}
	return &rec, nil
}

func mapRPC(err error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return err
	}

	switch st.Code() {
	case codes.NotFound:
		return ErrNotFound
	case codes.InvalidArgument:
		return ErrInvalidProfile
	case codes.FailedPrecondition:
		return ErrUnsignedProfile
	default:
		// Best-effort: if the server sent a known error message, preserve it.
		switch st.Message() {
		case ErrNotFound.Error():
			return ErrNotFound
		case ErrInvalidProfile.Error():
			return ErrInvalidProfile
		case ErrUnsignedProfile.Error():
			return ErrUnsignedProfile
		default:
			return err
		}
	}
}
