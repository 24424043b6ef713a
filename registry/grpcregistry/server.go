package grpcregistry

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/google/uuid"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"aieos.dev/identity/profile"
	"aieos.dev/identity/registry"
)

// Store errors the transport maps to gRPC status codes.
var (
	ErrNotFound        = errors.New("grpcregistry: entity not found")
	ErrInvalidProfile  = errors.New("grpcregistry: invalid profile")
	ErrUnsignedProfile = errors.New("grpcregistry: profile signature does not verify")
)

// Store persists registry records for the gRPC server.
type Store interface {
	Register(rec registry.Record) (entityID string, err error)
	Update(entityID string, p profile.Profile) (registry.Record, error)
	Lookup(entityID string) (registry.Record, error)
}

// Server exposes a Store over the Registry gRPC service.
//
// Signature checking happens at this boundary: unsigned or invalid profiles
// never reach the Store.
type Server struct {
	UnimplementedRegistryServer
	Store Store
}

func (s *Server) Register(ctx context.Context, in *wrapperspb.BytesValue) (*wrapperspb.StringValue, error) {
	_ = ctx
	if s == nil || s.Store == nil {
		return nil, status.Error(codes.FailedPrecondition, "missing store")
	}
	p, err := profile.Parse(in.GetValue())
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, ErrInvalidProfile.Error())
	}
	if !profile.Verify(p) {
		return nil, status.Error(codes.FailedPrecondition, ErrUnsignedProfile.Error())
	}
	alias, _ := p.Metadata()["alias"].(string)
	id, err := s.Store.Register(registry.Record{
		Alias:      alias,
		Registered: true,
		Profile:    p,
	})
	if err != nil {
		return nil, mapErr(err)
	}
	return wrapperspb.String(id), nil
}

func (s *Server) Update(ctx context.Context, in *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error) {
	_ = ctx
	if s == nil || s.Store == nil {
		return nil, status.Error(codes.FailedPrecondition, "missing store")
	}
	var req registry.Record
	if err := json.Unmarshal(in.GetValue(), &req); err != nil || req.EntityID == "" {
		return nil, status.Error(codes.InvalidArgument, ErrInvalidProfile.Error())
	}
	if !profile.Verify(req.Profile) {
		return nil, status.Error(codes.FailedPrecondition, ErrUnsignedProfile.Error())
	}
	rec, err := s.Store.Update(req.EntityID, req.Profile)
	if err != nil {
		return nil, mapErr(err)
	}
	b, err := json.Marshal(rec)
	if err != nil {
		return nil, status.Error(codes.Internal, "encode record")
	}
	return wrapperspb.Bytes(b), nil
}

func (s *Server) Lookup(ctx context.Context, in *wrapperspb.StringValue) (*wrapperspb.BytesValue, error) {
	_ = ctx
	if s == nil || s.Store == nil {
		return nil, status.Error(codes.FailedPrecondition, "missing store")
	}
	if in.GetValue() == "" {
		return nil, status.Error(codes.InvalidArgument, "entity id is required")
	}
	rec, err := s.Store.Lookup(in.GetValue())
	if err != nil {
		return nil, mapErr(err)
	}
	b, err := json.Marshal(rec)
	if err != nil {
		return nil, status.Error(codes.Internal, "encode record")
	}
	return wrapperspb.Bytes(b), nil
}

func (s *Server) Verify(ctx context.Context, in *wrapperspb.BytesValue) (*wrapperspb.BoolValue, error) {
	_ = ctx
	// Verification collapses every malformed input to false, matching the
	// core protocol's verify semantics.
	p, err := profile.Parse(in.GetValue())
	if err != nil {
		return wrapperspb.Bool(false), nil
	}
	return wrapperspb.Bool(profile.Verify(p)), nil
}

func mapErr(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, ErrInvalidProfile):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, ErrUnsignedProfile):
		return status.Error(codes.FailedPrecondition, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

// MemStore is an in-memory Store for tests and single-process deployments.
type MemStore struct {
	mu      sync.Mutex
	records map[string]registry.Record
}

func NewMemStore() *MemStore {
	return &MemStore{records: make(map[string]registry.Record)}
}

func (m *MemStore) Register(rec registry.Record) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec.EntityID = uuid.NewString()
	rec.Registered = true
	m.records[rec.EntityID] = rec
	return rec.EntityID, nil
}

func (m *MemStore) Update(entityID string, p profile.Profile) (registry.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[entityID]
	if !ok {
		return registry.Record{}, ErrNotFound
	}
	rec.Profile = p
	m.records[entityID] = rec
	return rec, nil
}

func (m *MemStore) Lookup(entityID string) (registry.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[entityID]
	if !ok {
		return registry.Record{}, ErrNotFound
	}
	return rec, nil
}
