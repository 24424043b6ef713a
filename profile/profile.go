package profile

import (
	"bytes"
	"encoding/json"
)

// Field names the protocol reads from a profile's metadata block.
const (
	MetadataField  = "metadata"
	PublicKeyField = "public_key"
	SignatureField = "signature"
)

// Profile is an open-ended identity record: string keys mapped to arbitrary
// JSON-like values. The protocol only requires a metadata mapping carrying
// public_key and signature; everything else (standard, identity, capabilities,
// endpoints, ...) passes through the signing reduction untouched.
type Profile map[string]any

// Parse decodes JSON bytes into a Profile. Numbers decode as json.Number so
// their lexemes survive re-serialization.
func Parse(b []byte) (Profile, error) {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var p Profile
	if err := dec.Decode(&p); err != nil {
		return nil, err
	}
	return p, nil
}

// Metadata returns the profile's metadata mapping, or nil if absent or not a
// mapping.
func (p Profile) Metadata() map[string]any {
	md, _ := p[MetadataField].(map[string]any)
	return md
}

// PublicKeyHex returns metadata.public_key, or "" if absent.
func (p Profile) PublicKeyHex() string {
	s, _ := p.Metadata()[PublicKeyField].(string)
	return s
}

// SignatureHex returns metadata.signature, or "" if absent.
func (p Profile) SignatureHex() string {
	s, _ := p.Metadata()[SignatureField].(string)
	return s
}

// SetSignature stores sigHex in metadata.signature, creating the metadata
// mapping if needed. This is the one in-place mutation the calling layer
// performs after signing.
func (p Profile) SetSignature(sigHex string) {
	md := p.Metadata()
	if md == nil {
		md = make(map[string]any, 2)
		p[MetadataField] = md
	}
	md[SignatureField] = sigHex
}

// Clone returns a structural deep copy of the profile. Mutating the copy
// never affects the original.
func (p Profile) Clone() Profile {
	if p == nil {
		return nil
	}
	out := make(Profile, len(p))
	for k, v := range p {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch x := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, el := range x {
			out[k] = cloneValue(el)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, el := range x {
			out[i] = cloneValue(el)
		}
		return out
	default:
		// Scalars (string, bool, numbers, nil) are immutable.
		return x
	}
}
