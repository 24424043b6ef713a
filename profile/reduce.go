package profile

import "aieos.dev/identity/canonical"

// SignInput returns the canonical bytes the profile signature is computed
// over.
//
// The profile is deep-copied and its metadata replaced by a mapping holding
// only public_key (taken from the original metadata, or "" if absent), then
// serialized canonically. Server-assigned or mutable metadata (entity id,
// alias, the stored signature itself) is therefore never part of what the
// signature attests to. The caller's profile is never mutated: callers write
// metadata.signature in place after signing and must be able to recompute the
// same input afterwards.
func SignInput(p Profile) ([]byte, error) {
	reduced := p.Clone()
	if reduced == nil {
		reduced = Profile{}
	}
	reduced[MetadataField] = map[string]any{PublicKeyField: p.PublicKeyHex()}
	b, err := canonical.Marshal(map[string]any(reduced))
	if err != nil {
		return nil, wrapError(KindCanonical, RuleCanonicalize, "profile is not canonically serializable", err)
	}
	return b, nil
}
