package profile

import (
	"aieos.dev/identity/canonical"
	"aieos.dev/identity/cidutil"
)

// CID returns an IPFS-compatible CIDv1 (raw + sha2-256) fingerprint of the
// full profile's canonical bytes.
//
// This is a registry/CLI convenience for referring to an exact profile
// revision; it is not part of the signature protocol (the signature covers
// the reduced form, the fingerprint covers everything).
func CID(p Profile) (string, error) {
	b, err := canonical.Marshal(map[string]any(p))
	if err != nil {
		return "", wrapError(KindCanonical, RuleCanonicalize, "profile is not canonically serializable", err)
	}
	return cidutil.Fingerprint(b), nil
}
