// Package profile implements the canonical-identity-signing protocol for
// agent profiles.
//
// A profile is an open-ended JSON record carrying a metadata block with the
// owner's public key and signature. The signature never covers mutable or
// server-assigned metadata: before signing, the profile is reduced so that
// metadata contains only the public key, then serialized with package
// canonical. Sign and Verify are deliberately asymmetric: signing is an
// operator action whose failures are loud, while verification consumes
// untrusted input and only ever answers true or false.
package profile
