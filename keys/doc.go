// Package keys owns keypair generation and the encoding conversions between
// raw fixed-length Ed25519 key material and the standard DER containers
// (PKCS#8 for the private seed, PKIX/SPKI for the public key).
//
// Stable:
//   - Keypair generation, container splicing, hex parsing.
//
// Experimental:
//   - Filesystem identity persistence and the Dilithium3 co-attestation
//     helpers. These are local-first utilities, not part of the signing
//     protocol contract.
package keys
