package profile

import "errors"

// Kind is a stable category for programmatic error handling on the sign path.
//
// Callers should branch on Kind/RuleID rather than matching error strings;
// Error() text is for humans and may evolve.
type Kind string

const (
	KindKey       Kind = "Key"
	KindCanonical Kind = "Canonical"
	KindCrypto    Kind = "Crypto"
)

// Stable rule identifiers for sign-path failures.
const (
	// RuleInvalidKeyHex: the private key is not valid hexadecimal.
	RuleInvalidKeyHex = "AIEOS-KEY-101"
	// RuleInvalidKeyLength: the decoded private key is not exactly the
	// Ed25519 seed size. Never silently truncated or padded.
	RuleInvalidKeyLength = "AIEOS-KEY-102"
	// RuleKeyContainer: the reconstructed key container failed to load.
	RuleKeyContainer = "AIEOS-KEY-103"
	// RuleCanonicalize: the profile could not be canonically serialized.
	RuleCanonicalize = "AIEOS-CANON-201"
)

// Error is the sign path's structured error type.
//
// RuleID names the violated invariant (e.g. AIEOS-KEY-102). The verify path
// never returns errors; see Verify.
type Error struct {
	Kind    Kind
	RuleID  string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

func newError(kind Kind, ruleID, msg string) error {
	return &Error{Kind: kind, RuleID: ruleID, Message: msg}
}

func wrapError(kind Kind, ruleID, msg string, cause error) error {
	if cause == nil {
		return newError(kind, ruleID, msg)
	}
	return &Error{Kind: kind, RuleID: ruleID, Message: msg, Cause: cause}
}

// IsKind reports whether err is (or wraps) a *Error with the given Kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == kind
}

// RuleID returns the stable RuleID for a structured error, or "" if unknown.
func RuleID(err error) string {
	var e *Error
	if !errors.As(err, &e) {
		return ""
	}
	return e.RuleID
}
