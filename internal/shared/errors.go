package shared

import (
	"errors"
	"fmt"
)

// ErrorKind classifies command failures so callers can match on the
// category instead of parsing messages.
type ErrorKind string

const (
	// KindMissing indicates a required field was empty.
	KindMissing ErrorKind = "missing"
	// KindInvalid indicates a value failed a numeric or range parse.
	KindInvalid ErrorKind = "invalid"
	// KindMismatch indicates a secret confirmation disagreed.
	KindMismatch ErrorKind = "mismatch"
	// KindTooShort indicates a secret shorter than the minimum.
	KindTooShort ErrorKind = "too_short"
	// KindTaken indicates a unique-name collision.
	KindTaken ErrorKind = "taken"
	// KindBadCredentials indicates login or current-secret verification failed.
	KindBadCredentials ErrorKind = "bad_credentials"
	// KindSelfDelete indicates an operator tried to delete themselves.
	KindSelfDelete ErrorKind = "self_delete"
	// KindLastAdmin indicates deleting the target would leave no admin.
	KindLastAdmin ErrorKind = "last_admin"
	// KindInUse indicates a referential-integrity refusal on delete.
	KindInUse ErrorKind = "in_use"
	// KindInsufficient indicates stock would go negative.
	KindInsufficient ErrorKind = "insufficient"
	// KindNotFound indicates the target id is absent.
	KindNotFound ErrorKind = "not_found"
	// KindStore wraps an underlying store failure.
	KindStore ErrorKind = "store"
)

// Error is the tagged failure variant returned by every command. Refs carries
// the referencing-row count for KindInUse and is zero otherwise.
type Error struct {
	Kind   ErrorKind
	Detail string
	Refs   int
	cause  error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Detail, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

// Unwrap exposes the underlying store error, if any.
func (e *Error) Unwrap() error { return e.cause }

// Is lets errors.Is match two tagged errors by kind.
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) {
		return false
	}
	return e.Kind == other.Kind
}

// Missing reports an empty required field.
func Missing(field string) *Error {
	return &Error{Kind: KindMissing, Detail: field + " is required"}
}

// Invalid reports a failed parse or out-of-range value.
func Invalid(detail string) *Error {
	return &Error{Kind: KindInvalid, Detail: detail}
}

// Mismatch reports a confirmation disagreement.
func Mismatch(detail string) *Error {
	return &Error{Kind: KindMismatch, Detail: detail}
}

// TooShort reports a secret below the minimum length.
func TooShort(min int) *Error {
	return &Error{Kind: KindTooShort, Detail: fmt.Sprintf("secret must be at least %d characters", min)}
}

// Taken reports a unique-name collision.
func Taken(name string) *Error {
	return &Error{Kind: KindTaken, Detail: name + " is already taken"}
}

// BadCredentials reports a failed credential check.
func BadCredentials() *Error {
	return &Error{Kind: KindBadCredentials, Detail: "invalid credentials"}
}

// SelfDelete reports an operator deleting their own account.
func SelfDelete() *Error {
	return &Error{Kind: KindSelfDelete, Detail: "cannot delete the signed-in operator"}
}

// LastAdmin reports deletion of the only remaining admin.
func LastAdmin() *Error {
	return &Error{Kind: KindLastAdmin, Detail: "cannot delete the last admin"}
}

// InUse reports a delete refusal with the referencing-row count.
func InUse(entity string, refs int) *Error {
	return &Error{
		Kind:   KindInUse,
		Detail: fmt.Sprintf("%s is referenced by %d record(s)", entity, refs),
		Refs:   refs,
	}
}

// Insufficient reports stock that would go negative.
func Insufficient(have, want int64) *Error {
	return &Error{Kind: KindInsufficient, Detail: fmt.Sprintf("stock %d is less than requested %d", have, want)}
}

// NotFound reports a missing target.
func NotFound(entity string) *Error {
	return &Error{Kind: KindNotFound, Detail: entity + " not found"}
}

// StoreError wraps an underlying store failure. Tagged errors pass through
// untouched so their kind survives transaction plumbing.
func StoreError(err error) error {
	if err == nil {
		return nil
	}
	var tagged *Error
	if errors.As(err, &tagged) {
		return err
	}
	return &Error{Kind: KindStore, Detail: "store failure", cause: err}
}

// KindOf extracts the kind from any error, defaulting to KindStore.
func KindOf(err error) ErrorKind {
	var tagged *Error
	if errors.As(err, &tagged) {
		return tagged.Kind
	}
	return KindStore
}
