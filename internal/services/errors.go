package services

import (
	"errors"
	"sort"
	"strings"
)

var (
	// ErrInvalidArgument reports malformed input such as a blank subject.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrTokenInvalid reports a bad signature, malformed structure or expired token.
	ErrTokenInvalid = errors.New("token invalid")
	// ErrPrincipalNotFound reports a subject with no matching credential record.
	ErrPrincipalNotFound = errors.New("principal not found")
	// ErrBadCredentials reports a failed email/password check.
	ErrBadCredentials = errors.New("bad credentials")
	// ErrAuthorizationDenied reports a principal that fails a requirement.
	ErrAuthorizationDenied = errors.New("authorization denied")
	// ErrEmailInUse reports an attempt to register an existing email.
	ErrEmailInUse = errors.New("email already in use")
)

// ValidationError aggregates field-level input errors.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	msgs := make([]string, 0, len(keys))
	for _, k := range keys {
		msgs = append(msgs, e.Fields[k])
	}
	return strings.Join(msgs, " | ")
}

// Is lets errors.Is(err, ErrInvalidArgument) match validation failures.
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidArgument
}
