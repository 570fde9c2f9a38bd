// Package sqlerr defines the typed error union every fallible core
// operation returns (spec §7). No component in this module uses panic or
// exception-style control flow: I/O components propagate one of the
// sentinel kinds below (wrapped with context via errx), pure components
// (differ, renderer, calculator, pairing) append to a Diagnostics list
// instead and keep going.
package sqlerr

import (
	"errors"
	"fmt"

	"github.com/go-extras/errx"
)

// Kind identifies which branch of the §7 error union an error belongs to.
type Kind int

const (
	KindOther Kind = iota
	KindDatabaseDoesNotExist
	KindDatabaseAlreadyExists
	KindDatabaseAccessDenied
	KindAuthenticationFailed
	KindConnectTimeout
	KindTimeout
	KindTLSError
	KindConnectionError
	KindSchemaParserError
	KindNativeTypeParseError
	KindDestructiveChange
	KindShadowDbEqualsMainDb
	KindMigrationFailedToApply
	KindIntrospectionResultEmpty
	KindLockAcquisitionFailed
)

func (k Kind) String() string {
	switch k {
	case KindDatabaseDoesNotExist:
		return "DatabaseDoesNotExist"
	case KindDatabaseAlreadyExists:
		return "DatabaseAlreadyExists"
	case KindDatabaseAccessDenied:
		return "DatabaseAccessDenied"
	case KindAuthenticationFailed:
		return "AuthenticationFailed"
	case KindConnectTimeout:
		return "ConnectTimeout"
	case KindTimeout:
		return "Timeout"
	case KindTLSError:
		return "TlsError"
	case KindConnectionError:
		return "ConnectionError"
	case KindSchemaParserError:
		return "SchemaParserError"
	case KindNativeTypeParseError:
		return "NativeTypeParseError"
	case KindDestructiveChange:
		return "DestructiveChange"
	case KindShadowDbEqualsMainDb:
		return "ShadowDbEqualsMainDb"
	case KindMigrationFailedToApply:
		return "MigrationFailedToApply"
	case KindIntrospectionResultEmpty:
		return "IntrospectionResultEmpty"
	case KindLockAcquisitionFailed:
		return "LockAcquisitionFailed"
	default:
		return "Other"
	}
}

// Error is the concrete value carried by every Kind above. Fields not
// meaningful for a given Kind are left zero.
type Error struct {
	Kind    Kind
	DBName  string
	User    string
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return e.Kind.String()
}

func (e *Error) Unwrap() error { return e.cause }

// Is lets errors.Is(err, &sqlerr.Error{Kind: sqlerr.KindConnectTimeout}) work by comparing
// kinds rather than identity, since each call site builds its own Error
// value.
func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return e.Kind == other.Kind
	}
	return false
}

// New builds a typed Error, wrapping cause (if any) with errx so the
// resulting error carries both a human message and a traceable cause —
// the same pattern the rest of the corpus uses errx.Wrap for.
func New(kind Kind, message string, cause error, attrs ...any) *Error {
	wrapped := cause
	if cause != nil {
		wrapped = errx.Wrap(message, cause, errx.Attrs(attrs...))
	}
	return &Error{Kind: kind, Message: message, cause: wrapped}
}

func DatabaseDoesNotExist(dbName string) *Error {
	return &Error{Kind: KindDatabaseDoesNotExist, DBName: dbName, Message: fmt.Sprintf("database %q does not exist", dbName)}
}

func DatabaseAlreadyExists(dbName string) *Error {
	return &Error{Kind: KindDatabaseAlreadyExists, DBName: dbName, Message: fmt.Sprintf("database %q already exists", dbName)}
}

func DatabaseAccessDenied(dbName string) *Error {
	return &Error{Kind: KindDatabaseAccessDenied, DBName: dbName, Message: fmt.Sprintf("access denied to database %q", dbName)}
}

func AuthenticationFailed(user string) *Error {
	return &Error{Kind: KindAuthenticationFailed, User: user, Message: fmt.Sprintf("authentication failed for user %q", user)}
}

func ConnectTimeout(cause error) *Error {
	return New(KindConnectTimeout, "connect timed out", cause)
}

func Timeout(cause error) *Error {
	return New(KindTimeout, "operation timed out", cause)
}

func TLSError(message string) *Error {
	return &Error{Kind: KindTLSError, Message: message}
}

func ConnectionError(cause error) *Error {
	return New(KindConnectionError, "connection error", cause)
}

// SchemaParserError carries a list of diagnostics, never a single message,
// per §7.
func SchemaParserError(diagnostics []string) *Error {
	return &Error{Kind: KindSchemaParserError, Message: fmt.Sprintf("%d diagnostic(s): %v", len(diagnostics), diagnostics)}
}

func NativeTypeParseError(name string, span string) *Error {
	return &Error{Kind: KindNativeTypeParseError, Message: fmt.Sprintf("cannot parse native type %q at %s", name, span)}
}

// DestructiveChange builds the §7 DestructiveChange{warnings, unexecutable}
// error. It is the only one of these constructors callers are expected to
// recover from programmatically (by retrying with force=true) rather than
// simply surfacing, so both lists are carried on the value, not just
// folded into Message.
type DestructiveChangeError struct {
	*Error
	Warnings     []string
	Unexecutable []string
}

func DestructiveChange(warnings, unexecutable []string) *DestructiveChangeError {
	msg := fmt.Sprintf("%d unexecutable, %d warning destructive change(s); pass force=true to proceed past unexecutable changes", len(unexecutable), len(warnings))
	return &DestructiveChangeError{
		Error:        &Error{Kind: KindDestructiveChange, Message: msg},
		Warnings:     warnings,
		Unexecutable: unexecutable,
	}
}

func ShadowDbEqualsMainDb() *Error {
	return &Error{Kind: KindShadowDbEqualsMainDb, Message: "shadow database must not equal the main database"}
}

func MigrationFailedToApply(name string, cause error) *Error {
	return New(KindMigrationFailedToApply, fmt.Sprintf("migration %q failed to apply", name), cause)
}

func IntrospectionResultEmpty() *Error {
	return &Error{Kind: KindIntrospectionResultEmpty, Message: "introspection produced an empty result"}
}

func LockAcquisitionFailed(cause error) *Error {
	return New(KindLockAcquisitionFailed, "failed to acquire migration lock", cause)
}

func Other(message string, cause error) *Error {
	return New(KindOther, message, cause)
}

// Classify maps a raw driver error to one of the typed kinds above,
// following §7's "map known user-facing patterns ... leave the rest as
// Other" policy. driverHint identifies which dialect produced err so the
// pattern list can stay dialect-specific without a type switch on the
// driver's own error type (each driver has a different one).
func Classify(driverHint string, err error) *Error {
	if err == nil {
		return nil
	}
	var typed *Error
	if errors.As(err, &typed) {
		return typed
	}

	msg := err.Error()
	switch driverHint {
	case "postgres":
		return classifyPostgres(msg, err)
	case "mysql":
		return classifyMysql(msg, err)
	case "mssql":
		return classifyMssql(msg, err)
	case "sqlite":
		return classifySqlite(msg, err)
	default:
		return Other(msg, err)
	}
}
