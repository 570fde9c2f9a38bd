package sqlerr

import "strings"

// classifyPostgres, classifyMysql, classifyMssql and classifySqlite each
// implement the per-dialect half of §7's quaint_error_to_connector_error
// equivalent: recognize a handful of well-known driver message shapes and
// map them to a typed Kind; anything else degrades to Other with the
// original driver message preserved untouched.

func classifyPostgres(msg string, cause error) *Error {
	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "database") && strings.Contains(lower, "does not exist"):
		return &Error{Kind: KindDatabaseDoesNotExist, Message: msg, cause: cause}
	case strings.Contains(lower, "already exists") && strings.Contains(lower, "database"):
		return &Error{Kind: KindDatabaseAlreadyExists, Message: msg, cause: cause}
	case strings.Contains(lower, "password authentication failed"):
		return &Error{Kind: KindAuthenticationFailed, Message: msg, cause: cause}
	case strings.Contains(lower, "permission denied"):
		return &Error{Kind: KindDatabaseAccessDenied, Message: msg, cause: cause}
	case strings.Contains(lower, "connection refused") || strings.Contains(lower, "no such host"):
		return &Error{Kind: KindConnectionError, Message: msg, cause: cause}
	case strings.Contains(lower, "ssl") || strings.Contains(lower, "tls"):
		return &Error{Kind: KindTLSError, Message: msg, cause: cause}
	case strings.Contains(lower, "timeout"):
		return &Error{Kind: KindTimeout, Message: msg, cause: cause}
	default:
		return &Error{Kind: KindOther, Message: msg, cause: cause}
	}
}

func classifyMysql(msg string, cause error) *Error {
	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "unknown database"):
		return &Error{Kind: KindDatabaseDoesNotExist, Message: msg, cause: cause}
	case strings.Contains(lower, "database exists"):
		return &Error{Kind: KindDatabaseAlreadyExists, Message: msg, cause: cause}
	case strings.Contains(lower, "access denied for user"):
		return &Error{Kind: KindAuthenticationFailed, Message: msg, cause: cause}
	case strings.Contains(lower, "access denied"):
		return &Error{Kind: KindDatabaseAccessDenied, Message: msg, cause: cause}
	case strings.Contains(lower, "connection refused") || strings.Contains(lower, "no such host"):
		return &Error{Kind: KindConnectionError, Message: msg, cause: cause}
	case strings.Contains(lower, "timeout") || strings.Contains(lower, "i/o timeout"):
		return &Error{Kind: KindTimeout, Message: msg, cause: cause}
	default:
		return &Error{Kind: KindOther, Message: msg, cause: cause}
	}
}

func classifyMssql(msg string, cause error) *Error {
	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "cannot open database") || strings.Contains(lower, "login failed"):
		if strings.Contains(lower, "login failed") {
			return &Error{Kind: KindAuthenticationFailed, Message: msg, cause: cause}
		}
		return &Error{Kind: KindDatabaseDoesNotExist, Message: msg, cause: cause}
	case strings.Contains(lower, "database") && strings.Contains(lower, "already exists"):
		return &Error{Kind: KindDatabaseAlreadyExists, Message: msg, cause: cause}
	case strings.Contains(lower, "permission"):
		return &Error{Kind: KindDatabaseAccessDenied, Message: msg, cause: cause}
	case strings.Contains(lower, "timeout"):
		return &Error{Kind: KindTimeout, Message: msg, cause: cause}
	default:
		return &Error{Kind: KindOther, Message: msg, cause: cause}
	}
}

func classifySqlite(msg string, cause error) *Error {
	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "unable to open database file"):
		return &Error{Kind: KindDatabaseDoesNotExist, Message: msg, cause: cause}
	case strings.Contains(lower, "locked") || strings.Contains(lower, "busy"):
		return &Error{Kind: KindTimeout, Message: msg, cause: cause}
	default:
		return &Error{Kind: KindOther, Message: msg, cause: cause}
	}
}
