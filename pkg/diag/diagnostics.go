// Package diag implements the "diagnostics-as-exceptions" re-architecture
// called for in spec §9: pure components never throw, they append to a
// Diagnostics list carried alongside their result and keep going.
package diag

import "fmt"

// Severity classifies a Diagnostic the way the destructive checker (§4.5)
// classifies a migration step: most diagnostics are informational, but
// the introspection pairing engine (§4.7) and schema calculator (§4.6)
// both need to distinguish "this needs your attention" from "this makes
// the output unusable".
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityError
)

func (s Severity) String() string {
	switch s {
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	default:
		return "info"
	}
}

// Diagnostic is one entry in a Diagnostics list. Code is a short
// machine-stable tag (e.g. "NATIVE_TYPE_UNSUPPORTED",
// "MSSQL_MULTIPLE_CASCADE_PATHS") so callers can filter without string-matching
// Message.
type Diagnostic struct {
	Severity Severity
	Code     string
	Message  string
	Subject  string // table/column/enum name the diagnostic is about, if any
}

func (d Diagnostic) String() string {
	if d.Subject != "" {
		return fmt.Sprintf("[%s] %s (%s): %s", d.Severity, d.Code, d.Subject, d.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", d.Severity, d.Code, d.Message)
}

// Diagnostics is the list every pure component returns alongside its
// best-effort result.
type Diagnostics []Diagnostic

func (ds *Diagnostics) Info(code, subject, format string, args ...any) {
	*ds = append(*ds, Diagnostic{Severity: SeverityInfo, Code: code, Subject: subject, Message: fmt.Sprintf(format, args...)})
}

func (ds *Diagnostics) Warn(code, subject, format string, args ...any) {
	*ds = append(*ds, Diagnostic{Severity: SeverityWarning, Code: code, Subject: subject, Message: fmt.Sprintf(format, args...)})
}

func (ds *Diagnostics) Error(code, subject, format string, args ...any) {
	*ds = append(*ds, Diagnostic{Severity: SeverityError, Code: code, Subject: subject, Message: fmt.Sprintf(format, args...)})
}

// HasErrors reports whether any diagnostic reached SeverityError — the
// only severity that should ever cause a caller to discard the
// accompanying result.
func (ds Diagnostics) HasErrors() bool {
	for _, d := range ds {
		if d.Severity == SeverityError {
			return true
		}
	}
	return false
}

func (ds Diagnostics) Filter(sev Severity) Diagnostics {
	var out Diagnostics
	for _, d := range ds {
		if d.Severity == sev {
			out = append(out, d)
		}
	}
	return out
}
