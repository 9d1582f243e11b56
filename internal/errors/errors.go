// Package errors provides standardized error types for the nginxtls tool.
//
// The errors package defines domain-specific error types that enable
// structured error handling and consistent error messages throughout
// the application.
//
// # Error Types
//
// EngineError is the primary error type, containing:
//   - Code: Categorizes the error (PARSE, NO_MATCH, LOCKED, etc.)
//   - Message: Human-readable error description
//   - Domain: The domain name involved (if applicable)
//   - Path: The configuration file involved (if applicable)
//   - Err: The underlying wrapped error (if any)
//
// # Sentinel Errors
//
// Common error scenarios have pre-defined sentinel errors:
//
//	errors.ErrNoMatchingVHost    // no server block serves the domain
//	errors.ErrMisconfigured      // nginx rejected the configuration
//	errors.ErrLocked             // another process holds the lock
//	errors.ErrNotSupported       // nginx too old for the operation
//
// # Usage
//
// Creating domain-specific errors:
//
//	// No server block found
//	return errors.NoMatch("example.com")
//
//	// Parse failure with location
//	return errors.Parse("/etc/nginx/nginx.conf", 14, "unexpected }")
//
//	// Wrapping an underlying error
//	return errors.Wrap(errors.ErrCodeMisconfig, "reload failed", err)
//
// # Error Checking
//
// Use errors.Is for sentinel error comparison:
//
//	if errors.Is(err, errors.ErrNoMatchingVHost) {
//	    // Handle no match case
//	}
//
// Use errors.As for type assertion:
//
//	var engErr *errors.EngineError
//	if errors.As(err, &engErr) {
//	    fmt.Printf("Error code: %s, Domain: %s\n", engErr.Code, engErr.Domain)
//	}
package errors

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes errors for programmatic handling.
type ErrorCode string

// Error codes for different error categories.
const (
	ErrCodeParse       ErrorCode = "PARSE"               // Configuration text could not be parsed
	ErrCodeNoMatch     ErrorCode = "NO_MATCH"            // No server block matches the domain
	ErrCodeAmbiguous   ErrorCode = "AMBIGUOUS"           // Several equally ranked matches
	ErrCodeMisconfig   ErrorCode = "MISCONFIGURATION"    // nginx rejected or cannot serve the configuration
	ErrCodePlugin      ErrorCode = "PLUGIN"              // Engine precondition violated
	ErrCodeEnhancement ErrorCode = "ENHANCEMENT_PRESENT" // Enhancement already applied
	ErrCodeLocked      ErrorCode = "LOCKED"              // Server root lock held elsewhere
	ErrCodeUnsupported ErrorCode = "NOT_SUPPORTED"       // Feature or version not supported
	ErrCodePermission  ErrorCode = "PERMISSION"          // Permission denied
	ErrCodeInternal    ErrorCode = "INTERNAL"            // Internal/unexpected error
)

// EngineError represents a structured error with context about the operation.
type EngineError struct {
	Code    ErrorCode // Error category
	Message string    // Human-readable message
	Domain  string    // Domain name (if applicable)
	Path    string    // Configuration file path (if applicable)
	Err     error     // Underlying error (if any)
}

// Error implements the error interface.
func (e *EngineError) Error() string {
	msg := e.Message
	if e.Path != "" {
		msg = fmt.Sprintf("%s: %s", e.Path, msg)
	}
	if e.Domain != "" {
		msg = fmt.Sprintf("domain %s: %s", e.Domain, msg)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying error for error chain traversal.
func (e *EngineError) Unwrap() error {
	return e.Err
}

// Is reports whether target matches this error.
// Comparison is based on error code.
func (e *EngineError) Is(target error) bool {
	t, ok := target.(*EngineError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// Sentinel errors for common error scenarios.
// Use these with errors.Is() for error checking.
var (
	// ErrParseFailed indicates configuration text could not be parsed.
	ErrParseFailed = &EngineError{Code: ErrCodeParse, Message: "configuration could not be parsed"}

	// ErrNoMatchingVHost indicates no server block serves the requested domain.
	ErrNoMatchingVHost = &EngineError{Code: ErrCodeNoMatch, Message: "no matching server block"}

	// ErrAmbiguousMatch indicates several server blocks match with equal rank.
	ErrAmbiguousMatch = &EngineError{Code: ErrCodeAmbiguous, Message: "ambiguous server block match"}

	// ErrMisconfigured indicates nginx rejected or cannot serve the configuration.
	ErrMisconfigured = &EngineError{Code: ErrCodeMisconfig, Message: "invalid server configuration"}

	// ErrPrecondition indicates an engine precondition was violated.
	ErrPrecondition = &EngineError{Code: ErrCodePlugin, Message: "precondition failed"}

	// ErrEnhancementPresent indicates the enhancement is already applied.
	ErrEnhancementPresent = &EngineError{Code: ErrCodeEnhancement, Message: "enhancement already present"}

	// ErrLocked indicates another process holds the server root lock.
	ErrLocked = &EngineError{Code: ErrCodeLocked, Message: "server root is locked by another process"}

	// ErrNotSupported indicates the nginx version or feature is not supported.
	ErrNotSupported = &EngineError{Code: ErrCodeUnsupported, Message: "not supported"}

	// ErrRootRequired indicates root privileges are required.
	ErrRootRequired = &EngineError{Code: ErrCodePermission, Message: "root privileges required"}
)

// Parse creates an error for unparsable configuration text at a location.
// A line of zero means the location is unknown.
func Parse(path string, line int, msg string) error {
	if line > 0 {
		msg = fmt.Sprintf("%s (line %d)", msg, line)
	}
	return &EngineError{
		Code:    ErrCodeParse,
		Message: msg,
		Path:    path,
	}
}

// NoMatch creates an error for a domain no server block serves.
func NoMatch(domain string) error {
	return &EngineError{
		Code:    ErrCodeNoMatch,
		Message: "no matching server block",
		Domain:  domain,
	}
}

// Ambiguous creates an error for a domain matched by several equally
// ranked server blocks.
func Ambiguous(domain, msg string) error {
	return &EngineError{
		Code:    ErrCodeAmbiguous,
		Message: msg,
		Domain:  domain,
	}
}

// Misconfiguration creates an error for configuration nginx cannot serve.
func Misconfiguration(msg string) error {
	return &EngineError{
		Code:    ErrCodeMisconfig,
		Message: msg,
	}
}

// Precondition creates an error for a violated engine precondition.
func Precondition(msg string) error {
	return &EngineError{
		Code:    ErrCodePlugin,
		Message: msg,
	}
}

// EnhancementPresent creates an error for an enhancement that is already
// applied to the server block serving the domain.
func EnhancementPresent(domain, name string) error {
	return &EngineError{
		Code:    ErrCodeEnhancement,
		Message: fmt.Sprintf("%s already present", name),
		Domain:  domain,
	}
}

// Locked creates an error for a lock file held by another process.
func Locked(path string) error {
	return &EngineError{
		Code:    ErrCodeLocked,
		Message: "server root is locked by another process",
		Path:    path,
	}
}

// NotSupported creates an error for an unsupported version or feature.
func NotSupported(msg string) error {
	return &EngineError{
		Code:    ErrCodeUnsupported,
		Message: msg,
	}
}

// Wrap creates an error with the specified code, message, and underlying error.
func Wrap(code ErrorCode, msg string, err error) error {
	return &EngineError{
		Code:    code,
		Message: msg,
		Err:     err,
	}
}

// WrapDomain creates an error with domain context and underlying error.
func WrapDomain(code ErrorCode, domain string, err error) error {
	return &EngineError{
		Code:   code,
		Domain: domain,
		Err:    err,
	}
}

// Is reports whether any error in err's chain matches target.
// This is a re-export of errors.Is for convenience.
var Is = errors.Is

// As finds the first error in err's chain that matches target.
// This is a re-export of errors.As for convenience.
var As = errors.As
