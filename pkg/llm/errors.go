package llm

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ErrorType classifies generation failures so callers can pick a user-visible
// response: retry, fix credentials, or wait.
type ErrorType string

const (
	// ErrorTypeNotConfigured means no API credential is present.
	ErrorTypeNotConfigured ErrorType = "not_configured"
	// ErrorTypeBadCredential means the credential fails superficial format checks.
	ErrorTypeBadCredential ErrorType = "bad_credential"
	// ErrorTypeQuota means the upstream signaled a quota/rate limit on one call.
	ErrorTypeQuota ErrorType = "quota"
	// ErrorTypeQuotaExhausted means quota failures persisted across the retry budget.
	ErrorTypeQuotaExhausted ErrorType = "quota_exhausted"
	// ErrorTypeEmptyResponse means the upstream returned no usable text.
	ErrorTypeEmptyResponse ErrorType = "empty_response"
	// ErrorTypeUpstream is any other upstream failure, carrying its message.
	ErrorTypeUpstream ErrorType = "upstream"
)

// Error represents a structured generation error with classification.
type Error struct {
	Type       ErrorType // Classification of the error
	Message    string    // Human-readable message
	Retryable  bool      // Whether the operation can be retried
	Cause      error     // Underlying error
	StatusCode int       // HTTP status code if applicable
	Model      string    // Model name if known
}

// Error implements the error interface.
func (e *Error) Error() string {
	var parts []string
	parts = append(parts, string(e.Type))

	if e.StatusCode > 0 {
		parts = append(parts, fmt.Sprintf("HTTP %d", e.StatusCode))
	}
	if e.Model != "" {
		parts = append(parts, fmt.Sprintf("model=%s", e.Model))
	}

	parts = append(parts, e.Message)

	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", strings.Join(parts, " "), e.Cause)
	}
	return strings.Join(parts, " ")
}

// Unwrap returns the underlying cause for errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new structured generation error.
func NewError(errType ErrorType, message string, retryable bool, cause error) *Error {
	return &Error{
		Type:      errType,
		Message:   message,
		Retryable: retryable,
		Cause:     cause,
	}
}

// ClassifyError categorizes an error and returns a structured Error.
// Quota signaling follows the upstream contract: HTTP 429 or a message
// containing "quota" / "rate limit" variants.
func ClassifyError(err error) *Error {
	if err == nil {
		return nil
	}

	// Check if already an *Error
	var genErr *Error
	if errors.As(err, &genErr) {
		return genErr
	}

	errStr := err.Error()
	lower := strings.ToLower(errStr)

	// Extract HTTP status code from error string. Word boundaries keep
	// digit runs like "4290ms" from reading as a status code.
	statusCode := 0
	if m := statusCodePattern.FindStringSubmatch(errStr); m != nil {
		statusCode, _ = strconv.Atoi(m[1])
	}

	// Quota/rate limiting. Classified before auth so a 429 with a noisy
	// message never takes the fail-fast path.
	if statusCode == 429 ||
		strings.Contains(lower, "quota") ||
		strings.Contains(lower, "rate limit") ||
		strings.Contains(lower, "resource exhausted") ||
		strings.Contains(lower, "too many requests") {
		e := NewError(ErrorTypeQuota, "quota or rate limit hit", true, err)
		e.StatusCode = statusCode
		return e
	}

	// Revoked/insufficient credentials (not retryable)
	if statusCode == 401 || statusCode == 403 ||
		strings.Contains(lower, "unauthorized") ||
		strings.Contains(lower, "permission denied") ||
		strings.Contains(lower, "invalid api key") {
		e := NewError(ErrorTypeUpstream, "authentication rejected by upstream", false, err)
		e.StatusCode = statusCode
		return e
	}

	// Malformed request / unknown model (not retryable without config change)
	if statusCode == 400 || statusCode == 404 ||
		strings.Contains(lower, "invalid argument") ||
		(strings.Contains(lower, "model") && strings.Contains(lower, "not found")) {
		e := NewError(ErrorTypeUpstream, "request rejected by upstream", false, err)
		e.StatusCode = statusCode
		return e
	}

	// Connection and timeout errors (retryable)
	if strings.Contains(lower, "connection refused") ||
		strings.Contains(lower, "no such host") ||
		strings.Contains(lower, "timeout") ||
		strings.Contains(lower, "deadline exceeded") {
		e := NewError(ErrorTypeUpstream, "upstream unreachable", true, err)
		e.StatusCode = statusCode
		return e
	}

	// 5xx server errors (retryable)
	if statusCode >= 500 {
		e := NewError(ErrorTypeUpstream, "upstream server error", true, err)
		e.StatusCode = statusCode
		return e
	}

	// Unknown error: treated as transient so the bounded retry loop gets a
	// chance, matching the attempt-budget semantics.
	e := NewError(ErrorTypeUpstream, "generation failed", true, err)
	e.StatusCode = statusCode
	return e
}

// IsQuota reports whether err is quota-classified.
func IsQuota(err error) bool {
	var genErr *Error
	if errors.As(err, &genErr) {
		return genErr.Type == ErrorTypeQuota || genErr.Type == ErrorTypeQuotaExhausted
	}
	return false
}

// GetErrorType extracts the ErrorType from an error.
func GetErrorType(err error) ErrorType {
	var genErr *Error
	if errors.As(err, &genErr) {
		return genErr.Type
	}
	return ErrorTypeUpstream
}

// Status codes the upstreams actually emit; matched as whole words.
var statusCodePattern = regexp.MustCompile(`\b(400|401|403|404|429|500|502|503|504)\b`)

var (
	// "retry in 5.2s", "retry after 30 s"
	retryInPattern = regexp.MustCompile(`(?i)retry\s+(?:in|after)\s+(\d+(?:\.\d+)?)\s*s`)
	// Gemini RetryInfo payloads: "retryDelay":"5s" / retryDelay: 12.5s
	retryDelayPattern = regexp.MustCompile(`(?i)retrydelay"?\s*:?\s*"?(\d+(?:\.\d+)?)s`)
)

// RetryDelayHint extracts a server-suggested retry delay from an error
// message, e.g. "...retry in 5.2s...". Returns false when no hint is present.
func RetryDelayHint(err error) (time.Duration, bool) {
	if err == nil {
		return 0, false
	}

	msg := err.Error()
	m := retryInPattern.FindStringSubmatch(msg)
	if m == nil {
		m = retryDelayPattern.FindStringSubmatch(msg)
	}
	if m == nil {
		return 0, false
	}

	secs, convErr := strconv.ParseFloat(m[1], 64)
	if convErr != nil {
		return 0, false
	}

	return time.Duration(secs * float64(time.Second)), true
}
