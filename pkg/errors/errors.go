package errors

import (
	"fmt"
	"time"
)

// ErrorType represents the type of error
type ErrorType string

const (
	// ErrorTypeTransport represents network failures, timeouts and non-2xx responses
	ErrorTypeTransport ErrorType = "transport"
	// ErrorTypeParse represents malformed HTML/JSON fragment errors
	ErrorTypeParse ErrorType = "parse"
	// ErrorTypeRateLimit represents upstream rate limiting
	ErrorTypeRateLimit ErrorType = "rate_limit"
	// ErrorTypeQuality represents structurally valid but rejected items
	ErrorTypeQuality ErrorType = "quality"
	// ErrorTypePersistence represents store write/read failures
	ErrorTypePersistence ErrorType = "persistence"
	// ErrorTypeRender represents headless render backend failures
	ErrorTypeRender ErrorType = "render"
	// ErrorTypeConfiguration represents configuration errors
	ErrorTypeConfiguration ErrorType = "configuration"
)

// PipelineError represents an acquisition-pipeline error with its stage context
type PipelineError struct {
	Type     ErrorType
	Platform string
	Message  string
	Err      error
	Time     time.Time

	// RetryAfter is the upstream back-off window. Set only for rate-limit
	// errors.
	RetryAfter time.Duration
}

// Error implements the error interface
func (e *PipelineError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %s - %v", e.Type, e.Platform, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Type, e.Platform, e.Message)
}

// Unwrap returns the underlying error
func (e *PipelineError) Unwrap() error {
	return e.Err
}

// IsRetryable returns true if the error is retryable
func (e *PipelineError) IsRetryable() bool {
	switch e.Type {
	case ErrorTypeTransport:
		return true
	case ErrorTypeRender:
		return true
	default:
		return false
	}
}

// New creates a new PipelineError
func New(errType ErrorType, platform, message string, err error) *PipelineError {
	return &PipelineError{
		Type:     errType,
		Platform: platform,
		Message:  message,
		Err:      err,
		Time:     time.Now(),
	}
}

// NewTransport creates a new transport error
func NewTransport(platform, message string, err error) *PipelineError {
	return New(ErrorTypeTransport, platform, message, err)
}

// NewParse creates a new parse error
func NewParse(platform, message string, err error) *PipelineError {
	return New(ErrorTypeParse, platform, message, err)
}

// NewRateLimit creates a new rate limit error carrying the back-off window
func NewRateLimit(platform string, duration time.Duration) *PipelineError {
	e := New(ErrorTypeRateLimit, platform, fmt.Sprintf("rate limited for %v", duration), nil)
	e.RetryAfter = duration
	return e
}

// NewQuality creates a new quality rejection error
func NewQuality(platform, message string) *PipelineError {
	return New(ErrorTypeQuality, platform, message, nil)
}

// NewPersistence creates a new persistence error
func NewPersistence(platform, message string, err error) *PipelineError {
	return New(ErrorTypePersistence, platform, message, err)
}

// NewRender creates a new render backend error
func NewRender(platform, message string, err error) *PipelineError {
	return New(ErrorTypeRender, platform, message, err)
}

// NewConfiguration creates a new configuration error
func NewConfiguration(message string, err error) *PipelineError {
	return New(ErrorTypeConfiguration, "", message, err)
}
