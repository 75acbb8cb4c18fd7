package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

// ErrorType represents the type of error
type ErrorType string

const (
	// ErrorTypeNetwork represents transport failures and non-2xx responses
	ErrorTypeNetwork ErrorType = "network"
	// ErrorTypeParsing represents HTML or JSON decoding errors
	ErrorTypeParsing ErrorType = "parsing"
	// ErrorTypeRateLimit represents anti-bot blocks and throttling
	ErrorTypeRateLimit ErrorType = "rate_limit"
	// ErrorTypeCache represents cache-related errors
	ErrorTypeCache ErrorType = "cache"
	// ErrorTypePublisher represents publisher-related errors
	ErrorTypePublisher ErrorType = "publisher"
	// ErrorTypeValidation represents results that fail a sanity check
	ErrorTypeValidation ErrorType = "validation"
	// ErrorTypeConfiguration represents vendor or process configuration errors
	ErrorTypeConfiguration ErrorType = "configuration"
	// ErrorTypeStore represents persistence errors
	ErrorTypeStore ErrorType = "store"
)

// ScrapeError is the error value returned across adapter and worker boundaries
type ScrapeError struct {
	Type    ErrorType
	Vendor  string
	Message string
	Err     error
	Time    time.Time
}

// Error implements the error interface
func (e *ScrapeError) Error() string {
	prefix := fmt.Sprintf("[%s]", e.Type)
	if e.Vendor != "" {
		prefix += " " + e.Vendor + ":"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s %s - %v", prefix, e.Message, e.Err)
	}
	return fmt.Sprintf("%s %s", prefix, e.Message)
}

// Unwrap returns the underlying error
func (e *ScrapeError) Unwrap() error {
	return e.Err
}

// IsRetryable returns true if the error is retryable
func (e *ScrapeError) IsRetryable() bool {
	switch e.Type {
	case ErrorTypeNetwork:
		return true
	default:
		return false
	}
}

// New creates a new ScrapeError
func New(errType ErrorType, vendor, message string, err error) *ScrapeError {
	return &ScrapeError{
		Type:    errType,
		Vendor:  vendor,
		Message: message,
		Err:     err,
		Time:    time.Now(),
	}
}

// NewNetwork creates a new network error
func NewNetwork(vendor, message string, err error) *ScrapeError {
	return New(ErrorTypeNetwork, vendor, message, err)
}

// NewParsing creates a new parsing error
func NewParsing(vendor, message string, err error) *ScrapeError {
	return New(ErrorTypeParsing, vendor, message, err)
}

// NewRateLimit creates a new rate limit error
func NewRateLimit(vendor string, duration time.Duration) *ScrapeError {
	message := fmt.Sprintf("blocked for %v", duration)
	return New(ErrorTypeRateLimit, vendor, message, nil)
}

// NewCache creates a new cache error
func NewCache(vendor, message string, err error) *ScrapeError {
	return New(ErrorTypeCache, vendor, message, err)
}

// NewPublisher creates a new publisher error
func NewPublisher(vendor, message string, err error) *ScrapeError {
	return New(ErrorTypePublisher, vendor, message, err)
}

// NewValidation creates a new validation error
func NewValidation(vendor, message string) *ScrapeError {
	return New(ErrorTypeValidation, vendor, message, nil)
}

// NewConfiguration creates a new configuration error
func NewConfiguration(vendor, message string, err error) *ScrapeError {
	return New(ErrorTypeConfiguration, vendor, message, err)
}

// NewStore creates a new store error
func NewStore(vendor, message string, err error) *ScrapeError {
	return New(ErrorTypeStore, vendor, message, err)
}

// IsType reports whether err wraps a ScrapeError of the given type
func IsType(err error, errType ErrorType) bool {
	var se *ScrapeError
	if stderrors.As(err, &se) {
		return se.Type == errType
	}
	return false
}
