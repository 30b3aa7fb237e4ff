package llm

import (
	"context"
	"errors"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// ErrorType categorizes completion errors for logging and metrics.
type ErrorType string

const (
	ErrorTypeUnknown    ErrorType = "unknown"
	ErrorTypeRateLimit  ErrorType = "rate_limit"
	ErrorTypeOverloaded ErrorType = "overloaded"
	ErrorTypeAuth       ErrorType = "auth"
	ErrorTypeBilling    ErrorType = "billing"
	ErrorTypeTimeout    ErrorType = "timeout"
	ErrorTypeNotFound   ErrorType = "not_found" // retired or misspelled model id
	ErrorTypeFormat     ErrorType = "format"
	ErrorTypeNoChoices  ErrorType = "no_choices"
	ErrorTypeCanceled   ErrorType = "canceled"
)

// ClassifyError determines the error type of a completion error.
// HTTP status codes reported by go-openai win over message patterns.
func ClassifyError(err error) ErrorType {
	if err == nil {
		return ErrorTypeUnknown
	}
	if errors.Is(err, ErrNoChoices) {
		return ErrorTypeNoChoices
	}
	if errors.Is(err, context.Canceled) {
		return ErrorTypeCanceled
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrorTypeTimeout
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if t := classifyStatus(apiErr.HTTPStatusCode); t != ErrorTypeUnknown {
			return t
		}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		if t := classifyStatus(reqErr.HTTPStatusCode); t != ErrorTypeUnknown {
			return t
		}
	}

	return ClassifyMessage(err.Error())
}

// classifyStatus maps an HTTP status code to an error type
func classifyStatus(status int) ErrorType {
	switch status {
	case http.StatusTooManyRequests:
		return ErrorTypeRateLimit
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrorTypeAuth
	case http.StatusPaymentRequired:
		return ErrorTypeBilling
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		return ErrorTypeTimeout
	case http.StatusNotFound:
		return ErrorTypeNotFound
	case http.StatusServiceUnavailable, http.StatusBadGateway, 529:
		return ErrorTypeOverloaded
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return ErrorTypeFormat
	default:
		return ErrorTypeUnknown
	}
}

// ClassifyMessage determines the error type from an error message.
// Returns ErrorTypeUnknown if the message doesn't match any known pattern.
func ClassifyMessage(msg string) ErrorType {
	if msg == "" {
		return ErrorTypeUnknown
	}
	// Order matters: billing before auth ("insufficient credits" responses often carry 403 text)
	switch {
	case IsRateLimitMessage(msg):
		return ErrorTypeRateLimit
	case IsOverloadedMessage(msg):
		return ErrorTypeOverloaded
	case IsBillingMessage(msg):
		return ErrorTypeBilling
	case IsAuthMessage(msg):
		return ErrorTypeAuth
	case IsTimeoutMessage(msg):
		return ErrorTypeTimeout
	case IsNotFoundMessage(msg):
		return ErrorTypeNotFound
	case IsFormatMessage(msg):
		return ErrorTypeFormat
	default:
		return ErrorTypeUnknown
	}
}

func containsAny(s string, needles ...string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}

// IsRateLimitMessage checks if a message indicates rate limiting.
func IsRateLimitMessage(msg string) bool {
	lower := strings.ToLower(msg)
	return containsAny(lower,
		"429",
		"rate_limit",
		"rate limit",
		"too many requests",
		"exceeded your current quota",
		"quota exceeded",
		"resource_exhausted",
		"requests per minute",
		"requests per day",
	)
}

// IsOverloadedMessage checks if a message indicates the service is overloaded.
func IsOverloadedMessage(msg string) bool {
	lower := strings.ToLower(msg)
	if strings.Contains(lower, "503") && containsAny(lower, "service", "unavailable") {
		return true
	}
	return containsAny(lower,
		"overloaded",
		"server is busy",
		"temporarily unavailable",
		"no available providers",
	)
}

// IsAuthMessage checks if a message indicates authentication failure.
func IsAuthMessage(msg string) bool {
	lower := strings.ToLower(msg)
	return containsAny(lower,
		"401",
		"403",
		"invalid api key",
		"invalid_api_key",
		"incorrect api key",
		"unauthorized",
		"forbidden",
		"no auth credentials",
		"invalid credentials",
	)
}

// IsBillingMessage checks if a message indicates billing/payment issues.
func IsBillingMessage(msg string) bool {
	lower := strings.ToLower(msg)
	return containsAny(lower,
		"402",
		"payment required",
		"insufficient credits",
		"insufficient_quota",
		"credit balance",
		"billing",
	)
}

// IsTimeoutMessage checks if a message indicates a timeout.
func IsTimeoutMessage(msg string) bool {
	lower := strings.ToLower(msg)
	return containsAny(lower,
		"408",
		"504",
		"timeout",
		"timed out",
		"deadline exceeded",
		"connection reset",
	)
}

// IsNotFoundMessage checks if a message indicates an unknown or retired model.
func IsNotFoundMessage(msg string) bool {
	lower := strings.ToLower(msg)
	return containsAny(lower,
		"404",
		"not a valid model",
		"model not found",
		"no endpoints found",
		"does not exist",
	)
}

// IsFormatMessage checks if a message indicates invalid request or response format.
func IsFormatMessage(msg string) bool {
	lower := strings.ToLower(msg)
	return containsAny(lower,
		"invalid_request_error",
		"invalid request",
		"malformed",
		"unexpected end of json input",
		"invalid character",
	)
}
