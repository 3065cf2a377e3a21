package backend

import "fmt"

const (
	CodeUnknown     = "UNKNOWN_ERROR"
	CodeNetwork     = "NETWORK_ERROR"
	CodeParse       = "PARSE_ERROR"
	CodeRetryFailed = "RETRY_FAILED"
	CodeValidation  = "VALIDATION_ERROR"
)

// APIError is a failed backend call. Status is 0 when no response arrived.
type APIError struct {
	Message string
	Code    string
	Details string
	Status  int
	Err     error
}

func (e *APIError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("%s (%s, HTTP %d)", e.Message, e.Code, e.Status)
	}
	return fmt.Sprintf("%s (%s)", e.Message, e.Code)
}

func (e *APIError) Unwrap() error { return e.Err }

// Temporary reports whether retrying could help. Client errors never do.
func (e *APIError) Temporary() bool {
	return e.Status < 400 || e.Status >= 500
}
