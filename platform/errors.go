package platform

import "fmt"

// ProviderError wraps a transport or auth failure from a platform API so the
// caller can tell which platform and operation failed.
type ProviderError struct {
	Platform string
	Op       string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s: %s failed: %v", e.Platform, e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// NewProviderError returns a ProviderError for the given platform operation.
func NewProviderError(platform, op string, err error) *ProviderError {
	return &ProviderError{
		Platform: platform,
		Op:       op,
		Err:      err,
	}
}
