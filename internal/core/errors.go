package core

import (
	"errors"
	"fmt"
	"os"
)

// Failure classes for conversation operations. Backends wrap these with
// operation context via fmt.Errorf and %w; callers branch with errors.Is.
var (
	// ErrSessionNotFound reports an operation against an unknown session id.
	ErrSessionNotFound = errors.New("session does not exist")

	// ErrInvalidArgument reports a caller mistake: a blank required field,
	// an inactive session, a model outside the catalog, an unsupported
	// export format.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrFileNotFound reports a referenced attachment path that does not
	// exist on disk.
	ErrFileNotFound = errors.New("file not found")

	// ErrNotSupported reports an operation the backend does not implement.
	ErrNotSupported = errors.New("operation not supported")

	// ErrTransient reports a timeout or connection failure that may
	// succeed if retried by the caller.
	ErrTransient = errors.New("transient failure")

	// ErrAuthentication reports a credential the endpoint rejected.
	ErrAuthentication = errors.New("authentication failed")

	// ErrAuthorization reports a request the endpoint refused for a
	// valid credential.
	ErrAuthorization = errors.New("not authorized")

	// ErrModelNotFound reports a model or endpoint path absent upstream.
	ErrModelNotFound = errors.New("model not found")

	// ErrRateLimited reports endpoint throttling.
	ErrRateLimited = errors.New("rate limit exceeded")

	// ErrUpstream reports a 5xx from the completion endpoint.
	ErrUpstream = errors.New("upstream server error")

	// ErrMalformedResponse reports an endpoint reply that could not be
	// parsed or is missing the reply content.
	ErrMalformedResponse = errors.New("malformed response")
)

// CheckAttachment confirms a referenced file exists before it is
// accepted onto a session.
func CheckAttachment(path string) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("%w: attachment file not found: %s", ErrFileNotFound, path)
	}
	return nil
}

// ValidateAttachments checks every referenced file eagerly, failing on
// the first absent one.
func ValidateAttachments(paths []string) error {
	for _, p := range paths {
		if err := CheckAttachment(p); err != nil {
			return err
		}
	}
	return nil
}
