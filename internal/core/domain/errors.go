package domain

import "errors"

// Domain errors - used across all layers
var (
	// ErrNotFound indicates the requested resource was not found
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates the input is invalid
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnauthorized indicates authentication failed or missing
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden indicates the user lacks permission for this action
	ErrForbidden = errors.New("forbidden")

	// ErrTokenExpired indicates the auth token has expired
	ErrTokenExpired = errors.New("token expired")

	// ErrTokenInvalid indicates the auth token is malformed or invalid
	ErrTokenInvalid = errors.New("token invalid")

	// ErrInvalidCredentials indicates wrong email/password combination
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrInvalidProvider indicates an unknown AI provider was specified
	ErrInvalidProvider = errors.New("invalid provider")

	// ErrServiceUnavailable indicates a required collaborator is not configured
	ErrServiceUnavailable = errors.New("service unavailable")

	// ErrDimensionMismatch indicates a vector does not match the index dimensionality
	ErrDimensionMismatch = errors.New("dimension mismatch")

	// ErrCurrentDocumentExists indicates a slot already has a current document
	ErrCurrentDocumentExists = errors.New("current document already exists for slot")

	// ErrAlreadySuperseded indicates the document was already replaced
	ErrAlreadySuperseded = errors.New("document already superseded")

	// ErrAlreadyResolved indicates the review item was resolved before
	ErrAlreadyResolved = errors.New("review already resolved")

	// ErrInvalidDecision indicates an unknown moderation decision
	ErrInvalidDecision = errors.New("invalid decision")

	// ErrPersistFailed indicates the corpus could not be written to durable storage
	ErrPersistFailed = errors.New("persist failed")

	// ErrCorruptPersistedState indicates the on-disk corpus files are inconsistent
	ErrCorruptPersistedState = errors.New("corrupt persisted state")

	// ErrEmbeddingUnavailable indicates the embedding provider failed or timed out
	ErrEmbeddingUnavailable = errors.New("embedding unavailable")

	// ErrBiasAssessmentUnavailable indicates the bias assessor failed or timed out
	ErrBiasAssessmentUnavailable = errors.New("bias assessment unavailable")

	// ErrRewriteUnavailable indicates the content rewriter failed or timed out
	ErrRewriteUnavailable = errors.New("rewrite unavailable")
)

// IsTransient reports whether err is an external failure the caller may retry.
func IsTransient(err error) bool {
	return errors.Is(err, ErrEmbeddingUnavailable) ||
		errors.Is(err, ErrBiasAssessmentUnavailable) ||
		errors.Is(err, ErrRewriteUnavailable)
}
