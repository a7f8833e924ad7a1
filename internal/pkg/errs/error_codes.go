/*
Package errs provides the custom error type and application-level error
code constants used across the collaboration server.

Codes are grouped by range so a reader can place an error without looking
it up: 1xxx request handling, 2xxx room and message semantics, 3xxx session
and identity, 4xxx durable storage, 5xxx internal.
*/
package errs

// 1xxx: General Request Handling Errors
const (
	// ErrInvalidParams indicates that request parameter validation failed.
	ErrInvalidParams = 1001

	// ErrUnsupportedMediaType indicates an unsupported Content-Type header.
	ErrUnsupportedMediaType = 1002

	// ErrInvalidJSONFormat indicates a malformed JSON request body.
	ErrInvalidJSONFormat = 1003

	// ErrExtraContentInBody indicates trailing content after the JSON body.
	ErrExtraContentInBody = 1004

	// ErrRequestEntityTooLarge indicates the request body exceeded the server limit.
	ErrRequestEntityTooLarge = 1005

	// ErrRateLimitExceeded indicates the client exceeded the request rate limit.
	ErrRateLimitExceeded = 1006
)

// 2xxx: Room and Message Errors
const (
	// ErrInvalidMessage indicates empty or whitespace-only message content.
	// Nothing is persisted or broadcast for such a send.
	ErrInvalidMessage = 2101

	// ErrMessageTooLong indicates message content above the size cap.
	ErrMessageTooLong = 2102

	// ErrAttachmentRefInvalid indicates an attachment reference outside the
	// sender's project prefix.
	ErrAttachmentRefInvalid = 2103
)

// 3xxx: Session and Identity Errors
const (
	// ErrUnauthenticated indicates a handshake without a valid identity
	// token. The connection is refused before registration.
	ErrUnauthenticated = 3001

	// ErrDuplicateConnection indicates a connection identifier collision in
	// the registry. Fatal only to the new registration attempt; the existing
	// connection is untouched.
	ErrDuplicateConnection = 3002
)

// 4xxx: Durable Storage Errors
const (
	// ErrPersistence indicates the message store failed to persist a
	// message. Reported to the sender only; the room never sees the message.
	ErrPersistence = 4001

	// ErrMessageNotFound indicates a read receipt referenced an unknown
	// message id.
	ErrMessageNotFound = 4002

	// ErrFileStorageFailed indicates the attachment storage backend failed.
	ErrFileStorageFailed = 4003
)

// 5xxx: Internal System Errors
const (
	// ErrUnknown represents an unclassified internal server error.
	ErrUnknown = 5000
)
