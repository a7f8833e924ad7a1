/*
Package errs provides the custom error type and application-level error
code constants used across the collaboration server.

This file maps every code to its CustomError template, standardizing the
message and HTTP status reported to clients.
*/
package errs

import "net/http"

// errorMap stores the CustomError template for every application error
// code. A zero Status falls back to 200 with a non-zero business code.
var errorMap = map[int]CustomError{
	// 1xxx: General Request Handling Errors
	ErrInvalidParams:         {Code: ErrInvalidParams, Message: "Invalid request parameters."},
	ErrUnsupportedMediaType:  {Code: ErrUnsupportedMediaType, Message: "Unsupported request format."},
	ErrInvalidJSONFormat:     {Code: ErrInvalidJSONFormat, Message: "Unsupported request format."},
	ErrExtraContentInBody:    {Code: ErrExtraContentInBody, Message: "Request contains unexpected data."},
	ErrRequestEntityTooLarge: {Code: ErrRequestEntityTooLarge, Message: "Request size is too large."},
	ErrRateLimitExceeded:     {Code: ErrRateLimitExceeded, Message: "Too many requests. Please try again later.", Status: http.StatusTooManyRequests},

	// 2xxx: Room and Message Errors
	ErrInvalidMessage:       {Code: ErrInvalidMessage, Message: "Message content cannot be empty."},
	ErrMessageTooLong:       {Code: ErrMessageTooLong, Message: "Message is too long."},
	ErrAttachmentRefInvalid: {Code: ErrAttachmentRefInvalid, Message: "Invalid attachment reference."},

	// 3xxx: Session and Identity Errors
	ErrUnauthenticated:     {Code: ErrUnauthenticated, Message: "Please sign in to continue.", Status: http.StatusUnauthorized},
	ErrDuplicateConnection: {Code: ErrDuplicateConnection, Message: "Connection could not be established. Please retry."},

	// 4xxx: Durable Storage Errors
	ErrPersistence:       {Code: ErrPersistence, Message: "Message could not be delivered. Please try again."},
	ErrMessageNotFound:   {Code: ErrMessageNotFound, Message: "Message not found.", Status: http.StatusNotFound},
	ErrFileStorageFailed: {Code: ErrFileStorageFailed, Message: "File operation failed. Please try again."},

	// 5xxx: Internal System Errors
	ErrUnknown: {Code: ErrUnknown, Message: "Something went wrong. Please try again.", Status: http.StatusInternalServerError},
}
