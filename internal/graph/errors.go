// Package graph implements the client for the external content-publishing
// API. This file defines the typed errors the publishing pipeline depends
// on, in particular the retryable "media not ready" publish sub-case.
package graph

import (
	"errors"
	"fmt"
)

// codeMediaNotReady is the platform error code returned when a publish is
// attempted before the media container has finished processing. It is the
// only publish error the pipeline retries.
const codeMediaNotReady = 9007

// APIError is a structured error payload returned by the platform.
type APIError struct {
	Code    int    `json:"code"`
	Type    string `json:"type"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("graph api error %d (%s): %s", e.Code, e.Type, e.Message)
}

// NotReady reports whether this error is the retryable "media not yet
// ready" publish error.
func (e *APIError) NotReady() bool { return e.Code == codeMediaNotReady }

// CreationError indicates a container could not be created for an account,
// typically because the creation response carried no container identifier.
type CreationError struct {
	AccountID string
	Cause     error
}

// Error implements the error interface.
func (e *CreationError) Error() string {
	return fmt.Sprintf("container creation failed for account %s: %v", e.AccountID, e.Cause)
}

// Unwrap exposes the underlying cause for errors.Is/As.
func (e *CreationError) Unwrap() error { return e.Cause }

// PublishError indicates the publish call for a ready container failed.
type PublishError struct {
	AccountID string
	Cause     error
}

// Error implements the error interface.
func (e *PublishError) Error() string {
	return fmt.Sprintf("publish failed for account %s: %v", e.AccountID, e.Cause)
}

// Unwrap exposes the underlying cause for errors.Is/As.
func (e *PublishError) Unwrap() error { return e.Cause }

// IsNotReady reports whether err (anywhere in its chain) is the retryable
// "media not yet ready" platform error.
func IsNotReady(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.NotReady()
}
