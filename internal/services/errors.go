// Package services defines the business logic of the bulk publishing
// pipeline: the per-account publish protocol driver, the fan-out
// orchestrator, the scheduler, and the supporting account/group/session
// services. This file centralizes common service-level error values so that
// they can be consistently returned by service methods and checked by
// callers.
//
// These errors are intended for internal use by the service layer;
// translation into user-facing messages or HTTP status codes is performed at
// the handler layer.
package services

import "errors"

// Post composition and scheduling errors.
var (
	// ErrNoAccounts is returned when a post resolves to zero destination
	// accounts after group expansion and deduplication.
	ErrNoAccounts = errors.New("no destination accounts selected")

	// ErrInvalidMediaKind is returned when the media kind is neither
	// "image" nor "video".
	ErrInvalidMediaKind = errors.New("media kind must be image or video")

	// ErrInvalidMediaURL is returned when the media reference is not a
	// public HTTPS URL.
	ErrInvalidMediaURL = errors.New("media url must be a public https url")

	// ErrGroupNotFound indicates a selected group name does not exist.
	ErrGroupNotFound = errors.New("group not found")

	// ErrGroupExists indicates a group with the requested name already exists.
	ErrGroupExists = errors.New("group already exists")

	// ErrEmptyGroupName is returned when creating a group without a name.
	ErrEmptyGroupName = errors.New("group name is empty")
)

// Authentication errors.
var (
	// ErrInvalidCredentials is returned for an unknown username or a
	// password mismatch. The two cases are deliberately indistinguishable.
	ErrInvalidCredentials = errors.New("invalid username or password")

	// ErrSessionInvalid is returned when a session token is unknown or past
	// its expiry.
	ErrSessionInvalid = errors.New("session invalid or expired")
)
