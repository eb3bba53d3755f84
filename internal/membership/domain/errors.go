package domain

import "errors"

var (
	// ErrUnknownPlan is returned for plan ids outside the catalog enumeration.
	ErrUnknownPlan = errors.New("unknown plan")
	// ErrInvalidArgument is returned for malformed resource, module, status or delta values.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrNotAuthenticated is returned when no current user is available.
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrStoreUnavailable is returned when the document store cannot be reached.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrLimitReached is returned by Decision.Err for denied resource consumption.
	ErrLimitReached = errors.New("limit reached")
	// ErrModuleLocked is returned by Decision.Err for modules outside the effective plan.
	ErrModuleLocked = errors.New("module locked")
	// ErrSubscriptionNotFound is returned when a user has no subscription yet.
	ErrSubscriptionNotFound = errors.New("subscription not found")
	// ErrDocumentNotFound is returned by document stores for missing documents.
	ErrDocumentNotFound = errors.New("document not found")
	// ErrRefreshSuperseded is returned when a newer usage refresh replaced an in-flight one.
	ErrRefreshSuperseded = errors.New("usage refresh superseded")
	// ErrInvalidTransition is returned for status changes the lifecycle does not allow.
	ErrInvalidTransition = errors.New("invalid status transition")
)
