package locations

import "errors"

var (
	// ErrNotFound is returned for a missing location. Cross-tenant
	// references are reported identically so existence does not leak
	// across tenants.
	ErrNotFound = errors.New("location not found")

	// ErrCycle is returned when a create or update would make a node its
	// own ancestor.
	ErrCycle = errors.New("location parent chain would form a cycle")

	// ErrHasChildren rejects deletion of a node with active children.
	ErrHasChildren = errors.New("location has active child locations")

	// ErrInvalidInput is returned for unknown types, levels, or missing
	// required fields.
	ErrInvalidInput = errors.New("invalid location input")

	// ErrInsufficientLevel is returned when the acting user lacks manage
	// access for grant administration.
	ErrInsufficientLevel = errors.New("manage access required")

	// ErrUserNotInTenant is returned when the grantee does not belong to
	// the location's tenant.
	ErrUserNotInTenant = errors.New("user does not belong to this tenant")
)
