// SPDX-License-Identifier: MIT

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldRequestID = "request_id"
	FieldSessionID = "session_id"

	// Process fields
	FieldEvent     = "event"
	FieldComponent = "component"

	// Domain fields
	FieldPostID  = "post_id"
	FieldSlug    = "slug"
	FieldAuthor  = "author"
	FieldBackend = "backend"

	// Path / URL fields
	FieldPath    = "path"
	FieldBaseURL = "base_url"
)
