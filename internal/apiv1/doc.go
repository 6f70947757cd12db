// Package apiv1 holds the JSON payloads and route templates of the
// /api/v1 conversion API. The CLI client and the reference server both
// build on these types, so a field added here shows up on both sides.
//
// Field names follow the wire format exactly (camelCase); Go names follow
// Go conventions.
package apiv1
