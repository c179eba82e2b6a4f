// Package httpapi exposes a lifecycle.Service over HTTP.
//
// Routes, relative to where the router is mounted:
//
//	GET  /entity-types
//	POST /entities/{type}/{id}               create, body {"state": "..."} (optional)
//	GET  /entities/{type}/{id}               current state
//	POST /entities/{type}/{id}/transitions   body {"to": "...", "reason": "...", "metadata": {...}}
//	GET  /entities/{type}/{id}/transitions   available edges for ?role=
//	GET  /entities/{type}/{id}/history
//	GET  /notices                            server-sent stream of committed transitions
//
// The acting user and role are taken from the X-User-ID and X-User-Role
// headers. They are trusted as given: an upstream gateway is expected to
// have authenticated the caller and resolved the role.
//
// Every response body is a JSON envelope with either "data" or "error";
// error codes are the engine codes (INVALID_STATE, INVALID_TRANSITION,
// UNAUTHORIZED_ROLE, HOOK_FAILED, CONFLICT) plus BAD_REQUEST,
// ENTITY_EXISTS and INTERNAL.
package httpapi
