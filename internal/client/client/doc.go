// Package client is the CLI's side of the /api/v1 contract.
//
// # Overview
//
//  1. Client (ConversionAPI + AuthAPI) lists every backend call the queue,
//     the poller and the auth service make.
//  2. HTTPClient implements it over net/http. The session cookie lives in a
//     cookie jar that the auth service persists between runs; uploads to
//     pre-signed storage URLs use a separate client so the cookie never
//     leaves the API host.
//  3. InitDatabase and RunMigrations bootstrap the local SQLite database
//     with embedded goose migrations.
//
// # Error Handling
//
// A non-2xx answer is returned as *APIError whose Message is taken from the
// body's "error" field, falling back to the HTTP status text for non-JSON
// bodies and to UnknownErrorMessage otherwise. APIError unwraps to
// ErrUnauthorized (401/403), ErrNotFound (404) or ErrUnavailable (5xx);
// transport failures wrap ErrUnavailable. Nothing is retried.
package client
