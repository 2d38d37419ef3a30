// Package refresh implements the token refresh call: a GET against a fixed endpoint that
// exchanges the current bearer token for a new access token.
//
// # Wire format
//
// The endpoint is called with "Authorization: Bearer <current>" and must answer 200 with a
// JSON body carrying the new token at a known path, by default:
//
//	{"result": {"accessToken": "<token>"}}
//
// # Architecture boundaries
//
// This package owns the HTTP exchange and response parsing. Single-flight coordination,
// storing the new token, and tearing the session down on failure belong to erpclient.
//
// # What this package must NOT do
//
//   - Touch a credential store or perform redirects.
//   - Retry on its own; one call per refresh attempt.
//   - Import erpclient (no import cycles).
package refresh
