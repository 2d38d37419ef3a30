// Package erptest runs an in-process ERP backend for tests and local tooling. It issues
// signed session tokens, renews them on GET /auth/refresh, and guards /api/... routes with
// bearer authentication. Knobs on Backend inject refresh failures, hold refreshes open and
// force 401s so callers can exercise their refresh paths deterministically.
package erptest
