// Package jwt inspects and issues ERP session tokens.
//
// The client side only ever looks at a token without verifying it (Inspect, ExpiresWithin) to
// decide whether to refresh before sending. Verification (Manager) is used by the fake backend
// in erptest and by tooling that needs to mint tokens.
package jwt
