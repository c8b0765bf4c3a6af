// Package contacts implements an authenticated contacts directory: account
// signup with email confirmation, password login with a rotating
// access/refresh token pair, and per-user contact records persisted through
// bun repositories.
//
// The package is organized around a few composable pieces:
//
//   - TokenService issues and decodes scope-tagged, HS256-signed JWTs.
//   - IdentityCache keeps short-lived user snapshots in a CacheStore (redis
//     in production) so authenticated requests skip the durable store.
//   - SessionManager drives login, token refresh, and current-user
//     resolution against the Users repository.
//   - Signup, confirmation, and resend flows are command handlers
//     (SignupHandler, ConfirmEmailHandler, ResendConfirmationHandler) that
//     run their writes inside RepositoryManager.RunInTx.
//
// HTTP wiring lives in APIController, a JSON controller registered on a
// go-router adapter. See cmd/contacts-server for a full assembly.
package contacts
