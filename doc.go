// Package authxero provides the client-side session and provisioning layer
// for applications built on the AuthXero service: credential storage, a
// typed API client, a session state machine with scheduled token renewal,
// and the setup endpoints used to register client applications.
//
// Session lifecycle:
//   - SessionManager owns a single user session and moves it through the
//     initializing, unauthenticated, authenticated, unverified, and
//     terminating states. The transition graph is fixed; callers drive it
//     through Login, Signup, VerifyEmail, Refresh, and Logout.
//   - A refresh scheduler is armed whenever the session enters the
//     authenticated state and renews the token pair shortly before the
//     access token expires, retrying with a linear backoff before forcing
//     termination.
//
// Credential storage:
//   - TokenStore keeps the access/refresh token pair as an atomic unit.
//     MemoryTokenStore is the in-process default; SQLiteTokenStore persists
//     the pair across restarts, sealed with a secretbox key.
//
// Provisioning:
//   - ProvisionController exposes the setup endpoints that validate a
//     client domain and hand back its integration configuration. Requests
//     are rate limited per caller and configurations are cached for a
//     short TTL so repeated completions skip re-verification.
//
// Activity sinks:
//   - ActivitySink is a light-weight audit emitter used by the session
//     manager and the provisioning controller to describe login, refresh,
//     termination, and provisioning decisions. Sinks run best-effort
//     (errors are logged) so you can forward to a database or queue
//     without blocking authentication.
package authxero
