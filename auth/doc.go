// Package auth is the authentication backend the UI layer talks to: users,
// roles and follows persisted with Bun, password hashing, session tokens and
// the sign-in/sign-up/confirmation flows.
//
// Authenticators:
//   - Authenticator implementations are registered on the Service by name.
//     The name matches the UI driver that renders the forms, so a request
//     posted to /sign-in/password/post reaches the "password" authenticator.
//
// User lifecycle:
//   - Users carry a UserStatus (waiting, active, disabled). StatusMachine
//     centralizes the transition graph and hooks. Status change hooks are how
//     notification emails get sent.
//
// Activity sinks:
//   - ActivitySink receives sign-in, sign-up, confirmation and status events.
//     Sinks run best-effort, errors are logged.
package auth
