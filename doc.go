// Package authui provides the HTTP user interface on top of the auth
// backend: sign in, sign up, account restoration, sign out, sign up
// confirmation and profile pages.
//
// Drivers:
//   - A Driver builds the sign in, sign up and restore account forms of one
//     authentication method. Drivers are kept in a Registry, the first
//     registered one is the default unless the settings name another.
//   - The driver name must match the name of an auth.Authenticator, the
//     controllers hand the submitted form values to the backend under that
//     name.
//
// Redirects:
//   - Every page and submit route propagates the __redirect input. Only
//     relative, same origin targets are followed, anything else falls back
//     to the site root.
//
// Events:
//   - RegisterEventHandlers attaches mail notifications to the backend
//     sign up and status change hooks. Mails are sent in the background and
//     failures are logged.
package authui
