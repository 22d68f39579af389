// Package audit holds the audit event model, delivery sinks, and the
// asynchronous bounded-queue dispatcher shared by the authgate root
// package. Events cover the session lifecycle (login, signup, logout,
// refresh) and dispatcher security outcomes.
package audit
