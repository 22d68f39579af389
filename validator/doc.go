// Package validator provides stateless sanitization and policy
// enforcement for user-supplied strings: email, password, and display
// name policies plus generic required/length helpers.
//
// Validators never panic and never return Go errors; every violated rule
// is reported through [Result.Errors] so forms can show all problems at
// once. Sanitize is idempotent: Sanitize(Sanitize(x)) == Sanitize(x).
package validator
