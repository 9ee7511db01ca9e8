// Package errors provides the classified error type used across pkgrepo.
//
// A ClassifiedError carries a category (not_found, filesystem, inspector, ...),
// a severity, a retry hint and structured context. Errors are built with the
// fluent ErrorBuilder:
//
//	err := errors.NotFoundError("repository directory not found").
//		WithContext("directory", dir).
//		Build()
//
// The CLI and HTTP adapters map categories to exit codes and status codes.
package errors
