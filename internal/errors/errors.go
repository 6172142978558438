// Copyright (c) 2025 SQLAgent
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package errors defines typed errors with categories for user-friendly reporting.
// It provides a structured approach to error handling with machine-readable error kinds
// and human-friendly messages. The pipeline converts per-request kinds into a failed
// result envelope; session-fatal kinds propagate and terminate the session.
package errors

import (
	stderrors "errors"
	"fmt"
)

// Kind is a machine-readable error category.
type Kind string

const (
	// SchemaReflection indicates database schema introspection failed.
	// This kind is fatal for the session: no query can proceed without schema context.
	SchemaReflection Kind = "schema_reflection"
	// LLMProvider indicates a hosted LLM call failed (network, auth, or malformed response).
	LLMProvider Kind = "llm_provider"
	// QueryValidation indicates the generated SQL was unsafe or malformed.
	QueryValidation Kind = "query_validation"
	// QueryExecution indicates the database rejected or timed out on the statement.
	QueryExecution Kind = "query_execution"
	// Configuration indicates invalid or missing configuration.
	Configuration Kind = "configuration"
)

// E wraps an error with kind and human-friendly message.
type E struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *E) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap exposes the underlying error for errors.Is/As chains.
func (e *E) Unwrap() error { return e.Err }

func Wrap(kind Kind, msg string, err error) *E { return &E{Kind: kind, Message: msg, Err: err} }
func New(kind Kind, msg string) *E             { return &E{Kind: kind, Message: msg} }

// KindOf returns the kind of err when it is (or wraps) an *E.
// Unknown errors report as QueryExecution so they still surface in the envelope.
func KindOf(err error) Kind {
	var e *E
	if stderrors.As(err, &e) {
		return e.Kind
	}
	return QueryExecution
}

// IsFatal reports whether an error kind should terminate the session
// instead of being folded into a failed result envelope.
func IsFatal(kind Kind) bool {
	return kind == SchemaReflection
}
