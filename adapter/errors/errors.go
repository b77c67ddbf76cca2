// Package errors defines error types shared by the router, the data layer
// and the HTTP adapter.
package errors

import "fmt"

// InvalidQueryError represents a rejected user query.
type InvalidQueryError struct {
	Message string
}

func (e *InvalidQueryError) Error() string {
	return fmt.Sprintf("invalid query: %s", e.Message)
}

// NewInvalidQueryError creates a new invalid query error.
func NewInvalidQueryError(message string) *InvalidQueryError {
	return &InvalidQueryError{Message: message}
}

// UnknownDomainError is returned when a name or a query does not map to a
// routable business domain.
type UnknownDomainError struct {
	Domain string
	Query  string
}

func (e *UnknownDomainError) Error() string {
	if e.Query != "" {
		return fmt.Sprintf("unable to determine domain for query %q", e.Query)
	}
	return fmt.Sprintf("unknown domain %q", e.Domain)
}

// NewUnknownDomainError creates a new unknown domain error.
func NewUnknownDomainError(domain, query string) *UnknownDomainError {
	return &UnknownDomainError{Domain: domain, Query: query}
}

// DataUnavailableError represents a dataset that could not be loaded,
// fetched or decoded.
type DataUnavailableError struct {
	Domain string
	Source string
	Cause  error
}

func (e *DataUnavailableError) Error() string {
	if e.Source != "" {
		return fmt.Sprintf("%s data unavailable from %s: %v", e.Domain, e.Source, e.Cause)
	}
	return fmt.Sprintf("%s data unavailable: %v", e.Domain, e.Cause)
}

func (e *DataUnavailableError) Unwrap() error {
	return e.Cause
}

// NewDataUnavailableError creates a new data unavailable error.
func NewDataUnavailableError(domain, source string, cause error) *DataUnavailableError {
	return &DataUnavailableError{Domain: domain, Source: source, Cause: cause}
}

// UpstreamError represents a failure of the hosted language model.
type UpstreamError struct {
	Provider string
	Cause    error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s api error: %v", e.Provider, e.Cause)
}

func (e *UpstreamError) Unwrap() error {
	return e.Cause
}

// NewUpstreamError creates a new upstream error.
func NewUpstreamError(provider string, cause error) *UpstreamError {
	return &UpstreamError{Provider: provider, Cause: cause}
}

// AgentTimeoutError represents a timeout waiting for an agent response.
type AgentTimeoutError struct {
	AgentName string
	Timeout   float64
}

func (e *AgentTimeoutError) Error() string {
	return fmt.Sprintf("timeout waiting for agent '%s' (timeout: %.1fs)", e.AgentName, e.Timeout)
}

// NewAgentTimeoutError creates a new agent timeout error.
func NewAgentTimeoutError(agentName string, timeout float64) *AgentTimeoutError {
	return &AgentTimeoutError{AgentName: agentName, Timeout: timeout}
}
