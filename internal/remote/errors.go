package remote

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnauthorized indicates the server rejected the API token
var ErrUnauthorized = errors.New("invalid or expired server token")

// ErrRateLimited indicates the server rate limit was exceeded
var ErrRateLimited = errors.New("server rate limit exceeded")

// ServerError represents a 5xx error from a library server
type ServerError struct {
	StatusCode int
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("library server error: HTTP %d", e.StatusCode)
}

// GraphQLError is one entry of a GraphQL "errors" array.
type GraphQLError struct {
	Message string `json:"message"`
	Path    []any  `json:"path,omitempty"`
}

// GraphQLErrors is returned when the server answered with a non-empty errors list.
type GraphQLErrors []GraphQLError

func (e GraphQLErrors) Error() string {
	msgs := make([]string, 0, len(e))
	for _, ge := range e {
		msgs = append(msgs, ge.Message)
	}
	return "graphql: " + strings.Join(msgs, "; ")
}
