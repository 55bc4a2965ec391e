package types

import "time"

// ErrorResponse is the uniform failure envelope returned by every endpoint.
type ErrorResponse struct {
	Timestamp   time.Time `json:"timestamp"`
	StatusCode  int       `json:"statusCode"`
	StatusText  string    `json:"statusText"`
	Message     string    `json:"message"`
	RequestPath string    `json:"requestPath"`
}
