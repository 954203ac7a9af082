// Package gcloud holds the client options and error classification shared by
// the Google Cloud Storage and Vision adapters.
package gcloud

import (
	"context"
	"errors"
	"net"
	"net/http"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// Credentials describes how to reach a Google API. CredentialsFile is a
// service account JSON key passed straight to the client; nothing is read
// from GOOGLE_APPLICATION_CREDENTIALS.
type Credentials struct {
	CredentialsFile string
	Endpoint        string
	HTTPClient      *http.Client
}

// ClientOptions builds the option set for a generated API client.
func ClientOptions(c Credentials) []option.ClientOption {
	var opts []option.ClientOption
	if c.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(c.Endpoint))
	}
	if c.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(c.HTTPClient))
	}
	switch {
	case c.CredentialsFile != "":
		opts = append(opts, option.WithCredentialsFile(c.CredentialsFile))
	case c.Endpoint != "":
		// emulators and test servers take no credentials
		opts = append(opts, option.WithoutAuthentication())
	}
	return opts
}

// StatusCode returns the HTTP status of a googleapi error, or 0.
func StatusCode(err error) int {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return gerr.Code
	}
	return 0
}

// Temporary reports whether err is worth retrying: rate limiting, server
// errors, deadlines and network timeouts.
func Temporary(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if code := StatusCode(err); code != 0 {
		return retryableStatus(code)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return false
}

func retryableStatus(statusCode int) bool {
	switch statusCode {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}
