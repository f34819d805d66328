// Package api wraps the REST endpoints the client uses. Every wrapper goes
// through a RESTClient, so throttling and error semantics are the client's.
package api

import "context"

// RESTClient is satisfied by *rest.REST. Routes are relative to the versioned
// API prefix.
type RESTClient interface {
	Get(ctx context.Context, route string, out any) error
	Post(ctx context.Context, route string, body any, out any) error
	Patch(ctx context.Context, route string, body any, out any) error
	Delete(ctx context.Context, route string, out any) error
}
