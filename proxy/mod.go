// Package proxy defines the HTTP front of a node. The services of the node
// register their handlers on it.
package proxy

import (
	"net"
	"net/http"
)

// Proxy is the HTTP server of a node.
type Proxy interface {
	// Listen binds the address and serves the requests in the background. It
	// can be called again after Stop.
	Listen() error

	// Stop waits for the requests in progress and closes the server.
	Stop() error

	// GetAddr returns the address the server is listening on, or nil if it is
	// not listening.
	GetAddr() net.Addr

	// RegisterHandler registers a new handler. The path follows the syntax of
	// the router and can contain variables like "/price/{asset}".
	RegisterHandler(path string, handler func(http.ResponseWriter, *http.Request))
}
