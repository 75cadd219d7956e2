package server

import (
	"net/http"
	"time"
)

// Shutdowner is closed when the HTTP server starts shutting down.
type Shutdowner interface {
	Shutdown()
}

// NewHTTPServer wraps handler in an http.Server. Forms are shut down as soon
// as the server begins its graceful shutdown, which ends their event streams
// so in-flight SSE requests can return.
func NewHTTPServer(addr string, handler http.Handler, forms Shutdowner) *http.Server {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	if forms != nil {
		srv.RegisterOnShutdown(forms.Shutdown)
	}
	return srv
}
