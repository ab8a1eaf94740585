// Package httputil provides the graceful HTTP server lifecycle shared
// by the API and metrics servers: bind-then-verify startup and a
// context-bounded graceful stop with a hard close fallback.
package httputil

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"
)

// DefaultTimeouts are conservative request bounds. They do not constrain
// the WebSocket stream route: a hijacked connection manages its own
// deadlines frame by frame.
var DefaultTimeouts = Timeouts{
	ReadTimeout:       30 * time.Second,
	ReadHeaderTimeout: 30 * time.Second,
	WriteTimeout:      30 * time.Second,
	IdleTimeout:       120 * time.Second,
}

type Timeouts struct {
	ReadTimeout       time.Duration
	ReadHeaderTimeout time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
}

// HTTPServer wraps a http.Server with explicit start/stop semantics: the
// listener is bound synchronously in Start so a taken port fails fast,
// and Stop attempts a graceful drain before force-closing.
type HTTPServer struct {
	listener net.Listener
	srv      *http.Server

	srvCancel context.CancelFunc
	errCh     chan error
}

func StartHTTPServer(addr string, handler http.Handler) (*HTTPServer, error) {
	srvCtx, srvCancel := context.WithCancel(context.Background())
	srv := &http.Server{
		Handler:           handler,
		ReadTimeout:       DefaultTimeouts.ReadTimeout,
		ReadHeaderTimeout: DefaultTimeouts.ReadHeaderTimeout,
		WriteTimeout:      DefaultTimeouts.WriteTimeout,
		IdleTimeout:       DefaultTimeouts.IdleTimeout,
		BaseContext: func(net.Listener) context.Context {
			return srvCtx
		},
	}
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		srvCancel()
		return nil, fmt.Errorf("failed to bind to address %q: %w", addr, err)
	}

	s := &HTTPServer{
		listener:  listener,
		srv:       srv,
		srvCancel: srvCancel,
		errCh:     make(chan error, 1),
	}
	go func() {
		s.errCh <- srv.Serve(listener)
	}()

	// verify the server comes up before declaring success
	standupTimer := time.NewTimer(10 * time.Millisecond)
	defer standupTimer.Stop()
	select {
	case err := <-s.errCh:
		srvCancel()
		return nil, fmt.Errorf("http server failed to start: %w", err)
	case <-standupTimer.C:
		return s, nil
	}
}

// Addr returns the bound listen address, useful when started on port 0.
func (s *HTTPServer) Addr() net.Addr {
	return s.listener.Addr()
}

// Stop drains in-flight requests until ctx expires, then force-closes
// whatever remains. Connections hijacked for WebSocket streaming are not
// drained by Shutdown; the srvCtx cancellation tells their handlers to
// finish.
func (s *HTTPServer) Stop(ctx context.Context) error {
	s.srvCancel()
	err := s.srv.Shutdown(ctx)
	if errors.Is(err, ctx.Err()) {
		return s.srv.Close()
	}
	return err
}
