// Package livetail implements the live-export surface of the DOMAIN STACK:
// an HTTP/3 server that streams the offline aggregator's (internal/aggregate)
// periodic results to a connected tool, adapted from the teacher's
// HTTP3Server wrapper (internal/runtime/netstack/http3.go) around
// quic-go/http3.
package livetail

import (
	"crypto/tls"
	"net"
	"net/http"
	"time"

	quic "github.com/quic-go/quic-go"
	http3 "github.com/quic-go/quic-go/http3"
)

// Server wraps an http3.Server's lifecycle the way the teacher's
// HTTP3Server does. It serves whatever http.Handler New is given;
// ServeDirectory gives it a mux with the single /stream endpoint.
type Server struct {
	pc    net.PacketConn
	srv   *http3.Server
	close func() error
	errC  chan error
	addr  string
}

// Options configures the underlying QUIC transport.
type Options struct {
	MaxIdleTimeout  time.Duration
	KeepAlivePeriod time.Duration
}

func enforceTLS13(tlsCfg *tls.Config) *tls.Config {
	if tlsCfg == nil {
		return &tls.Config{MinVersion: tls.VersionTLS13, NextProtos: []string{"h3"}}
	}

	if tlsCfg.MinVersion >= tls.VersionTLS13 && len(tlsCfg.NextProtos) > 0 {
		return tlsCfg
	}

	c := tlsCfg.Clone()
	c.MinVersion = tls.VersionTLS13

	if len(c.NextProtos) == 0 {
		c.NextProtos = []string{"h3"}
	}

	return c
}

// New creates a Server bound to addr, serving h over HTTP/3. TLS 1.3 is
// enforced unconditionally — QUIC requires it.
func New(addr string, tlsCfg *tls.Config, h http.Handler, opts Options) *Server {
	qc := &quic.Config{}
	if opts.MaxIdleTimeout > 0 {
		qc.MaxIdleTimeout = opts.MaxIdleTimeout
	}

	if opts.KeepAlivePeriod > 0 {
		qc.KeepAlivePeriod = opts.KeepAlivePeriod
	}

	srv := &http3.Server{Addr: addr, TLSConfig: enforceTLS13(tlsCfg), Handler: h, QUICConfig: qc}

	return &Server{srv: srv, addr: addr, errC: make(chan error, 1)}
}

// Start begins serving on an ephemeral UDP port if addr ends with ":0". Use
// the returned address to discover the actual bound port.
func (s *Server) Start() (string, error) {
	var err error

	s.pc, err = net.ListenPacket("udp", s.addr)
	if err != nil {
		return "", err
	}

	realAddr := s.pc.LocalAddr().String()
	done := make(chan struct{})

	go func() {
		if err := s.srv.Serve(s.pc); err != nil {
			select {
			case s.errC <- err:
			default:
			}
		}

		close(done)
	}()

	s.close = func() error {
		_ = s.pc.Close()

		select {
		case <-done:
		case <-time.After(time.Second):
		}

		return nil
	}

	return realAddr, nil
}

// Stop closes the listener and waits (briefly) for the serve goroutine to
// exit.
func (s *Server) Stop() error {
	if s.close != nil {
		return s.close()
	}

	return nil
}

// Error returns a non-blocking channel that receives the first serve error,
// if any.
func (s *Server) Error() <-chan error {
	if s == nil || s.errC == nil {
		ch := make(chan error)
		close(ch)

		return ch
	}

	return s.errC
}
