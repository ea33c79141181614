package server

import (
	"context"
	"crypto/tls"
	"encoding/pem"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/acme/autocert"

	"github.com/yourorg/sessionmock/internal/gamestate"
)

const readHeaderTimeout = 10 * time.Second

// Run listens on the configured addresses and serves until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	plain, err := net.Listen("tcp", s.cfg.Addr())
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.Addr(), err)
	}
	var secure net.Listener
	if s.cfg.Server.TLS.Enabled {
		secure, err = net.Listen("tcp", s.cfg.TLSAddr())
		if err != nil {
			_ = plain.Close()
			return fmt.Errorf("listen %s: %w", s.cfg.TLSAddr(), err)
		}
	}
	return s.Serve(ctx, plain, secure)
}

// Serve serves on plain and, when non-nil, on secure wrapped in TLS. It
// returns after both servers shut down. Cancelling ctx triggers a graceful
// shutdown bounded by server.shutdown_timeout.
func (s *Server) Serve(ctx context.Context, plain, secure net.Listener) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	handler := s.Handler()
	plainHandler := handler

	var servers []*http.Server
	listeners := []net.Listener{plain}

	if secure != nil {
		tlsCfg, manager, err := s.tlsConfig()
		if err != nil {
			_ = plain.Close()
			_ = secure.Close()
			return err
		}
		if manager != nil {
			plainHandler = manager.HTTPHandler(handler)
		}
		servers = append(servers, s.httpServer(ctx, handler))
		listeners = append(listeners, tls.NewListener(secure, tlsCfg))
	}
	servers = append([]*http.Server{s.httpServer(ctx, plainHandler)}, servers...)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		gamestate.ExpireLoop(ctx, s.store, s.cfg.Sessions.IdleTimeout, s.cfg.Sessions.SweepInterval, s.log)
	}()

	errCh := make(chan error, len(servers))
	for i, srv := range servers {
		ln := listeners[i]
		s.log.Info("listening", "addr", ln.Addr().String(), "tls", i > 0)
		go func() {
			if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("serve %s: %w", ln.Addr(), err)
			}
		}()
	}

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-errCh:
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	for _, srv := range servers {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.log.Warn("shutdown incomplete", "err", err)
			_ = srv.Close()
		}
	}
	wg.Wait()
	s.log.Info("server stopped")
	return serveErr
}

func (s *Server) httpServer(ctx context.Context, h http.Handler) *http.Server {
	return &http.Server{
		Handler:           h,
		ReadHeaderTimeout: readHeaderTimeout,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
}

// tlsConfig uses the configured certificate files when set, otherwise an ACME
// manager for autocert_domains. The manager is returned so the plaintext
// listener can answer HTTP-01 challenges.
func (s *Server) tlsConfig() (*tls.Config, *autocert.Manager, error) {
	t := s.cfg.Server.TLS
	if strings.TrimSpace(t.CertFile) != "" {
		cert, err := loadCertificate(t.CertFile, t.KeyFile, t.ChainFile)
		if err != nil {
			return nil, nil, err
		}
		return &tls.Config{
			MinVersion:   tls.VersionTLS12,
			Certificates: []tls.Certificate{cert},
		}, nil, nil
	}
	if len(t.AutocertDomains) == 0 {
		return nil, nil, errors.New("tls: no certificate source configured")
	}
	manager := &autocert.Manager{
		Cache:      autocert.DirCache(t.AutocertCache),
		Prompt:     autocert.AcceptTOS,
		HostPolicy: autocert.HostWhitelist(t.AutocertDomains...),
	}
	cfg := manager.TLSConfig()
	cfg.MinVersion = tls.VersionTLS12
	return cfg, manager, nil
}

// loadCertificate loads a key pair and appends any certificates found in
// chainFile to the served chain.
func loadCertificate(certFile, keyFile, chainFile string) (tls.Certificate, error) {
	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("load tls key pair: %w", err)
	}
	if strings.TrimSpace(chainFile) == "" {
		return cert, nil
	}
	data, err := os.ReadFile(chainFile)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("read tls chain: %w", err)
	}
	added := 0
	for {
		var block *pem.Block
		block, data = pem.Decode(data)
		if block == nil {
			break
		}
		if block.Type != "CERTIFICATE" {
			continue
		}
		cert.Certificate = append(cert.Certificate, block.Bytes)
		added++
	}
	if added == 0 {
		return tls.Certificate{}, fmt.Errorf("tls chain %s: no certificates found", chainFile)
	}
	return cert, nil
}
