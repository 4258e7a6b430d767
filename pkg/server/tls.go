package server

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"mercator-hq/gateway/pkg/config"
)

// certExpiryWarning is how close to expiry a certificate starts logging warnings.
const certExpiryWarning = 30 * 24 * time.Hour

// certReloader serves a certificate pair from disk and swaps in a new one
// when either file's modification time moves forward.
type certReloader struct {
	certFile string
	keyFile  string
	interval time.Duration
	logger   *slog.Logger
	now      func() time.Time

	mu       sync.RWMutex
	cert     *tls.Certificate
	certTime time.Time
	keyTime  time.Time
}

func newCertReloader(cfg *config.TLSConfig, logger *slog.Logger) *certReloader {
	return &certReloader{
		certFile: cfg.CertFile,
		keyFile:  cfg.KeyFile,
		interval: cfg.ReloadInterval,
		logger:   logger,
		now:      time.Now,
	}
}

// load reads and validates the pair. The current certificate is kept when
// the new pair is unusable.
func (r *certReloader) load() error {
	certInfo, err := os.Stat(r.certFile)
	if err != nil {
		return fmt.Errorf("certificate file: %w", err)
	}
	keyInfo, err := os.Stat(r.keyFile)
	if err != nil {
		return fmt.Errorf("key file: %w", err)
	}

	cert, err := tls.LoadX509KeyPair(r.certFile, r.keyFile)
	if err != nil {
		return fmt.Errorf("failed to load certificate: %w", err)
	}
	leaf, err := validateCertificate(&cert, r.now())
	if err != nil {
		return err
	}
	cert.Leaf = leaf

	r.mu.Lock()
	r.cert = &cert
	r.certTime = certInfo.ModTime()
	r.keyTime = keyInfo.ModTime()
	r.mu.Unlock()

	r.logCertificate(leaf)
	return nil
}

// changed reports whether either file is newer than the loaded pair.
func (r *certReloader) changed() bool {
	certInfo, err := os.Stat(r.certFile)
	if err != nil {
		return false
	}
	keyInfo, err := os.Stat(r.keyFile)
	if err != nil {
		return false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	return certInfo.ModTime().After(r.certTime) || keyInfo.ModTime().After(r.keyTime)
}

// run polls for changes until ctx is cancelled.
func (r *certReloader) run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if !r.changed() {
				continue
			}
			if err := r.load(); err != nil {
				r.logger.Error("Failed to reload certificate",
					"error", err,
					"cert_file", r.certFile,
					"key_file", r.keyFile,
				)
				continue
			}
			r.logger.Info("Certificate reloaded", "cert_file", r.certFile)
		case <-ctx.Done():
			return
		}
	}
}

func (r *certReloader) getCertificate(*tls.ClientHelloInfo) (*tls.Certificate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.cert == nil {
		return nil, fmt.Errorf("no certificate loaded")
	}
	return r.cert, nil
}

func (r *certReloader) logCertificate(leaf *x509.Certificate) {
	remaining := leaf.NotAfter.Sub(r.now())
	attrs := []any{
		"subject", leaf.Subject.CommonName,
		"issuer", leaf.Issuer.CommonName,
		"expires_in_days", int(remaining.Hours() / 24),
		"expires_at", leaf.NotAfter.Format(time.RFC3339),
	}
	if remaining < certExpiryWarning {
		r.logger.Warn("Certificate expiring soon", attrs...)
		return
	}
	r.logger.Info("Certificate loaded", attrs...)
}

// validateCertificate parses the leaf and checks its validity window.
func validateCertificate(cert *tls.Certificate, now time.Time) (*x509.Certificate, error) {
	if len(cert.Certificate) == 0 {
		return nil, fmt.Errorf("certificate chain is empty")
	}
	leaf, err := x509.ParseCertificate(cert.Certificate[0])
	if err != nil {
		return nil, fmt.Errorf("failed to parse certificate: %w", err)
	}
	if now.Before(leaf.NotBefore) {
		return nil, fmt.Errorf("certificate is not yet valid (valid from %s)", leaf.NotBefore.Format(time.RFC3339))
	}
	if now.After(leaf.NotAfter) {
		return nil, fmt.Errorf("certificate expired on %s", leaf.NotAfter.Format(time.RFC3339))
	}
	return leaf, nil
}

// newTLSConfig builds the listener configuration around reloader.
func newTLSConfig(cfg *config.TLSConfig, reloader *certReloader) (*tls.Config, error) {
	// #nosec G402 - MinVersion is validated to 1.2 or 1.3
	tlsCfg := &tls.Config{
		GetCertificate: reloader.getCertificate,
		MinVersion:     tlsVersion(cfg.MinVersion),
	}

	if cfg.ClientCAFile == "" {
		return tlsCfg, nil
	}
	pem, err := os.ReadFile(cfg.ClientCAFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read client CA: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("no certificates found in client CA file %s", cfg.ClientCAFile)
	}
	tlsCfg.ClientCAs = pool
	tlsCfg.ClientAuth = clientAuthType(cfg.ClientAuth)
	return tlsCfg, nil
}

func tlsVersion(v string) uint16 {
	if v == "1.3" {
		return tls.VersionTLS13
	}
	return tls.VersionTLS12
}

func clientAuthType(v string) tls.ClientAuthType {
	if v == "verify_if_given" {
		return tls.VerifyClientCertIfGiven
	}
	return tls.RequireAndVerifyClientCert
}
