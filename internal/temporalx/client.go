package temporalx

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"time"

	temporalsdkclient "go.temporal.io/sdk/client"

	"github.com/coursebuilder/backend/internal/logger"
)

// NewClient dials Temporal per the TEMPORAL_* env config. An unset
// TEMPORAL_ADDRESS disables the hosting layer entirely and returns
// (nil, nil); the polling worker covers execution on its own.
func NewClient(log *logger.Logger) (temporalsdkclient.Client, error) {
	cfg := LoadConfig()
	if cfg.Address == "" {
		if log != nil {
			log.Warn("TEMPORAL_ADDRESS not set; Temporal disabled")
		}
		return nil, nil
	}

	opts := temporalsdkclient.Options{
		HostPort:  cfg.Address,
		Namespace: cfg.Namespace,
		Logger:    log,
	}
	if cfg.ClientCertPath != "" || cfg.ClientKeyPath != "" || cfg.ClientCAPath != "" {
		tlsCfg, err := loadTLSConfig(cfg)
		if err != nil {
			return nil, err
		}
		opts.ConnectionOptions.TLS = tlsCfg
	}

	// Temporal often starts after the API in local compose setups, so
	// retry with backoff for a bounded window.
	deadline := time.Now().Add(60 * time.Second)
	backoff := 250 * time.Millisecond
	for attempt := 1; ; attempt++ {
		dialCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		c, err := temporalsdkclient.DialContext(dialCtx, opts)
		cancel()
		if err == nil {
			if log != nil && attempt > 1 {
				log.Info("Connected to Temporal", "address", cfg.Address, "namespace", cfg.Namespace, "attempts", attempt)
			}
			return c, nil
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("temporal dial failed (address=%s namespace=%s): %w", cfg.Address, cfg.Namespace, err)
		}
		if log != nil {
			log.Warn("Temporal not reachable; retrying", "address", cfg.Address, "attempt", attempt, "error", err)
		}
		time.Sleep(backoff)
		if backoff < 5*time.Second {
			backoff *= 2
		}
	}
}

func loadTLSConfig(cfg Config) (*tls.Config, error) {
	if cfg.ClientCertPath == "" || cfg.ClientKeyPath == "" {
		return nil, fmt.Errorf("temporal tls: both TEMPORAL_CLIENT_CERT_PATH and TEMPORAL_CLIENT_KEY_PATH are required")
	}
	cert, err := tls.LoadX509KeyPair(cfg.ClientCertPath, cfg.ClientKeyPath)
	if err != nil {
		return nil, fmt.Errorf("temporal tls: load client cert/key: %w", err)
	}
	tlsCfg := &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}
	if cfg.ClientCAPath != "" {
		pem, err := os.ReadFile(cfg.ClientCAPath)
		if err != nil {
			return nil, fmt.Errorf("temporal tls: read CA: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("temporal tls: invalid CA pem")
		}
		tlsCfg.RootCAs = pool
	}
	return tlsCfg, nil
}
