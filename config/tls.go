package config

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
)

// LoadTLSConfig builds a *tls.Config for the RPC listener from the PEM
// paths in cfg. If cfg is nil or all paths are empty it returns (nil, nil),
// meaning the caller should serve plain HTTP. When CACert is set, clients
// must present a certificate signed by that CA.
func LoadTLSConfig(cfg *TLSConfig) (*tls.Config, error) {
	if cfg == nil || (cfg.CACert == "" && cfg.ServerCert == "" && cfg.ServerKey == "") {
		return nil, nil
	}

	cert, err := tls.LoadX509KeyPair(cfg.ServerCert, cfg.ServerKey)
	if err != nil {
		return nil, fmt.Errorf("load server cert/key: %w", err)
	}

	out := &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS13,
	}

	if cfg.CACert != "" {
		caPEM, err := os.ReadFile(cfg.CACert)
		if err != nil {
			return nil, fmt.Errorf("read CA cert: %w", err)
		}
		caPool := x509.NewCertPool()
		if !caPool.AppendCertsFromPEM(caPEM) {
			return nil, fmt.Errorf("failed to parse CA certificate")
		}
		out.ClientCAs = caPool
		out.ClientAuth = tls.RequireAndVerifyClientCert
	}
	return out, nil
}
