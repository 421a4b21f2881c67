package client

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"
)

// RequestTimeout covers a full reader session on the server plus transport overhead.
const RequestTimeout = 90 * time.Second

// NewHTTPClient builds the HTTP client for the shell. caFile pins the server
// CA; certFile and keyFile add a client certificate for servers that require
// one. With no files set a plain client is returned.
func NewHTTPClient(certFile, keyFile, caFile string) (*http.Client, error) {
	if certFile == "" && keyFile == "" && caFile == "" {
		return &http.Client{Timeout: RequestTimeout}, nil
	}

	tlsConfig := &tls.Config{MinVersion: tls.VersionTLS12}

	if caFile != "" {
		caCert, err := os.ReadFile(caFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA cert: %w", err)
		}
		caPool := x509.NewCertPool()
		if !caPool.AppendCertsFromPEM(caCert) {
			return nil, errors.New("failed to parse CA cert")
		}
		tlsConfig.RootCAs = caPool
	}

	if certFile != "" || keyFile != "" {
		cert, err := tls.LoadX509KeyPair(certFile, keyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load client cert/key: %w", err)
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}

	transport := &http.Transport{TLSClientConfig: tlsConfig}
	return &http.Client{Transport: transport, Timeout: RequestTimeout}, nil
}
