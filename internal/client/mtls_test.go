package client

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"errors"
	"math/big"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// generateCACert creates a self-signed CA certificate and key.
func generateCACert(t *testing.T) (certPEM, keyPEM []byte) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	tmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "Test CA"},
		NotBefore:             time.Now(),
		NotAfter:              time.Now().Add(time.Hour),
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageDigitalSignature,
		BasicConstraintsValid: true,
		IsCA:                  true,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)
	certPEM = pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	keyPEM = pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})
	return certPEM, keyPEM
}

func TestNewHTTPClient_Plain(t *testing.T) {
	c, err := NewHTTPClient("", "", "")
	require.NoError(t, err)
	assert.Nil(t, c.Transport)
	assert.Equal(t, RequestTimeout, c.Timeout)
}

func TestNewHTTPClient_ReadCAError(t *testing.T) {
	_, err := NewHTTPClient("", "", "nonexistent.pem")
	assert.True(t, errors.Is(err, os.ErrNotExist), "got %v", err)
}

func TestNewHTTPClient_InvalidCA(t *testing.T) {
	caPath := filepath.Join(t.TempDir(), "ca.pem")
	require.NoError(t, os.WriteFile(caPath, []byte("invalid pem"), 0o600))

	_, err := NewHTTPClient("", "", caPath)
	assert.ErrorContains(t, err, "failed to parse CA cert")
}

func TestNewHTTPClient_ClientCertificate(t *testing.T) {
	certPEM, keyPEM := generateCACert(t)
	tmp := t.TempDir()
	certPath := filepath.Join(tmp, "client.crt")
	keyPath := filepath.Join(tmp, "client.key")
	caPath := filepath.Join(tmp, "ca.pem")
	require.NoError(t, os.WriteFile(certPath, certPEM, 0o600))
	require.NoError(t, os.WriteFile(keyPath, keyPEM, 0o600))
	require.NoError(t, os.WriteFile(caPath, certPEM, 0o600))

	c, err := NewHTTPClient(certPath, keyPath, caPath)
	require.NoError(t, err)

	tcfg := c.Transport.(*http.Transport).TLSClientConfig
	assert.Len(t, tcfg.Certificates, 1)
	assert.NotNil(t, tcfg.RootCAs)

	_, err = NewHTTPClient(certPath, "", "")
	assert.ErrorContains(t, err, "failed to load client cert/key")
}

func TestReadSelection(t *testing.T) {
	sel, err := ReadSelection("")
	require.NoError(t, err)
	assert.True(t, sel.IsEmpty())

	path := filepath.Join(t.TempDir(), "selection.bin")
	require.NoError(t, os.WriteFile(path, []byte{5, 6}, 0o600))
	sel, err = ReadSelection(path)
	require.NoError(t, err)
	assert.Equal(t, []byte{5, 6}, []byte(sel))

	_, err = ReadSelection(filepath.Join(t.TempDir(), "missing"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
