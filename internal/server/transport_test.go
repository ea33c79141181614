package server

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeSelfSigned writes a self-signed certificate and key for 127.0.0.1 and
// returns their paths along with the PEM-encoded certificate.
func writeSelfSigned(t *testing.T, dir, name string) (certPath, keyPath string, certPEM []byte) {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(time.Now().UnixNano()),
		Subject:      pkix.Name{CommonName: name},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		IPAddresses:  []net.IP{net.ParseIP("127.0.0.1")},
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)
	keyDER, err := x509.MarshalECPrivateKey(key)
	require.NoError(t, err)

	certPEM = pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	certPath = filepath.Join(dir, name+".crt")
	keyPath = filepath.Join(dir, name+".key")
	require.NoError(t, os.WriteFile(certPath, certPEM, 0o600))
	require.NoError(t, os.WriteFile(keyPath, pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER}), 0o600))
	return certPath, keyPath, certPEM
}

func TestLoadCertificateAppendsChain(t *testing.T) {
	dir := t.TempDir()
	certPath, keyPath, _ := writeSelfSigned(t, dir, "leaf")
	_, _, interPEM := writeSelfSigned(t, dir, "intermediate")
	chainPath := filepath.Join(dir, "chain.pem")
	require.NoError(t, os.WriteFile(chainPath, interPEM, 0o600))

	cert, err := loadCertificate(certPath, keyPath, "")
	require.NoError(t, err)
	assert.Len(t, cert.Certificate, 1)

	cert, err = loadCertificate(certPath, keyPath, chainPath)
	require.NoError(t, err)
	assert.Len(t, cert.Certificate, 2)
}

func TestLoadCertificateErrors(t *testing.T) {
	dir := t.TempDir()
	certPath, keyPath, _ := writeSelfSigned(t, dir, "leaf")

	_, err := loadCertificate(filepath.Join(dir, "missing.crt"), keyPath, "")
	assert.Error(t, err)

	_, err = loadCertificate(certPath, keyPath, filepath.Join(dir, "missing.pem"))
	assert.Error(t, err)

	empty := filepath.Join(dir, "empty.pem")
	require.NoError(t, os.WriteFile(empty, []byte("not pem"), 0o600))
	_, err = loadCertificate(certPath, keyPath, empty)
	assert.Error(t, err)
}

func TestTLSConfigAutocert(t *testing.T) {
	srv, _ := newTestServer(t)
	srv.cfg.Server.TLS.Enabled = true
	srv.cfg.Server.TLS.AutocertDomains = []string{"play.example.com"}
	srv.cfg.Server.TLS.AutocertCache = t.TempDir()

	cfg, manager, err := srv.tlsConfig()
	require.NoError(t, err)
	require.NotNil(t, manager)
	assert.NotNil(t, cfg.GetCertificate)
	assert.Equal(t, uint16(tls.VersionTLS12), cfg.MinVersion)

	srv.cfg.Server.TLS.AutocertDomains = nil
	_, _, err = srv.tlsConfig()
	assert.Error(t, err)
}

func TestServeTLS(t *testing.T) {
	srv, _ := newTestServer(t)
	dir := t.TempDir()
	certPath, keyPath, _ := writeSelfSigned(t, dir, "leaf")
	srv.cfg.Server.TLS.Enabled = true
	srv.cfg.Server.TLS.CertFile = certPath
	srv.cfg.Server.TLS.KeyFile = keyPath

	plain, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	secure, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, plain, secure) }()

	client := &http.Client{
		Timeout:   5 * time.Second,
		Transport: &http.Transport{TLSClientConfig: &tls.Config{InsecureSkipVerify: true}},
	}
	resp, err := client.Get("https://" + secure.Addr().String() + "/v1/profile")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = client.Get("http://" + plain.Addr().String() + "/v1/profile")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
