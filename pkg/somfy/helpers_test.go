package somfy_test

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-somfy/pkg/somfy"
)

const testAPIKey = "test-api-key"

// writeSelfSignedCert writes a throwaway self-signed CA certificate and
// returns its path.
func writeSelfSignedCert(t *testing.T) string {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey() error = %v", err)
	}

	template := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "test root"},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(time.Hour),
		IsCA:                  true,
		BasicConstraintsValid: true,
		KeyUsage:              x509.KeyUsageCertSign,
	}
	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("CreateCertificate() error = %v", err)
	}

	return writePEM(t, der)
}

// writeServerCert writes the certificate of a TLS test server as PEM.
func writeServerCert(t *testing.T, srv *httptest.Server) string {
	t.Helper()
	return writePEM(t, srv.Certificate().Raw)
}

func writePEM(t *testing.T, der []byte) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "root.crt")
	data := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	if err := os.WriteFile(path, data, 0600); err != nil {
		t.Fatalf("writing certificate: %v", err)
	}
	return path
}

// clientFor returns a client pointed at srv. Plaintext servers get a
// throwaway certificate since the engine always resolves one.
func clientFor(t *testing.T, srv *httptest.Server, certPath string) *somfy.Client {
	t.Helper()

	u, err := url.Parse(srv.URL)
	if err != nil {
		t.Fatalf("parsing server URL: %v", err)
	}
	port, err := strconv.Atoi(u.Port())
	if err != nil {
		t.Fatalf("parsing server port: %v", err)
	}

	scheme := somfy.SchemeHTTPS
	if u.Scheme == "http" {
		scheme = somfy.SchemeHTTP
	}
	if certPath == "" {
		certPath = writeSelfSignedCert(t)
	}

	return somfy.NewClient(somfy.Config{
		Scheme: scheme,
		Host:   u.Hostname(),
		Port:   port,
		APIKey: testAPIKey,
		Cert:   somfy.ProvidedCert(certPath),
	})
}

// fixture reads a file from testdata.
func fixture(t *testing.T, name string) []byte {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", name))
	if err != nil {
		t.Fatalf("reading fixture %s: %v", name, err)
	}
	return data
}

// respond returns a handler that writes status and body.
func respond(status int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}
}
