// Package certstore keeps a local copy of the gateway vendor's root
// certificate.
//
// The gateway's TLS certificate is signed by a vendor root that is not in
// any system trust store. A Store downloads that root once, caches it as
// a PEM file, and re-reads it from disk on every Ensure call. A corrupt
// cache file is reported, never repaired: delete it to force a fresh
// download.
//
// Concurrent cold starts within one process share a single download.
// Writes go through a temporary file and a rename, so a torn write is
// never read back as a valid certificate.
package certstore

import (
	"context"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/singleflight"
)

// Defaults for the process-wide cache.
const (
	// DefaultRemoteURL is where the vendor publishes its root certificate.
	DefaultRemoteURL = "https://ca.overkiz.com/overkiz-root-ca-2048.crt"

	// DefaultDirName is the cache folder under the user's home directory.
	DefaultDirName = ".somfy_sdk"

	// FileName is the cached certificate's file name.
	FileName = "cert.crt"

	dirPermissions  = 0750
	filePermissions = 0600

	// downloadTimeout bounds a shared download once it no longer follows
	// the caller's context.
	downloadTimeout = 30 * time.Second

	// maxCertSize bounds the download; a single root is about 1.2 KB.
	maxCertSize = 64 << 10

	pemBlockCertificate = "CERTIFICATE"
)

// Sentinel errors for certificate operations.
var (
	// ErrRemoteCert is returned when the download fails or returns something
	// other than a PEM certificate.
	ErrRemoteCert = errors.New("certstore: remote certificate could not be retrieved")

	// ErrInvalidCert is returned when the cached or provided file is not a
	// readable PEM certificate.
	ErrInvalidCert = errors.New("certstore: certificate is invalid")

	// ErrFileSystem is returned when the cache directory or file cannot be
	// written.
	ErrFileSystem = errors.New("certstore: filesystem error")
)

// downloads collapses concurrent cold-cache downloads, keyed by cache path.
var downloads singleflight.Group

// Store is a certificate cache rooted at Dir.
//
// The zero value is not usable; build one with Default or set Dir and
// RemoteURL explicitly. A Store is safe for concurrent use.
type Store struct {
	// Dir is the cache directory; it is created on first use.
	Dir string

	// RemoteURL is fetched when the cache file is absent.
	RemoteURL string

	// HTTPClient performs the download. Nil means http.DefaultClient.
	HTTPClient *http.Client

	// Logger receives debug messages. Nil disables logging.
	Logger *slog.Logger
}

// Default returns the store under <home>/.somfy_sdk that downloads from the
// vendor's published URL. If the home directory is unknown the current
// directory is used.
func Default() *Store {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return &Store{
		Dir:       filepath.Join(home, DefaultDirName),
		RemoteURL: DefaultRemoteURL,
	}
}

// Path returns the cache file location.
func (s *Store) Path() string {
	return filepath.Join(s.Dir, FileName)
}

// Ensure returns the cached root certificate, downloading it first if the
// cache file does not exist.
//
// Parameters:
//   - ctx: Bounds how long this caller waits for the download; unused
//     when the cache is warm. A download shared with other callers keeps
//     running when ctx ends.
//
// Returns:
//   - *x509.Certificate: The parsed root certificate
//   - error: ErrFileSystem, ErrRemoteCert or ErrInvalidCert
func (s *Store) Ensure(ctx context.Context) (*x509.Certificate, error) {
	if err := os.MkdirAll(s.Dir, dirPermissions); err != nil {
		return nil, fmt.Errorf("%w: creating %s: %w", ErrFileSystem, s.Dir, err)
	}

	path := s.Path()
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		s.debug("certificate not cached, downloading", "path", path, "url", s.RemoteURL)
		ch := downloads.DoChan(path, func() (any, error) {
			// Shared by every waiting caller, so no single caller's
			// cancellation may abort it.
			dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), downloadTimeout)
			defer cancel()
			return nil, s.download(dctx, path)
		})
		select {
		case res := <-ch:
			if res.Err != nil {
				return nil, res.Err
			}
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: waiting for download: %w", ErrRemoteCert, ctx.Err())
		}
	}

	return LoadFile(path)
}

// download fetches RemoteURL, checks it is a PEM certificate and writes it
// to path atomically.
func (s *Store) download(ctx context.Context, path string) error {
	// Another caller may have finished between Stat and Do.
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.RemoteURL, nil)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrRemoteCert, err)
	}

	client := s.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrRemoteCert, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: HTTP %d", ErrRemoteCert, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxCertSize))
	if err != nil {
		return fmt.Errorf("%w: reading body: %w", ErrRemoteCert, err)
	}
	if _, err := Parse(body); err != nil {
		return fmt.Errorf("%w: %w", ErrRemoteCert, err)
	}

	if err := writeAtomic(path, body); err != nil {
		return err
	}
	s.debug("certificate cached", "path", path, "bytes", len(body))
	return nil
}

func (s *Store) debug(msg string, args ...any) {
	if s.Logger != nil {
		s.Logger.Debug(msg, args...)
	}
}

// writeAtomic writes data next to path and renames it into place.
func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), FileName+".*.tmp")
	if err != nil {
		return fmt.Errorf("%w: creating temp file: %w", ErrFileSystem, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) //nolint:errcheck // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close() //nolint:errcheck // best effort on error path
		return fmt.Errorf("%w: writing certificate: %w", ErrFileSystem, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close() //nolint:errcheck // best effort on error path
		return fmt.Errorf("%w: syncing certificate: %w", ErrFileSystem, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: closing certificate: %w", ErrFileSystem, err)
	}
	if err := os.Chmod(tmpName, filePermissions); err != nil {
		return fmt.Errorf("%w: setting permissions: %w", ErrFileSystem, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("%w: renaming certificate: %w", ErrFileSystem, err)
	}
	return nil
}

// LoadFile reads and parses a PEM certificate file.
func LoadFile(path string) (*x509.Certificate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %w", ErrInvalidCert, path, err)
	}
	return Parse(data)
}

// Parse decodes the first PEM CERTIFICATE block in data.
func Parse(data []byte) (*x509.Certificate, error) {
	block, _ := pem.Decode(data)
	if block == nil || block.Type != pemBlockCertificate {
		return nil, fmt.Errorf("%w: no PEM certificate block", ErrInvalidCert)
	}
	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCert, err)
	}
	return cert, nil
}
