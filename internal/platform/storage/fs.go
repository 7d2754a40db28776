package storage

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// FSStore keeps blobs on the local filesystem and signs download URLs with an
// HMAC over key+expiry. ServeKey verifies the same signature on the way out.
type FSStore struct {
	base      string
	publicURL string // base URL the signed links point at, e.g. http://localhost:8080
	secret    []byte
	ttl       time.Duration
	now       func() time.Time
}

func NewFSStore(base, publicURL, secret string) (*FSStore, error) {
	if base == "" {
		base = "./data"
	}
	if err := os.MkdirAll(base, 0o755); err != nil {
		return nil, err
	}
	return &FSStore{
		base:      base,
		publicURL: publicURL,
		secret:    []byte(secret),
		ttl:       15 * time.Minute,
		now:       time.Now,
	}, nil
}

func (s *FSStore) Put(key string, r io.Reader) (string, error) {
	if key == "" {
		return "", errors.New("empty key")
	}
	dst := filepath.Join(s.base, filepath.Clean(key))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", err
	}
	f, err := os.Create(dst)
	if err != nil {
		return "", err
	}
	defer f.Close()
	if _, err := io.Copy(f, r); err != nil {
		return "", err
	}
	return key, nil
}

func (s *FSStore) Get(key string) (io.ReadCloser, error) {
	return os.Open(filepath.Join(s.base, filepath.Clean(key)))
}

// SignedURL returns an expiring, unauthenticated download link served by the
// platform's /blobs route.
func (s *FSStore) SignedURL(key string) (string, error) {
	if key == "" {
		return "", errors.New("empty key")
	}
	exp := s.now().Add(s.ttl).Unix()
	q := url.Values{}
	q.Set("exp", strconv.FormatInt(exp, 10))
	q.Set("sig", s.sign(key, exp))
	return fmt.Sprintf("%s/blobs/%s?%s", s.publicURL, key, q.Encode()), nil
}

// Verify checks a presented exp/sig pair for key. Used by the blob route.
func (s *FSStore) Verify(key, expStr, sig string) error {
	exp, err := strconv.ParseInt(expStr, 10, 64)
	if err != nil {
		return errors.New("bad expiry")
	}
	if s.now().Unix() > exp {
		return errors.New("link expired")
	}
	want := s.sign(key, exp)
	if !hmac.Equal([]byte(want), []byte(sig)) {
		return errors.New("bad signature")
	}
	return nil
}

func (s *FSStore) sign(key string, exp int64) string {
	mac := hmac.New(sha256.New, s.secret)
	fmt.Fprintf(mac, "%s\n%d", key, exp)
	return hex.EncodeToString(mac.Sum(nil))
}
