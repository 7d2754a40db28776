// Package storage holds item XML bodies and hands out pre-signed, expiring
// URLs for them, mimicking the object-storage split the real content service
// uses: metadata is bearer-authenticated, payload URLs are not.
package storage

import "io"

type BlobStore interface {
	Put(key string, r io.Reader) (string, error) // returns canonical key
	Get(key string) (io.ReadCloser, error)
	SignedURL(key string) (string, error)
}
