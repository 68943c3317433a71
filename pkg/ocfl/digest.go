package ocfl

import (
	"crypto/md5"  // #nosec
	"crypto/sha1" // #nosec
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"hash"
	"io"
	"sort"

	blake2b "github.com/minio/blake2b-simd"

	"github.com/oneconcern/migrator/pkg/ocfl/status"
)

// DigestAlgorithm is a named hash function, named after the OCFL registry
type DigestAlgorithm struct {
	name string
	new  func() hash.Hash
}

// Supported digest algorithms
var (
	SHA512     = DigestAlgorithm{name: "sha512", new: sha512.New}
	SHA256     = DigestAlgorithm{name: "sha256", new: sha256.New}
	SHA1       = DigestAlgorithm{name: "sha1", new: sha1.New}
	MD5        = DigestAlgorithm{name: "md5", new: md5.New}
	BLAKE2B512 = DigestAlgorithm{name: "blake2b-512", new: blake2b.New512}
)

var digestAlgorithms = map[string]DigestAlgorithm{
	SHA512.name:     SHA512,
	SHA256.name:     SHA256,
	SHA1.name:       SHA1,
	MD5.name:        MD5,
	BLAKE2B512.name: BLAKE2B512,
}

// DigestAlgorithmFromName resolves an OCFL digest algorithm name, e.g. "sha512"
func DigestAlgorithmFromName(name string) (DigestAlgorithm, error) {
	alg, ok := digestAlgorithms[name]
	if !ok {
		return DigestAlgorithm{}, status.ErrUnknownDigest.Wrapf("%q is not one of %v", name, DigestAlgorithmNames())
	}
	return alg, nil
}

// DigestAlgorithmNames lists supported algorithm names
func DigestAlgorithmNames() []string {
	names := make([]string, 0, len(digestAlgorithms))
	for name := range digestAlgorithms {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Name of the algorithm, as recorded in inventories
func (d DigestAlgorithm) Name() string {
	return d.name
}

// New hash
func (d DigestAlgorithm) New() hash.Hash {
	return d.new()
}

// IsZero tells if this algorithm is unset
func (d DigestAlgorithm) IsZero() bool {
	return d.new == nil
}

// Sum computes the hex digest of a byte buffer
func (d DigestAlgorithm) Sum(data []byte) string {
	h := d.new()
	_, _ = h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// DigestWriter computes a digest while content is copied
type DigestWriter struct {
	w       io.Writer
	h       hash.Hash
	written int64
}

// NewDigestWriter wraps a writer. A nil writer only computes the digest.
func (d DigestAlgorithm) NewDigestWriter(w io.Writer) *DigestWriter {
	h := d.new()
	if w == nil {
		return &DigestWriter{w: h, h: h}
	}
	return &DigestWriter{w: io.MultiWriter(w, h), h: h}
}

func (dw *DigestWriter) Write(p []byte) (int, error) {
	n, err := dw.w.Write(p)
	dw.written += int64(n)
	return n, err
}

// Digest returns the hex digest of everything written so far
func (dw *DigestWriter) Digest() string {
	return hex.EncodeToString(dw.h.Sum(nil))
}

// Written bytes
func (dw *DigestWriter) Written() int64 {
	return dw.written
}
