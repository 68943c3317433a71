package ocfl

import (
	"path"
	"strings"
)

// Layout maps object identifiers to object root paths, relative to the storage root
type Layout interface {
	// Extension is the OCFL storage layout extension name
	Extension() string

	// ObjectRoot returns the object root path of an object identifier
	ObjectRoot(objectID string) string

	// Config is the extension configuration persisted in the storage root
	Config() interface{}
}

const hashedNTupleExtension = "0004-hashed-n-tuple-storage-layout"

// HashedNTupleConfig configures the hashed n-tuple storage layout
type HashedNTupleConfig struct {
	ExtensionName   string `json:"extensionName"`
	DigestAlgorithm string `json:"digestAlgorithm"`
	TupleSize       int    `json:"tupleSize"`
	NumberOfTuples  int    `json:"numberOfTuples"`
	ShortObjectRoot bool   `json:"shortObjectRoot"`
}

// HashedNTuple lays out objects under the hex digest of their identifier, split in tuples:
//
//	sha256("info:fedora") = "0a1b2c..." -> 0a1/b2c/.../0a1b2c...
type HashedNTuple struct {
	cfg HashedNTupleConfig
	alg DigestAlgorithm
}

// NewHashedNTuple builds the layout with extension defaults: sha256, 3 tuples of 3 characters
func NewHashedNTuple() *HashedNTuple {
	return &HashedNTuple{
		cfg: HashedNTupleConfig{
			ExtensionName:   hashedNTupleExtension,
			DigestAlgorithm: SHA256.Name(),
			TupleSize:       3,
			NumberOfTuples:  3,
		},
		alg: SHA256,
	}
}

// Extension name
func (h *HashedNTuple) Extension() string {
	return hashedNTupleExtension
}

// Config of the layout extension
func (h *HashedNTuple) Config() interface{} {
	return h.cfg
}

// ObjectRoot of an object identifier
func (h *HashedNTuple) ObjectRoot(objectID string) string {
	digest := h.alg.Sum([]byte(objectID))
	parts := make([]string, 0, h.cfg.NumberOfTuples+1)
	for i := 0; i < h.cfg.NumberOfTuples; i++ {
		parts = append(parts, digest[i*h.cfg.TupleSize:(i+1)*h.cfg.TupleSize])
	}
	last := digest
	if h.cfg.ShortObjectRoot {
		last = digest[h.cfg.NumberOfTuples*h.cfg.TupleSize:]
	}
	parts = append(parts, last)
	return path.Join(parts...)
}

func (h *HashedNTuple) String() string {
	return strings.Join([]string{h.cfg.ExtensionName, h.cfg.DigestAlgorithm}, "/")
}
