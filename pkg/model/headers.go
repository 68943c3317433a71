package model

import (
	"fmt"
	"time"
)

// Interaction models of migrated resources
const (
	BasicContainer = "http://www.w3.org/ns/ldp#BasicContainer"
	NonRDFSource   = "http://www.w3.org/ns/ldp#NonRDFSource"
)

// HeadersVersion is the version of the headers layout written to target objects
const HeadersVersion = "1.0"

// ResourceHeaders is the metadata payload committed with every object version
type ResourceHeaders struct {
	HeadersVersion   string     `json:"headersVersion" yaml:"headersVersion"`
	ID               string     `json:"id" yaml:"id"`
	Parent           string     `json:"parent,omitempty" yaml:"parent,omitempty"`
	InteractionModel string     `json:"interactionModel" yaml:"interactionModel"`
	CreatedBy        string     `json:"createdBy,omitempty" yaml:"createdBy,omitempty"`
	CreatedDate      time.Time  `json:"createdDate" yaml:"createdDate"`
	LastModifiedBy   string     `json:"lastModifiedBy,omitempty" yaml:"lastModifiedBy,omitempty"`
	LastModifiedDate time.Time  `json:"lastModifiedDate" yaml:"lastModifiedDate"`
	MimeType         string     `json:"mimeType,omitempty" yaml:"mimeType,omitempty"`
	Filename         string     `json:"filename,omitempty" yaml:"filename,omitempty"`
	ContentSize      int64      `json:"contentSize,omitempty" yaml:"contentSize,omitempty"`
	Digests          []string   `json:"digests,omitempty" yaml:"digests,omitempty"`
	ContentPath      string     `json:"contentPath,omitempty" yaml:"contentPath,omitempty"`
	Properties       Properties `json:"properties,omitempty" yaml:"properties,omitempty"`
	_                struct{}
}

// DigestURN formats a digest the way headers record it, e.g. urn:sha-512:abcd
func DigestURN(algorithm, hexValue string) string {
	return fmt.Sprintf("urn:%s:%s", urnAlgorithm(algorithm), hexValue)
}

func urnAlgorithm(algorithm string) string {
	switch algorithm {
	case "sha512":
		return "sha-512"
	case "sha256":
		return "sha-256"
	case "sha1":
		return "sha1"
	default:
		return algorithm
	}
}

// Contributor who created the object version
type Contributor struct {
	Name  string `json:"name" yaml:"name"`
	Email string `json:"email" yaml:"email"`
	_     struct{}
}

func (c *Contributor) String() string {
	if c.Email == "" {
		return c.Name
	}
	if c.Name == "" {
		return c.Email
	}
	return fmt.Sprintf("%s <%s>", c.Name, c.Email)
}
