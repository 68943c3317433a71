package model

import "sort"

// Legacy technical metadata property names
const (
	LegacyDigestProperty       = "fedora:digest"
	LegacyMimeTypeProperty     = "fedora:mimeType"
	LegacyOriginalNameProperty = "premis:hasOriginalName"
)

// Current technical metadata property names
const (
	MessageDigestProperty = "premis:hasMessageDigest"
	MimeTypeProperty      = "ebucore:hasMimeType"
	FilenameProperty      = "ebucore:filename"
)

// Server managed properties, carried by headers rather than descriptions
const (
	CreatedProperty        = "fedora:created"
	CreatedByProperty      = "fedora:createdBy"
	LastModifiedProperty   = "fedora:lastModified"
	LastModifiedByProperty = "fedora:lastModifiedBy"
)

var serverManaged = map[string]struct{}{
	CreatedProperty:        {},
	CreatedByProperty:      {},
	LastModifiedProperty:   {},
	LastModifiedByProperty: {},
}

// IsServerManaged tells if a property is maintained by the repository itself
func IsServerManaged(name string) bool {
	_, ok := serverManaged[name]
	return ok
}

// PropertyRename maps a legacy property name to its replacement
type PropertyRename struct {
	From string
	To   string
}

// TechnicalMetadataMapping is the fixed renaming applied to binaries' technical metadata
var TechnicalMetadataMapping = []PropertyRename{
	{From: LegacyDigestProperty, To: MessageDigestProperty},
	{From: LegacyMimeTypeProperty, To: MimeTypeProperty},
	{From: LegacyOriginalNameProperty, To: FilenameProperty},
}

// Properties is a resource property bag
type Properties map[string]string

// Clone returns a shallow copy of the property bag, never nil
func (p Properties) Clone() Properties {
	c := make(Properties, len(p))
	for k, v := range p {
		c[k] = v
	}
	return c
}

// Keys returns property names, sorted
func (p Properties) Keys() []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// MapTechnicalMetadata returns a copy of the properties with legacy technical metadata names
// replaced by their current name. Values are copied verbatim.
//
// When both the legacy and the current name are present, the legacy value wins, as the
// source repository only ever wrote the legacy one.
func MapTechnicalMetadata(p Properties) Properties {
	mapped := p.Clone()
	for _, rename := range TechnicalMetadataMapping {
		v, ok := mapped[rename.From]
		if !ok {
			continue
		}
		delete(mapped, rename.From)
		mapped[rename.To] = v
	}
	return mapped
}

// IsTechnicalMetadata tells if a property name belongs to the technical metadata vocabulary, legacy or current
func IsTechnicalMetadata(name string) bool {
	for _, rename := range TechnicalMetadataMapping {
		if name == rename.From || name == rename.To {
			return true
		}
	}
	return false
}
