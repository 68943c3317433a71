package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseVersion(t *testing.T) {
	for input, expected := range map[string]Version{
		"4.7.5": V4_7_5,
		"5+":    V5,
		" 5.1 ": V5,
		"6":     V6,
		"6+":    V6,
		"6.0.0": V6,
	} {
		v, err := ParseVersion(input)
		require.NoError(t, err, input)
		assert.Equal(t, expected, v, input)
	}

	_, err := ParseVersion("3.8")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "3.8")
}

func TestObjectIDIsDeterministic(t *testing.T) {
	for input, expected := range map[string]string{
		"":         "info:fedora",
		"/":        "info:fedora",
		"/A":       "info:fedora/A",
		"A/B":      "info:fedora/A/B",
		"/A//B/":   "info:fedora/A/B",
		"/a b/%20": "info:fedora/a b/%20",
	} {
		assert.Equal(t, expected, ObjectID(input), input)
		assert.Equal(t, ObjectID(input), ObjectID(input), "same input, same identifier")
	}

	id, ok := ResourceIDFromObjectID(ObjectID("/A/B"))
	require.True(t, ok)
	assert.Equal(t, "/A/B", id)

	_, ok = ResourceIDFromObjectID("info:fedoraX")
	assert.False(t, ok)
}

func TestResource(t *testing.T) {
	root := Resource{ID: "/", Type: Container}
	assert.True(t, root.IsRoot())
	assert.Equal(t, "", root.Name())
	assert.Equal(t, "", ParentID("/"))

	b := Resource{ID: "/A/B/", Type: Binary}
	assert.True(t, b.IsBinary())
	assert.False(t, b.IsRoot())
	assert.Equal(t, "B", b.Name())
	assert.Equal(t, "/A", ParentID(b.ID))
	assert.Equal(t, "/", ParentID("/A"))
}

func TestMapTechnicalMetadata(t *testing.T) {
	p := Properties{
		"fedora:digest":          "abc123",
		"fedora:mimeType":        "text/plain",
		"premis:hasOriginalName": "file.txt",
		"dc:title":               "a title",
	}
	mapped := MapTechnicalMetadata(p)

	assert.Equal(t, Properties{
		"premis:hasMessageDigest": "abc123",
		"ebucore:hasMimeType":     "text/plain",
		"ebucore:filename":        "file.txt",
		"dc:title":                "a title",
	}, mapped)
	for _, legacy := range []string{"fedora:digest", "fedora:mimeType", "premis:hasOriginalName"} {
		assert.NotContains(t, mapped, legacy)
	}
	assert.Len(t, p, 4, "input is left untouched")
	assert.Equal(t, "abc123", p["fedora:digest"])

	assert.True(t, IsTechnicalMetadata("ebucore:filename"))
	assert.True(t, IsTechnicalMetadata("fedora:digest"))
	assert.False(t, IsTechnicalMetadata("dc:title"))
	assert.Equal(t, []string{"dc:title", "ebucore:filename", "ebucore:hasMimeType", "premis:hasMessageDigest"}, mapped.Keys())
}

func TestMapTechnicalMetadataPartial(t *testing.T) {
	mapped := MapTechnicalMetadata(Properties{"fedora:mimeType": "image/png"})
	assert.Equal(t, Properties{"ebucore:hasMimeType": "image/png"}, mapped)

	assert.NotNil(t, MapTechnicalMetadata(nil))
}

func TestDigestURN(t *testing.T) {
	assert.Equal(t, "urn:sha-512:ab", DigestURN("sha512", "ab"))
	assert.Equal(t, "urn:blake2b-512:ab", DigestURN("blake2b-512", "ab"))

	c := Contributor{Name: "fedoraAdmin", Email: "info:fedora/fedoraAdmin"}
	assert.Equal(t, "fedoraAdmin <info:fedora/fedoraAdmin>", c.String())
}

func TestPropertyVocabulary(t *testing.T) {
	assert.True(t, IsServerManaged("fedora:created"))
	assert.False(t, IsServerManaged("dc:title"))
	assert.True(t, IsTechnicalMetadata("fedora:digest"))
	assert.True(t, IsTechnicalMetadata("ebucore:filename"))
	assert.False(t, IsTechnicalMetadata("fedora:created"))
}
