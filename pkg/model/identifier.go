package model

import "strings"

// ObjectIDPrefix is the prefix of all target object identifiers
const ObjectIDPrefix = "info:fedora"

// ObjectID derives the target object identifier from a source resource identifier.
//
// The derivation only depends on the resource path: the same resource yields the same
// identifier across workers and across independent runs.
//
//	"/"     -> "info:fedora"
//	"/a/b/" -> "info:fedora/a/b"
func ObjectID(resourceID string) string {
	id := CleanResourceID(resourceID)
	if id == RootID {
		return ObjectIDPrefix
	}
	return ObjectIDPrefix + id
}

// ResourceIDFromObjectID is the reverse of ObjectID
func ResourceIDFromObjectID(objectID string) (string, bool) {
	if !strings.HasPrefix(objectID, ObjectIDPrefix) {
		return "", false
	}
	rest := strings.TrimPrefix(objectID, ObjectIDPrefix)
	if rest != "" && !strings.HasPrefix(rest, "/") {
		return "", false
	}
	return CleanResourceID(rest), true
}
