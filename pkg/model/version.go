/*
 * Copyright © 2019 One Concern
 *
 */

package model

import (
	"fmt"
	"strings"
)

// Version of a repository generation
type Version string

const (
	// V4_7_5 is the last 4.x release, before technical metadata got renamed
	V4_7_5 Version = "4.7.5"

	// V5 covers all 5.x releases
	V5 Version = "5+"

	// V6 covers all 6.x releases, backed by OCFL
	V6 Version = "6+"
)

var knownVersions = []Version{V4_7_5, V5, V6}

// ParseVersion resolves a version string. Major-only forms like "5" or "6.1" are accepted for 5+ and 6+.
func ParseVersion(s string) (Version, error) {
	v := strings.TrimSpace(s)
	for _, known := range knownVersions {
		if v == string(known) {
			return known, nil
		}
	}
	switch {
	case v == "5" || strings.HasPrefix(v, "5."):
		return V5, nil
	case v == "6" || strings.HasPrefix(v, "6."):
		return V6, nil
	}
	return "", fmt.Errorf("unknown repository version %q", s)
}

func (v Version) String() string {
	return string(v)
}

// Transition is a (source, target) repository version pair
type Transition struct {
	Source Version `json:"source" yaml:"source"`
	Target Version `json:"target" yaml:"target"`
}

func (t Transition) String() string {
	return fmt.Sprintf("%s -> %s", t.Source, t.Target)
}
