// Package model describes the base objects manipulated by the migrator.
//
// The object model is composed of:
//
//  Versions:
//    A repository generation, e.g. 4.7.5, 5+ or 6+. A pair of versions (a Transition)
//    selects how a repository is upgraded.
//
//  Resources:
//    A node of the legacy repository tree: a container or a binary, with a property bag.
//    Binaries carry content and technical metadata.
//
//  Objects:
//    The unit of versioning in the target storage layout. Each resource maps to exactly
//    one object, with an identifier derived from the resource path.
//
//  Headers:
//    The metadata payload committed with each object version.
package model
