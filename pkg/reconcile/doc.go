// Package reconcile matches a class's declared namespace against the location
// of its source inside a vendored repository.
//
// Vendored repositories are often renamed or re-rooted relative to their
// original layout: a repository checked out as "startup-os" declares classes
// in "com.google.startupos.tools", but its directory tree only encodes
// "tools". [ExternalPrefix] recovers the part of the namespace the tree does
// not encode ("com.google.startupos") so that class references synthesized
// from directory structure stay valid in the consuming build graph.
//
// # Algorithm
//
// Given a namespace and a repository root whose final segment is the project
// name:
//
//  1. Strip hyphens from the project name and find the last namespace segment
//     equal to it. The segments after it are the filesystem-mirrored suffix;
//     without a match the whole namespace is the suffix.
//  2. Append the suffix to the repository root and take the segments after the
//     last occurrence of the project name. This is the package the directory
//     tree actually encodes.
//  3. If the namespace ends with that package, the external prefix is the
//     namespace without it. Otherwise there is no external prefix.
//
// Matching is done on whole segments, so a project named "os" never matches
// inside "com.google.startupos".
package reconcile
