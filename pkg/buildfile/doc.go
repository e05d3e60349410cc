// Package buildfile discovers BUILD files in a materialized archive and
// extracts the library and binary targets they declare.
//
// Parsing is delegated to github.com/bazelbuild/buildtools, the parser used by
// buildifier. Files are never evaluated: srcs attributes are read from
// string lists, "+" concatenations and glob() calls. Anything else (select(),
// macro arguments, variables) contributes no sources.
package buildfile
