// Package manifest defines the generated http_archive dependency manifest and
// its serialization.
//
// # Format
//
// A manifest maps every class compiled from a vendored archive to the Bazel
// target that owns it:
//
//	{
//	  "commitId": "5b9be84",
//	  "deps": [
//	    {"javaClass": "com.google.startupos.common.FileUtils", "target": "//common:file_utils"},
//	    {"javaClass": "com.google.startupos.common.Strings", "target": "//common:strings"}
//	  ],
//	  "revisions": {"startup_os": "5b9be84"}
//	}
//
// commitId is the pinned revision of the last archive merged into the
// manifest. When several archives are requested only the last revision
// survives there; revisions carries the revision of every archive that
// contributed rows.
//
// # Building
//
// [Builder] collects rows from concurrently processed archives. Each archive
// is merged as one [Partial], so rows of an archive that failed halfway can be
// dropped without touching rows already merged for the others.
//
// # Output
//
// [Write] encodes a manifest as JSON (the default), YAML or TOML. [Read]
// decodes any of the three back.
package manifest
