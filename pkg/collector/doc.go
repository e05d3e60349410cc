// Package collector generates an http_archive dependency manifest.
//
// For every requested archive the [Collector] resolves the http_archive
// declaration in the workspace, clones the source at its pinned revision,
// finds the BUILD files inside it and emits one manifest row per existing
// source file of every java_library and java_binary target:
//
//	resolve → materialize → scan → analyze → reconcile → label
//
// # Usage
//
//	desc, err := workspace.Parse("WORKSPACE", data)
//	fetcher, err := git.NewCommandFetcher(git.Options{})
//	c, err := collector.New(desc, fsutil.NewOS(), fetcher, collector.Options{Workers: 4})
//	res, err := c.Collect(ctx, []string{"startup_os"})
//	manifest.Write(res.Manifest, os.Stdout, manifest.FormatJSON)
//
// # Failures
//
// Archives are independent. An archive that is not declared in the workspace
// is skipped with a warning. Any other failure (clone, BUILD parse, namespace
// reconciliation) discards the rows of that archive only and is reported in
// [Result.Archives]. Cancellation and internal errors stop the whole run.
//
// The scratch root is removed when Collect returns, whatever the outcome.
package collector
