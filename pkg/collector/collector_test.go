package collector_test

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/matzehuels/httparchivedeps/internal/mock"
	"github.com/matzehuels/httparchivedeps/pkg/collector"
	errs "github.com/matzehuels/httparchivedeps/pkg/errors"
	"github.com/matzehuels/httparchivedeps/pkg/fsutil"
	"github.com/matzehuels/httparchivedeps/pkg/manifest"
	"github.com/matzehuels/httparchivedeps/pkg/observability"
	"github.com/matzehuels/httparchivedeps/pkg/workspace"
)

const scratchRoot = "/work/build_generator_tmp"

// fakeFetcher "clones" repositories by writing a fixed file tree to dest.
type fakeFetcher struct {
	fs    afero.Fs
	repos map[string]map[string]string // clone URL -> relative path -> content
	fail  map[string]error

	mu     sync.Mutex
	resets []string
}

func (f *fakeFetcher) Clone(_ context.Context, url, dest string) error {
	if err := f.fail[url]; err != nil {
		return err
	}
	files, ok := f.repos[url]
	if !ok {
		return errors.New("repository not found")
	}
	for rel, content := range files {
		if err := afero.WriteFile(f.fs, dest+"/"+rel, []byte(content), 0o644); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeFetcher) ResetHard(_ context.Context, _, revision string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resets = append(f.resets, revision)
	return nil
}

func archive(name, repo, rev string) workspace.ArchiveEntry {
	return workspace.ArchiveEntry{
		Name:        name,
		URLs:        []string{"https://github.com/google/" + repo + "/archive/" + rev + ".zip"},
		StripPrefix: repo + "-" + rev,
	}
}

var startupOSTree = map[string]string{
	"WORKSPACE": "",
	"common/BUILD": `
java_library(
    name = "common",
    srcs = ["FileUtils.java", "Strings.java", "Generated.java", "//tools:gen"],
)
`,
	"common/FileUtils.java":                   "package com.google.startupos.common;\n\npublic class FileUtils {}\n",
	"common/Strings.java":                     "// Copyright\npackage com.google.startupos.common;\n",
	"tools/reviewer/BUILD":                    `java_binary(name = "reviewer", srcs = glob(["*.java"]))`,
	"tools/reviewer/Main.java":                "package com.google.startupos.tools.reviewer;\n",
	"tools/reviewer/README":                   "",
	"third_party/maven/com/google/BUILD":      `java_library(name = "guava", srcs = ["Guava.java"])`,
	"third_party/maven/com/google/Guava.java": "package com.google;\n",
}

type env struct {
	mem     afero.Fs
	fetcher *fakeFetcher
}

func newEnv() *env {
	mem := afero.NewMemMapFs()
	return &env{
		mem: mem,
		fetcher: &fakeFetcher{
			fs: mem,
			repos: map[string]map[string]string{
				"https://github.com/google/startup-os.git": startupOSTree,
				"https://github.com/acme/widgets.git": {
					"BUILD":           `java_library(name = "widgets", srcs = ["src/Widget.java"])`,
					"src/Widget.java": "package com.acme.widgets.src;\n",
				},
			},
			fail: map[string]error{},
		},
	}
}

func (e *env) collector(t *testing.T, desc *workspace.Descriptor, opts collector.Options) *collector.Collector {
	t.Helper()
	opts.Logger = log.New(io.Discard)
	c, err := collector.New(desc, fsutil.New(e.mem, "/work"), e.fetcher, opts)
	require.NoError(t, err)
	return c
}

func (e *env) requireNoScratch(t *testing.T) {
	t.Helper()
	ok, err := afero.DirExists(e.mem, scratchRoot)
	require.NoError(t, err)
	assert.False(t, ok, "scratch root still exists")
}

func TestCollect(t *testing.T) {
	e := newEnv()
	desc := &workspace.Descriptor{Archives: []workspace.ArchiveEntry{archive("startup_os", "startup-os", "5b9be84")}}
	c := e.collector(t, desc, collector.Options{})
	assert.Equal(t, scratchRoot, c.ScratchRoot())

	res, err := c.Collect(context.Background(), []string{"startup_os"})
	require.NoError(t, err)
	require.NoError(t, res.Err())

	assert.Equal(t, "5b9be84", res.Manifest.CommitID)
	assert.Equal(t, map[string]string{"startup_os": "5b9be84"}, res.Manifest.Revisions)
	assert.Equal(t, []manifest.HttpArchiveDep{
		{JavaClass: "com.google.startupos.common.FileUtils", Target: "//common:common"},
		{JavaClass: "com.google.startupos.common.Strings", Target: "//common:common"},
		{JavaClass: "com.google.startupos.tools.reviewer.Main", Target: "//tools/reviewer:reviewer"},
	}, res.Manifest.Deps)

	require.Len(t, res.Archives, 1)
	assert.Equal(t, 3, res.Archives[0].Deps)
	assert.True(t, res.Archives[0].OK())
	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, []string{"5b9be84"}, e.fetcher.resets)
	e.requireNoScratch(t)
}

func TestCollectMissingArchive(t *testing.T) {
	e := newEnv()
	desc := &workspace.Descriptor{Archives: []workspace.ArchiveEntry{archive("startup_os", "startup-os", "5b9be84")}}

	res, err := e.collector(t, desc, collector.Options{}).Collect(context.Background(), []string{"missing"})
	require.NoError(t, err)
	require.NoError(t, res.Err())
	assert.Empty(t, res.Manifest.Deps)
	assert.Empty(t, res.Manifest.CommitID)
	require.Len(t, res.Archives, 1)
	assert.True(t, res.Archives[0].Skipped)
	e.requireNoScratch(t)
}

func TestCollectIsolatesFailures(t *testing.T) {
	e := newEnv()
	e.fetcher.fail["https://github.com/google/startup-os.git"] = errors.New("connection refused")
	desc := &workspace.Descriptor{Archives: []workspace.ArchiveEntry{
		archive("startup_os", "startup-os", "5b9be84"),
		{
			Name:        "widgets",
			URLs:        []string{"https://github.com/acme/widgets/archive/v1.zip"},
			StripPrefix: "widgets-v1",
		},
		{Name: "broken", URLs: []string{"https://github.com/acme/broken/archive/x.zip"}, StripPrefix: "broken"},
	}}

	res, err := e.collector(t, desc, collector.Options{}).Collect(context.Background(), []string{"startup_os", "widgets", "broken"})
	require.NoError(t, err)

	assert.Equal(t, []string{"startup_os", "broken"}, res.Failed())
	assert.True(t, errs.Is(res.Archives[0].Err, errs.ErrCodeMaterialization), "got %v", res.Archives[0].Err)
	assert.True(t, errs.Is(res.Archives[2].Err, errs.ErrCodeInvalidArchive), "got %v", res.Archives[2].Err)
	assert.Error(t, res.Err())

	assert.Equal(t, "v1", res.Manifest.CommitID)
	assert.Equal(t, []manifest.HttpArchiveDep{
		{JavaClass: "com.acme.widgets.src.Widget", Target: "//:widgets"},
	}, res.Manifest.Deps)
	e.requireNoScratch(t)
}

func TestCollectDiscardsArchiveOnReconciliationFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	analyzer := mock.NewMockSourceAnalyzer(ctrl)
	analyzer.EXPECT().Namespace(gomock.Any(), gomock.Any()).Return("com..broken", nil).MinTimes(1)

	e := newEnv()
	desc := &workspace.Descriptor{Archives: []workspace.ArchiveEntry{archive("startup_os", "startup-os", "5b9be84")}}
	res, err := e.collector(t, desc, collector.Options{Analyzer: analyzer}).Collect(context.Background(), []string{"startup_os"})
	require.NoError(t, err)

	assert.True(t, errs.Is(res.Archives[0].Err, errs.ErrCodeReconciliation), "got %v", res.Archives[0].Err)
	assert.Empty(t, res.Manifest.Deps)
	assert.Empty(t, res.Manifest.CommitID)
	e.requireNoScratch(t)
}

func TestCollectParseFailure(t *testing.T) {
	e := newEnv()
	e.fetcher.repos["https://github.com/acme/widgets.git"]["lib/BUILD"] = `java_library(name = "lib", srcs = [`
	desc := &workspace.Descriptor{Archives: []workspace.ArchiveEntry{
		{Name: "widgets", URLs: []string{"https://github.com/acme/widgets/archive/v1.zip"}, StripPrefix: "widgets-v1"},
	}}

	res, err := e.collector(t, desc, collector.Options{}).Collect(context.Background(), []string{"widgets"})
	require.NoError(t, err)
	assert.True(t, errs.Is(res.Archives[0].Err, errs.ErrCodeBuildFileParse), "got %v", res.Archives[0].Err)
	assert.Empty(t, res.Manifest.Deps)
	e.requireNoScratch(t)
}

func TestCollectConcurrentKeepsRequestOrder(t *testing.T) {
	e := newEnv()
	desc := &workspace.Descriptor{Archives: []workspace.ArchiveEntry{
		archive("startup_os", "startup-os", "5b9be84"),
		{Name: "widgets", URLs: []string{"https://github.com/acme/widgets/archive/v1.zip"}, StripPrefix: "widgets-v1"},
	}}

	res, err := e.collector(t, desc, collector.Options{Workers: 2}).
		Collect(context.Background(), []string{"widgets", "startup_os", "widgets", ""})
	require.NoError(t, err)
	require.NoError(t, res.Err())

	require.Len(t, res.Archives, 2)
	assert.Equal(t, "widgets", res.Archives[0].Name)
	assert.Equal(t, "startup_os", res.Archives[1].Name)
	require.Len(t, res.Manifest.Deps, 4)
	assert.Equal(t, "com.acme.widgets.src.Widget", res.Manifest.Deps[0].JavaClass)
	assert.Equal(t, "5b9be84", res.Manifest.CommitID)
	assert.Equal(t, map[string]string{"widgets": "v1", "startup_os": "5b9be84"}, res.Manifest.Revisions)
	e.requireNoScratch(t)
}

func TestCollectCanceled(t *testing.T) {
	e := newEnv()
	desc := &workspace.Descriptor{Archives: []workspace.ArchiveEntry{archive("startup_os", "startup-os", "5b9be84")}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := e.collector(t, desc, collector.Options{}).Collect(ctx, []string{"startup_os"})
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, res)
	assert.Empty(t, res.Manifest.Deps)
	e.requireNoScratch(t)
}

func TestCollectDeadlineAbortsRun(t *testing.T) {
	e := newEnv()
	desc := &workspace.Descriptor{Archives: []workspace.ArchiveEntry{
		archive("startup_os", "startup-os", "5b9be84"),
		archive("widgets", "widgets", "v1"),
	}}
	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()

	res, err := e.collector(t, desc, collector.Options{}).Collect(ctx, []string{"startup_os", "missing", "widgets"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	require.NotNil(t, res)
	require.Len(t, res.Archives, 3)
	assert.ErrorIs(t, res.Archives[0].Err, context.DeadlineExceeded)
	assert.True(t, res.Archives[1].Skipped, "missing archive should be skipped, got %+v", res.Archives[1])
	assert.NoError(t, res.Archives[1].Err)
	assert.Error(t, res.Archives[2].Err)
	assert.Empty(t, res.Manifest.Deps)
	e.requireNoScratch(t)
}

func TestCollectReportsUnevaluatedSources(t *testing.T) {
	hooks := &countingHooks{}
	observability.SetCollectorHooks(hooks)
	t.Cleanup(observability.Reset)

	e := newEnv()
	e.fetcher.repos["https://github.com/google/gadgets.git"] = map[string]string{
		"a/BUILD":  "SRCS = [\"W.java\"]\njava_library(name = \"w\", srcs = SRCS)\n",
		"a/W.java": "package com.acme.gadgets.a;\n",
		"b/BUILD":  `java_library(name = "b", srcs = ["X.java"] + select({"//conditions:default": ["Y.java"]}))`,
		"b/X.java": "package com.acme.gadgets.b;\n",
	}
	desc := &workspace.Descriptor{Archives: []workspace.ArchiveEntry{archive("gadgets", "gadgets", "v3")}}

	res, err := e.collector(t, desc, collector.Options{}).Collect(context.Background(), []string{"gadgets"})
	require.NoError(t, err)
	require.NoError(t, res.Err())
	assert.Equal(t, []manifest.HttpArchiveDep{
		{JavaClass: "com.acme.gadgets.a.W", Target: "//a:w"},
		{JavaClass: "com.acme.gadgets.b.X", Target: "//b:b"},
	}, res.Manifest.Deps)
	assert.EqualValues(t, 1, hooks.skipped.Load())
}

func TestCollectUnnamedRuleFailsArchive(t *testing.T) {
	e := newEnv()
	e.fetcher.repos["https://github.com/google/gadgets.git"] = map[string]string{
		"b/BUILD":  `java_library(srcs = ["X.java"])`,
		"b/X.java": "package com.acme.gadgets.b;\n",
	}
	desc := &workspace.Descriptor{Archives: []workspace.ArchiveEntry{archive("gadgets", "gadgets", "v3")}}

	res, err := e.collector(t, desc, collector.Options{}).Collect(context.Background(), []string{"gadgets"})
	require.NoError(t, err)
	assert.True(t, errs.Is(res.Archives[0].Err, errs.ErrCodeBuildFileParse), "got %v", res.Archives[0].Err)
	assert.Empty(t, res.Manifest.Deps)
}

func TestCollectInvalidOptions(t *testing.T) {
	e := newEnv()
	_, err := collector.New(&workspace.Descriptor{}, fsutil.New(e.mem, "/work"), e.fetcher, collector.Options{Workers: -1})
	assert.True(t, errs.Is(err, errs.ErrCodeInvalidInput), "got %v", err)

	_, err = collector.New(nil, fsutil.New(e.mem, "/work"), e.fetcher, collector.Options{})
	assert.True(t, errs.Is(err, errs.ErrCodeInvalidWorkspace), "got %v", err)
}

type countingHooks struct {
	observability.NoopCollectorHooks
	started, completed, skipped atomic.Int32
	deps                        atomic.Int32
}

func (h *countingHooks) OnArchiveStart(context.Context, string) { h.started.Add(1) }
func (h *countingHooks) OnArchiveComplete(_ context.Context, _ string, deps int, _ time.Duration, _ error) {
	h.completed.Add(1)
	h.deps.Add(int32(deps))
}
func (h *countingHooks) OnSourceSkipped(context.Context, string) { h.skipped.Add(1) }

func TestCollectHooks(t *testing.T) {
	hooks := &countingHooks{}
	observability.SetCollectorHooks(hooks)
	t.Cleanup(observability.Reset)

	e := newEnv()
	desc := &workspace.Descriptor{Archives: []workspace.ArchiveEntry{archive("startup_os", "startup-os", "5b9be84")}}
	_, err := e.collector(t, desc, collector.Options{}).Collect(context.Background(), []string{"startup_os", "missing"})
	require.NoError(t, err)

	assert.EqualValues(t, 2, hooks.started.Load())
	assert.EqualValues(t, 2, hooks.completed.Load())
	assert.EqualValues(t, 3, hooks.deps.Load())
	// Generated.java is missing and //tools:gen is a label.
	assert.EqualValues(t, 2, hooks.skipped.Load())
}
