package manifest

import (
	"maps"
	"sync"
)

// HttpArchiveDep is one manifest row.
type HttpArchiveDep struct {
	JavaClass string `json:"javaClass" yaml:"javaClass" toml:"javaClass"`
	Target    string `json:"target" yaml:"target" toml:"target"`
}

// HttpArchiveDeps is the generated manifest.
type HttpArchiveDeps struct {
	CommitID  string            `json:"commitId" yaml:"commitId" toml:"commitId"`
	Deps      []HttpArchiveDep  `json:"deps" yaml:"deps" toml:"deps"`
	Revisions map[string]string `json:"revisions,omitempty" yaml:"revisions,omitempty" toml:"revisions,omitempty"`
}

// Partial is the result of processing a single archive.
type Partial struct {
	Archive  string
	Revision string
	Deps     []HttpArchiveDep
}

// Builder accumulates partial results. It is safe for concurrent use.
type Builder struct {
	mu        sync.Mutex
	commitID  string
	deps      []HttpArchiveDep
	revisions map[string]string
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{revisions: make(map[string]string)}
}

// Merge appends p's rows and records its revision as the manifest commit id.
func (b *Builder) Merge(p Partial) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.deps = append(b.deps, p.Deps...)
	b.commitID = p.Revision
	if p.Archive != "" {
		b.revisions[p.Archive] = p.Revision
	}
}

// Len returns the number of rows merged so far.
func (b *Builder) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.deps)
}

// Build returns a snapshot of the manifest. Deps is never nil.
func (b *Builder) Build() *HttpArchiveDeps {
	b.mu.Lock()
	defer b.mu.Unlock()
	m := &HttpArchiveDeps{
		CommitID: b.commitID,
		Deps:     append(make([]HttpArchiveDep, 0, len(b.deps)), b.deps...),
	}
	if len(b.revisions) > 0 {
		m.Revisions = maps.Clone(b.revisions)
	}
	return m
}
