// Package mock contains gomock implementations of the collaborator
// interfaces used by the collector and materializer.
package mock

//go:generate go run go.uber.org/mock/mockgen -destination=git.go -package=mock github.com/matzehuels/httparchivedeps/pkg/git RepoFetcher
//go:generate go run go.uber.org/mock/mockgen -destination=javasrc.go -package=mock github.com/matzehuels/httparchivedeps/pkg/javasrc SourceAnalyzer
