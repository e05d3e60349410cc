// Package git materializes repositories by shelling out to the git binary.
package git

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/kballard/go-shellquote"

	errs "github.com/matzehuels/httparchivedeps/pkg/errors"
	"github.com/matzehuels/httparchivedeps/pkg/observability"
	"github.com/matzehuels/httparchivedeps/pkg/retry"
)

const (
	DefaultCommand  = "git"
	DefaultTimeout  = 10 * time.Minute
	DefaultAttempts = 3
)

// RepoFetcher clones a repository and pins its working tree to a revision.
type RepoFetcher interface {
	// Clone clones url into dest, which must not exist yet.
	Clone(ctx context.Context, url, dest string) error
	// ResetHard forces the working tree at dest to revision, discarding local changes.
	ResetHard(ctx context.Context, dest, revision string) error
}

// Options configures a CommandFetcher.
type Options struct {
	Command  string        // git invocation, shell-quoted (default: "git")
	Timeout  time.Duration // per-command timeout (default: 10m)
	Attempts int           // clone attempts on transient failures (default: 3)
	Backoff  time.Duration // initial retry delay (default: 1s)
	Logger   *log.Logger
}

// CommandFetcher implements RepoFetcher with the git command-line client.
type CommandFetcher struct {
	argv     []string
	timeout  time.Duration
	attempts int
	backoff  time.Duration
	logger   *log.Logger
}

// NewCommandFetcher creates a fetcher. The command is split with shell
// quoting rules, so "git -c http.sslVerify=false" and similar prefixes work.
func NewCommandFetcher(opts Options) (*CommandFetcher, error) {
	command := opts.Command
	if command == "" {
		command = DefaultCommand
	}
	argv, err := shellquote.Split(command)
	if err != nil {
		return nil, errs.Wrap(errs.ErrCodeInvalidInput, err, "invalid git command %q", command)
	}
	if len(argv) == 0 {
		return nil, errs.New(errs.ErrCodeInvalidInput, "git command is empty")
	}

	f := &CommandFetcher{
		argv:     argv,
		timeout:  opts.Timeout,
		attempts: opts.Attempts,
		backoff:  opts.Backoff,
		logger:   opts.Logger,
	}
	if f.timeout <= 0 {
		f.timeout = DefaultTimeout
	}
	if f.attempts <= 0 {
		f.attempts = DefaultAttempts
	}
	if f.backoff <= 0 {
		f.backoff = time.Second
	}
	if f.logger == nil {
		f.logger = log.Default()
	}
	return f, nil
}

// Clone implements RepoFetcher. Transient network failures are retried with
// exponential backoff; a partially written dest is removed between attempts.
func (f *CommandFetcher) Clone(ctx context.Context, url, dest string) error {
	return retry.Do(ctx, f.attempts, f.backoff, func() error {
		err := f.run(ctx, "clone", "", "clone", "--quiet", "--", url, dest)
		if err != nil && retry.IsRetryable(err) {
			f.logger.Warn("clone failed, retrying", "url", url, "err", err)
			if rerr := os.RemoveAll(dest); rerr != nil {
				f.logger.Warn("failed to remove partial clone", "dest", dest, "err", rerr)
			}
		}
		return err
	})
}

// ResetHard implements RepoFetcher.
func (f *CommandFetcher) ResetHard(ctx context.Context, dest, revision string) error {
	if strings.HasPrefix(revision, "-") {
		return errs.New(errs.ErrCodeInvalidInput, "invalid revision %q", revision)
	}
	return f.run(ctx, "reset", dest, "reset", "--hard", "--quiet", revision)
}

func (f *CommandFetcher) run(parent context.Context, op, dir string, args ...string) error {
	ctx, cancel := context.WithTimeout(parent, f.timeout)
	defer cancel()

	argv := append([]string(nil), f.argv...)
	if dir != "" {
		argv = append(argv, "-C", dir)
	}
	argv = append(argv, args...)
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Env = append(os.Environ(), "GIT_TERMINAL_PROMPT=0")
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	start := time.Now()
	f.logger.Debug("running git", "args", shellquote.Join(argv...))
	err := cmd.Run()
	duration := time.Since(start)

	if err != nil {
		switch {
		case parent.Err() != nil:
			err = parent.Err()
		case errors.Is(ctx.Err(), context.DeadlineExceeded):
			err = errs.New(errs.ErrCodeTimeout, "git %s timed out after %s", op, f.timeout)
		case ctx.Err() != nil:
			err = ctx.Err()
		default:
			msg := strings.TrimSpace(stderr.String())
			err = fmt.Errorf("git %s: %w: %s", op, err, msg)
			if isTransient(msg) {
				err = retry.Retryable(err)
			}
		}
	}
	observability.Git().OnCommand(parent, op, duration, err)
	return err
}

// transientMessages are git/curl diagnostics for failures worth retrying.
var transientMessages = []string{
	"could not resolve host",
	"connection reset",
	"connection timed out",
	"connection refused",
	"early eof",
	"the remote end hung up unexpectedly",
	"rpc failed",
	"temporary failure in name resolution",
	"operation timed out",
}

func isTransient(stderr string) bool {
	lower := strings.ToLower(stderr)
	for _, m := range transientMessages {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}

var _ RepoFetcher = (*CommandFetcher)(nil)
