package git

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	errs "github.com/matzehuels/httparchivedeps/pkg/errors"
	"github.com/matzehuels/httparchivedeps/pkg/retry"
)

func TestNewCommandFetcher(t *testing.T) {
	tests := []struct {
		command string
		want    []string
		wantErr bool
	}{
		{"", []string{"git"}, false},
		{"git", []string{"git"}, false},
		{`git -c "http.extraHeader=Authorization: Bearer x"`, []string{"git", "-c", "http.extraHeader=Authorization: Bearer x"}, false},
		{`git "unterminated`, nil, true},
		{"   ", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.command, func(t *testing.T) {
			f, err := NewCommandFetcher(Options{Command: tt.command})
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewCommandFetcher(%q) error = %v, wantErr %v", tt.command, err, tt.wantErr)
			}
			if err != nil {
				if !errs.Is(err, errs.ErrCodeInvalidInput) {
					t.Errorf("expected INVALID_INPUT, got %v", err)
				}
				return
			}
			if !slices.Equal(f.argv, tt.want) {
				t.Errorf("argv = %q, want %q", f.argv, tt.want)
			}
			if f.timeout != DefaultTimeout || f.attempts != DefaultAttempts {
				t.Errorf("defaults not applied: timeout=%s attempts=%d", f.timeout, f.attempts)
			}
		})
	}
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		stderr string
		want   bool
	}{
		{"fatal: unable to access 'https://x/': Could not resolve host: x", true},
		{"error: RPC failed; curl 56 GnuTLS recv error", true},
		{"fatal: the remote end hung up unexpectedly", true},
		{"fatal: repository 'https://x/y.git/' not found", false},
		{"fatal: ambiguous argument 'deadbeef': unknown revision", false},
	}
	for _, tt := range tests {
		if got := isTransient(tt.stderr); got != tt.want {
			t.Errorf("isTransient(%q) = %v, want %v", tt.stderr, got, tt.want)
		}
	}
}

func TestResetHardRejectsOptionLikeRevision(t *testing.T) {
	f, err := NewCommandFetcher(Options{})
	if err != nil {
		t.Fatal(err)
	}
	if err := f.ResetHard(context.Background(), t.TempDir(), "--upload-pack=evil"); !errs.Is(err, errs.ErrCodeInvalidInput) {
		t.Errorf("ResetHard error = %v, want INVALID_INPUT", err)
	}
}

func requireGit(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
}

func gitCmd(t *testing.T, dir string, args ...string) string {
	t.Helper()
	cmd := exec.Command("git", append([]string{"-C", dir, "-c", "user.name=test", "-c", "user.email=test@example.com"}, args...)...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("git %v: %v\n%s", args, err, out)
	}
	return strings.TrimSpace(string(out))
}

// newOrigin creates a repository with two commits and returns its path and
// the first commit id.
func newOrigin(t *testing.T) (string, string) {
	t.Helper()
	origin := t.TempDir()
	gitCmd(t, origin, "init", "--quiet")
	if err := os.WriteFile(filepath.Join(origin, "BUILD"), []byte("v1"), 0o644); err != nil {
		t.Fatal(err)
	}
	gitCmd(t, origin, "add", "BUILD")
	gitCmd(t, origin, "commit", "--quiet", "-m", "first")
	first := gitCmd(t, origin, "rev-parse", "HEAD")
	if err := os.WriteFile(filepath.Join(origin, "BUILD"), []byte("v2"), 0o644); err != nil {
		t.Fatal(err)
	}
	gitCmd(t, origin, "commit", "--quiet", "-am", "second")
	return origin, first
}

func TestCloneAndResetHard(t *testing.T) {
	requireGit(t)
	origin, first := newOrigin(t)

	f, err := NewCommandFetcher(Options{Timeout: time.Minute})
	if err != nil {
		t.Fatal(err)
	}
	dest := filepath.Join(t.TempDir(), "repo")
	ctx := context.Background()

	if err := f.Clone(ctx, "file://"+origin, dest); err != nil {
		t.Fatalf("Clone: %v", err)
	}
	if err := f.ResetHard(ctx, dest, first); err != nil {
		t.Fatalf("ResetHard: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dest, "BUILD"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "v1" {
		t.Errorf("BUILD = %q, want pinned revision contents", data)
	}
}

func TestCloneFailure(t *testing.T) {
	requireGit(t)

	f, err := NewCommandFetcher(Options{Attempts: 1})
	if err != nil {
		t.Fatal(err)
	}
	dest := filepath.Join(t.TempDir(), "repo")
	err = f.Clone(context.Background(), "file://"+filepath.Join(t.TempDir(), "missing"), dest)
	if err == nil {
		t.Fatal("expected clone of missing repository to fail")
	}
	if retry.IsRetryable(err) {
		t.Errorf("missing repository should not be retryable: %v", err)
	}
}

func TestResetHardUnknownRevision(t *testing.T) {
	requireGit(t)
	origin, _ := newOrigin(t)

	f, err := NewCommandFetcher(Options{})
	if err != nil {
		t.Fatal(err)
	}
	dest := filepath.Join(t.TempDir(), "repo")
	if err := f.Clone(context.Background(), "file://"+origin, dest); err != nil {
		t.Fatal(err)
	}
	if err := f.ResetHard(context.Background(), dest, "0000000000000000000000000000000000000000"); err == nil {
		t.Error("expected reset to unknown revision to fail")
	}
}

// slowFetcher runs a command that ignores its git arguments and sleeps.
func slowFetcher(t *testing.T, timeout time.Duration) *CommandFetcher {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	f, err := NewCommandFetcher(Options{Command: `sh -c "exec sleep 5" git`, Timeout: timeout, Attempts: 1})
	if err != nil {
		t.Fatal(err)
	}
	return f
}

func TestCloneCommandTimeout(t *testing.T) {
	f := slowFetcher(t, 50*time.Millisecond)
	err := f.Clone(context.Background(), "https://example.com/a.git", filepath.Join(t.TempDir(), "a"))
	if !errs.Is(err, errs.ErrCodeTimeout) {
		t.Errorf("got %v, want TIMEOUT", err)
	}
	if !errs.Recoverable(err) {
		t.Error("a per-command timeout should only fail its archive")
	}
}

func TestCloneCallerDeadline(t *testing.T) {
	f := slowFetcher(t, time.Minute)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := f.Clone(ctx, "https://example.com/a.git", filepath.Join(t.TempDir(), "a"))
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("got %v, want context.DeadlineExceeded", err)
	}
	if errs.Is(err, errs.ErrCodeTimeout) {
		t.Error("caller deadline reported as a git timeout")
	}
	if errs.Recoverable(err) {
		t.Error("an expired caller deadline should abort the run")
	}
}

func TestCloneRemovesPartialCloneBeforeRetry(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	// $5 is dest in "clone --quiet -- <url> <dest>".
	script := `mkdir -p "$5/.git" && echo "fatal: connection reset by peer" >&2 && exit 128`
	f, err := NewCommandFetcher(Options{
		Command:  `sh -c '` + script + `' git`,
		Attempts: 2,
		Backoff:  time.Millisecond,
	})
	if err != nil {
		t.Fatal(err)
	}

	dest := filepath.Join(t.TempDir(), "repo")
	err = f.Clone(context.Background(), "https://example.com/a.git", dest)
	if !retry.IsRetryable(err) {
		t.Fatalf("got %v, want a retryable clone failure", err)
	}
	if _, statErr := os.Stat(dest); !os.IsNotExist(statErr) {
		t.Errorf("partial clone %s was left behind: %v", dest, statErr)
	}
}
