package cli

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/afero"

	errs "github.com/matzehuels/httparchivedeps/pkg/errors"
	"github.com/matzehuels/httparchivedeps/pkg/manifest"
)

func requireNoScratch(t *testing.T, mem afero.Fs) {
	t.Helper()
	if ok, _ := afero.DirExists(mem, "/work/build_generator_tmp"); ok {
		t.Error("scratch root still exists")
	}
}

func TestGenerate(t *testing.T) {
	c, mem := newTestCLI(t)
	stdout, stderr, err := execute(t, c, "generate")
	if err != nil {
		t.Fatalf("generate: %v\n%s", err, stderr)
	}

	m, err := manifest.Read(strings.NewReader(stdout), manifest.FormatJSON)
	if err != nil {
		t.Fatalf("decode manifest: %v\n%s", err, stdout)
	}
	if m.CommitID != "5b9be84" {
		t.Errorf("commitId = %q", m.CommitID)
	}
	want := []manifest.HttpArchiveDep{
		{JavaClass: "com.google.startupos.common.FileUtils", Target: "//common:common"},
		{JavaClass: "com.google.startupos.common.Strings", Target: "//common:common"},
	}
	if len(m.Deps) != len(want) || m.Deps[0] != want[0] || m.Deps[1] != want[1] {
		t.Errorf("deps = %+v, want %+v", m.Deps, want)
	}
	if !strings.Contains(stderr, "startup_os") {
		t.Errorf("summary does not name the archive:\n%s", stderr)
	}
	requireNoScratch(t, mem)
}

func TestGenerateFailedArchive(t *testing.T) {
	c, mem := newTestCLI(t)
	stdout, stderr, err := execute(t, c, "generate", "-a", "startup_os", "-a", "unreachable")
	if err == nil {
		t.Fatal("expected an error for the unreachable archive")
	}
	if !errs.Is(err, errs.ErrCodeMaterialization) {
		t.Errorf("error = %v, want MATERIALIZATION_FAILED in chain", err)
	}

	m, rerr := manifest.Read(strings.NewReader(stdout), manifest.FormatJSON)
	if rerr != nil {
		t.Fatalf("manifest of the healthy archive was not written: %v", rerr)
	}
	if len(m.Deps) != 2 || m.CommitID != "5b9be84" {
		t.Errorf("manifest = %+v", m)
	}
	if !strings.Contains(stderr, "unreachable") {
		t.Errorf("summary does not report the failure:\n%s", stderr)
	}
	requireNoScratch(t, mem)
}

func TestGenerateMissingArchive(t *testing.T) {
	c, _ := newTestCLI(t)
	stdout, stderr, err := execute(t, c, "generate", "--archive", "missing")
	if err != nil {
		t.Fatalf("missing archive should not fail the run: %v", err)
	}
	m, err := manifest.Read(strings.NewReader(stdout), manifest.FormatJSON)
	if err != nil {
		t.Fatal(err)
	}
	if len(m.Deps) != 0 {
		t.Errorf("deps = %+v, want none", m.Deps)
	}
	if !strings.Contains(stderr, "not declared") {
		t.Errorf("summary does not warn about the missing archive:\n%s", stderr)
	}
}

func TestGenerateOutputFile(t *testing.T) {
	c, _ := newTestCLI(t)
	out := filepath.Join(t.TempDir(), "deps.yaml")
	stdout, stderr, err := execute(t, c, "generate", "-o", out, "-f", "yaml")
	if err != nil {
		t.Fatal(err)
	}
	if stdout != "" {
		t.Errorf("stdout should be empty when writing to a file, got %q", stdout)
	}
	if !strings.Contains(stderr, out) {
		t.Errorf("summary does not show the output path:\n%s", stderr)
	}

	f, err := os.Open(out)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	m, err := manifest.Read(f, manifest.FormatYAML)
	if err != nil {
		t.Fatal(err)
	}
	if len(m.Deps) != 2 {
		t.Errorf("deps = %+v", m.Deps)
	}
}

func TestGenerateConfigFile(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "config.toml")
	cfg := `
archives = ["startup_os"]
format = "toml"
workers = 2
`
	if err := os.WriteFile(cfgPath, []byte(cfg), 0o644); err != nil {
		t.Fatal(err)
	}

	c, _ := newTestCLI(t)
	stdout, _, err := execute(t, c, "generate", "--config", cfgPath)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(stdout, `commitId = "5b9be84"`) {
		t.Errorf("expected TOML output from config, got:\n%s", stdout)
	}

	// Flags win over the config file.
	stdout, _, err = execute(t, c, "generate", "--config", cfgPath, "--format", "json")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(stdout, "{") {
		t.Errorf("expected JSON output, got:\n%s", stdout)
	}
}

func TestGenerateErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		code errs.Code
	}{
		{"bad format", []string{"generate", "-f", "xml"}, errs.ErrCodeInvalidFormat},
		{"missing workspace", []string{"generate", "-w", "nope/WORKSPACE"}, errs.ErrCodeFileNotFound},
		{"bad workers", []string{"generate", "-j", "-3"}, errs.ErrCodeInvalidInput},
		{"bad scratch dir", []string{"generate", "--scratch-dir", "../outside"}, errs.ErrCodeInvalidPath},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestCLI(t)
			_, _, err := execute(t, c, tt.args...)
			if !errs.Is(err, tt.code) {
				t.Errorf("error = %v, want %s", err, tt.code)
			}
		})
	}
}

func TestGenerateFormatFlagHelp(t *testing.T) {
	c, _ := newTestCLI(t)
	cmd := c.generateCommand()
	if usage := cmd.Flags().Lookup("format").Usage; !strings.Contains(usage, "json, yaml, toml") {
		t.Errorf("--format usage = %q", usage)
	}
}
