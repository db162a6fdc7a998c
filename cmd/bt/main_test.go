package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestVersionCmd(t *testing.T) {
	cmd := newRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"version"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("version command failed: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "bt dev") {
		t.Errorf("expected output to contain 'bt dev', got: %s", out)
	}
	if !strings.Contains(out, "commit: none") {
		t.Errorf("expected output to contain 'commit: none', got: %s", out)
	}
}

func TestVersionCmdWithCustomValues(t *testing.T) {
	origVersion, origCommit, origDate := Version, Commit, Date
	Version, Commit, Date = "1.0.0", "abc123", "2026-01-01"
	defer func() { Version, Commit, Date = origVersion, origCommit, origDate }()

	cmd := newRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"version"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("version command failed: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "bt 1.0.0") {
		t.Errorf("expected output to contain 'bt 1.0.0', got: %s", out)
	}
	if !strings.Contains(out, "built: 2026-01-01") {
		t.Errorf("expected output to contain 'built: 2026-01-01', got: %s", out)
	}
}

func TestRootCmdHelp(t *testing.T) {
	cmd := newRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--help"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("help command failed: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "BEARTANK") {
		t.Errorf("expected help output to contain 'BEARTANK', got: %s", out)
	}
	for _, sub := range []string{"db", "serve", "scheduler", "review", "leaderboard", "announce", "token"} {
		if !strings.Contains(out, sub) {
			t.Errorf("expected help output to list %q, got: %s", sub, out)
		}
	}
}

func TestSubcommandHelp(t *testing.T) {
	tests := []struct {
		args []string
		want string
	}{
		{[]string{"serve", "--help"}, "--no-scheduler"},
		{[]string{"scheduler", "--help"}, "--once"},
		{[]string{"review", "--help"}, "needs_changes"},
		{[]string{"reconcile", "--help"}, "no ledger entry"},
		{[]string{"stage", "status", "--help"}, "explicitly unlocks"},
		{[]string{"task", "create", "--help"}, "--side-hustle"},
		{[]string{"team", "approve", "--help"}, "--teacher"},
		{[]string{"leaderboard", "--help"}, "--team"},
		{[]string{"announce", "create", "--help"}, "--at"},
		{[]string{"teacher", "activate", "--help"}, "pending teacher"},
	}
	for _, tt := range tests {
		t.Run(strings.Join(tt.args, " "), func(t *testing.T) {
			cmd := newRootCmd()
			buf := new(bytes.Buffer)
			cmd.SetOut(buf)
			cmd.SetErr(buf)
			cmd.SetArgs(tt.args)
			if err := cmd.Execute(); err != nil {
				t.Fatalf("%v failed: %v", tt.args, err)
			}
			if !strings.Contains(buf.String(), tt.want) {
				t.Errorf("expected help to contain %q, got: %s", tt.want, buf.String())
			}
		})
	}
}

func TestReviewCmd_RequiresDecision(t *testing.T) {
	_, err := run(t, "review", "s1", "--reviewer", "t1")
	if err == nil || !strings.Contains(err.Error(), "decision") {
		t.Errorf("error = %v, want required decision flag", err)
	}
}

// writeConfig writes a sqlite class config into a temp dir.
func writeConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "beartank.yaml")
	yaml := "class: Period 3\n" +
		"database:\n  driver: sqlite\n  path: " + filepath.Join(dir, "bt.db") + "\n" +
		"server:\n  jwt_secret: test-secret\n" +
		"stages:\n" +
		"  - {id: ideation, title: Ideation, order: 1, unlocks: [pitch]}\n" +
		"  - {id: pitch, title: Pitch, order: 2}\n"
	if err := os.WriteFile(path, []byte(yaml), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetIn(strings.NewReader(""))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}
