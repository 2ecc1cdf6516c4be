package e2e

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	expect "github.com/Netflix/go-expect"
	"github.com/creack/pty"
)

// buildViral builds the viral binary for testing.
func buildViral(t *testing.T) string {
	t.Helper()
	binPath := filepath.Join(t.TempDir(), "viral")

	rootDir, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	// test/e2e -> module root
	rootDir = filepath.Join(rootDir, "..", "..")

	cmd := exec.Command("go", "build", "-o", binPath, "./cmd/viral")
	cmd.Dir = rootDir
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("build failed: %v\n%s", err, out)
	}
	return binPath
}

// runInConsole starts the binary on a pty and returns a console reading
// its output.
func runInConsole(t *testing.T, bin, home string, args ...string) (*expect.Console, *bytes.Buffer, *exec.Cmd) {
	t.Helper()
	cmd := exec.Command(bin, args...)
	cmd.Env = append(os.Environ(),
		"HOME="+home,
		"VIRAL_CONFIG="+filepath.Join(home, "missing.yaml"),
		"ANTHROPIC_API_KEY=",
	)

	ptmx, err := pty.Start(cmd)
	if err != nil {
		t.Fatalf("failed to start pty: %v", err)
	}
	t.Cleanup(func() {
		_ = ptmx.Close()
		_ = cmd.Process.Kill()
	})
	if err := pty.Setsize(ptmx, &pty.Winsize{Cols: 160, Rows: 40}); err != nil {
		t.Fatalf("failed to set pty size: %v", err)
	}

	var out bytes.Buffer
	console, err := expect.NewConsole(
		expect.WithStdin(ptmx),
		expect.WithStdout(&out),
		expect.WithDefaultTimeout(10*time.Second),
	)
	if err != nil {
		t.Fatalf("failed to create console: %v", err)
	}
	t.Cleanup(func() { console.Close() })
	return console, &out, cmd
}

func waitExit(t *testing.T, cmd *exec.Cmd) error {
	t.Helper()
	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()
	select {
	case err := <-done:
		return err
	case <-time.After(10 * time.Second):
		t.Fatal("process did not exit")
		return nil
	}
}

func TestE2E_CLI(t *testing.T) {
	if testing.Short() {
		t.Skip("builds the binary")
	}
	bin := buildViral(t)
	home := t.TempDir()
	db := filepath.Join(home, "viral.db")
	if err := seedCLIFixture(context.Background(), db); err != nil {
		t.Fatalf("seed: %v", err)
	}

	steps := []struct {
		args []string
		want string
	}{
		{[]string{"opportunities"}, "Fixture traffic collapse"},
		{[]string{"opportunities", "opp-fixture"}, "64.5"},
		{[]string{"brief", "show", "brief-fixture"}, "Fixture key claim"},
		{[]string{"brief", "approve", "brief-fixture"}, "approved"},
		{[]string{"brief", "list", "--status", "approved"}, "brief-fixture"},
	}
	for _, step := range steps {
		args := append([]string{"--db", db, "--debug"}, step.args...)
		console, out, cmd := runInConsole(t, bin, home, args...)
		if _, err := console.ExpectString(step.want); err != nil {
			t.Fatalf("%v: %q not found: %v\nOutput:\n%s", step.args, step.want, err, out.String())
		}
		if err := waitExit(t, cmd); err != nil {
			t.Fatalf("%v: exit: %v\nOutput:\n%s", step.args, err, out.String())
		}
	}

	// approving twice is refused with a non-zero exit
	console, out, cmd := runInConsole(t, bin, home, "--db", db, "--debug", "brief", "approve", "brief-fixture")
	if _, err := console.ExpectString("cannot move from approved"); err != nil {
		t.Fatalf("transition error not shown: %v\nOutput:\n%s", err, out.String())
	}
	if err := waitExit(t, cmd); err == nil {
		t.Error("second approve exited zero")
	}
}
