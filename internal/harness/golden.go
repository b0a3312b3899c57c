package harness

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// DefaultGoldenDir holds golden files relative to the test's package.
const DefaultGoldenDir = "testdata/golden"

const goldenSuffix = ".golden"

// ErrGoldenMismatch is returned by CompareGolden when the snapshot differs
// from the stored file.
var ErrGoldenMismatch = errors.New("snapshot differs from golden file")

// Snapshot renders a result as deterministic text for golden comparison:
// the compiled script or diagnostic, then every evaluation with the SQL
// it issued.
func Snapshot(name string, result *Result) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "-- scenario: %s\n", name)

	if result.CompileError != "" {
		fmt.Fprintf(&b, "-- compile error: %s\n", result.CompileError)
	} else {
		fmt.Fprintf(&b, "-- returns: %s\n", result.ReturnType)
		b.WriteString(result.Script)
	}

	for i, ev := range result.Evaluations {
		fmt.Fprintf(&b, "-- evaluate[%d]\n", i)
		for _, sql := range ev.Retrievals {
			fmt.Fprintf(&b, "--   retrieve: %s\n", sql)
		}
		if ev.Error != "" {
			fmt.Fprintf(&b, "--   error: %s\n", ev.Error)
		} else {
			fmt.Fprintf(&b, "--   value: %s\n", ev.Value)
		}
	}
	return b.Bytes()
}

// RunWithGolden executes a scenario and compares its snapshot against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) error {
	t.Helper()
	return RunWithGoldenDir(t, scenario, DefaultGoldenDir)
}

// RunWithGoldenDir is RunWithGolden with an explicit fixture directory.
func RunWithGoldenDir(t *testing.T, scenario *Scenario, dir string) error {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return err
	}
	AssertGolden(t, dir, scenario.Name, result)
	return nil
}

// AssertGolden compares an existing result against a golden file without
// re-running the scenario.
func AssertGolden(t *testing.T, dir, name string, result *Result) {
	t.Helper()

	g := goldie.New(t,
		goldie.WithFixtureDir(dir),
		goldie.WithNameSuffix(goldenSuffix),
	)
	g.Assert(t, name, Snapshot(name, result))
}

// GoldenPath returns the golden file for a scenario name.
func GoldenPath(dir, name string) string {
	return filepath.Join(dir, name+goldenSuffix)
}

// CompareGolden compares a snapshot with its golden file outside of
// tests. A missing file is reported as fs.ErrNotExist.
func CompareGolden(dir, name string, snapshot []byte) error {
	want, err := os.ReadFile(GoldenPath(dir, name))
	if err != nil {
		return err
	}
	if !bytes.Equal(want, snapshot) {
		return fmt.Errorf("%w: %s\n%s", ErrGoldenMismatch, GoldenPath(dir, name), firstDifference(want, snapshot))
	}
	return nil
}

// UpdateGolden writes a snapshot as the new golden file.
func UpdateGolden(dir, name string, snapshot []byte) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create golden dir: %w", err)
	}
	return os.WriteFile(GoldenPath(dir, name), snapshot, 0o644)
}

func firstDifference(want, got []byte) string {
	wl := strings.Split(string(want), "\n")
	gl := strings.Split(string(got), "\n")
	for i := 0; i < len(wl) || i < len(gl); i++ {
		var w, g string
		if i < len(wl) {
			w = wl[i]
		}
		if i < len(gl) {
			g = gl[i]
		}
		if w != g {
			return fmt.Sprintf("line %d:\n  want: %s\n  got:  %s", i+1, w, g)
		}
	}
	return ""
}
