package harness

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ScenarioDirError is returned when a scenario directory cannot be used.
type ScenarioDirError struct {
	Dir    string
	Reason string
}

// Error implements the error interface.
func (e *ScenarioDirError) Error() string {
	return fmt.Sprintf("scenario directory %q: %s", e.Dir, e.Reason)
}

// Discover returns the scenario files (*.yaml, *.yml) directly inside dir,
// sorted by name.
func Discover(dir string) ([]string, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, &ScenarioDirError{Dir: dir, Reason: err.Error()}
	}
	if !info.IsDir() {
		return nil, &ScenarioDirError{Dir: dir, Reason: "not a directory"}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, &ScenarioDirError{Dir: dir, Reason: err.Error()}
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".yaml", ".yml":
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(paths)
	return paths, nil
}

// SuiteOptions configures RunSuite.
type SuiteOptions struct {
	// GoldenDir enables snapshot comparison when non-empty.
	GoldenDir string

	// Update rewrites golden files instead of comparing them.
	Update bool
}

// SuiteResult summarizes a directory of scenarios.
type SuiteResult struct {
	Total    int               `json:"total"`
	Passed   int               `json:"passed"`
	Failed   int               `json:"failed"`
	Updated  int               `json:"updated,omitempty"`
	Failures []ScenarioFailure `json:"failures,omitempty"`
}

// ScenarioFailure represents a scenario that did not pass.
type ScenarioFailure struct {
	ScenarioPath string `json:"scenario_path"`
	Name         string `json:"name,omitempty"`
	Error        string `json:"error"`
}

// RunSuite loads and runs every scenario in dir.
//
// For each scenario file:
//  1. Load and validate it
//  2. Run it
//  3. Check assertions, then the golden snapshot if enabled
//  4. Collect the outcome
func RunSuite(ctx context.Context, dir string, opts SuiteOptions) (*SuiteResult, error) {
	paths, err := Discover(dir)
	if err != nil {
		return nil, err
	}

	suite := &SuiteResult{}
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return suite, err
		}
		suite.Total++

		fail := func(name, msg string) {
			suite.Failed++
			suite.Failures = append(suite.Failures, ScenarioFailure{ScenarioPath: path, Name: name, Error: msg})
		}

		scenario, err := LoadScenario(path)
		if err != nil {
			fail("", fmt.Sprintf("failed to load scenario: %v", err))
			continue
		}

		result, err := RunContext(ctx, scenario)
		if err != nil {
			fail(scenario.Name, fmt.Sprintf("scenario execution failed: %v", err))
			continue
		}
		if !result.Pass {
			fail(scenario.Name, fmt.Sprintf("scenario assertions failed: %s", strings.Join(result.Errors, "; ")))
			continue
		}

		if opts.GoldenDir != "" {
			snap := Snapshot(scenario.Name, result)
			if opts.Update {
				if err := UpdateGolden(opts.GoldenDir, scenario.Name, snap); err != nil {
					fail(scenario.Name, fmt.Sprintf("failed to update golden file: %v", err))
					continue
				}
				suite.Updated++
			} else if err := CompareGolden(opts.GoldenDir, scenario.Name, snap); err != nil {
				if errors.Is(err, fs.ErrNotExist) {
					err = fmt.Errorf("missing golden file %s (run with --update)", GoldenPath(opts.GoldenDir, scenario.Name))
				}
				fail(scenario.Name, err.Error())
				continue
			}
		}

		suite.Passed++
	}
	return suite, nil
}
