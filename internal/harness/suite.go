package harness

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// SuiteResult summarises a directory of scenarios.
type SuiteResult struct {
	TotalScenarios int               `json:"total_scenarios"`
	Passed         int               `json:"passed"`
	Failed         int               `json:"failed"`
	Failures       []ScenarioFailure `json:"failures,omitempty"`
}

// ScenarioFailure represents a scenario that did not load, run or pass.
type ScenarioFailure struct {
	ScenarioPath string   `json:"scenario_path"`
	Error        string   `json:"error"`
	Details      []string `json:"details,omitempty"`
}

// FindScenarios returns the .yaml and .yml files under dir, sorted.
func FindScenarios(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if ext := filepath.Ext(path); !info.IsDir() && (ext == ".yaml" || ext == ".yml") {
			files = append(files, path)
		}
		return nil
	})
	sort.Strings(files)
	return files, err
}

// RunSuite loads and runs every scenario file in paths.
//
// For each path:
// 1. Load and validate the scenario
// 2. Run it in a fresh ledger
// 3. Count it as passed only if every step and assertion held
func RunSuite(paths []string) *SuiteResult {
	result := &SuiteResult{}

	for _, path := range paths {
		result.TotalScenarios++

		scenario, err := LoadScenario(path)
		if err != nil {
			result.fail(path, fmt.Sprintf("failed to load scenario: %v", err), nil)
			continue
		}

		runResult, err := Run(scenario)
		if err != nil {
			result.fail(path, fmt.Sprintf("scenario execution failed: %v", err), nil)
			continue
		}

		if !runResult.Pass {
			result.fail(path, "scenario assertions failed", runResult.Errors)
			continue
		}

		result.Passed++
	}

	return result
}

// RunDir runs every scenario found under dir.
func RunDir(dir string) (*SuiteResult, error) {
	paths, err := FindScenarios(dir)
	if err != nil {
		return nil, fmt.Errorf("scan scenarios: %w", err)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no scenario files found in %s", dir)
	}
	return RunSuite(paths), nil
}

func (r *SuiteResult) fail(path, msg string, details []string) {
	r.Failed++
	r.Failures = append(r.Failures, ScenarioFailure{
		ScenarioPath: path,
		Error:        msg,
		Details:      details,
	})
}
