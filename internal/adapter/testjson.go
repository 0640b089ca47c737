package adapter

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
	"time"

	m "drq.dev/pkg/drq/internal/model"
)

// testEvent mirrors one line of the `go test -json` event stream.
type testEvent struct {
	Action  string  `json:"Action"`
	Package string  `json:"Package"`
	Test    string  `json:"Test"`
	Output  string  `json:"Output"`
	Elapsed float64 `json:"Elapsed"`
}

// parseTestEvents folds a `go test -json` stream into per-test outcomes.
// Only terminal actions count; a test's last terminal event wins. Lines
// that are not JSON events (toolchain noise, build diagnostics on older
// toolchains) are skipped rather than treated as fatal, so a partial stream
// from a killed process still yields the tests that completed.
func parseTestEvents(r io.Reader) []m.TestCaseResult {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	var order []string

	results := make(map[string]m.TestCaseResult)

	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 || line[0] != '{' {
			continue
		}

		var event testEvent
		if err := json.Unmarshal(line, &event); err != nil {
			continue
		}

		// Package-level events carry no test name.
		if event.Test == "" {
			continue
		}

		var outcome m.TestOutcome

		switch event.Action {
		case "pass":
			outcome = m.TestPassed
		case "fail":
			outcome = m.TestFailed
		case "skip":
			outcome = m.TestSkipped
		default:
			continue
		}

		if _, ok := results[event.Test]; !ok {
			order = append(order, event.Test)
		}

		results[event.Test] = m.TestCaseResult{
			Name:    event.Test,
			Outcome: outcome,
			Elapsed: time.Duration(event.Elapsed * float64(time.Second)),
		}
	}

	ordered := make([]m.TestCaseResult, 0, len(order))
	for _, name := range order {
		ordered = append(ordered, results[name])
	}

	return ordered
}
