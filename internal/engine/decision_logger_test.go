package engine

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecisionLoggerAppendsNDJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "decisions.ndjson")
	logger, err := NewDecisionLogger(path, "run-1")
	require.NoError(t, err)

	logger.Append(Decision{Symbol: "SPY", Close: 420.5, MA: 425.1, Period: 40, PositionQty: 100, Action: "exit", Result: "order_placed"})
	logger.Append(Decision{Symbol: "SPY", Action: "hold", Result: "no_position"})
	require.NoError(t, logger.Close())

	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()

	var decisions []Decision
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var d Decision
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &d))
		decisions = append(decisions, d)
	}
	require.NoError(t, scanner.Err())
	require.Len(t, decisions, 2)

	assert.Equal(t, "run-1", decisions[0].RunID)
	assert.Equal(t, "exit", decisions[0].Action)
	assert.Equal(t, 420.5, decisions[0].Close)
	assert.False(t, decisions[0].Timestamp.IsZero(), "timestamp is stamped on append")
	assert.Equal(t, "no_position", decisions[1].Result)
}

func TestDecisionLoggerAppendsAcrossRuns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "decisions.ndjson")

	first, err := NewDecisionLogger(path, "run-1")
	require.NoError(t, err)
	first.Append(Decision{Symbol: "SPY", Action: "hold", Result: "held"})
	require.NoError(t, first.Close())

	second, err := NewDecisionLogger(path, "run-2")
	require.NoError(t, err)
	second.Append(Decision{Symbol: "SPY", Action: "exit", Result: "order_placed"})
	require.NoError(t, second.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"run_id":"run-1"`)
	assert.Contains(t, string(data), `"run_id":"run-2"`)
}
