package metricskey

import (
	"sort"
	"testing"

	"github.com/effective-security/metrics"
	"github.com/stretchr/testify/assert"
)

func TestMetricsDefinitions(t *testing.T) {
	for _, m := range Metrics {
		assert.NotEmpty(t, m.Name, "Metric name should not be empty")
		assert.NotEmpty(t, m.Help, "Metric help text should not be empty")
		assert.NotEmpty(t, m.RequiredTags, "Metric should have required tags")
	}

	isSorted := sort.SliceIsSorted(Metrics, func(i, j int) bool {
		return Metrics[i].Name < Metrics[j].Name
	})
	assert.True(t, isSorted, "Metrics slice should be sorted by name")

	seen := make(map[string]bool)
	for _, m := range Metrics {
		assert.False(t, seen[m.Name], "Metric name should be unique: %s", m.Name)
		seen[m.Name] = true
	}

	t.Run("MCP metrics have method tag", func(t *testing.T) {
		for _, m := range []*metrics.Describe{
			&StatsMCPRequestsSucceeded,
			&StatsMCPRequestsFailed,
			&StatsMCPTimeouts,
			&PerfMCPRequest,
		} {
			assert.Equal(t, []string{"method"}, m.RequiredTags, m.Name)
		}
	})

	t.Run("Agent metrics have agent tag", func(t *testing.T) {
		for _, m := range []*metrics.Describe{
			&StatsLLMMessagesSent,
			&StatsLLMBytesSent,
			&StatsLLMBytesReceived,
			&StatsAssistantCallsSucceeded,
			&StatsAssistantCallsFailed,
			&StatsAssistantLLMParseErrors,
			&StatsPipelineStageFailed,
		} {
			assert.Contains(t, m.RequiredTags, "agent", m.Name)
		}
	})

	t.Run("Tool metrics have tool tag", func(t *testing.T) {
		for _, m := range []*metrics.Describe{
			&StatsToolCallsSucceeded,
			&StatsToolCallsFailed,
			&StatsToolCallsNotFound,
			&PerfToolCall,
		} {
			assert.Contains(t, m.RequiredTags, "tool", m.Name)
		}
	})
}
