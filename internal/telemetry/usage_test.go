package telemetry

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tidwall/sjson"
)

func TestParseUsageObject(t *testing.T) {
	body := `{"candidates":[{"content":{"parts":[{"text":"hi"}]}}],
		"usageMetadata":{"promptTokenCount":12,"candidatesTokenCount":34,"totalTokenCount":46}}`

	u := ParseUsage([]byte(body))
	require.NotNil(t, u)
	require.EqualValues(t, 12, u.PromptTokens)
	require.EqualValues(t, 34, u.CompletionTokens)
	require.EqualValues(t, 46, u.TotalTokens)
}

func TestParseUsageStreamArray(t *testing.T) {
	// Usage arrives on the final chunk of a buffered stream.
	body := `[{"candidates":[{"content":{"parts":[{"text":"a"}]}}]},
		{"candidates":[{"content":{"parts":[{"text":"b"}]}}]},
		{"usageMetadata":{"promptTokenCount":5,"candidatesTokenCount":7,"totalTokenCount":12}}]`

	u := ParseUsage([]byte(body))
	require.NotNil(t, u)
	require.EqualValues(t, 5, u.PromptTokens)
	require.EqualValues(t, 12, u.TotalTokens)
}

func TestParseUsagePrefersLastChunk(t *testing.T) {
	base := `[{"usageMetadata":{"totalTokenCount":1}},{"usageMetadata":{"totalTokenCount":2}}]`
	body, err := sjson.Set(base, "1.usageMetadata.totalTokenCount", 99)
	require.NoError(t, err)

	u := ParseUsage([]byte(body))
	require.NotNil(t, u)
	require.EqualValues(t, 99, u.TotalTokens)
}

func TestParseUsageAbsent(t *testing.T) {
	require.Nil(t, ParseUsage(nil))
	require.Nil(t, ParseUsage([]byte(`{"candidates":[]}`)))
	require.Nil(t, ParseUsage([]byte(`[{"candidates":[]}]`)))
	require.Nil(t, ParseUsage([]byte(`not json at all`)))
}

func TestUsageApply(t *testing.T) {
	var rec Record
	(&Usage{PromptTokens: 1, CompletionTokens: 2, TotalTokens: 3}).Apply(&rec)
	require.NotNil(t, rec.PromptTokens)
	require.EqualValues(t, 1, *rec.PromptTokens)
	require.EqualValues(t, 3, *rec.TotalTokens)

	var empty Record
	(*Usage)(nil).Apply(&empty)
	require.Nil(t, empty.TotalTokens)
}
