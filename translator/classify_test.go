package translator

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/telnovia-org/analytics/dataset"
)

// ============================================================================
// CLASSIFIER + SYNTHESIZER TESTS
// ============================================================================

// fakeClient returns canned replies instead of calling a model.
type fakeClient struct {
	completeReply   string
	completeErr     error
	structuredReply []byte
	structuredErr   error

	lastSystem string
	lastUser   string
	lastTool   Tool
}

func (f *fakeClient) Complete(_ context.Context, system, user string) (string, error) {
	f.lastSystem, f.lastUser = system, user
	return f.completeReply, f.completeErr
}

func (f *fakeClient) CompleteStructured(_ context.Context, system, user string, tool Tool) ([]byte, error) {
	f.lastSystem, f.lastUser, f.lastTool = system, user, tool
	return f.structuredReply, f.structuredErr
}

func testSchema(t *testing.T) dataset.Schema {
	t.Helper()
	table, err := dataset.FromRows(
		[]string{"discount", "sales"},
		[][]string{{"0.1", "100"}, {"0.2", "250.5"}},
	)
	require.NoError(t, err)
	return dataset.ExtractSchema(table)
}

func TestClassifyDescriptive(t *testing.T) {
	client := &fakeClient{structuredReply: []byte(`{"intent": "descriptive_analysis", "variables": null}`)}

	result, err := Classify(context.Background(), client, testSchema(t), "show total sales")
	require.NoError(t, err)
	require.Equal(t, IntentDescriptive, result.Intent)
	require.Nil(t, result.Variables)
	require.True(t, result.Recognized())

	require.Equal(t, "show total sales", client.lastUser)
	require.Contains(t, client.lastSystem, "'sales': 'float'")
}

func TestClassifyCausalVariables(t *testing.T) {
	client := &fakeClient{structuredReply: []byte(
		`{"intent": "causal_analysis", "variables": {"treatment": "discount", "outcome": "sales", "common_causes": ["region"]}}`,
	)}

	result, err := Classify(context.Background(), client, testSchema(t), "what is the impact of discount on sales")
	require.NoError(t, err)
	require.Equal(t, IntentCausal, result.Intent)
	require.NotNil(t, result.Variables)
	require.Equal(t, "discount", result.Variables.Treatment)
	require.Equal(t, "sales", result.Variables.Outcome)
	require.Equal(t, []string{"region"}, result.Variables.CommonCauses)
}

func TestClassifyMalformedResponse(t *testing.T) {
	client := &fakeClient{structuredReply: []byte(`the intent is descriptive, probably`)}

	_, err := Classify(context.Background(), client, testSchema(t), "show sales")
	require.ErrorIs(t, err, ErrMalformedResponse)
}

func TestClassifyUnrecognizedIntentIsNotAnError(t *testing.T) {
	client := &fakeClient{structuredReply: []byte(`{"intent": "prescriptive_analysis", "variables": null}`)}

	result, err := Classify(context.Background(), client, testSchema(t), "what should I do")
	require.NoError(t, err)
	require.False(t, result.Recognized())
}

func TestClassifyPropagatesClientError(t *testing.T) {
	wantErr := errors.New("api unreachable")
	client := &fakeClient{structuredErr: wantErr}

	_, err := Classify(context.Background(), client, testSchema(t), "show sales")
	require.ErrorIs(t, err, wantErr)
}

func TestSynthesizeStripsFences(t *testing.T) {
	client := &fakeClient{completeReply: "```python\ndf.group_by('product').agg(pl.sum('sales'))\n```"}

	expr, err := Synthesize(context.Background(), client, testSchema(t), "total sales per product")
	require.NoError(t, err)
	require.Equal(t, "df.group_by('product').agg(pl.sum('sales'))", expr)
}

func TestSynthesisPromptVocabulary(t *testing.T) {
	prompt := BuildSynthesisPrompt(testSchema(t))
	require.Contains(t, prompt, "group_by")
	require.Contains(t, prompt, "df")
	require.Contains(t, prompt, FailureSentinel)
	require.Contains(t, prompt, "{'discount': 'float', 'sales': 'float'}")
}

func TestCleanResponse(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"```json\n{\"a\": 1}\n```", `{"a": 1}`},
		{"```python\ndf.head()\n```", "df.head()"},
		{"```\ndf.head()\n```", "df.head()"},
		{"  df.head()  ", "df.head()"},
		{"df.head()", "df.head()"},
	}
	for _, tc := range tests {
		require.Equal(t, tc.want, CleanResponse(tc.in), "input %q", tc.in)
	}
}

func TestIntentToolShape(t *testing.T) {
	tool := IntentTool()
	require.NotEmpty(t, tool.Name)

	props, ok := tool.InputSchema["properties"].(map[string]any)
	require.True(t, ok)
	require.Contains(t, props, "intent")
	require.Contains(t, props, "variables")
}
