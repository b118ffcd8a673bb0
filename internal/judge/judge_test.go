package judge

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pgquest/questeval/internal/models"
)

func TestCreate_NilConfig(t *testing.T) {
	j, err := Create(nil)
	require.NoError(t, err)
	assert.Nil(t, j)
}

func TestCreate_UnknownKind(t *testing.T) {
	_, err := Create(&models.JudgeConfig{Kind: "oracle"})
	assert.Error(t, err)
}

func TestCreate_MockFromParameters(t *testing.T) {
	j, err := Create(&models.JudgeConfig{
		Kind: "mock",
		Parameters: map[string]any{
			"status": "failure",
			"notes":  "annotations do not match the query",
		},
	})
	require.NoError(t, err)
	require.NotNil(t, j)
	assert.Equal(t, "mock", j.Name())

	verdict, err := j.Judge(context.Background(), "SELECT 1;", "")
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailure, verdict.Status)
	assert.Equal(t, "annotations do not match the query", verdict.Notes)
}

func TestCreate_GeminiRequiresAPIKey(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")

	_, err := Create(&models.JudgeConfig{Kind: "gemini"})
	assert.Error(t, err)
}

func TestMockJudge_DefaultsToSuccess(t *testing.T) {
	j := NewMockJudge(MockArgs{})

	verdict, err := j.Judge(context.Background(), "SELECT 1;", "1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusSuccess, verdict.Status)
}

func TestParseVerdict(t *testing.T) {
	tests := []struct {
		name string
		text string
		want models.Status
	}{
		{"pass", "PASS: clear explanation of recursive CTE anchoring", models.StatusSuccess},
		{"pass lowercase", "pass - fine", models.StatusSuccess},
		{"fail", "FAIL: output contradicts the comment on line 3", models.StatusFailure},
		{"ambiguous", "The script is mostly fine.", models.StatusFailure},
		{"multiline pass", "PASS\nDetailed reasoning follows.", models.StatusSuccess},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verdict := parseVerdict(tt.text)
			assert.Equal(t, tt.want, verdict.Status)
			assert.Equal(t, tt.text, verdict.Notes)
		})
	}
}
