package judge

import (
	"context"
	"fmt"
	"os"
	"strings"

	"google.golang.org/genai"

	"github.com/pgquest/questeval/internal/models"
)

const defaultGeminiModel = "gemini-2.0-flash"

const judgePromptTemplate = `You are reviewing a PostgreSQL teaching script and the output it produced.
Decide whether the script is a sound teaching example: the SQL must be correct,
the annotations must match what the statements do, and the output must be
consistent with the script's stated intent.

Respond with a single line starting with PASS or FAIL, followed by a short
justification.

--- SCRIPT ---
%s

--- OUTPUT ---
%s`

// GeminiArgs configures the Gemini judge. The API key falls back to the
// GEMINI_API_KEY environment variable when unset.
type GeminiArgs struct {
	Model  string `mapstructure:"model"`
	APIKey string `mapstructure:"api_key"`
}

// GeminiJudge grades quests with Google's Gemini API.
type GeminiJudge struct {
	client *genai.Client
	model  string
}

// NewGeminiJudge creates a Gemini-backed judge.
func NewGeminiJudge(args GeminiArgs) (*GeminiJudge, error) {
	apiKey := args.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("GEMINI_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("gemini judge requires an API key (api_key parameter or GEMINI_API_KEY)")
	}

	model := args.Model
	if model == "" {
		model = defaultGeminiModel
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey: apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiJudge{client: client, model: model}, nil
}

// Name implements [Judge].
func (g *GeminiJudge) Name() string { return "gemini" }

// Judge implements [Judge].
func (g *GeminiJudge) Judge(ctx context.Context, content, output string) (*models.Verdict, error) {
	prompt := fmt.Sprintf(judgePromptTemplate, content, output)

	resp, err := g.client.Models.GenerateContent(ctx, g.model,
		genai.Text(prompt),
		&genai.GenerateContentConfig{
			Temperature: genai.Ptr[float32](0),
		})
	if err != nil {
		return nil, fmt.Errorf("gemini judgment failed: %w", err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return nil, fmt.Errorf("gemini returned no judgment text")
	}

	return parseVerdict(text), nil
}

// parseVerdict maps the judge's first line onto a verdict. Anything that
// does not clearly pass is treated as a failure with the full text as notes.
func parseVerdict(text string) *models.Verdict {
	firstLine := text
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		firstLine = text[:i]
	}

	status := models.StatusFailure
	if strings.HasPrefix(strings.ToUpper(strings.TrimSpace(firstLine)), "PASS") {
		status = models.StatusSuccess
	}

	return &models.Verdict{
		Status: status,
		Notes:  text,
	}
}

// Ensure GeminiJudge satisfies Judge.
var _ Judge = (*GeminiJudge)(nil)
