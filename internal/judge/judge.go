// Package judge provides an optional AI quality judgment over a quest's
// content and captured output. The judge is an opaque collaborator; its
// verdict is merged into the evaluation record and never affects the
// execution status itself.
package judge

import (
	"context"
	"fmt"

	"github.com/go-viper/mapstructure/v2"

	"github.com/pgquest/questeval/internal/models"
)

// Judge evaluates the educational quality of a quest given its content and
// the output it produced.
type Judge interface {
	// Name identifies the judge backend.
	Name() string

	// Judge returns a verdict for one quest. Errors are reported to the
	// caller but a batch treats a failed judgment as "no verdict", not as
	// a quest failure.
	Judge(ctx context.Context, content, output string) (*models.Verdict, error)
}

// Create builds a judge from a manifest judge configuration.
func Create(cfg *models.JudgeConfig) (Judge, error) {
	if cfg == nil {
		return nil, nil
	}

	switch cfg.Kind {
	case "gemini":
		var args GeminiArgs
		if err := mapstructure.Decode(cfg.Parameters, &args); err != nil {
			return nil, fmt.Errorf("decoding gemini judge parameters: %w", err)
		}
		return NewGeminiJudge(args)
	case "mock":
		var args MockArgs
		if err := mapstructure.Decode(cfg.Parameters, &args); err != nil {
			return nil, fmt.Errorf("decoding mock judge parameters: %w", err)
		}
		return NewMockJudge(args), nil
	default:
		return nil, fmt.Errorf("'%s' is not a valid judge kind", cfg.Kind)
	}
}
