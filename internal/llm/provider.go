package llm

import (
	"fmt"
	"os"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// FromEnv builds a language model client from environment credentials,
// preferring OpenAI and falling back to GitHub Models, which exposes an
// OpenAI-compatible API. Returns an error when no credentials are present;
// callers treat that as "run without a model".
func FromEnv() (llms.Model, error) {
	if os.Getenv("OPENAI_API_KEY") != "" {
		client, err := openai.New()
		if err != nil {
			return nil, fmt.Errorf("failed to create OpenAI client: %w", err)
		}
		return client, nil
	}

	if token := os.Getenv("GITHUB_TOKEN"); token != "" {
		client, err := openai.New(
			openai.WithToken(token),
			openai.WithBaseURL("https://models.inference.ai.azure.com"),
			openai.WithModel("gpt-4o-mini"),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create GitHub Models client: %w", err)
		}
		return client, nil
	}

	return nil, fmt.Errorf("no language model credentials configured")
}
