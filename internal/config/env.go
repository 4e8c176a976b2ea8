package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// Keys holds the API credentials the external services need. Only the
// model key is mandatory; the paper services work unauthenticated at
// lower rate limits.
type Keys struct {
	Gemini          string
	SemanticScholar string
	PubMed          string
}

// Environment variable names for the service credentials.
const (
	EnvGeminiKey          = "GEMINI_API_KEY"
	EnvSemanticScholarKey = "S2_API_KEY"
	EnvPubMedKey          = "PUBMED_API_KEY"
)

// LoadKeys reads credentials from the environment, first merging in a
// .env file when one exists alongside the working directory. Variables
// already set in the environment win over the file.
func LoadKeys() (*Keys, error) {
	// godotenv never overrides existing variables.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	k := &Keys{
		Gemini:          os.Getenv(EnvGeminiKey),
		SemanticScholar: os.Getenv(EnvSemanticScholarKey),
		PubMed:          os.Getenv(EnvPubMedKey),
	}
	if k.Gemini == "" {
		return nil, fmt.Errorf("%s is not set", EnvGeminiKey)
	}
	return k, nil
}
