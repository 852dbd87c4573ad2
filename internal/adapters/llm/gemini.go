package llm

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"github.com/PabloGalante/smalltalk-dojo/internal/domain"
)

const defaultGeminiModel = "gemini-2.5-flash"

// GeminiConfig selects between the Gemini API (API key) and Vertex AI
// (project + location, application default credentials).
type GeminiConfig struct {
	Vertex   bool
	APIKey   string
	Project  string
	Location string
	Model    string
	// BaseURL overrides the API endpoint, e.g. for a local gateway.
	BaseURL string
}

type GeminiClient struct {
	client    *genai.Client
	modelName string
}

// NewGeminiClient creates a CompletionClient backed by Gemini.
func NewGeminiClient(ctx context.Context, cfg GeminiConfig) (*GeminiClient, error) {
	clientCfg := &genai.ClientConfig{}

	if cfg.Vertex {
		if cfg.Project == "" || cfg.Location == "" {
			return nil, fmt.Errorf("gcp project and location must be set for Vertex AI")
		}
		clientCfg.Project = cfg.Project
		clientCfg.Location = cfg.Location
		clientCfg.Backend = genai.BackendVertexAI
	} else {
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("%w: gemini api key", domain.ErrCredentialMissing)
		}
		clientCfg.APIKey = cfg.APIKey
		clientCfg.Backend = genai.BackendGeminiAPI
	}

	if cfg.BaseURL != "" {
		clientCfg.HTTPOptions.BaseURL = cfg.BaseURL
	}

	modelName := cfg.Model
	if modelName == "" {
		modelName = defaultGeminiModel
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("creating genai client: %w", err)
	}

	return &GeminiClient{
		client:    client,
		modelName: modelName,
	}, nil
}

// Complete implements domain.CompletionClient using Gemini.
func (g *GeminiClient) Complete(ctx context.Context, req domain.CompletionRequest) (string, error) {
	// The system instruction travels in the config, not in contents
	var contents []*genai.Content
	for _, m := range req.Messages {
		var role genai.Role
		switch m.Role {
		case domain.RoleSystem:
			continue
		case domain.RoleAssistant:
			role = genai.RoleModel
		default:
			role = genai.RoleUser
		}

		contents = append(contents, genai.NewContentFromText(m.Content, role))
	}

	temp := req.Temperature

	cfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(req.System(), genai.RoleUser),
		Temperature:       &temp,
	}

	res, err := g.client.Models.GenerateContent(ctx, g.modelName, contents, cfg)
	if err != nil {
		return "", fmt.Errorf("gemini generate content: %w", err)
	}

	text := res.Text()
	if text == "" {
		return "", domain.ErrEmptyCompletion
	}

	return text, nil
}
