package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/term"

	"github.com/PabloGalante/smalltalk-dojo/internal/adapters/llm"
	"github.com/PabloGalante/smalltalk-dojo/internal/adapters/secrets"
	"github.com/PabloGalante/smalltalk-dojo/internal/adapters/speech"
	firestorestore "github.com/PabloGalante/smalltalk-dojo/internal/adapters/storage/firestore"
	memstore "github.com/PabloGalante/smalltalk-dojo/internal/adapters/storage/memory"
	sheetsstore "github.com/PabloGalante/smalltalk-dojo/internal/adapters/storage/sheets"
	sqlitestore "github.com/PabloGalante/smalltalk-dojo/internal/adapters/storage/sqlite"
	"github.com/PabloGalante/smalltalk-dojo/internal/app/conversation"
	"github.com/PabloGalante/smalltalk-dojo/internal/app/feedback"
	"github.com/PabloGalante/smalltalk-dojo/internal/config"
	"github.com/PabloGalante/smalltalk-dojo/internal/domain"
	"github.com/PabloGalante/smalltalk-dojo/internal/observability"
	"github.com/PabloGalante/smalltalk-dojo/internal/persona"
)

type app struct {
	cfg      *config.Config
	svc      *conversation.Service
	feedback *feedback.Service
	sink     *speech.FileSink
	closers  []io.Closer
}

func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i].Close())
	}
	return errors.Join(errs...)
}

type wireOptions struct {
	// interactive enables the terminal prompt as the last credential source
	interactive bool
	in          io.Reader
	out         io.Writer
}

func wireApp(ctx context.Context, cfg *config.Config, opts wireOptions) (*app, error) {
	log := observability.Logger()

	catalog, err := persona.LoadFile(cfg.PersonasFile)
	if err != nil {
		return nil, fmt.Errorf("wire personas: %w", err)
	}

	creds := credentialSource(cfg, opts)

	llmClient, err := wireLLM(ctx, cfg, creds)
	if err != nil {
		return nil, fmt.Errorf("wire completion client: %w", err)
	}
	log.Info("completion client ready", "provider", cfg.LLM.Provider, "model", cfg.LLM.Model)

	a := &app{cfg: cfg}

	collab, err := wireStores(ctx, cfg, a)
	if err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("wire storage: %w", err)
	}
	log.Info("storage ready", "backend", cfg.Store.Backend)

	if cfg.Speech.Enabled {
		if err := wireSpeech(ctx, cfg, creds, opts, &collab, a); err != nil {
			// speech is optional; run text-only
			log.Warn("speech disabled", "error", err)
		}
	}

	a.svc = conversation.NewService(llmClient, catalog, collab, conversation.PromptOptions{
		WordLimit:        cfg.Coach.WordLimit,
		CritiqueLanguage: cfg.Coach.CritiqueLanguage,
		Temperature:      cfg.LLM.Temperature,
	})
	a.feedback = feedback.NewService(collab.Feedback)

	return a, nil
}

// credentialSource chains config/env values, the secrets directory and, for
// interactive sessions on a TTY, a one-time prompt.
func credentialSource(cfg *config.Config, opts wireOptions) secrets.Source {
	lookup := func(key string) string {
		switch key {
		case secrets.KeyLLMAPIKey:
			if cfg.LLM.APIKey != "" {
				return cfg.LLM.APIKey
			}
			for _, name := range cfg.APIKeyEnvAliases() {
				if v := os.Getenv(name); v != "" {
					return v
				}
			}
		case secrets.KeySpeechAPIKey:
			if cfg.Speech.APIKey != "" {
				return cfg.Speech.APIKey
			}
			if cfg.LLM.Provider == config.ProviderOpenAI && cfg.LLM.APIKey != "" {
				return cfg.LLM.APIKey
			}
			return os.Getenv("OPENAI_API_KEY")
		}
		return ""
	}

	sources := []secrets.Source{secrets.NewValueSource(lookup)}
	if cfg.SecretsDir != "" {
		sources = append(sources, secrets.NewFileSource(cfg.SecretsDir))
	}
	if opts.interactive {
		if f, ok := opts.in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
			sources = append(sources, secrets.NewPromptSource(f, opts.out))
		}
	}
	return secrets.NewChain(sources...)
}

func wireLLM(ctx context.Context, cfg *config.Config, creds secrets.Source) (domain.CompletionClient, error) {
	switch cfg.LLM.Provider {
	case config.ProviderMock:
		return llm.NewMockLLM(), nil

	case config.ProviderVertex:
		client, err := llm.NewGeminiClient(ctx, llm.GeminiConfig{
			Vertex:   true,
			Project:  cfg.GCP.ProjectID,
			Location: cfg.GCP.Location,
			Model:    cfg.LLM.Model,
		})
		if err != nil {
			return nil, err
		}
		return client, nil

	case config.ProviderGemini:
		key, err := secrets.Resolve(ctx, creds, secrets.KeyLLMAPIKey)
		if err != nil {
			return nil, err
		}
		client, err := llm.NewGeminiClient(ctx, llm.GeminiConfig{APIKey: key, Model: cfg.LLM.Model, BaseURL: cfg.LLM.BaseURL})
		if err != nil {
			return nil, err
		}
		return client, nil

	case config.ProviderDeepSeek, config.ProviderOpenAI:
		key, err := secrets.Resolve(ctx, creds, secrets.KeyLLMAPIKey)
		if err != nil {
			return nil, err
		}
		client, err := llm.NewOpenAIClient(llm.OpenAIConfig{
			APIKey:  key,
			BaseURL: cfg.LLM.BaseURL,
			Model:   cfg.LLM.Model,
		})
		if err != nil {
			return nil, err
		}
		return client, nil

	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.LLM.Provider)
	}
}

func wireStores(ctx context.Context, cfg *config.Config, a *app) (conversation.Collaborators, error) {
	var collab conversation.Collaborators

	switch cfg.Store.Backend {
	case config.BackendNone:
		collab.Feedback = memstore.NewFeedbackStore()

	case config.BackendSQLite:
		st, err := sqlitestore.NewStore(cfg.Store.SQLitePath)
		if err != nil {
			return collab, err
		}
		a.closers = append(a.closers, st)
		collab.Store = st
		collab.Feedback = st

	case config.BackendFirestore:
		st, err := firestorestore.NewStore(ctx, cfg.GCP.ProjectID)
		if err != nil {
			return collab, err
		}
		a.closers = append(a.closers, st)
		// 1 store, implements 2 interfaces
		collab.Store = st
		collab.Feedback = st

	case config.BackendSheets:
		st, err := sheetsstore.NewStore(ctx, sheetsstore.Config{
			SpreadsheetID:   cfg.Sheets.SpreadsheetID,
			Range:           cfg.Sheets.Range,
			CredentialsFile: cfg.Sheets.CredentialsFile,
		})
		if err != nil {
			return collab, err
		}
		collab.Store = st
		collab.Feedback = memstore.NewFeedbackStore()

	default:
		collab.Store = memstore.NewTranscriptStore()
		collab.Feedback = memstore.NewFeedbackStore()
	}

	return collab, nil
}

// wireSpeech attaches transcription and synthesis. Only the terminal chat
// gets a FileSink; the HTTP surface returns the audio in the response body.
func wireSpeech(ctx context.Context, cfg *config.Config, creds secrets.Source, opts wireOptions, collab *conversation.Collaborators, a *app) error {
	key, err := secrets.Resolve(ctx, creds, secrets.KeySpeechAPIKey)
	if err != nil {
		return err
	}

	client, err := speech.NewClient(speech.Config{
		APIKey:             key,
		TTSModel:           cfg.Speech.TTSModel,
		TranscriptionModel: cfg.Speech.TranscriptionModel,
		Language:           cfg.Speech.Language,
	})
	if err != nil {
		return err
	}

	collab.Transcriber = client
	collab.Synthesizer = client
	if opts.interactive && cfg.Speech.AudioDir != "" {
		a.sink = speech.NewFileSink(cfg.Speech.AudioDir)
		collab.Sink = a.sink
	}
	return nil
}
