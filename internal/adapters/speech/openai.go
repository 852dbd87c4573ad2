// Package speech adapts OpenAI's audio endpoints to the transcription and
// speech-synthesis ports.
package speech

import (
	"context"
	"fmt"
	"io"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/PabloGalante/smalltalk-dojo/internal/domain"
)

const (
	DefaultVoice              = "alloy"
	DefaultTTSModel           = string(openai.TTSModel1)
	DefaultTranscriptionModel = openai.Whisper1
)

type Config struct {
	APIKey             string
	BaseURL            string
	TTSModel           string
	TranscriptionModel string
	Language           string // ISO-639-1 hint for transcription, e.g. "en"
}

// Client implements domain.Transcriber and domain.SpeechSynthesizer.
type Client struct {
	client *openai.Client
	cfg    Config
}

var (
	_ domain.Transcriber       = (*Client)(nil)
	_ domain.SpeechSynthesizer = (*Client)(nil)
)

func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: speech api key", domain.ErrCredentialMissing)
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	if cfg.TTSModel == "" {
		cfg.TTSModel = DefaultTTSModel
	}
	if cfg.TranscriptionModel == "" {
		cfg.TranscriptionModel = DefaultTranscriptionModel
	}

	return &Client{
		client: openai.NewClientWithConfig(clientCfg),
		cfg:    cfg,
	}, nil
}

func (c *Client) Transcribe(ctx context.Context, in domain.AudioInput) (string, error) {
	if in.Data == nil {
		return "", fmt.Errorf("transcribe: no audio")
	}

	filename := in.Filename
	if filename == "" {
		filename = "turn.webm"
	}

	resp, err := c.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    c.cfg.TranscriptionModel,
		FilePath: filename,
		Reader:   in.Data,
		Language: c.cfg.Language,
		Format:   openai.AudioResponseFormatJSON,
	})
	if err != nil {
		return "", fmt.Errorf("transcribe: %w", err)
	}

	return strings.TrimSpace(resp.Text), nil
}

// Synthesize returns an mp3 stream; the caller closes it.
func (c *Client) Synthesize(ctx context.Context, text, voice string) (io.ReadCloser, error) {
	if voice == "" {
		voice = DefaultVoice
	}

	resp, err := c.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          openai.SpeechModel(c.cfg.TTSModel),
		Input:          text,
		Voice:          openai.SpeechVoice(voice),
		ResponseFormat: openai.SpeechResponseFormatMp3,
	})
	if err != nil {
		return nil, fmt.Errorf("synthesize: %w", err)
	}

	return resp, nil
}
