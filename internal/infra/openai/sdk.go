package openai

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// SDKClient transcribes through the official openai-go SDK.
type SDKClient struct {
	client   openai.Client
	language string
}

func NewSDKClient(apiKey, language, baseURL string, httpClient *http.Client) *SDKClient {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if httpClient != nil {
		opts = append(opts, option.WithHTTPClient(httpClient))
	}

	return &SDKClient{
		client:   openai.NewClient(opts...),
		language: language,
	}
}

func (c *SDKClient) Transcribe(ctx context.Context, audio []byte) (string, error) {
	params := openai.AudioTranscriptionNewParams{
		File:  openai.File(bytes.NewReader(audio), "audio.wav", "audio/wav"),
		Model: openai.AudioModelWhisper1,
	}
	if c.language != "" {
		params.Language = openai.String(c.language)
	}

	transcription, err := c.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return "", &StatusError{StatusCode: apiErr.StatusCode, Message: apiErr.Message}
		}
		return "", fmt.Errorf("transcription failed: %w", err)
	}

	return transcription.Text, nil
}
