package providers

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/Juicern/local-asr/internal/asr"
)

// OpenAIEngine talks to an OpenAI-compatible transcription server such as
// LocalAI, faster-whisper-server or the whisper.cpp server. Chunking and
// stride are handled by the server and are not sent.
type OpenAIEngine struct {
	client *openai.Client
	model  string
}

// NewOpenAILoader returns a loader that checks the model is served at baseURL
// before handing out the engine.
func NewOpenAILoader(baseURL, apiKey string) asr.Loader {
	return func(ctx context.Context, spec asr.ModelSpec) (asr.Engine, error) {
		cfg := openai.DefaultConfig(apiKey)
		if baseURL != "" {
			cfg.BaseURL = baseURL
		}
		client := openai.NewClientWithConfig(cfg)

		if _, err := client.GetModel(ctx, spec.Model); err != nil {
			return nil, fmt.Errorf("model %s unavailable: %w", spec.Model, err)
		}
		return &OpenAIEngine{client: client, model: spec.Model}, nil
	}
}

func (e *OpenAIEngine) Transcribe(ctx context.Context, audioPath string, opts asr.Options) (asr.RawResult, error) {
	req := openai.AudioRequest{
		Model:    e.model,
		FilePath: audioPath,
		Format:   openai.AudioResponseFormatVerboseJSON,
	}
	if !opts.AutoDetect() {
		req.Language = opts.Language
	}
	switch opts.ReturnTimestamps {
	case asr.TimestampsWord:
		req.TimestampGranularities = []openai.TranscriptionTimestampGranularity{
			openai.TranscriptionTimestampGranularitySegment,
			openai.TranscriptionTimestampGranularityWord,
		}
	case asr.TimestampsSegment:
		req.TimestampGranularities = []openai.TranscriptionTimestampGranularity{
			openai.TranscriptionTimestampGranularitySegment,
		}
	}

	resp, err := e.client.CreateTranscription(ctx, req)
	if err != nil {
		return asr.RawResult{}, err
	}

	result := asr.RawResult{
		Text:     resp.Text,
		Language: resp.Language,
	}
	if opts.ReturnTimestamps == asr.TimestampsNone {
		return result, nil
	}
	for _, s := range resp.Segments {
		result.Segments = append(result.Segments, asr.RawSegment{Start: s.Start, End: s.End, Text: s.Text})
	}
	for _, w := range resp.Words {
		result.Chunks = append(result.Chunks, asr.RawSegment{Start: w.Start, End: w.End, Text: w.Word})
	}
	return result, nil
}
