// Package asr wraps an external speech-recognition engine: it owns the single
// lazily-built engine handle, the invocation options and the normalization of
// whatever the engine returns into a fixed response shape.
package asr

import (
	"context"
	"fmt"
	"strings"
)

// Timestamp granularities understood by Options.ReturnTimestamps.
const (
	TimestampsWord    = "word"
	TimestampsSegment = "segment"
	TimestampsNone    = "none"
)

// LanguageAuto asks the engine to detect the spoken language.
const LanguageAuto = "auto"

// Engine is a loaded model ready to accept audio.
type Engine interface {
	Transcribe(ctx context.Context, audioPath string, opts Options) (RawResult, error)
}

// Loader constructs an Engine. It is slow and is called once per process by ModelCache.
type Loader func(ctx context.Context, spec ModelSpec) (Engine, error)

// ModelSpec identifies the model and backend settings the Loader should build.
type ModelSpec struct {
	Model   string
	Threads int
}

type Options struct {
	ChunkLengthS     int
	StrideLengthS    int
	ReturnTimestamps string
	// Language is a language code; empty or LanguageAuto means auto-detect.
	Language string
}

func DefaultOptions() Options {
	return Options{
		ChunkLengthS:     30,
		StrideLengthS:    5,
		ReturnTimestamps: TimestampsWord,
		Language:         "en",
	}
}

// AutoDetect reports whether the engine should pick the language itself.
func (o Options) AutoDetect() bool {
	return o.Language == "" || strings.EqualFold(o.Language, LanguageAuto)
}

func (o Options) Validate() error {
	if o.ChunkLengthS <= 0 {
		return fmt.Errorf("chunk_length_s must be positive, got %d", o.ChunkLengthS)
	}
	if o.StrideLengthS < 0 || o.StrideLengthS*2 >= o.ChunkLengthS {
		return fmt.Errorf("stride_length_s must be between 0 and half of chunk_length_s, got %d", o.StrideLengthS)
	}
	switch o.ReturnTimestamps {
	case TimestampsWord, TimestampsSegment, TimestampsNone:
	default:
		return fmt.Errorf("return_timestamps must be one of word, segment, none, got %q", o.ReturnTimestamps)
	}
	return nil
}

// RawResult is what an engine reports. Only Text is guaranteed; the rest
// depends on the backend and on the requested timestamp granularity.
type RawResult struct {
	Text     string
	Segments []RawSegment
	// Chunks carries word-level timestamps when the engine reports them
	// separately from segments.
	Chunks   []RawSegment
	Language string
}

type RawSegment struct {
	Start float64
	End   float64
	Text  string
}
