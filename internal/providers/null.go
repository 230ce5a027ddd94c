package providers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/Juicern/local-asr/internal/asr"
)

var ErrUnsupportedAudio = errors.New("unsupported audio format: expected a RIFF/WAVE file")

// NullEngine accepts WAV audio and recognizes nothing. It lets the service run
// end to end without model weights.
type NullEngine struct{}

func NewNullLoader() asr.Loader {
	return func(context.Context, asr.ModelSpec) (asr.Engine, error) {
		return NullEngine{}, nil
	}
}

func (NullEngine) Transcribe(_ context.Context, audioPath string, opts asr.Options) (asr.RawResult, error) {
	f, err := os.Open(audioPath)
	if err != nil {
		return asr.RawResult{}, err
	}
	defer f.Close()

	header := make([]byte, 12)
	if _, err := io.ReadFull(f, header); err != nil {
		return asr.RawResult{}, fmt.Errorf("%w: %v", ErrUnsupportedAudio, err)
	}
	if !bytes.Equal(header[0:4], []byte("RIFF")) || !bytes.Equal(header[8:12], []byte("WAVE")) {
		return asr.RawResult{}, ErrUnsupportedAudio
	}

	res := asr.RawResult{}
	if !opts.AutoDetect() {
		res.Language = opts.Language
	}
	return res, nil
}
