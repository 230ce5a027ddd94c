package asr

import (
	"strings"

	"github.com/Juicern/local-asr/internal/domain"
)

// Normalize turns a raw engine result into the response shape. Text is passed
// through as the engine reported it. Segments fall
// back to word chunks and then to an empty slice; language falls back to the
// requested hint and then to "auto".
func Normalize(raw RawResult, model, languageHint string) domain.Transcript {
	source := raw.Segments
	if len(source) == 0 {
		source = raw.Chunks
	}

	segments := make([]domain.Segment, 0, len(source))
	for _, s := range source {
		segments = append(segments, domain.Segment{
			Start: s.Start,
			End:   s.End,
			Text:  s.Text,
		})
	}

	language := strings.TrimSpace(raw.Language)
	if language == "" {
		language = strings.TrimSpace(languageHint)
	}
	if language == "" {
		language = LanguageAuto
	}

	return domain.Transcript{
		Text:     raw.Text,
		Segments: segments,
		Language: language,
		Model:    model,
	}
}
