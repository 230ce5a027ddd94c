package providers

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/Juicern/local-asr/internal/asr"
)

type (
	commandResult struct {
		Language     string           `json:"language"`
		Segments     []commandSegment `json:"segments"`
		WordSegments []commandWord    `json:"word_segments"`
	}

	commandSegment struct {
		Text  string          `json:"text"`
		Start decimal.Decimal `json:"start"`
		End   decimal.Decimal `json:"end"`
		Words []commandWord   `json:"words"`
	}

	commandWord struct {
		Text  string           `json:"word"`
		Start *decimal.Decimal `json:"start"`
		End   *decimal.Decimal `json:"end"`
	}
)

// CommandEngine runs a whisperx-compatible CLI per request and reads the JSON
// file it writes into a scratch output directory.
type CommandEngine struct {
	path    string
	model   string
	threads int
	logger  *slog.Logger
}

// NewCommandLoader resolves command on PATH once; the binary loads its own
// weights on every run.
func NewCommandLoader(command string, logger *slog.Logger) asr.Loader {
	return func(_ context.Context, spec asr.ModelSpec) (asr.Engine, error) {
		path, err := exec.LookPath(command)
		if err != nil {
			return nil, fmt.Errorf("resolving transcription command %q: %w", command, err)
		}
		return &CommandEngine{path: path, model: spec.Model, threads: spec.Threads, logger: logger}, nil
	}
}

func (e *CommandEngine) Transcribe(ctx context.Context, audioPath string, opts asr.Options) (asr.RawResult, error) {
	outDir, err := os.MkdirTemp("", "local-asr-out-*")
	if err != nil {
		return asr.RawResult{}, fmt.Errorf("creating output dir: %w", err)
	}
	defer os.RemoveAll(outDir)

	cmd := exec.CommandContext(ctx, e.path, e.args(audioPath, outDir, opts)...)
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return asr.RawResult{}, fmt.Errorf("attaching stderr: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return asr.RawResult{}, fmt.Errorf("starting %s: %w", filepath.Base(e.path), err)
	}

	// stderr must be fully read before Wait closes it.
	tail := e.readTail(stderr)
	if err := cmd.Wait(); err != nil {
		if tail != "" {
			return asr.RawResult{}, fmt.Errorf("%s failed: %s", filepath.Base(e.path), tail)
		}
		return asr.RawResult{}, fmt.Errorf("%s failed: %w", filepath.Base(e.path), err)
	}

	base := strings.TrimSuffix(filepath.Base(audioPath), filepath.Ext(audioPath))
	f, err := os.Open(filepath.Join(outDir, base+".json"))
	if err != nil {
		return asr.RawResult{}, fmt.Errorf("opening transcription output: %w", err)
	}
	defer f.Close()

	var out commandResult
	if err := json.NewDecoder(f).Decode(&out); err != nil {
		return asr.RawResult{}, fmt.Errorf("decoding transcription output: %w", err)
	}
	return out.toRaw(opts), nil
}

func (e *CommandEngine) args(audioPath, outDir string, opts asr.Options) []string {
	args := []string{
		audioPath,
		"--model", e.model,
		"--output_dir", outDir,
		"--output_format", "json",
		"--chunk_size", strconv.Itoa(opts.ChunkLengthS),
	}
	if e.threads > 0 {
		args = append(args, "--threads", strconv.Itoa(e.threads))
	}
	if !opts.AutoDetect() {
		args = append(args, "--language", opts.Language)
	}
	if opts.ReturnTimestamps != asr.TimestampsWord {
		args = append(args, "--no_align")
	}
	return args
}

// readTail forwards stderr lines to the debug log until the stream closes and
// returns the last few of them.
func (e *CommandEngine) readTail(r io.Reader) string {
	const keep = 5
	var lines []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if e.logger != nil {
			e.logger.Debug("transcription command", slog.String("line", line))
		}
		lines = append(lines, line)
		if len(lines) > keep {
			lines = lines[1:]
		}
	}
	// A line too long for the scanner stops it; keep the pipe flowing anyway.
	_, _ = io.Copy(io.Discard, r)
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func (r commandResult) toRaw(opts asr.Options) asr.RawResult {
	res := asr.RawResult{Language: r.Language}

	texts := make([]string, 0, len(r.Segments))
	for _, s := range r.Segments {
		text := strings.TrimSpace(s.Text)
		texts = append(texts, text)
		res.Segments = append(res.Segments, asr.RawSegment{
			Start: seconds(s.Start),
			End:   seconds(s.End),
			Text:  text,
		})
	}
	res.Text = strings.Join(texts, " ")

	if opts.ReturnTimestamps == asr.TimestampsWord {
		words := r.WordSegments
		if len(words) == 0 {
			for _, s := range r.Segments {
				words = append(words, s.Words...)
			}
		}
		for _, w := range words {
			// Words the aligner could not place carry no timestamps.
			if w.Start == nil || w.End == nil {
				continue
			}
			res.Chunks = append(res.Chunks, asr.RawSegment{
				Start: seconds(*w.Start),
				End:   seconds(*w.End),
				Text:  w.Text,
			})
		}
	}
	if opts.ReturnTimestamps == asr.TimestampsNone {
		res.Segments = nil
	}
	return res
}

// seconds rounds to millisecond precision.
func seconds(d decimal.Decimal) float64 {
	return d.Round(3).InexactFloat64()
}
