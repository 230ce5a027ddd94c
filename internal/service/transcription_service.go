package service

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/Juicern/local-asr/internal/asr"
	"github.com/Juicern/local-asr/internal/domain"
	"github.com/Juicern/local-asr/internal/upload"
)

type ModelProvider interface {
	Get(ctx context.Context) (asr.Engine, error)
	Model() string
}

type TranscriptionLogStore interface {
	Create(ctx context.Context, entry domain.TranscriptionLog) (domain.TranscriptionLog, error)
	GetByID(ctx context.Context, id string) (domain.TranscriptionLog, error)
	List(ctx context.Context, limit int) ([]domain.TranscriptionLog, error)
}

type TranscribeRequest struct {
	Filename string
	Audio    io.Reader
	Options  asr.Options
}

type TranscriptionService struct {
	models    ModelProvider
	logs      TranscriptionLogStore
	uploadDir string
	timeout   time.Duration
	logger    *slog.Logger
}

// NewTranscriptionService wires the pipeline. logs may be nil to skip history;
// timeout 0 means inference is bounded only by the request context.
func NewTranscriptionService(models ModelProvider, logs TranscriptionLogStore, uploadDir string, timeout time.Duration, logger *slog.Logger) *TranscriptionService {
	return &TranscriptionService{
		models:    models,
		logs:      logs,
		uploadDir: uploadDir,
		timeout:   timeout,
		logger:    logger,
	}
}

// Transcribe stores the upload, runs it through the shared engine and returns
// the normalized transcript. The stored file is removed on every path.
func (s *TranscriptionService) Transcribe(ctx context.Context, req TranscribeRequest) (domain.Transcript, error) {
	if req.Audio == nil {
		return domain.Transcript{}, asr.ErrMissingFile
	}

	file, err := upload.Save(s.uploadDir, req.Audio, req.Filename)
	if err != nil {
		return domain.Transcript{}, asr.TranscriptionFailure(err)
	}
	defer func() {
		if err := file.Remove(); err != nil {
			s.logWarn("failed to remove upload", slog.String("path", file.Path), slog.Any("error", err))
		}
	}()

	started := time.Now()
	transcript, err := s.run(ctx, file, req.Options)
	s.record(ctx, file, transcript, err, time.Since(started))
	if err != nil {
		return domain.Transcript{}, err
	}
	return transcript, nil
}

func (s *TranscriptionService) run(ctx context.Context, file *upload.File, opts asr.Options) (domain.Transcript, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	engine, err := s.models.Get(ctx)
	if err != nil {
		return domain.Transcript{}, asr.TranscriptionFailure(err)
	}

	raw, err := engine.Transcribe(ctx, file.Path, opts)
	if err != nil {
		return domain.Transcript{}, asr.TranscriptionFailure(err)
	}

	hint := opts.Language
	if opts.AutoDetect() {
		hint = ""
	}
	return asr.Normalize(raw, s.models.Model(), hint), nil
}

func (s *TranscriptionService) record(ctx context.Context, file *upload.File, transcript domain.Transcript, runErr error, took time.Duration) {
	if s.logs == nil {
		return
	}

	entry := domain.TranscriptionLog{
		Filename:     file.Filename,
		Blake3Hash:   file.Blake3Hash,
		SizeBytes:    file.Size,
		Model:        s.models.Model(),
		Language:     transcript.Language,
		Transcript:   transcript.Text,
		SegmentCount: len(transcript.Segments),
		Status:       domain.TranscriptionStatusOK,
		DurationMs:   took.Milliseconds(),
	}
	if runErr != nil {
		msg := asr.PublicMessage(runErr)
		entry.Status = domain.TranscriptionStatusFailed
		entry.Error = &msg
	}

	// History survives a cancelled request.
	if _, err := s.logs.Create(context.WithoutCancel(ctx), entry); err != nil {
		s.logWarn("failed to record transcription", slog.Any("error", err))
	}
}

func (s *TranscriptionService) ListHistory(ctx context.Context, limit int) ([]domain.TranscriptionLog, error) {
	if s.logs == nil {
		return []domain.TranscriptionLog{}, nil
	}
	return s.logs.List(ctx, limit)
}

func (s *TranscriptionService) Get(ctx context.Context, id string) (domain.TranscriptionLog, error) {
	if s.logs == nil {
		return domain.TranscriptionLog{}, ErrTranscriptionNotFound
	}
	entry, err := s.logs.GetByID(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.TranscriptionLog{}, ErrTranscriptionNotFound
	}
	return entry, err
}

func (s *TranscriptionService) Model() string {
	return s.models.Model()
}

func (s *TranscriptionService) logWarn(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Warn(msg, args...)
	}
}
