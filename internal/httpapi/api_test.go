package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Juicern/local-asr/internal/asr"
	"github.com/Juicern/local-asr/internal/audiotest"
	"github.com/Juicern/local-asr/internal/domain"
	"github.com/Juicern/local-asr/internal/providers"
	"github.com/Juicern/local-asr/internal/repository"
	"github.com/Juicern/local-asr/internal/service"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testServer struct {
	handler   http.Handler
	cache     *asr.ModelCache
	uploadDir string
	builds    *atomic.Int32
}

func newTestServer(t *testing.T, maxUpload int64) *testServer {
	t.Helper()
	var builds atomic.Int32
	null := providers.NewNullLoader()
	loader := func(ctx context.Context, spec asr.ModelSpec) (asr.Engine, error) {
		builds.Add(1)
		return null(ctx, spec)
	}

	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	uploadDir := t.TempDir()
	cache := asr.NewModelCache(loader, asr.ModelSpec{Model: "Xenova/whisper-small", Threads: 1}, 1, logger)
	svc := service.NewTranscriptionService(cache, repository.NewMemoryTranscriptionLogRepository(), uploadDir, 0, logger)
	handler := NewRouter(svc, cache, RouterConfig{Defaults: asr.DefaultOptions(), MaxUploadBytes: maxUpload}, logger)

	return &testServer{handler: handler, cache: cache, uploadDir: uploadDir, builds: &builds}
}

func multipartBody(t *testing.T, field, filename string, data []byte, values map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range values {
		require.NoError(t, mw.WriteField(k, v))
	}
	if field != "" {
		fw, err := mw.CreateFormFile(field, filename)
		require.NoError(t, err)
		_, err = fw.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &body, mw.FormDataContentType()
}

func (s *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) upload(t *testing.T, field, filename string, data []byte, values map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	body, contentType := multipartBody(t, field, filename, data, values)
	req := httptest.NewRequest(http.MethodPost, "/transcribe", body)
	req.Header.Set("Content-Type", contentType)
	return s.do(req)
}

func (s *testServer) assertNoUploadsLeft(t *testing.T) {
	t.Helper()
	entries, err := os.ReadDir(s.uploadDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestTranscribeSilentWAV(t *testing.T) {
	srv := newTestServer(t, 0)

	rec := srv.upload(t, "file", "silence.wav", audiotest.SilentWAV(2), nil)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"text":"","segments":[],"language":"en","model":"Xenova/whisper-small"}`, rec.Body.String())
	srv.assertNoUploadsLeft(t)
}

func TestTranscribeAcceptsAnyFileField(t *testing.T) {
	srv := newTestServer(t, 0)

	rec := srv.upload(t, "audio", "silence.wav", audiotest.SilentWAV(1), nil)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var got domain.Transcript
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.NotNil(t, got.Segments)
}

func TestTranscribeMissingFile(t *testing.T) {
	srv := newTestServer(t, 0)

	rec := srv.upload(t, "", "", nil, map[string]string{"language": "en"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"file missing"}`, rec.Body.String())

	req := httptest.NewRequest(http.MethodPost, "/transcribe", strings.NewReader(`{"file":"x"}`))
	req.Header.Set("Content-Type", "application/json")
	rec = srv.do(req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"file missing"}`, rec.Body.String())

	assert.Zero(t, srv.builds.Load())
	assert.False(t, srv.cache.Loaded())
}

func TestTranscribeNonAudioFile(t *testing.T) {
	srv := newTestServer(t, 0)

	rec := srv.upload(t, "file", "notes.wav", []byte("meeting notes, definitely not audio"), nil)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.NotEmpty(t, body["error"])
	srv.assertNoUploadsLeft(t)
}

func TestTranscribeOptionOverrides(t *testing.T) {
	srv := newTestServer(t, 0)

	rec := srv.upload(t, "file", "silence.wav", audiotest.SilentWAV(1), map[string]string{
		"language":          "auto",
		"chunk_length_s":    "20",
		"stride_length_s":   "4",
		"return_timestamps": "true",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"text":"","segments":[],"language":"auto","model":"Xenova/whisper-small"}`, rec.Body.String())
}

func TestTranscribeInvalidOptions(t *testing.T) {
	srv := newTestServer(t, 0)

	for name, values := range map[string]map[string]string{
		"chunk not a number": {"chunk_length_s": "thirty"},
		"stride too large":   {"stride_length_s": "20"},
		"bad timestamps":     {"return_timestamps": "char"},
	} {
		t.Run(name, func(t *testing.T) {
			rec := srv.upload(t, "file", "silence.wav", audiotest.SilentWAV(1), values)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			var body map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.NotEmpty(t, body["error"])
			assert.NotEqual(t, "file missing", body["error"])
		})
	}
	assert.Zero(t, srv.builds.Load())
}

func TestTranscribeInvalidOptionsReportsFirstFieldInOrder(t *testing.T) {
	srv := newTestServer(t, 0)

	for i := 0; i < 20; i++ {
		rec := srv.upload(t, "file", "silence.wav", audiotest.SilentWAV(1), map[string]string{
			"chunk_length_s":  "thirty",
			"stride_length_s": "five",
		})
		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.JSONEq(t, `{"error":"chunk_length_s must be an integer"}`, rec.Body.String())
	}
}

func TestTranscribeTooLarge(t *testing.T) {
	srv := newTestServer(t, 1024)

	rec := srv.upload(t, "file", "silence.wav", audiotest.SilentWAV(1), nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "file too large")
	srv.assertNoUploadsLeft(t)
}

func TestConcurrentColdRequestsLoadModelOnce(t *testing.T) {
	srv := newTestServer(t, 0)
	wav := audiotest.SilentWAV(1)

	const requests = 16
	codes := make([]int, requests)
	var wg sync.WaitGroup
	for i := 0; i < requests; i++ {
		body, contentType := multipartBody(t, "file", "silence.wav", wav, nil)
		req := httptest.NewRequest(http.MethodPost, "/transcribe", body)
		req.Header.Set("Content-Type", contentType)
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			codes[i] = srv.do(req).Code
		}(i)
	}
	wg.Wait()

	for _, code := range codes {
		assert.Equal(t, http.StatusOK, code)
	}
	assert.Equal(t, int32(1), srv.builds.Load())
	srv.assertNoUploadsLeft(t)
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, 0)

	rec := srv.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","model":"Xenova/whisper-small","model_loaded":false}`, rec.Body.String())

	srv.upload(t, "file", "silence.wav", audiotest.SilentWAV(1), nil)

	rec = srv.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.JSONEq(t, `{"status":"ok","model":"Xenova/whisper-small","model_loaded":true}`, rec.Body.String())
}

func TestTranscriptionHistory(t *testing.T) {
	srv := newTestServer(t, 0)
	srv.upload(t, "file", "silence.wav", audiotest.SilentWAV(1), nil)
	srv.upload(t, "file", "notes.wav", []byte("not audio"), nil)

	rec := srv.do(httptest.NewRequest(http.MethodGet, "/transcriptions?limit=10", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var entries []domain.TranscriptionLog
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
	require.Len(t, entries, 2)

	statuses := map[string]domain.TranscriptionStatus{}
	for _, e := range entries {
		statuses[e.Filename] = e.Status
	}
	assert.Equal(t, domain.TranscriptionStatusOK, statuses["silence.wav"])
	assert.Equal(t, domain.TranscriptionStatusFailed, statuses["notes.wav"])

	rec = srv.do(httptest.NewRequest(http.MethodGet, "/transcriptions/"+entries[0].ID, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var entry domain.TranscriptionLog
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entry))
	assert.Equal(t, entries[0].ID, entry.ID)

	rec = srv.do(httptest.NewRequest(http.MethodGet, "/transcriptions/does-not-exist", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"not found"}`, rec.Body.String())
}

func TestParseLimit(t *testing.T) {
	assert.Equal(t, 50, parseLimit(""))
	assert.Equal(t, 10, parseLimit("10"))
	assert.Equal(t, 50, parseLimit("0"))
	assert.Equal(t, 50, parseLimit("501"))
	assert.Equal(t, 50, parseLimit("x"))
}

func TestNormalizeTimestamps(t *testing.T) {
	assert.Equal(t, asr.TimestampsWord, normalizeTimestamps("Word"))
	assert.Equal(t, asr.TimestampsSegment, normalizeTimestamps("true"))
	assert.Equal(t, asr.TimestampsNone, normalizeTimestamps("false"))
	assert.Equal(t, "char", normalizeTimestamps("char"))
}
