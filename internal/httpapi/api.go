package httpapi

import (
	"errors"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Juicern/local-asr/internal/asr"
	"github.com/Juicern/local-asr/internal/service"
)

// uploadField is the preferred multipart field; any other file field is
// accepted when it is absent.
const uploadField = "file"

type API struct {
	transcription  *service.TranscriptionService
	models         ModelStatus
	defaults       asr.Options
	maxUploadBytes int64
	logger         *slog.Logger
}

func (api *API) registerRoutes(r gin.IRoutes) {
	r.POST("/transcribe", api.limitBody, api.transcribe)
	r.GET("/transcriptions", api.listTranscriptions)
	r.GET("/transcriptions/:id", api.getTranscription)
}

func (api *API) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":       "ok",
		"model":        api.models.Model(),
		"model_loaded": api.models.Loaded(),
	})
}

func (api *API) limitBody(c *gin.Context) {
	if api.maxUploadBytes <= 0 {
		c.Next()
		return
	}
	if c.Request.ContentLength > api.maxUploadBytes {
		api.handleError(c, &http.MaxBytesError{Limit: api.maxUploadBytes})
		c.Abort()
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, api.maxUploadBytes)
	c.Next()
}

func (api *API) transcribe(c *gin.Context) {
	header, err := uploadedFile(c)
	if err != nil {
		api.handleError(c, err)
		return
	}

	opts, err := parseOptions(c, api.defaults)
	if err != nil {
		api.handleError(c, err)
		return
	}

	f, err := header.Open()
	if err != nil {
		api.handleError(c, asr.TranscriptionFailure(err))
		return
	}
	defer f.Close()

	transcript, err := api.transcription.Transcribe(c.Request.Context(), service.TranscribeRequest{
		Filename: header.Filename,
		Audio:    f,
		Options:  opts,
	})
	if err != nil {
		api.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, transcript)
}

func (api *API) listTranscriptions(c *gin.Context) {
	entries, err := api.transcription.ListHistory(c.Request.Context(), parseLimit(c.Query("limit")))
	if err != nil {
		api.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, entries)
}

func (api *API) getTranscription(c *gin.Context) {
	entry, err := api.transcription.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		api.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, entry)
}

// uploadedFile returns the "file" part, or the first file under any other
// field name. A body that is not multipart counts as a missing file.
func uploadedFile(c *gin.Context) (*multipart.FileHeader, error) {
	form, err := c.MultipartForm()
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, err
		}
		return nil, asr.ErrMissingFile
	}

	if files := form.File[uploadField]; len(files) > 0 {
		return files[0], nil
	}

	fields := make([]string, 0, len(form.File))
	for field := range form.File {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	for _, field := range fields {
		if files := form.File[field]; len(files) > 0 {
			return files[0], nil
		}
	}
	return nil, asr.ErrMissingFile
}

func parseOptions(c *gin.Context, defaults asr.Options) (asr.Options, error) {
	opts := defaults

	if value, ok := c.GetPostForm("language"); ok {
		opts.Language = strings.TrimSpace(value)
	}
	if value, ok := c.GetPostForm("return_timestamps"); ok {
		opts.ReturnTimestamps = normalizeTimestamps(value)
	}
	for _, f := range []struct {
		field  string
		target *int
	}{
		{"chunk_length_s", &opts.ChunkLengthS},
		{"stride_length_s", &opts.StrideLengthS},
	} {
		field, target := f.field, f.target
		value, ok := c.GetPostForm(field)
		if !ok || strings.TrimSpace(value) == "" {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return asr.Options{}, asr.InvalidRequest(fmt.Sprintf("%s must be an integer", field))
		}
		*target = n
	}

	if err := opts.Validate(); err != nil {
		return asr.Options{}, asr.InvalidRequest(err.Error())
	}
	return opts, nil
}

// normalizeTimestamps accepts the boolean spellings some clients send.
func normalizeTimestamps(value string) string {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "true", "segment", "segments":
		return asr.TimestampsSegment
	case "false", "none", "":
		return asr.TimestampsNone
	case "word", "words":
		return asr.TimestampsWord
	default:
		return value
	}
}

func (api *API) handleError(c *gin.Context, err error) {
	var maxErr *http.MaxBytesError
	switch {
	case errors.As(err, &maxErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("file too large: limit is %d bytes", maxErr.Limit)})
		return
	case errors.Is(err, service.ErrTranscriptionNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}

	switch asr.KindOf(err) {
	case asr.KindMissingFile:
		c.JSON(http.StatusBadRequest, gin.H{"error": "file missing"})
	case asr.KindInvalidRequest:
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case asr.KindTranscriptionFailure:
		api.logger.Error("transcription failed", slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": asr.PublicMessage(err)})
	default:
		api.logger.Error("request failed", slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func parseLimit(value string) int {
	if value == "" {
		return 50
	}
	if n, err := strconv.Atoi(value); err == nil && n > 0 && n <= 500 {
		return n
	}
	return 50
}
