package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Juicern/local-asr/internal/asr"
	"github.com/Juicern/local-asr/internal/service"
)

type ModelStatus interface {
	Model() string
	Loaded() bool
}

type RouterConfig struct {
	Defaults       asr.Options
	MaxUploadBytes int64
}

func NewRouter(
	transcriptionService *service.TranscriptionService,
	models ModelStatus,
	cfg RouterConfig,
	logger *slog.Logger,
) http.Handler {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())

	api := &API{
		transcription:  transcriptionService,
		models:         models,
		defaults:       cfg.Defaults,
		maxUploadBytes: cfg.MaxUploadBytes,
		logger:         logger,
	}

	r.GET("/healthz", api.health)
	api.registerRoutes(r)

	return r
}
