package asr

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"
)

// ErrModelClosed is returned by engines handed out before Close.
var ErrModelClosed = errors.New("model closed")

// ModelCache holds the process-wide engine handle. The handle is built on the
// first Get and shared by every later call; a failed build is not cached.
type ModelCache struct {
	loader Loader
	spec   ModelSpec
	logger *slog.Logger

	// build is a lock of capacity 1 held for the whole construction, so
	// waiters can give up when their context ends.
	build chan struct{}

	mu     sync.RWMutex
	engine Engine

	slots chan struct{}
}

// NewModelCache returns an empty cache. maxConcurrent bounds how many
// Transcribe calls may run on the shared handle at once; values below 1 mean 1.
func NewModelCache(loader Loader, spec ModelSpec, maxConcurrent int, logger *slog.Logger) *ModelCache {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &ModelCache{
		loader: loader,
		spec:   spec,
		logger: logger,
		build:  make(chan struct{}, 1),
		slots:  make(chan struct{}, maxConcurrent),
	}
}

func (c *ModelCache) Get(ctx context.Context) (Engine, error) {
	if c.current() != nil {
		return &limitedEngine{cache: c}, nil
	}

	select {
	case c.build <- struct{}{}:
	case <-ctx.Done():
		return nil, TranscriptionFailure(ctx.Err())
	}
	defer func() { <-c.build }()

	if c.current() != nil {
		return &limitedEngine{cache: c}, nil
	}

	started := time.Now()
	c.logInfo("loading model", slog.String("model", c.spec.Model), slog.Int("threads", c.spec.Threads))
	engine, err := c.loader(ctx, c.spec)
	if err != nil {
		return nil, TranscriptionFailure(err)
	}
	if engine == nil {
		return nil, TranscriptionFailure(errors.New("model loader returned no engine"))
	}

	c.mu.Lock()
	c.engine = engine
	c.mu.Unlock()
	c.logInfo("model loaded", slog.String("model", c.spec.Model), slog.Duration("took", time.Since(started)))

	return &limitedEngine{cache: c}, nil
}

func (c *ModelCache) Model() string {
	return c.spec.Model
}

// Loaded never waits on a model that is still being built.
func (c *ModelCache) Loaded() bool {
	return c.current() != nil
}

func (c *ModelCache) current() Engine {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.engine
}

// Close waits for in-flight Transcribe calls, then releases the handle if the
// backend owns resources. If ctx ends first the handle is left untouched and
// ctx.Err() is returned. The cache stays usable; a later Get builds a fresh
// handle.
func (c *ModelCache) Close(ctx context.Context) error {
	select {
	case c.build <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-c.build }()

	taken := 0
	defer func() {
		for ; taken > 0; taken-- {
			<-c.slots
		}
	}()
	for taken < cap(c.slots) {
		select {
		case c.slots <- struct{}{}:
			taken++
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	c.mu.Lock()
	engine := c.engine
	c.engine = nil
	c.mu.Unlock()

	if closer, ok := engine.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

func (c *ModelCache) logInfo(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Info(msg, args...)
	}
}

// limitedEngine resolves the shared handle only after taking a slot, so a
// call never reaches an engine that Close has already released.
type limitedEngine struct {
	cache *ModelCache
}

func (l *limitedEngine) Transcribe(ctx context.Context, audioPath string, opts Options) (RawResult, error) {
	select {
	case l.cache.slots <- struct{}{}:
	case <-ctx.Done():
		return RawResult{}, ctx.Err()
	}
	defer func() { <-l.cache.slots }()

	engine := l.cache.current()
	if engine == nil {
		return RawResult{}, ErrModelClosed
	}
	return engine.Transcribe(ctx, audioPath, opts)
}
