package providers

import (
	"strings"

	"github.com/Juicern/local-asr/internal/asr"
)

// Registry maps backend names (ASR_BACKEND) to engine loaders.
type Registry struct {
	loaders map[string]asr.Loader
}

func NewRegistry() *Registry {
	return &Registry{
		loaders: make(map[string]asr.Loader),
	}
}

func (r *Registry) Register(backend string, loader asr.Loader) {
	r.loaders[strings.ToLower(backend)] = loader
}

func (r *Registry) Loader(backend string) (asr.Loader, bool) {
	loader, ok := r.loaders[strings.ToLower(backend)]
	return loader, ok
}

func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.loaders))
	for name := range r.loaders {
		names = append(names, name)
	}
	return names
}
