// Package builtin registers every adapter shipped with the service.
package builtin

import (
	"maps"

	"github.com/helixir/paper-acquisition-service/internal/domain"
	"github.com/helixir/paper-acquisition-service/internal/indexers"
	"github.com/helixir/paper-acquisition-service/internal/indexers/arxiv"
	"github.com/helixir/paper-acquisition-service/internal/indexers/biorxiv"
	"github.com/helixir/paper-acquisition-service/internal/indexers/core"
	"github.com/helixir/paper-acquisition-service/internal/indexers/doaj"
	"github.com/helixir/paper-acquisition-service/internal/indexers/libgen"
	"github.com/helixir/paper-acquisition-service/internal/indexers/openalex"
	"github.com/helixir/paper-acquisition-service/internal/indexers/pmc"
	"github.com/helixir/paper-acquisition-service/internal/indexers/scihub"
	"github.com/helixir/paper-acquisition-service/internal/indexers/unpaywall"
)

// Defaults holds settings applied to sources of an implementation when the
// source itself does not set them. Secrets such as API keys arrive this way
// from the environment instead of being stored with the source.
type Defaults map[string]map[string]string

// NewFactory returns a factory with all built-in adapters registered.
func NewFactory(defaults Defaults) *indexers.Factory {
	f := indexers.NewFactory()
	Register(f, defaults)
	return f
}

// Register adds all built-in adapters to f.
func Register(f *indexers.Factory, defaults Defaults) {
	ctors := map[string]indexers.Constructor{
		arxiv.Implementation:          arxiv.NewFromSource,
		biorxiv.ImplementationBiorxiv: biorxiv.NewBiorxivFromSource,
		biorxiv.ImplementationMedrxiv: biorxiv.NewMedrxivFromSource,
		core.Implementation:           core.NewFromSource,
		doaj.Implementation:           doaj.NewFromSource,
		libgen.Implementation:         libgen.NewFromSource,
		openalex.Implementation:       openalex.NewFromSource,
		pmc.Implementation:            pmc.NewFromSource,
		scihub.Implementation:         scihub.NewFromSource,
		unpaywall.Implementation:      unpaywall.NewFromSource,
	}
	for name, ctor := range ctors {
		f.Register(name, withDefaults(defaults[name], ctor))
	}
}

func withDefaults(values map[string]string, ctor indexers.Constructor) indexers.Constructor {
	if len(values) == 0 {
		return ctor
	}
	return func(src domain.Source) (indexers.Adapter, error) {
		merged := maps.Clone(values)
		for k, v := range src.Settings {
			if v != "" {
				merged[k] = v
			}
		}
		src.Settings = merged
		return ctor(src)
	}
}
