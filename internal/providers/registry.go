package providers

import (
	"fmt"
	"sort"

	"genstudio/internal/domain"
)

// Family bundles the strategies for one provider family (api_type).
type Family struct {
	APIType    string
	Adapter    Adapter
	Normalizer Normalizer
	// Synchronous families return their result from the create call and are
	// never polled; losing their artifact means the user received nothing.
	Synchronous bool

	statusAuth   authFunc
	statusSuffix string
}

// Registry maps api_type values to families. It is built once at startup and
// shared read-only.
type Registry struct {
	families map[string]*Family
}

func NewRegistry() *Registry {
	return &Registry{families: map[string]*Family{}}
}

// Register adds f under its APIType and any aliases.
func (r *Registry) Register(f *Family, aliases ...string) {
	for _, name := range append([]string{f.APIType}, aliases...) {
		if _, dup := r.families[name]; dup {
			panic(fmt.Sprintf("providers: family %q registered twice", name))
		}
		r.families[name] = f
	}
}

// Lookup returns the family for apiType.
func (r *Registry) Lookup(apiType string) (*Family, bool) {
	f, ok := r.families[apiType]
	return f, ok
}

// Names lists the registered api_type values.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.families))
	for name := range r.families {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultRegistry wires every supported family to c.
func DefaultRegistry(c *Client) *Registry {
	r := NewRegistry()
	adapter := func(apiType string, auth authFunc, shape shapeFunc, extract taskIDFunc) Adapter {
		return &httpAdapter{client: c, apiType: apiType, auth: auth, shape: shape, extract: extract}
	}

	r.Register(&Family{
		APIType:    domain.APITypeCreateTask,
		Adapter:    adapter(domain.APITypeCreateTask, bearerAuth, shapeCreateTask, extractEnvelopeTaskID),
		Normalizer: NormalizerFunc(normalizeCreateTask),
		statusAuth: bearerAuth,
	})
	r.Register(&Family{
		APIType:    domain.APITypeVideoGenerations,
		Adapter:    adapter(domain.APITypeVideoGenerations, bearerAuth, shapeModelSpread, extractField("id")),
		Normalizer: NormalizerFunc(normalizeVideoGenerations),
		statusAuth: bearerAuth,
	})
	r.Register(&Family{
		APIType:    domain.APITypeMergeVideos,
		Adapter:    adapter(domain.APITypeMergeVideos, apiKeyAuth, shapeRaw, extractField("predictionID")),
		Normalizer: normalizePrediction(domain.APITypeMergeVideos),
		statusAuth: apiKeyAuth,
	})
	r.Register(&Family{
		APIType:    domain.APITypeCustomAPIGenerate,
		Adapter:    adapter(domain.APITypeCustomAPIGenerate, bearerAuth, shapeRaw, extractEnvelopeTaskID),
		Normalizer: NormalizerFunc(normalizeCustomAPI),
		statusAuth: bearerAuth,
	})
	r.Register(&Family{
		APIType:    domain.APITypeFalGenerate,
		Adapter:    adapter(domain.APITypeFalGenerate, falAuth, shapeRaw, extractFal),
		Normalizer: NormalizerFunc(normalizeFal),
		statusAuth: falAuth,
	})
	r.Register(&Family{
		APIType:    domain.APITypePrediction,
		Adapter:    adapter(domain.APITypePrediction, bearerAuth, shapePrediction, extractField("id")),
		Normalizer: normalizePrediction(domain.APITypePrediction),
		statusAuth: bearerAuth,
	}, domain.APITypePredictionAlias)
	r.Register(&Family{
		APIType:    domain.APITypeKlingGenerate,
		Adapter:    adapter(domain.APITypeKlingGenerate, klingAuth, shapeKling, extractKlingTaskID),
		Normalizer: NormalizerFunc(normalizeKling),
		statusAuth: klingAuth,
	})
	r.Register(&Family{
		APIType:      domain.APITypeViduGenerate,
		Adapter:      adapter(domain.APITypeViduGenerate, tokenAuth, shapeVidu, extractField("task_id")),
		Normalizer:   NormalizerFunc(normalizeVidu),
		statusAuth:   tokenAuth,
		statusSuffix: "/creations",
	})
	r.Register(&Family{
		APIType:     domain.APITypeImageInstant,
		Adapter:     adapter(domain.APITypeImageInstant, bearerAuth, shapeModelSpread, extractInstantURL),
		Normalizer:  NormalizerFunc(normalizeInstant),
		Synchronous: true,
	})
	return r
}
