package brain

import (
	"context"
	"encoding/json"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/lead-triage/internal/scorer"
	"github.com/sells-group/lead-triage/pkg/qdrant"
)

// Collections names the Qdrant collections a registry is assembled from.
type Collections struct {
	Verticals         string `mapstructure:"verticals"`
	Brains            string `mapstructure:"brains"`
	Rules             string `mapstructure:"rules"`
	Templates         string `mapstructure:"templates"`
	ObjectionHandlers string `mapstructure:"objection_handlers"`
}

// DefaultCollections returns the standard collection names.
func DefaultCollections() Collections {
	return Collections{
		Verticals:         "verticals",
		Brains:            "brains",
		Rules:             "icp_rules",
		Templates:         "response_templates",
		ObjectionHandlers: "objection_handlers",
	}
}

// QdrantSource assembles a registry from point payloads stored in Qdrant.
// Rules, templates and handlers are attached to brains by their brain_id
// payload field.
type QdrantSource struct {
	Client      qdrant.Client
	Collections Collections
}

type rulePayload struct {
	BrainID string `json:"brain_id"`
	scorer.Rule
}

// Load scrolls every collection and groups the payloads by brain.
func (s QdrantSource) Load(ctx context.Context) (Registry, error) {
	cols := s.Collections
	if cols == (Collections{}) {
		cols = DefaultCollections()
	}

	var reg Registry
	if err := scrollInto(ctx, s.Client, cols.Verticals, &reg.Verticals); err != nil {
		return Registry{}, err
	}
	if err := scrollInto(ctx, s.Client, cols.Brains, &reg.Brains); err != nil {
		return Registry{}, err
	}

	var rules []rulePayload
	if err := scrollInto(ctx, s.Client, cols.Rules, &rules); err != nil {
		return Registry{}, err
	}
	var templates []Template
	if err := scrollInto(ctx, s.Client, cols.Templates, &templates); err != nil {
		return Registry{}, err
	}
	var handlers []ObjectionHandler
	if err := scrollInto(ctx, s.Client, cols.ObjectionHandlers, &handlers); err != nil {
		return Registry{}, err
	}

	idx := make(map[string]int, len(reg.Brains))
	for i, b := range reg.Brains {
		idx[b.ID] = i
	}
	orphan := func(kind, id, brainID string) {
		zap.L().Warn("brain: dropping payload for unknown brain",
			zap.String("kind", kind), zap.String("id", id), zap.String("brain_id", brainID))
	}

	for _, r := range rules {
		i, ok := idx[r.BrainID]
		if !ok {
			orphan("rule", r.ID, r.BrainID)
			continue
		}
		reg.Brains[i].Rules = append(reg.Brains[i].Rules, r.Rule)
	}
	for _, t := range templates {
		i, ok := idx[t.BrainID]
		if !ok {
			orphan("template", t.ID, t.BrainID)
			continue
		}
		reg.Brains[i].Templates = append(reg.Brains[i].Templates, t)
	}
	for _, h := range handlers {
		i, ok := idx[h.BrainID]
		if !ok {
			orphan("objection_handler", h.ID, h.BrainID)
			continue
		}
		reg.Brains[i].ObjectionHandlers = append(reg.Brains[i].ObjectionHandlers, h)
	}

	return reg, nil
}

// scrollInto decodes every payload of a collection into out, a pointer to a slice.
func scrollInto[T any](ctx context.Context, c qdrant.Client, collection string, out *[]T) error {
	points, err := qdrant.ScrollAll(ctx, c, collection, nil)
	if err != nil {
		return eris.Wrapf(err, "brain: load %s", collection)
	}
	for _, p := range points {
		data, err := json.Marshal(p.Payload)
		if err != nil {
			return eris.Wrapf(err, "brain: encode %s payload", collection)
		}
		var v T
		if err := json.Unmarshal(data, &v); err != nil {
			return eris.Wrapf(err, "brain: decode %s payload %v", collection, p.ID)
		}
		*out = append(*out, v)
	}
	return nil
}

var (
	_ Source  = QdrantSource{}
	_ Source  = FileSource{}
	_ Source  = EmbeddedSource{}
	_ Library = (*Catalog)(nil)
)
