// Package brain holds the vertical-specific bundles of scoring rules,
// response templates and objection handlers the engine works from.
package brain

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/lead-triage/internal/model"
	"github.com/sells-group/lead-triage/internal/scorer"
	"github.com/sells-group/lead-triage/internal/textutil"
	"github.com/sells-group/lead-triage/internal/vertical"
)

var idPattern = regexp.MustCompile(`^brain_[a-z0-9_]+_v[0-9]+$`)

// ID formats a brain identifier as brain_{vertical}_v{version}.
func ID(verticalSlug string, version int) string {
	return fmt.Sprintf("brain_%s_v%d", verticalSlug, version)
}

// Template is a response template for one reply type and tier.
type Template struct {
	ID        string       `yaml:"id" json:"id"`
	BrainID   string       `yaml:"brain_id,omitempty" json:"brain_id,omitempty"`
	ReplyType model.Intent `yaml:"reply_type" json:"reply_type"`
	Tier      int          `yaml:"tier" json:"tier"`
	Subject   string       `yaml:"subject,omitempty" json:"subject,omitempty"`
	Text      string       `yaml:"template_text" json:"template_text"`
	Variables []string     `yaml:"variables,omitempty" json:"variables,omitempty"`
}

// ObjectionHandler is a canned strategy for a recognised objection.
type ObjectionHandler struct {
	ID            string   `yaml:"id" json:"id"`
	BrainID       string   `yaml:"brain_id,omitempty" json:"brain_id,omitempty"`
	ObjectionType string   `yaml:"objection_type" json:"objection_type"`
	Keywords      []string `yaml:"keywords" json:"keywords"`
	Strategy      string   `yaml:"handler_strategy" json:"handler_strategy"`
	Response      string   `yaml:"handler_response" json:"handler_response"`
	Variables     []string `yaml:"variables,omitempty" json:"variables,omitempty"`
}

// Brain bundles everything the engine needs for one vertical.
type Brain struct {
	ID                string             `yaml:"brain_id" json:"brain_id"`
	Vertical          string             `yaml:"vertical" json:"vertical"`
	Name              string             `yaml:"name" json:"name"`
	Version           int                `yaml:"version" json:"version"`
	PainPoint         string             `yaml:"pain_point,omitempty" json:"pain_point,omitempty"`
	Rules             []scorer.Rule      `yaml:"rules" json:"rules"`
	Templates         []Template         `yaml:"templates" json:"templates"`
	ObjectionHandlers []ObjectionHandler `yaml:"objection_handlers" json:"objection_handlers"`

	ruleSet scorer.RuleSet
	version string
}

// RuleSet returns the prepared rule set of the brain.
func (b *Brain) RuleSet() scorer.RuleSet {
	return b.ruleSet
}

// RulesVersion is a short hash identifying the brain's rules.
func (b *Brain) RulesVersion() string {
	return b.version
}

// Template returns the first template for the reply type at the given tier.
func (b *Brain) Template(intent model.Intent, tier int) (Template, bool) {
	for _, t := range b.Templates {
		if t.ReplyType == intent && t.Tier == tier {
			return t, true
		}
	}
	return Template{}, false
}

// MatchObjection returns the handler whose keywords best match the reply
// text. Ties go to the handler listed first.
func (b *Brain) MatchObjection(text string) (ObjectionHandler, bool) {
	best, bestHits := -1, 0
	for i, h := range b.ObjectionHandlers {
		if n := len(textutil.MatchKeywords(h.Keywords, text)); n > bestHits {
			best, bestHits = i, n
		}
	}
	if best < 0 {
		return ObjectionHandler{}, false
	}
	return b.ObjectionHandlers[best], true
}

func (b *Brain) prepare() error {
	if !idPattern.MatchString(b.ID) {
		return eris.Errorf("brain: invalid id %q (want brain_{vertical}_v{n})", b.ID)
	}
	if strings.TrimSpace(b.Vertical) == "" {
		return eris.Errorf("brain: %s has no vertical", b.ID)
	}
	for _, t := range b.Templates {
		if t.Tier < 1 || t.Tier > 3 {
			return eris.Errorf("brain: %s template %s has tier %d, want 1-3", b.ID, t.ID, t.Tier)
		}
	}

	rs := scorer.RuleSet{BrainID: b.ID, Vertical: b.Vertical, Rules: b.Rules}
	if err := rs.Prepare(); err != nil {
		return eris.Wrapf(err, "brain: prepare %s", b.ID)
	}
	b.ruleSet = rs
	b.version = scorer.RuleSetHash(rs)
	return nil
}

// Registry is the raw content a library is built from.
type Registry struct {
	Verticals []vertical.Definition `yaml:"verticals" json:"verticals"`
	Brains    []Brain               `yaml:"brains" json:"brains"`
}

// Library resolves brains by id or vertical. Implementations are
// read-only and safe for concurrent use.
type Library interface {
	Brain(id string) (*Brain, bool)
	ForVertical(slug string) (*Brain, bool)
	Default() *Brain
	Verticals() []vertical.Definition
}

// Catalog is the in-memory Library built from a Registry.
type Catalog struct {
	verticals  []vertical.Definition
	byID       map[string]*Brain
	byVertical map[string]*Brain
	def        *Brain
}

// NewCatalog validates reg and indexes its brains. defaultVertical names
// the vertical whose brain scores leads with no detected vertical.
func NewCatalog(reg Registry, defaultVertical string) (*Catalog, error) {
	if err := vertical.ValidateDefinitions(reg.Verticals); err != nil {
		return nil, err
	}

	c := &Catalog{
		verticals:  append([]vertical.Definition(nil), reg.Verticals...),
		byID:       make(map[string]*Brain, len(reg.Brains)),
		byVertical: make(map[string]*Brain),
	}

	for i := range reg.Brains {
		b := reg.Brains[i]
		b.Rules = append([]scorer.Rule(nil), b.Rules...)
		if err := b.prepare(); err != nil {
			return nil, err
		}
		if _, dup := c.byID[b.ID]; dup {
			return nil, eris.Errorf("brain: duplicate id %q", b.ID)
		}
		c.byID[b.ID] = &b

		// Newest version wins per vertical unless a definition pins one.
		if cur, ok := c.byVertical[b.Vertical]; !ok || b.Version > cur.Version {
			c.byVertical[b.Vertical] = &b
		}
	}

	for _, d := range reg.Verticals {
		if d.BrainID == "" {
			continue
		}
		b, ok := c.byID[d.BrainID]
		if !ok {
			return nil, eris.Errorf("brain: vertical %s references unknown brain %s", d.Slug, d.BrainID)
		}
		c.byVertical[d.Slug] = b
	}

	def, ok := c.byVertical[defaultVertical]
	if !ok {
		return nil, eris.Errorf("brain: no brain for default vertical %q", defaultVertical)
	}
	c.def = def
	return c, nil
}

// Brain returns the brain with the given id.
func (c *Catalog) Brain(id string) (*Brain, bool) {
	b, ok := c.byID[id]
	return b, ok
}

// ForVertical returns the brain that scores the given vertical.
func (c *Catalog) ForVertical(slug string) (*Brain, bool) {
	b, ok := c.byVertical[slug]
	return b, ok
}

// Default returns the brain used when no vertical was detected.
func (c *Catalog) Default() *Brain {
	return c.def
}

// Verticals returns the vertical definitions the catalog was built from.
func (c *Catalog) Verticals() []vertical.Definition {
	return c.verticals
}

// IDs returns every brain id in sorted order.
func (c *Catalog) IDs() []string {
	ids := make([]string, 0, len(c.byID))
	for id := range c.byID {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
