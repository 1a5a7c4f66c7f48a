package brain

import (
	"bytes"
	"context"
	_ "embed"
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultRegistry []byte

// Source produces a Registry from some backing store.
type Source interface {
	Load(ctx context.Context) (Registry, error)
}

// EmbeddedSource serves the registry compiled into the binary.
type EmbeddedSource struct{}

// Load parses the embedded default registry.
func (EmbeddedSource) Load(_ context.Context) (Registry, error) {
	return parseRegistry(defaultRegistry)
}

// FileSource reads a registry from a YAML file.
type FileSource struct {
	Path string
}

// Load reads and parses the file.
func (s FileSource) Load(_ context.Context) (Registry, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return Registry{}, eris.Wrapf(err, "brain: read %s", s.Path)
	}
	reg, err := parseRegistry(data)
	if err != nil {
		return Registry{}, eris.Wrapf(err, "brain: load %s", s.Path)
	}
	return reg, nil
}

func parseRegistry(data []byte) (Registry, error) {
	var reg Registry
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&reg); err != nil {
		return Registry{}, eris.Wrap(err, "brain: parse registry")
	}
	return reg, nil
}

// Load builds a Catalog from src.
func Load(ctx context.Context, src Source, defaultVertical string) (*Catalog, error) {
	reg, err := src.Load(ctx)
	if err != nil {
		return nil, err
	}
	return NewCatalog(reg, defaultVertical)
}
