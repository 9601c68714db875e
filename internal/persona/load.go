package persona

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/eldtechnologies/teamroom/internal/models"
)

// catalogFile is the on-disk YAML layout.
type catalogFile struct {
	Personas []models.Persona `yaml:"personas"`
}

// LoadFile reads a YAML catalog from path.
func LoadFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read persona catalog: %w", err)
	}
	return Parse(bytes.NewReader(data))
}

// Parse reads a YAML catalog.
func Parse(r io.Reader) (*Registry, error) {
	var cf catalogFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cf); err != nil && err != io.EOF {
		return nil, fmt.Errorf("decode persona catalog: %w", err)
	}
	return NewRegistry(cf.Personas)
}

// Encode writes the registry as a YAML catalog.
func (r *Registry) Encode(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(catalogFile{Personas: r.List()}); err != nil {
		return err
	}
	return enc.Close()
}
