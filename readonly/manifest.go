package readonly

import (
	"encoding/base64"
	"fmt"
	"os"

	"github.com/brettbedarf/workspacefs/internal/util"
	"gopkg.in/yaml.v3"
)

// Manifest describes the content of a read-only mount
type Manifest struct {
	Name  string            `yaml:"name"`
	Files map[string]string `yaml:"files"`
	// Binary holds base64 encoded payloads
	Binary map[string]string `yaml:"binary,omitempty"`
}

// LoadManifest reads a YAML manifest from disk
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	return ParseManifest(data)
}

// ParseManifest decodes a YAML manifest
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	return &m, nil
}

// FromManifest builds a store from m
func FromManifest(m *Manifest) (*Store, error) {
	logger := util.GetLogger("readonly.FromManifest")

	binaries := make(map[string][]byte, len(m.Binary))
	for p, enc := range m.Binary {
		b, err := base64.StdEncoding.DecodeString(enc)
		if err != nil {
			return nil, fmt.Errorf("manifest %q: invalid base64 for %s: %w", m.Name, p, err)
		}
		binaries[p] = b
	}
	s := New(m.Name, m.Files, binaries)
	logger.Debug().Str("name", m.Name).Int("files", s.Len()).Msg("Built read-only store")
	return s, nil
}
