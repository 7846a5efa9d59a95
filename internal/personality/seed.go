package personality

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/RichardoC/blinky/internal/models"
	"gopkg.in/yaml.v3"
)

type seedEntry struct {
	Name        string `yaml:"name"`
	BasePrompt  string `yaml:"base_prompt"`
	Description string `yaml:"description"`
}

// Upserter writes a personality keyed by name.
type Upserter interface {
	UpsertPersonality(ctx context.Context, p *models.Personality) error
}

// ParseSeed decodes a YAML list of personalities.
func ParseSeed(data []byte) ([]models.Personality, error) {
	var entries []seedEntry
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("invalid personality seed: %w", err)
	}

	seen := make(map[string]bool, len(entries))
	out := make([]models.Personality, 0, len(entries))
	for i, e := range entries {
		name := strings.TrimSpace(e.Name)
		if name == "" {
			return nil, fmt.Errorf("personality seed entry %d: name is required", i)
		}
		if strings.TrimSpace(e.BasePrompt) == "" {
			return nil, fmt.Errorf("personality seed entry %q: base_prompt is required", name)
		}
		if seen[name] {
			return nil, fmt.Errorf("personality seed entry %q: duplicate name", name)
		}
		seen[name] = true
		out = append(out, models.Personality{
			Name:        name,
			BasePrompt:  e.BasePrompt,
			Description: e.Description,
		})
	}
	return out, nil
}

// SeedFile upserts every personality in the YAML file at path and returns
// how many were written.
func SeedFile(ctx context.Context, path string, store Upserter) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	list, err := ParseSeed(data)
	if err != nil {
		return 0, err
	}
	for i := range list {
		if err := store.UpsertPersonality(ctx, &list[i]); err != nil {
			return i, fmt.Errorf("failed to seed personality %q: %w", list[i].Name, err)
		}
	}
	return len(list), nil
}
