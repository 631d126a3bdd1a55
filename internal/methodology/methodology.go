// Package methodology implements the versioned checklist registry.
// Checklists are human-edited YAML files keyed by methodology identifier;
// the engine never embeds checklist content. Validation thresholds travel
// with the methodology, not with engine configuration.
package methodology

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Domain errors for methodology lookups.
var (
	ErrUnknownMethodology = errors.New("unknown methodology")
	ErrInvalidChecklist   = errors.New("invalid checklist definition")
)

// Requirement is one checklist item a submission must evidence.
// Read-only for the lifetime of a session.
type Requirement struct {
	ID         string `yaml:"id" json:"id"`
	Text       string `yaml:"text" json:"text"`
	Category   string `yaml:"category" json:"category"`
	PromptHint string `yaml:"prompt_hint" json:"prompt_hint,omitempty"`
}

// Thresholds carries the methodology-supplied validation parameters.
// Defaults apply per-field only when the checklist omits a value.
type Thresholds struct {
	MaxDateDriftDays    int     `yaml:"max_date_drift_days" json:"max_date_drift_days"`
	IdentityThreshold   float64 `yaml:"identity_threshold" json:"identity_threshold"`
	IdentityWarningBand float64 `yaml:"identity_warning_band" json:"identity_warning_band"`
	AreaTolerance       float64 `yaml:"area_tolerance" json:"area_tolerance"`
	MinCorroboration    int     `yaml:"min_corroboration" json:"min_corroboration"`
}

// Checklist is one versioned methodology definition.
type Checklist struct {
	ID           string        `yaml:"id" json:"id"`
	Name         string        `yaml:"name" json:"name"`
	Version      string        `yaml:"version" json:"version"`
	Thresholds   Thresholds    `yaml:"thresholds" json:"thresholds"`
	Requirements []Requirement `yaml:"requirements" json:"requirements"`
}

// Requirement returns the checklist item with the given id.
func (c *Checklist) Requirement(id string) (*Requirement, bool) {
	for i := range c.Requirements {
		if c.Requirements[i].ID == id {
			return &c.Requirements[i], true
		}
	}
	return nil, false
}

// Registry holds loaded checklists keyed by methodology id. Construct it
// at startup and pass it by reference; there is no ambient global.
type Registry struct {
	checklists map[string]*Checklist
}

// LoadRegistry reads every *.yaml checklist under dir.
func LoadRegistry(dir string) (*Registry, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read methodology directory: %w", err)
	}

	r := &Registry{checklists: make(map[string]*Checklist)}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".yaml" {
			continue
		}

		checklist, err := loadChecklist(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", entry.Name(), err)
		}
		if _, exists := r.checklists[checklist.ID]; exists {
			return nil, fmt.Errorf("%w: duplicate methodology id %s", ErrInvalidChecklist, checklist.ID)
		}
		r.checklists[checklist.ID] = checklist
	}

	return r, nil
}

// NewRegistry builds a registry from in-memory checklists; used by tests
// and embedders.
func NewRegistry(checklists ...*Checklist) (*Registry, error) {
	r := &Registry{checklists: make(map[string]*Checklist)}
	for _, c := range checklists {
		if err := finalize(c); err != nil {
			return nil, err
		}
		if _, exists := r.checklists[c.ID]; exists {
			return nil, fmt.Errorf("%w: duplicate methodology id %s", ErrInvalidChecklist, c.ID)
		}
		r.checklists[c.ID] = c
	}
	return r, nil
}

// Find returns the checklist for a methodology id.
func (r *Registry) Find(id string) (*Checklist, error) {
	c, ok := r.checklists[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownMethodology, id)
	}
	return c, nil
}

// IDs returns the known methodology identifiers.
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.checklists))
	for id := range r.checklists {
		ids = append(ids, id)
	}
	return ids
}

func loadChecklist(path string) (*Checklist, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read checklist: %w", err)
	}

	var c Checklist
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidChecklist, err)
	}

	if err := finalize(&c); err != nil {
		return nil, err
	}
	return &c, nil
}

// finalize applies spec defaults for omitted threshold fields and
// range-checks the result.
func finalize(c *Checklist) error {
	if c.ID == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidChecklist)
	}
	if len(c.Requirements) == 0 {
		return fmt.Errorf("%w: %s has no requirements", ErrInvalidChecklist, c.ID)
	}

	seen := make(map[string]bool, len(c.Requirements))
	for _, req := range c.Requirements {
		if req.ID == "" {
			return fmt.Errorf("%w: %s has a requirement without an id", ErrInvalidChecklist, c.ID)
		}
		if seen[req.ID] {
			return fmt.Errorf("%w: %s repeats requirement %s", ErrInvalidChecklist, c.ID, req.ID)
		}
		seen[req.ID] = true
	}

	t := &c.Thresholds
	if t.MaxDateDriftDays == 0 {
		t.MaxDateDriftDays = 120
	}
	if t.IdentityThreshold == 0 {
		t.IdentityThreshold = 0.8
	}
	if t.IdentityWarningBand == 0 {
		t.IdentityWarningBand = 0.05
	}
	if t.AreaTolerance == 0 {
		t.AreaTolerance = 0.05
	}
	if t.MinCorroboration == 0 {
		t.MinCorroboration = 3
	}

	switch {
	case t.MaxDateDriftDays < 0:
		return fmt.Errorf("%w: max_date_drift_days %d < 0", ErrInvalidChecklist, t.MaxDateDriftDays)
	case t.IdentityThreshold <= 0 || t.IdentityThreshold > 1:
		return fmt.Errorf("%w: identity_threshold %v outside (0,1]", ErrInvalidChecklist, t.IdentityThreshold)
	case t.IdentityWarningBand < 0 || t.IdentityWarningBand > 1:
		return fmt.Errorf("%w: identity_warning_band %v outside [0,1]", ErrInvalidChecklist, t.IdentityWarningBand)
	case t.AreaTolerance < 0 || t.AreaTolerance > 1:
		return fmt.Errorf("%w: area_tolerance %v outside [0,1]", ErrInvalidChecklist, t.AreaTolerance)
	case t.MinCorroboration < 1:
		return fmt.Errorf("%w: min_corroboration %d < 1", ErrInvalidChecklist, t.MinCorroboration)
	}

	return nil
}
