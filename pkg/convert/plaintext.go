package convert

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

var plaintextExtensions = []string{".txt", ".md", ".csv", ".json"}

// Plaintext converts already-textual files by reading them directly.
type Plaintext struct{}

// NewPlaintext creates the plaintext converter.
func NewPlaintext() *Plaintext {
	return &Plaintext{}
}

// Supports reports whether path has a recognized textual extension.
func (p *Plaintext) Supports(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return slices.Contains(plaintextExtensions, ext)
}

// Convert reads the file contents as UTF-8 text.
func (p *Plaintext) Convert(_ context.Context, path string) (*Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	return &Result{
		Text:      string(data),
		PageCount: 1,
	}, nil
}
