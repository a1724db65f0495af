package cmd

import (
	"fmt"

	"github.com/abhisek/quizflow/internal/document"
	"github.com/abhisek/quizflow/internal/manifest"
)

// loadedDoc is a document file resolved against the registry.
type loadedDoc struct {
	Path     string
	Raw      []byte
	Header   document.Header
	Manifest *manifest.Manifest
}

// loadDocument reads path and picks the manifest for its type. version
// overrides the document's own version field.
func loadDocument(path, version string) (*loadedDoc, error) {
	raw, err := document.Load(path)
	if err != nil {
		return nil, err
	}
	h, err := document.ReadHeader(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if version == "" {
		version = h.Version
	}
	m, ok := registry.Get(h.Type, version)
	if !ok {
		if version == "" {
			return nil, fmt.Errorf("%s: unknown question type %q", path, h.Type)
		}
		return nil, fmt.Errorf("%s: unknown question type %q at version %s (have %v)",
			path, h.Type, version, registry.Versions(h.Type))
	}
	return &loadedDoc{Path: path, Raw: raw, Header: h, Manifest: m}, nil
}
