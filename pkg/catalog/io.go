package catalog

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// =============================================================================
// Project Serialization API
// =============================================================================

// MarshalProject serializes a Project to pretty-printed JSON bytes.
func MarshalProject(p *Project) ([]byte, error) {
	return json.MarshalIndent(p, "", "  ")
}

// UnmarshalProject deserializes JSON bytes into a Project and validates it.
func UnmarshalProject(data []byte) (*Project, error) {
	var p Project
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("unmarshal project: %w", err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// ReadProject decodes a JSON project from an io.Reader.
// Use ReadProjectFile for files or pass bytes.NewReader for in-memory data.
func ReadProject(r io.Reader) (*Project, error) {
	var p Project
	if err := json.NewDecoder(r).Decode(&p); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// ReadProjectFile reads a JSON file and returns the decoded, validated Project.
func ReadProjectFile(path string) (*Project, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return ReadProject(f)
}

// WriteProjectFile writes a Project to a JSON file.
// The file is created with 0644 permissions.
func WriteProjectFile(p *Project, path string) error {
	data, err := MarshalProject(p)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
