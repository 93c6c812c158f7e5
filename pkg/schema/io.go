package schema

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Parse decodes one schema document. name is recorded in positions.
// Imports are left unresolved.
func Parse(name string, data []byte) (*Schema, error) {
	var s Schema
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("schema: parse %s: %w", name, err)
	}
	s.setFilename(name)
	return &s, nil
}

// Load reads and parses the schema file at path together with its imports.
func Load(path string) (*Schema, error) {
	return NewLoader().Load(path)
}

// Loader loads schema files and resolves their imports.
type Loader struct {
	// SearchPaths are directories searched for imports not found next to
	// the importing file.
	SearchPaths []string

	loaded map[string]*Schema
}

// NewLoader creates a loader with the given search paths.
func NewLoader(searchPaths ...string) *Loader {
	return &Loader{
		SearchPaths: searchPaths,
		loaded:      make(map[string]*Schema),
	}
}

// Load reads the schema at path and every schema it imports. A file
// imported twice is parsed once.
func (l *Loader) Load(path string) (*Schema, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("schema: resolve %s: %w", path, err)
	}
	return l.load(absPath, nil)
}

func (l *Loader) load(absPath string, chain []string) (*Schema, error) {
	for _, p := range chain {
		if p == absPath {
			return nil, fmt.Errorf("schema: circular import: %s", strings.Join(append(chain, absPath), " -> "))
		}
	}
	if s, ok := l.loaded[absPath]; ok {
		return s, nil
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("schema: %w", err)
	}
	s, err := Parse(absPath, data)
	if err != nil {
		return nil, err
	}

	baseDir := filepath.Dir(absPath)
	chain = append(chain, absPath)
	var errs []error
	for _, imp := range s.Imports {
		importPath := l.resolve(imp, baseDir)
		if importPath == "" {
			errs = append(errs, fmt.Errorf("schema: %s: import not found: %s", absPath, imp))
			continue
		}
		imported, err := l.load(importPath, chain)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		s.imported = append(s.imported, imported)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	l.loaded[absPath] = s
	return s, nil
}

// resolve finds an import relative to the importing file, then in the
// search paths.
func (l *Loader) resolve(importPath, baseDir string) string {
	candidates := []string{filepath.Join(baseDir, importPath)}
	for _, dir := range l.SearchPaths {
		candidates = append(candidates, filepath.Join(dir, importPath))
	}
	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			abs, err := filepath.Abs(c)
			if err == nil {
				return abs
			}
		}
	}
	return ""
}

// Loaded returns the schemas loaded so far keyed by absolute path.
func (l *Loader) Loaded() map[string]*Schema {
	out := make(map[string]*Schema, len(l.loaded))
	for k, v := range l.loaded {
		out[k] = v
	}
	return out
}

// Write writes s in its canonical YAML form.
func Write(w io.Writer, s *Schema) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(s); err != nil {
		return fmt.Errorf("schema: write: %w", err)
	}
	return enc.Close()
}

// Format returns the canonical YAML form of s.
func Format(s *Schema) (string, error) {
	var buf bytes.Buffer
	if err := Write(&buf, s); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// LoadAndValidate loads path and validates the result. Warnings are
// returned alongside a nil error; any error-severity finding fails.
func LoadAndValidate(path string, searchPaths ...string) (*Schema, []ValidationError, error) {
	s, err := NewLoader(searchPaths...).Load(path)
	if err != nil {
		return nil, nil, err
	}
	findings := Validate(s)
	if errs := Errors(findings); len(errs) > 0 {
		return s, findings, errs[0]
	}
	return s, findings, nil
}
