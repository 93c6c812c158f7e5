package extract

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/blockberries/protoserial/pkg/schema"
)

// Extractor extracts schemas from Go packages.
type Extractor struct {
	loader *PackageLoader
}

// NewExtractor creates a schema extractor resolving package patterns in
// dir.
func NewExtractor(dir string) *Extractor {
	return &Extractor{
		loader: NewPackageLoader(dir),
	}
}

// ExtractorConfig configures the extraction process.
type ExtractorConfig struct {
	Config     *Config  // Type collector configuration
	Patterns   []string // Go package patterns to load
	OutputPath string   // Output file path (empty for the writer passed to ExtractAndWrite)
	Package    string   // Package name for the schema
	BuildTags  []string // Build tags used when selecting files
}

// Extract is ExtractContext with a background context.
func (e *Extractor) Extract(cfg *ExtractorConfig) (*schema.Schema, []string, error) {
	return e.ExtractContext(context.Background(), cfg)
}

// ExtractContext extracts a schema from Go packages. It returns the schema
// with the warnings raised while mapping Go types and validating the
// result.
func (e *Extractor) ExtractContext(ctx context.Context, cfg *ExtractorConfig) (*schema.Schema, []string, error) {
	pkgs, err := e.loader.WithBuildTags(cfg.BuildTags...).LoadContext(ctx, cfg.Patterns)
	if err != nil {
		return nil, nil, err
	}
	if len(pkgs) == 0 {
		return nil, nil, fmt.Errorf("no packages matched patterns: %v", cfg.Patterns)
	}

	collectorCfg := cfg.Config
	if collectorCfg == nil {
		collectorCfg = DefaultConfig()
	}
	collector := NewTypeCollector(pkgs, collectorCfg)
	if err := collector.Collect(); err != nil {
		return nil, nil, fmt.Errorf("failed to collect types: %w", err)
	}

	packageName := cfg.Package
	if packageName == "" {
		packageName = pkgs[0].Name
	}

	builder := NewSchemaBuilder(collector.Types(), collector.Interfaces(), collector.Enums())
	s, err := builder.Build(packageName)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build schema: %w", err)
	}

	warnings := builder.Warnings()
	findings := schema.Validate(s)
	for _, w := range schema.Warnings(findings) {
		warnings = append(warnings, w.Message)
	}
	if errs := schema.Errors(findings); len(errs) > 0 {
		return s, warnings, fmt.Errorf("extracted schema is invalid: %s", errs[0].Message)
	}
	return s, warnings, nil
}

// ExtractAndWrite extracts a schema and writes it to cfg.OutputPath, or
// to w when no path is set.
func (e *Extractor) ExtractAndWrite(cfg *ExtractorConfig, w io.Writer) ([]string, error) {
	s, warnings, err := e.Extract(cfg)
	if err != nil {
		return warnings, err
	}

	if cfg.OutputPath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.OutputPath), 0o755); err != nil {
			return warnings, fmt.Errorf("failed to create output directory: %w", err)
		}
		f, err := os.Create(cfg.OutputPath)
		if err != nil {
			return warnings, fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	return warnings, schema.Write(w, s)
}

// ExtractToString extracts a schema from packages and returns its YAML
// form.
func ExtractToString(patterns []string, config *Config) (string, error) {
	s, _, err := NewExtractor("").Extract(&ExtractorConfig{
		Config:   config,
		Patterns: patterns,
	})
	if err != nil {
		return "", err
	}
	return schema.Format(s)
}
