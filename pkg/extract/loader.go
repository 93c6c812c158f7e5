// Package extract derives schemas from the struct and enum types of Go
// packages.
package extract

import (
	"context"
	"errors"
	"fmt"
	"go/ast"
	"go/types"
	"strings"

	"golang.org/x/tools/go/packages"
)

// maxPackageErrors bounds how many package errors Load reports.
const maxPackageErrors = 10

// PackageLoader resolves package patterns to type-checked packages with
// syntax, so doc comments and struct tags are available.
type PackageLoader struct {
	dir       string
	buildTags []string
}

// NewPackageLoader returns a loader resolving patterns in dir; empty means
// the current directory.
func NewPackageLoader(dir string) *PackageLoader {
	return &PackageLoader{dir: dir}
}

// WithBuildTags sets the build tags used when selecting files.
func (l *PackageLoader) WithBuildTags(tags ...string) *PackageLoader {
	l.buildTags = tags
	return l
}

// Load is LoadContext with a background context.
func (l *PackageLoader) Load(patterns []string) ([]*packages.Package, error) {
	return l.LoadContext(context.Background(), patterns)
}

// LoadContext loads the packages matching patterns. Any load, parse or
// type error in a matched package fails the load.
func (l *PackageLoader) LoadContext(ctx context.Context, patterns []string) ([]*packages.Package, error) {
	cfg := &packages.Config{
		Context: ctx,
		Dir:     l.dir,
		Mode: packages.NeedName |
			packages.NeedTypes |
			packages.NeedTypesInfo |
			packages.NeedSyntax,
	}
	if len(l.buildTags) > 0 {
		cfg.BuildFlags = []string{"-tags=" + strings.Join(l.buildTags, ",")}
	}

	pkgs, err := packages.Load(cfg, patterns...)
	if err != nil {
		return nil, fmt.Errorf("extract: loading %s: %w", strings.Join(patterns, " "), err)
	}

	var errs []error
	for _, pkg := range pkgs {
		for _, e := range pkg.Errors {
			if len(errs) == maxPackageErrors {
				break
			}
			errs = append(errs, e)
		}
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("extract: package errors: %w", errors.Join(errs...))
	}
	return pkgs, nil
}

// TypeInfo describes an extracted struct type.
type TypeInfo struct {
	Name    string
	Package string
	PkgPath string
	Doc     string
	Fields  []*FieldInfo
	GoType  types.Type

	// Number is the field number a oneof variant wrapping this type takes,
	// from a @protoNumber annotation; zero when absent.
	Number int

	Implements []string
}

// FieldInfo describes a struct field.
type FieldInfo struct {
	Name   string
	GoType types.Type
	Tag    *StructTag
	Doc    string
}

// InterfaceInfo describes an interface whose implementations form the
// variants of a oneof.
type InterfaceInfo struct {
	Name            string
	Package         string
	PkgPath         string
	Doc             string
	Methods         []string
	Implementations []*TypeInfo
}

// EnumInfo describes an integer type with constants.
type EnumInfo struct {
	Name    string
	Package string
	PkgPath string
	Doc     string
	Values  []*EnumValueInfo
	GoType  types.Type
}

// EnumValueInfo is one constant of an enum type.
type EnumValueInfo struct {
	Name   string
	Number int64
	Doc    string
}

// StructTag is a parsed proto struct tag:
//
//	`proto:"3,optional,signed"`
//
// The number is optional and defaults to the field's position plus one.
// The flags are optional, nullable, packed, signed and fixed. A tag of
// "-" skips the field.
type StructTag struct {
	FieldNum int
	Optional bool
	Nullable bool
	Packed   bool
	Integer  string
	Skip     bool
}

// extractDoc extracts documentation from an AST node.
func extractDoc(cg *ast.CommentGroup) string {
	if cg == nil {
		return ""
	}
	return cg.Text()
}
