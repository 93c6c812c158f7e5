package extract

import (
	"go/ast"
	"go/constant"
	"go/types"
	"reflect"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/tools/go/packages"
)

// Config configures the type collector.
type Config struct {
	IncludePrivate         bool     // Include unexported types
	IncludePatterns        []string // Type name patterns to include (glob)
	ExcludePatterns        []string // Type name patterns to exclude (glob)
	DetectInterfaces       bool     // Turn interface fields into oneofs of their implementations
	IncludeEmptyInterfaces bool     // Treat empty interfaces as oneofs too
}

// DefaultConfig returns a default configuration.
func DefaultConfig() *Config {
	return &Config{
		IncludePrivate:   false,
		DetectInterfaces: true,
	}
}

// TypeCollector collects type information from Go packages.
type TypeCollector struct {
	packages   []*packages.Package
	config     *Config
	types      map[string]*TypeInfo
	interfaces map[string]*InterfaceInfo
	enums      map[string]*EnumInfo
}

// NewTypeCollector creates a new type collector.
func NewTypeCollector(pkgs []*packages.Package, cfg *Config) *TypeCollector {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &TypeCollector{
		packages:   pkgs,
		config:     cfg,
		types:      make(map[string]*TypeInfo),
		interfaces: make(map[string]*InterfaceInfo),
		enums:      make(map[string]*EnumInfo),
	}
}

// Collect analyzes all packages and collects type information.
func (c *TypeCollector) Collect() error {
	for _, pkg := range c.packages {
		c.collectPackage(pkg)
	}
	if c.config.DetectInterfaces {
		c.detectImplementations()
	}
	return nil
}

// Types returns collected struct types keyed by qualified name.
func (c *TypeCollector) Types() map[string]*TypeInfo {
	return c.types
}

// Interfaces returns collected interfaces keyed by qualified name.
func (c *TypeCollector) Interfaces() map[string]*InterfaceInfo {
	return c.interfaces
}

// Enums returns collected enum types keyed by qualified name.
func (c *TypeCollector) Enums() map[string]*EnumInfo {
	return c.enums
}

func (c *TypeCollector) collectPackage(pkg *packages.Package) {
	typeComments := make(map[string]string)
	for _, file := range pkg.Syntax {
		for _, decl := range file.Decls {
			genDecl, ok := decl.(*ast.GenDecl)
			if !ok {
				continue
			}
			for _, spec := range genDecl.Specs {
				if typeSpec, ok := spec.(*ast.TypeSpec); ok {
					doc := extractDoc(typeSpec.Doc)
					if doc == "" {
						doc = extractDoc(genDecl.Doc)
					}
					typeComments[typeSpec.Name.Name] = strings.TrimSpace(doc)
				}
			}
		}
	}

	scope := pkg.Types.Scope()
	for _, name := range scope.Names() {
		obj := scope.Lookup(name)
		if obj == nil {
			continue
		}
		if !c.config.IncludePrivate && !obj.Exported() {
			continue
		}
		if !c.matchesPatterns(name) {
			continue
		}
		if typeName, ok := obj.(*types.TypeName); ok && !typeName.IsAlias() {
			c.collectType(typeName, pkg.PkgPath, typeComments[name])
		}
	}

	c.collectEnumValues(pkg)
}

func (c *TypeCollector) collectType(typeName *types.TypeName, pkgPath string, doc string) {
	qualifiedName := pkgPath + "." + typeName.Name()

	switch t := typeName.Type().Underlying().(type) {
	case *types.Struct:
		info := &TypeInfo{
			Name:    typeName.Name(),
			Package: typeName.Pkg().Name(),
			PkgPath: pkgPath,
			Doc:     doc,
			GoType:  typeName.Type(),
		}
		if n, ok := parseNumberFromDoc(doc); ok {
			info.Number = n
		}

		for i := 0; i < t.NumFields(); i++ {
			field := t.Field(i)
			if !c.config.IncludePrivate && !field.Exported() {
				continue
			}
			structTag := c.parseTag(t.Tag(i), i+1)
			if structTag.Skip {
				continue
			}
			info.Fields = append(info.Fields, &FieldInfo{
				Name:   field.Name(),
				GoType: field.Type(),
				Tag:    structTag,
			})
		}
		c.types[qualifiedName] = info

	case *types.Interface:
		if t.NumMethods() > 0 || c.config.IncludeEmptyInterfaces {
			info := &InterfaceInfo{
				Name:    typeName.Name(),
				Package: typeName.Pkg().Name(),
				PkgPath: pkgPath,
				Doc:     doc,
			}
			for i := 0; i < t.NumMethods(); i++ {
				info.Methods = append(info.Methods, t.Method(i).Name())
			}
			c.interfaces[qualifiedName] = info
		}

	case *types.Basic:
		if t.Info()&types.IsInteger != 0 {
			c.enums[qualifiedName] = &EnumInfo{
				Name:    typeName.Name(),
				Package: typeName.Pkg().Name(),
				PkgPath: pkgPath,
				Doc:     doc,
				GoType:  typeName.Type(),
			}
		}
	}
}

func (c *TypeCollector) collectEnumValues(pkg *packages.Package) {
	scope := pkg.Types.Scope()
	for _, name := range scope.Names() {
		cnst, ok := scope.Lookup(name).(*types.Const)
		if !ok {
			continue
		}
		named, ok := cnst.Type().(*types.Named)
		if !ok || named.Obj().Pkg() == nil {
			continue
		}
		qualifiedName := named.Obj().Pkg().Path() + "." + named.Obj().Name()
		enumInfo, exists := c.enums[qualifiedName]
		if !exists {
			continue
		}
		if val, ok := constantToInt64(cnst); ok {
			enumInfo.Values = append(enumInfo.Values, &EnumValueInfo{
				Name:   cnst.Name(),
				Number: val,
			})
		}
	}
}

func constantToInt64(cnst *types.Const) (int64, bool) {
	if cnst.Val() == nil || cnst.Val().Kind() != constant.Int {
		return 0, false
	}
	return constant.Int64Val(cnst.Val())
}

func (c *TypeCollector) detectImplementations() {
	for _, iface := range c.interfaces {
		ifaceType := c.findInterfaceType(iface.PkgPath, iface.Name)
		if ifaceType == nil {
			continue
		}
		for _, typ := range c.types {
			if c.implements(typ.GoType, ifaceType) {
				iface.Implementations = append(iface.Implementations, typ)
				typ.Implements = append(typ.Implements, iface.PkgPath+"."+iface.Name)
			}
		}
	}
}

func (c *TypeCollector) findInterfaceType(pkgPath, name string) *types.Interface {
	for _, pkg := range c.packages {
		if pkg.PkgPath != pkgPath {
			continue
		}
		if obj := pkg.Types.Scope().Lookup(name); obj != nil {
			if iface, ok := obj.Type().Underlying().(*types.Interface); ok {
				return iface
			}
		}
	}
	return nil
}

// implements reports whether values of typ satisfy iface. Oneof variants
// are decoded as values, so a pointer method set does not count.
func (c *TypeCollector) implements(typ types.Type, iface *types.Interface) bool {
	return types.Implements(typ, iface)
}

func (c *TypeCollector) parseTag(tag string, defaultNum int) *StructTag {
	st := &StructTag{FieldNum: defaultNum}

	protoTag := reflect.StructTag(tag).Get("proto")
	if protoTag == "-" {
		st.Skip = true
		return st
	}
	if protoTag == "" {
		return st
	}

	for i, part := range strings.Split(protoTag, ",") {
		if i == 0 {
			if num, err := strconv.Atoi(part); err == nil && num > 0 {
				st.FieldNum = num
			}
			continue
		}
		switch part {
		case "optional":
			st.Optional = true
		case "nullable":
			st.Nullable = true
		case "packed":
			st.Packed = true
		case "signed", "fixed":
			st.Integer = part
		}
	}
	return st
}

func (c *TypeCollector) matchesPatterns(name string) bool {
	if len(c.config.IncludePatterns) > 0 {
		matched := false
		for _, pattern := range c.config.IncludePatterns {
			if matchGlob(pattern, name) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}

	for _, pattern := range c.config.ExcludePatterns {
		if matchGlob(pattern, name) {
			return false
		}
	}
	return true
}

func matchGlob(pattern, name string) bool {
	// * matches any sequence
	regexPattern := "^" + strings.ReplaceAll(regexp.QuoteMeta(pattern), `\*`, `.*`) + "$"
	matched, _ := regexp.MatchString(regexPattern, name)
	return matched
}

var numberAnnotations = []*regexp.Regexp{
	regexp.MustCompile(`@protoNumber:(\d+)`),
	regexp.MustCompile(`@proto:number=(\d+)`),
}

// parseNumberFromDoc extracts a @protoNumber:N annotation from a doc
// comment.
func parseNumberFromDoc(doc string) (int, bool) {
	for _, re := range numberAnnotations {
		if matches := re.FindStringSubmatch(doc); len(matches) > 1 {
			if num, err := strconv.Atoi(matches[1]); err == nil && num > 0 {
				return num, true
			}
		}
	}
	return 0, false
}
