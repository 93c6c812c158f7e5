// Package codegen generates Go types and serializers from schema files.
package codegen

import (
	"fmt"
	"io"
	"slices"
	"strings"
	"sync"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/blockberries/protoserial/pkg/schema"
)

// Language names a code generation target.
type Language string

const (
	LanguageGo Language = "go"
)

// Generator writes source code for every message and enum of a schema.
type Generator interface {
	Generate(w io.Writer, schema *schema.Schema, options Options) error
	Language() Language
	FileExtension() string
}

// Options configures code generation.
type Options struct {
	// Package overrides the package name derived from the schema.
	Package string

	// GenerateMarshal adds MarshalProto/UnmarshalProto methods.
	GenerateMarshal bool

	// GenerateJSON adds json struct tags.
	GenerateJSON bool

	// TypePrefix and TypeSuffix wrap every generated type name.
	TypePrefix string
	TypeSuffix string
}

// DefaultOptions returns the default code generation options.
func DefaultOptions() Options {
	return Options{
		GenerateMarshal: true,
		GenerateJSON:    true,
	}
}

var generators = struct {
	sync.RWMutex
	byLang map[Language]Generator
}{byLang: make(map[Language]Generator)}

// Register makes gen available through Get. Registering a second
// generator for the same language is an error.
func Register(gen Generator) error {
	generators.Lock()
	defer generators.Unlock()
	if _, dup := generators.byLang[gen.Language()]; dup {
		return fmt.Errorf("codegen: generator for %q already registered", gen.Language())
	}
	generators.byLang[gen.Language()] = gen
	return nil
}

// MustRegister is Register for package initialization.
func MustRegister(gen Generator) {
	if err := Register(gen); err != nil {
		panic(err)
	}
}

// Get returns the generator for lang.
func Get(lang Language) (Generator, bool) {
	generators.RLock()
	defer generators.RUnlock()
	gen, ok := generators.byLang[lang]
	return gen, ok
}

// Languages returns the registered languages in sorted order.
func Languages() []Language {
	generators.RLock()
	langs := make([]Language, 0, len(generators.byLang))
	for lang := range generators.byLang {
		langs = append(langs, lang)
	}
	generators.RUnlock()
	slices.Sort(langs)
	return langs
}

// ToPascalCase converts schema names ("user_id", "IN_REVIEW",
// "my.models", "HTTPServer") to PascalCase.
func ToPascalCase(s string) string {
	// Casers carry state and cannot be shared between goroutines.
	title := cases.Title(language.Und)
	words := splitWords(s)
	for i, w := range words {
		words[i] = title.String(w)
	}
	return strings.Join(words, "")
}

// ToCamelCase converts s to camelCase.
func ToCamelCase(s string) string {
	pascal := []rune(ToPascalCase(s))
	if len(pascal) == 0 {
		return ""
	}
	pascal[0] = unicode.ToLower(pascal[0])
	return string(pascal)
}

// ToSnakeCase converts s to snake_case.
func ToSnakeCase(s string) string {
	return strings.Join(splitWords(s), "_")
}

// splitWords breaks s into lower-cased words at separators ('_', '-',
// '.'), lower-to-upper transitions and the end of an upper-case run
// followed by a lower-case letter ("HTTPServer" is "http", "server").
func splitWords(s string) []string {
	rs := []rune(s)
	var words []string
	start := -1
	flush := func(end int) {
		if start >= 0 && end > start {
			words = append(words, strings.ToLower(string(rs[start:end])))
		}
		start = -1
	}
	for i, r := range rs {
		if r == '_' || r == '-' || r == '.' {
			flush(i)
			continue
		}
		if start >= 0 && unicode.IsUpper(r) {
			prev := rs[i-1]
			nextLower := i+1 < len(rs) && unicode.IsLower(rs[i+1])
			if !unicode.IsUpper(prev) || nextLower {
				flush(i)
			}
		}
		if start < 0 {
			start = i
		}
	}
	flush(len(rs))
	return words
}

// GeneratorError reports a schema element the generator cannot express.
type GeneratorError struct {
	Message  string
	Element  string // "Message.field", empty for file-level problems
	Position schema.Position
	Cause    error
}

func (e *GeneratorError) Error() string {
	var b strings.Builder
	if e.Position.Filename != "" {
		fmt.Fprintf(&b, "%s: ", e.Position)
	}
	if e.Element != "" {
		fmt.Fprintf(&b, "%s: ", e.Element)
	}
	b.WriteString(e.Message)
	if e.Cause != nil {
		fmt.Fprintf(&b, ": %v", e.Cause)
	}
	return b.String()
}

func (e *GeneratorError) Unwrap() error { return e.Cause }
