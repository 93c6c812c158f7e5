package schema

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestParsePositions(t *testing.T) {
	src := "messages:\n  - name: A\n    fields:\n      - name: x\n        type: int32\n"
	s, err := Parse("a.yaml", []byte(src))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	m := s.Message("A")
	if m == nil {
		t.Fatal("message A not found")
	}
	if got := m.Position.String(); got != "a.yaml:2:5" {
		t.Errorf("message position = %s, want a.yaml:2:5", got)
	}
	if got := m.Fields[0].Position.String(); got != "a.yaml:4:9" {
		t.Errorf("field position = %s, want a.yaml:4:9", got)
	}
	if m.FieldNumber(0) != 1 {
		t.Errorf("FieldNumber(0) = %d, want 1", m.FieldNumber(0))
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"unknown key", "messages:\n  - name: A\n    fields:\n      - name: x\n        tpye: int32\n", `unknown key "tpye"`},
		{"unknown top-level key", "message: []\n", `unknown key "message"`},
		{"not a mapping", "messages:\n  - A\n", "expected a mapping"},
		{"bad yaml", "messages: [\n", "parse bad.yaml"},
		{"empty message entry", "messages:\n  -", `empty entry in "messages"`},
		{"empty field entry", "messages:\n  - name: A\n    fields:\n      - ~\n", `line 4: empty entry in "fields"`},
		{"empty variant entry", "messages:\n  - name: A\n    fields:\n      - name: o\n        oneof: [~]\n", `empty entry in "oneof"`},
		{"empty enum entry", "enums: [~]\n", `empty entry in "enums"`},
		{"empty enum value", "enums:\n  - name: E\n    values:\n      -\n", `empty entry in "values"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse("bad.yaml", []byte(tt.src))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestEnumValueNumbers(t *testing.T) {
	s := mustParse(t, `
enums:
  - name: E
    values:
      - name: A
      - name: B
        number: 7
      - name: C
`)
	e := s.Enum("E")
	if e == nil {
		t.Fatal("enum E not found")
	}
	want := []int{0, 7, 2}
	for i, n := range want {
		if got := e.ValueNumber(i); got != n {
			t.Errorf("ValueNumber(%d) = %d, want %d", i, got, n)
		}
	}
	if v := e.ValueByNumber(7); v == nil || v.Name != "B" {
		t.Errorf("ValueByNumber(7) = %v, want B", v)
	}
	if e.ValueByNumber(1) != nil {
		t.Error("ValueByNumber(1) should be nil")
	}
}

func TestLoaderWithImports(t *testing.T) {
	l := NewLoader()
	s, err := l.Load("testdata/person.yaml")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if s.Message("Point") == nil {
		t.Error("imported message Point not visible")
	}
	if s.Enum("Color") == nil {
		t.Error("imported enum Color not visible")
	}
	if len(s.Imported()) != 1 {
		t.Errorf("expected 1 import, got %d", len(s.Imported()))
	}
	if len(l.Loaded()) != 2 {
		t.Errorf("expected 2 loaded files, got %d", len(l.Loaded()))
	}
	if !strings.HasSuffix(s.Message("Person").Position.Filename, "person.yaml") {
		t.Errorf("unexpected filename %q", s.Message("Person").Position.Filename)
	}
	if !strings.HasSuffix(s.Message("Point").Position.Filename, "common.yaml") {
		t.Errorf("unexpected filename %q", s.Message("Point").Position.Filename)
	}
}

func TestLoaderSharedImport(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "base.yaml", "messages:\n  - name: Base\n")
	writeFile(t, dir, "left.yaml", "imports: [base.yaml]\nmessages:\n  - name: Left\n")
	writeFile(t, dir, "right.yaml", "imports: [base.yaml]\nmessages:\n  - name: Right\n")
	root := writeFile(t, dir, "root.yaml", "imports: [left.yaml, right.yaml]\n")

	l := NewLoader()
	s, err := l.Load(root)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(l.Loaded()) != 4 {
		t.Errorf("expected 4 loaded files, got %d", len(l.Loaded()))
	}
	left, right := s.Imported()[0], s.Imported()[1]
	if left.Imported()[0] != right.Imported()[0] {
		t.Error("base.yaml should be parsed once")
	}
	if s.Message("Base") == nil {
		t.Error("transitively imported message not visible")
	}
}

func TestLoaderMissingImport(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "a.yaml", "imports: [missing.yaml, gone.yaml]\n")

	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error for missing import")
	}
	for _, name := range []string{"missing.yaml", "gone.yaml"} {
		if !strings.Contains(err.Error(), "import not found: "+name) {
			t.Errorf("error %q does not mention %s", err, name)
		}
	}
}

func TestLoaderCircularImport(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "a.yaml", "imports: [b.yaml]\n")
	writeFile(t, dir, "b.yaml", "imports: [a.yaml]\n")

	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error for circular import")
	}
	if !strings.Contains(err.Error(), "circular import") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestLoaderSearchPaths(t *testing.T) {
	lib := t.TempDir()
	writeFile(t, lib, "shared/types.yaml", "enums:\n  - name: Kind\n    values:\n      - name: NONE\n")
	dir := t.TempDir()
	path := writeFile(t, dir, "a.yaml", "imports: [shared/types.yaml]\nmessages:\n  - name: A\n    fields:\n      - {name: kind, type: Kind}\n")

	if _, err := NewLoader().Load(path); err == nil {
		t.Fatal("expected error without search path")
	}
	s, err := NewLoader(lib).Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if s.Enum("Kind") == nil {
		t.Error("enum from search path not visible")
	}
}

func TestFormatRoundTrip(t *testing.T) {
	s, err := Load("testdata/person.yaml")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	first, err := Format(s)
	if err != nil {
		t.Fatalf("Format failed: %v", err)
	}
	reparsed := mustParse(t, first)
	second, err := Format(reparsed)
	if err != nil {
		t.Fatalf("Format failed: %v", err)
	}
	if first != second {
		t.Errorf("Format is not stable:\n%s\n---\n%s", first, second)
	}
	if strings.Contains(first, "repeated: false") || strings.Contains(first, "Position") {
		t.Errorf("Format output carries defaults or positions:\n%s", first)
	}
	if !strings.Contains(first, "unknown_fields: true") {
		t.Errorf("Format output misses unknown_fields:\n%s", first)
	}
}

func TestWriteToFile(t *testing.T) {
	s := mustParse(t, userV1)
	path := filepath.Join(t.TempDir(), "out.yaml")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := Write(f, s); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	f.Close()

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if m := loaded.Message("User"); m == nil || len(m.Fields) != 2 {
		t.Errorf("unexpected message after round trip: %+v", m)
	}
}

func TestLoadAndValidate(t *testing.T) {
	s, findings, err := LoadAndValidate("testdata/person.yaml")
	if err != nil {
		t.Fatalf("LoadAndValidate failed: %v", err)
	}
	if s == nil || len(findings) != 0 {
		t.Errorf("expected a clean schema, got %v", findings)
	}

	dir := t.TempDir()
	path := writeFile(t, dir, "bad.yaml", "messages:\n  - name: A\n    fields:\n      - {name: x, type: Missing}\n")
	_, findings, err = LoadAndValidate(path)
	if err == nil {
		t.Fatal("expected validation error")
	}
	if len(Errors(findings)) != 1 {
		t.Errorf("expected one error, got %v", findings)
	}
	if !strings.Contains(err.Error(), `unknown type "Missing"`) {
		t.Errorf("unexpected error: %v", err)
	}
}
