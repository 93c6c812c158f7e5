package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/descriptorpb"

	"github.com/blockberries/protoserial/pkg/schema"
)

const (
	personSchema = "../../pkg/schema/testdata/person.yaml"
	annRecord    = "../../pkg/schema/testdata/ann.yaml"
)

// capture redirects the command output streams for one test.
func capture(t *testing.T) (out, errOut *bytes.Buffer) {
	t.Helper()
	out, errOut = new(bytes.Buffer), new(bytes.Buffer)
	oldOut, oldErr := stdout, stderr
	stdout, stderr = out, errOut
	t.Cleanup(func() { stdout, stderr = oldOut, oldErr })
	return out, errOut
}

func TestEncodeDecode(t *testing.T) {
	_, errOut := capture(t)
	bin := filepath.Join(t.TempDir(), "ann.bin")

	code := run("encode", []string{"-schema", personSchema, "-message", "Person", "-o", bin, annRecord})
	require.Equal(t, exitOK, code, errOut.String())

	out, errOut := capture(t)
	code = run("decode", []string{"-schema", personSchema, "-message", "Person", bin})
	require.Equal(t, exitOK, code, errOut.String())
	assert.Contains(t, out.String(), "name: Ann")
	assert.Contains(t, out.String(), "email: a@b")
	assert.Contains(t, out.String(), "color: GREEN")
}

func TestEncodeDelimitedStream(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "people.yaml")
	require.NoError(t, os.WriteFile(in, []byte("id: 1\nname: A\n---\nid: 2\nname: B\n"), 0o644))
	bin := filepath.Join(dir, "people.bin")

	_, errOut := capture(t)
	code := run("encode", []string{"-schema", personSchema, "-message", "Person", "-delimited", "-o", bin, in})
	require.Equal(t, exitOK, code, errOut.String())

	out, errOut := capture(t)
	code = run("decode", []string{"-schema", personSchema, "-message", "Person", "-delimited", bin})
	require.Equal(t, exitOK, code, errOut.String())
	assert.Equal(t, 2, strings.Count(out.String(), "id: "))
	assert.Contains(t, out.String(), "---")

	// Without -delimited a stream is rejected.
	_, errOut = capture(t)
	code = run("encode", []string{"-schema", personSchema, "-message", "Person", in})
	assert.Equal(t, exitError, code)
	assert.Contains(t, errOut.String(), "use -delimited")
}

func TestEncodeRejectsInvalidRecord(t *testing.T) {
	in := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(in, []byte("id: 1\nname: A\ncolor: PURPLE\n"), 0o644))

	_, errOut := capture(t)
	code := run("encode", []string{"-schema", personSchema, "-message", "Person", in})
	assert.Equal(t, exitError, code)
	assert.Contains(t, errOut.String(), "PURPLE")
}

func TestEncodeRequiresSchema(t *testing.T) {
	_, errOut := capture(t)
	code := run("encode", []string{annRecord})
	assert.Equal(t, exitError, code)
	assert.Contains(t, errOut.String(), "-schema and -message are required")
}

func TestAssembleDump(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "msg.txt")
	require.NoError(t, os.WriteFile(src, []byte(`1: 150 2: {"hi"}`), 0o644))
	bin := filepath.Join(dir, "msg.bin")

	_, errOut := capture(t)
	require.Equal(t, exitOK, run("assemble", []string{"-o", bin, src}), errOut.String())
	data, err := os.ReadFile(bin)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x08, 0x96, 0x01, 0x12, 0x02, 'h', 'i'}, data)

	out, errOut := capture(t)
	require.Equal(t, exitOK, run("dump", []string{bin}), errOut.String())
	assert.Contains(t, out.String(), "1: 150")
	assert.Contains(t, out.String(), `"hi"`)
}

func TestValidateExitCodes(t *testing.T) {
	dir := t.TempDir()
	warnOnly := filepath.Join(dir, "warn.yaml")
	require.NoError(t, os.WriteFile(warnOnly, []byte("enums:\n  - name: E\n    values:\n      - {name: A, number: 1}\n"), 0o644))
	broken := filepath.Join(dir, "broken.yaml")
	require.NoError(t, os.WriteFile(broken, []byte("messages:\n  - name: A\n    fields:\n      - {name: a, type: Nope}\n"), 0o644))

	tests := []struct {
		name string
		file string
		want int
	}{
		{"valid", personSchema, exitOK},
		{"warnings only", warnOnly, exitWarning},
		{"errors", broken, exitError},
		{"missing file", filepath.Join(dir, "none.yaml"), exitError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			capture(t)
			assert.Equal(t, tt.want, run("validate", []string{tt.file}))
		})
	}
}

func TestFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "s.yaml")
	require.NoError(t, os.WriteFile(path, []byte("messages: [{name: A, fields: [{name: a, type: int32, repeated: false}]}]\n"), 0o644))

	out, errOut := capture(t)
	require.Equal(t, exitOK, run("format", []string{"-w", path}), errOut.String())
	assert.Contains(t, out.String(), "Formatted: ")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "messages:\n  - name: A\n    fields:\n      - name: a\n        type: int32\n", string(data))
}

func TestCompat(t *testing.T) {
	dir := t.TempDir()
	oldPath := filepath.Join(dir, "old.yaml")
	require.NoError(t, os.WriteFile(oldPath, []byte("messages:\n  - name: A\n    fields:\n      - {name: a, type: int32}\n"), 0o644))
	newPath := filepath.Join(dir, "new.yaml")
	require.NoError(t, os.WriteFile(newPath, []byte("messages:\n  - name: A\n    fields:\n      - {name: a, type: string}\n"), 0o644))

	out, _ := capture(t)
	assert.Equal(t, exitOK, run("compat", []string{oldPath, oldPath}))
	assert.Contains(t, out.String(), "Compatible")

	out, _ = capture(t)
	assert.Equal(t, exitError, run("compat", []string{oldPath, newPath}))
	assert.Contains(t, out.String(), "breaking: field type changed")
}

func TestVersionAndUnknownCommand(t *testing.T) {
	out, _ := capture(t)
	assert.Equal(t, exitOK, run("version", nil))
	assert.True(t, strings.HasPrefix(out.String(), "protoserial version "))

	_, errOut := capture(t)
	assert.Equal(t, exitError, run("bogus", nil))
	assert.Contains(t, errOut.String(), "Unknown command: bogus")
}

func TestGenerate(t *testing.T) {
	dir := t.TempDir()

	out, _ := capture(t)
	code := run("generate", []string{"-out", dir, "-package", "people", personSchema})
	require.Equal(t, exitOK, code)
	outFile := filepath.Join(dir, "person.pb.go")
	assert.Contains(t, out.String(), "Generated: "+outFile)

	src, err := os.ReadFile(outFile)
	require.NoError(t, err)
	assert.Contains(t, string(src), "package people")
	assert.Contains(t, string(src), "type Person struct")
	assert.Contains(t, string(src), "func (m *Person) MarshalProto()")

	_, errOut := capture(t)
	assert.Equal(t, exitError, run("generate", []string{"-lang", "cobol", personSchema}))
	assert.Contains(t, errOut.String(), "unsupported language")

	_, errOut = capture(t)
	assert.Equal(t, exitError, run("generate", []string{"-out", dir, filepath.Join(dir, "missing.yaml")}))
	assert.Contains(t, errOut.String(), "loading schema failed")
}

func TestExtract(t *testing.T) {
	out := filepath.Join(t.TempDir(), "models.yaml")

	outBuf, _ := capture(t)
	code := run("extract", []string{"-out", out, "-include", "Address", "../../pkg/extract/testdata"})
	require.Equal(t, exitOK, code)
	assert.Contains(t, outBuf.String(), "Extracted: "+out)

	s, _, err := schema.LoadAndValidate(out)
	require.NoError(t, err)
	assert.NotNil(t, s.Message("Address"))
	assert.Nil(t, s.Message("User"))

	_, errOut := capture(t)
	assert.Equal(t, exitError, run("extract", nil))
	assert.Contains(t, errOut.String(), "no Go packages specified")
}

func TestDescriptor(t *testing.T) {
	out := filepath.Join(t.TempDir(), "person.pb")

	_, _ = capture(t)
	require.Equal(t, exitOK, run("descriptor", []string{"-o", out, personSchema}))

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	var set descriptorpb.FileDescriptorSet
	require.NoError(t, proto.Unmarshal(data, &set))
	require.Len(t, set.GetFile(), 1)
	file := set.GetFile()[0]
	assert.Equal(t, "person.proto", file.GetName())
	assert.Equal(t, "people", file.GetPackage())

	outBuf, _ := capture(t)
	require.Equal(t, exitOK, run("desc", []string{"-json", personSchema}))
	assert.Contains(t, outBuf.String(), `"Person"`)

	_, errOut := capture(t)
	assert.Equal(t, exitError, run("descriptor", nil))
	assert.Contains(t, errOut.String(), "expected one schema file")
}
