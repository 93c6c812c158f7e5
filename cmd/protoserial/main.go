// Command protoserial encodes and decodes protobuf messages described by
// YAML schemas.
//
// Usage:
//
//	protoserial encode -schema <file> -message <name> [options] <input.yaml>
//	protoserial decode -schema <file> -message <name> [options] <input.bin>
//	protoserial dump [options] <input.bin>
//	protoserial assemble [options] <input.txt>
//	protoserial validate [options] <schema-file>...
//	protoserial format [-w] <schema-file>...
//	protoserial compat <old-schema> <new-schema>
//	protoserial generate [options] <schema-file>...
//	protoserial extract [options] <go-package>...
//	protoserial descriptor [options] <schema-file>
//	protoserial version
//
// Encode Command:
//
//	Read YAML records and write their binary encoding. With -delimited every
//	YAML document in the input becomes one length-prefixed message.
//
//	Options:
//	  -schema string    Schema file (required)
//	  -message string   Message name (required)
//	  -delimited        Read a YAML stream and write length-prefixed messages
//	  -defaults         Encode fields holding their default value
//	  -o string         Output file (default: stdout)
//	  -I string         Add import search path (can be repeated)
//
// Decode Command:
//
//	Read binary messages and write them as YAML. Takes the same options as
//	encode plus -strict, which rejects invalid UTF-8.
//
// Dump and Assemble Commands:
//
//	Convert between the binary wire format and protoscope text.
//
// Generate Command:
//
//	Write Go types and serializers for every message and enum of each
//	schema file into <out>/<name>.pb.go.
//
//	Options:
//	  -out string       Output directory (default ".")
//	  -package string   Override package name
//	  -prefix string    Add prefix to all type names
//	  -suffix string    Add suffix to all type names
//	  -marshal          Generate MarshalProto/UnmarshalProto (default true)
//	  -json             Generate json struct tags (default true)
//	  -I string         Add import search path (can be repeated)
//
// Extract Command:
//
//	Derive a schema from the struct and enum types of Go packages. Field
//	numbers and encodings come from proto struct tags; interface fields
//	become oneofs of their implementations.
//
// Descriptor Command:
//
//	Write the schema as a protoc-compatible FileDescriptorSet, so other
//	protobuf runtimes can read the messages. -json writes protojson.
//
// Input "-" reads standard input. Every command accepts -v for debug
// logging on stderr.
package main

import (
	"bytes"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/protocolbuffers/protoscope"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/descriptorpb"
	"gopkg.in/yaml.v3"

	"github.com/blockberries/protoserial/pkg/codegen"
	"github.com/blockberries/protoserial/pkg/extract"
	"github.com/blockberries/protoserial/pkg/protoserial"
	"github.com/blockberries/protoserial/pkg/schema"
	"github.com/blockberries/protoserial/pkg/serial"
)

// Exit codes.
const (
	exitOK      = 0
	exitError   = 1
	exitWarning = 2
)

var (
	stdin  io.Reader = os.Stdin
	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr

	logger = newLogger(stderr, false)
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(exitError)
	}
	os.Exit(run(os.Args[1], os.Args[2:]))
}

func run(command string, args []string) int {
	switch command {
	case "encode", "enc", "e":
		return cmdEncode(args)
	case "decode", "dec", "d":
		return cmdDecode(args)
	case "dump":
		return cmdDump(args)
	case "assemble", "asm":
		return cmdAssemble(args)
	case "validate", "val", "v":
		return cmdValidate(args)
	case "format", "fmt", "f":
		return cmdFormat(args)
	case "compat":
		return cmdCompat(args)
	case "generate", "gen", "g":
		return cmdGenerate(args)
	case "extract", "schema", "s":
		return cmdExtract(args)
	case "descriptor", "desc":
		return cmdDescriptor(args)
	case "version":
		fmt.Fprintf(stdout, "protoserial version %s\n", protoserial.VersionInfo())
		return exitOK
	case "help", "-h", "--help":
		printUsage()
		return exitOK
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n", command)
		printUsage()
		return exitError
	}
}

func printUsage() {
	fmt.Fprintln(stderr, `protoserial - schema-driven protobuf encoding

Usage:
  protoserial <command> [options] <files>...

Commands:
  encode      Encode YAML records to binary
  decode      Decode binary messages to YAML
  dump        Disassemble binary into protoscope text
  assemble    Assemble protoscope text into binary
  validate    Validate schema files
  format      Format schema files
  compat      Check two schema versions for breaking changes
  generate    Generate Go code from schema files
  extract     Extract a schema from Go source code
  descriptor  Write the protobuf descriptor of a schema
  version     Print version information
  help        Print this help message

Run 'protoserial <command> -h' for command-specific help.`)
}

func newLogger(w io.Writer, verbose bool) log.Logger {
	l := log.NewLogfmtLogger(log.NewSyncWriter(w))
	if verbose {
		l = level.NewFilter(l, level.AllowDebug())
	} else {
		l = level.NewFilter(l, level.AllowInfo())
	}
	return log.With(l, "caller", log.DefaultCaller)
}

// stringSliceFlag allows multiple -I flags
type stringSliceFlag []string

func (s *stringSliceFlag) String() string {
	return strings.Join(*s, ",")
}

func (s *stringSliceFlag) Set(value string) error {
	*s = append(*s, value)
	return nil
}

// newFlagSet returns a flag set carrying the common -v flag.
func newFlagSet(name, usage string) (*flag.FlagSet, *bool) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	verbose := fs.Bool("v", false, "Enable debug logging")
	fs.Usage = func() {
		fmt.Fprintln(stderr, usage+"\n\nOptions:")
		fs.PrintDefaults()
	}
	return fs, verbose
}

func parseFlags(fs *flag.FlagSet, verbose *bool, args []string) bool {
	if err := fs.Parse(args); err != nil {
		return false
	}
	logger = newLogger(stderr, *verbose)
	return true
}

// messageFlags are the options shared by encode and decode.
type messageFlags struct {
	schema      *string
	message     *string
	delimited   *bool
	out         *string
	searchPaths stringSliceFlag
}

func addMessageFlags(fs *flag.FlagSet) *messageFlags {
	mf := &messageFlags{
		schema:    fs.String("schema", "", "Schema file (required)"),
		message:   fs.String("message", "", "Message name (required)"),
		delimited: fs.Bool("delimited", false, "Read or write length-prefixed messages"),
		out:       fs.String("o", "", "Output file (default: stdout)"),
	}
	fs.Var(&mf.searchPaths, "I", "Add import search path (can be repeated)")
	return mf
}

// serializer loads the schema and builds the message serializer.
func (mf *messageFlags) serializer() (*schema.Schema, serial.Serializer, error) {
	if *mf.schema == "" || *mf.message == "" {
		return nil, nil, errors.New("-schema and -message are required")
	}
	s, findings, err := schema.LoadAndValidate(*mf.schema, mf.searchPaths...)
	for _, w := range schema.Warnings(findings) {
		level.Warn(logger).Log("msg", "schema warning", "pos", w.Position, "warning", w.Message)
	}
	if err != nil {
		return nil, nil, err
	}
	ser, err := schema.Build(s, *mf.message)
	if err != nil {
		return nil, nil, err
	}
	level.Debug(logger).Log("msg", "built serializer", "schema", *mf.schema, "message", *mf.message)
	return s, ser, nil
}

func cmdEncode(args []string) int {
	fs, verbose := newFlagSet("encode", `Usage: protoserial encode -schema <file> -message <name> [options] <input.yaml>

Encode YAML records as protobuf messages.`)
	mf := addMessageFlags(fs)
	defaults := fs.Bool("defaults", false, "Encode fields holding their default value")
	if !parseFlags(fs, verbose, args) {
		return exitError
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(stderr, "Error: expected one input file")
		fs.Usage()
		return exitError
	}

	s, ser, err := mf.serializer()
	if err != nil {
		level.Error(logger).Log("msg", "loading schema failed", "err", err)
		return exitError
	}
	input, err := readInput(fs.Arg(0))
	if err != nil {
		level.Error(logger).Log("msg", "reading input failed", "err", err)
		return exitError
	}

	opts := protoserial.DefaultOptions
	opts.EncodeDefaults = *defaults
	format := protoserial.NewFormat(opts)

	var buf bytes.Buffer
	sw := protoserial.NewStreamWriterWithFormat(&buf, format)
	dec := yaml.NewDecoder(bytes.NewReader(input))
	count := 0
	for {
		var doc any
		if err := dec.Decode(&doc); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			level.Error(logger).Log("msg", "parsing YAML failed", "err", err)
			return exitError
		}
		if count > 0 && !*mf.delimited {
			level.Error(logger).Log("msg", "input holds more than one document; use -delimited")
			return exitError
		}
		rec, err := schema.Coerce(s, *mf.message, doc)
		if err != nil {
			level.Error(logger).Log("msg", "invalid record", "document", count, "err", err)
			return exitError
		}
		if *mf.delimited {
			err = sw.WriteDelimited(ser, rec)
		} else {
			var data []byte
			data, err = format.Encode(ser, rec)
			buf.Write(data)
		}
		if err != nil {
			level.Error(logger).Log("msg", "encoding failed", "document", count, "err", err)
			return exitError
		}
		count++
	}
	if count == 0 && !*mf.delimited {
		level.Error(logger).Log("msg", "input holds no document")
		return exitError
	}
	if err := sw.Flush(); err != nil {
		level.Error(logger).Log("msg", "encoding failed", "err", err)
		return exitError
	}

	level.Debug(logger).Log("msg", "encoded", "messages", count, "bytes", buf.Len())
	return writeOutput(*mf.out, buf.Bytes())
}

func cmdDecode(args []string) int {
	fs, verbose := newFlagSet("decode", `Usage: protoserial decode -schema <file> -message <name> [options] <input.bin>

Decode protobuf messages and print them as YAML.`)
	mf := addMessageFlags(fs)
	strict := fs.Bool("strict", false, "Reject strings that are not valid UTF-8")
	if !parseFlags(fs, verbose, args) {
		return exitError
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(stderr, "Error: expected one input file")
		fs.Usage()
		return exitError
	}

	_, ser, err := mf.serializer()
	if err != nil {
		level.Error(logger).Log("msg", "loading schema failed", "err", err)
		return exitError
	}
	input, err := readInput(fs.Arg(0))
	if err != nil {
		level.Error(logger).Log("msg", "reading input failed", "err", err)
		return exitError
	}

	opts := protoserial.DefaultOptions
	if *strict {
		opts.UTF8 = protoserial.UTF8Strict
	}
	format := protoserial.NewFormat(opts)

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	count := 0
	emit := func(v any) bool {
		if err := enc.Encode(schema.Plain(v)); err != nil {
			level.Error(logger).Log("msg", "writing YAML failed", "err", err)
			return false
		}
		count++
		return true
	}

	if *mf.delimited {
		it := protoserial.NewMessageIteratorWithFormat(bytes.NewReader(input), ser, format)
		for it.Next() {
			if !emit(it.Value()) {
				return exitError
			}
		}
		if err := it.Err(); err != nil {
			level.Error(logger).Log("msg", "decoding failed", "message", count, "err", err)
			return exitError
		}
	} else {
		v, err := format.Decode(ser, input)
		if err != nil {
			level.Error(logger).Log("msg", "decoding failed", "err", err)
			return exitError
		}
		if !emit(v) {
			return exitError
		}
	}
	if err := enc.Close(); err != nil {
		level.Error(logger).Log("msg", "writing YAML failed", "err", err)
		return exitError
	}

	level.Debug(logger).Log("msg", "decoded", "messages", count, "bytes", len(input))
	return writeOutput(*mf.out, buf.Bytes())
}

func cmdDump(args []string) int {
	fs, verbose := newFlagSet("dump", `Usage: protoserial dump [options] <input.bin>

Disassemble protobuf binary into protoscope text.`)
	out := fs.String("o", "", "Output file (default: stdout)")
	wireTypes := fs.Bool("explicit-wire-types", false, "Print the wire type of every field")
	noQuoted := fs.Bool("no-quoted-strings", false, "Print strings as raw bytes")
	if !parseFlags(fs, verbose, args) {
		return exitError
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(stderr, "Error: expected one input file")
		fs.Usage()
		return exitError
	}

	input, err := readInput(fs.Arg(0))
	if err != nil {
		level.Error(logger).Log("msg", "reading input failed", "err", err)
		return exitError
	}
	text := protoscope.Write(input, protoscope.WriterOptions{
		ExplicitWireTypes: *wireTypes,
		NoQuotedStrings:   *noQuoted,
	})
	return writeOutput(*out, []byte(text))
}

func cmdAssemble(args []string) int {
	fs, verbose := newFlagSet("assemble", `Usage: protoserial assemble [options] <input.txt>

Assemble protoscope text into protobuf binary.`)
	out := fs.String("o", "", "Output file (default: stdout)")
	if !parseFlags(fs, verbose, args) {
		return exitError
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(stderr, "Error: expected one input file")
		fs.Usage()
		return exitError
	}

	input, err := readInput(fs.Arg(0))
	if err != nil {
		level.Error(logger).Log("msg", "reading input failed", "err", err)
		return exitError
	}
	data, err := protoscope.NewScanner(string(input)).Exec()
	if err != nil {
		level.Error(logger).Log("msg", "assembling failed", "err", err)
		return exitError
	}
	return writeOutput(*out, data)
}

func cmdValidate(args []string) int {
	fs, verbose := newFlagSet("validate", `Usage: protoserial validate [options] <schema-file>...

Validate schema files. Exits with 2 when only warnings were found.`)
	var searchPaths stringSliceFlag
	fs.Var(&searchPaths, "I", "Add import search path (can be repeated)")
	if !parseFlags(fs, verbose, args) {
		return exitError
	}
	if fs.NArg() == 0 {
		fmt.Fprintln(stderr, "Error: no input files")
		fs.Usage()
		return exitError
	}

	hasErrors := false
	hasWarnings := false
	for _, inputFile := range fs.Args() {
		_, findings, err := schema.LoadAndValidate(inputFile, searchPaths...)
		if err != nil && len(findings) == 0 {
			fmt.Fprintln(stderr, err)
			hasErrors = true
			continue
		}
		for _, f := range findings {
			fmt.Fprintln(stderr, f)
			if f.Severity == schema.SeverityWarning {
				hasWarnings = true
			} else {
				hasErrors = true
			}
		}
		if len(findings) == 0 {
			fmt.Fprintf(stdout, "Valid: %s\n", inputFile)
		}
	}

	switch {
	case hasErrors:
		return exitError
	case hasWarnings:
		return exitWarning
	}
	return exitOK
}

func cmdGenerate(args []string) int {
	fs, verbose := newFlagSet("generate", `Usage: protoserial generate [options] <schema-file>...

Generate code from schema files.`)
	lang := fs.String("lang", "go", "Target language: go")
	outDir := fs.String("out", ".", "Output directory")
	pkg := fs.String("package", "", "Override package name")
	prefix := fs.String("prefix", "", "Add prefix to all type names")
	suffix := fs.String("suffix", "", "Add suffix to all type names")
	marshal := fs.Bool("marshal", true, "Generate MarshalProto/UnmarshalProto methods")
	jsonTags := fs.Bool("json", true, "Generate json struct tags")
	var searchPaths stringSliceFlag
	fs.Var(&searchPaths, "I", "Add import search path (can be repeated)")
	if !parseFlags(fs, verbose, args) {
		return exitError
	}
	if fs.NArg() == 0 {
		fmt.Fprintln(stderr, "Error: no input files")
		fs.Usage()
		return exitError
	}

	gen, ok := codegen.Get(codegen.Language(*lang))
	if !ok {
		level.Error(logger).Log("msg", "unsupported language", "lang", *lang, "supported", fmt.Sprint(codegen.Languages()))
		return exitError
	}

	opts := codegen.DefaultOptions()
	opts.Package = *pkg
	opts.TypePrefix = *prefix
	opts.TypeSuffix = *suffix
	opts.GenerateMarshal = *marshal
	opts.GenerateJSON = *jsonTags

	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		level.Error(logger).Log("msg", "creating output directory failed", "err", err)
		return exitError
	}

	loader := schema.NewLoader(searchPaths...)
	hasErrors := false
	for _, inputFile := range fs.Args() {
		s, err := loader.Load(inputFile)
		if err != nil {
			level.Error(logger).Log("msg", "loading schema failed", "err", err)
			hasErrors = true
			continue
		}

		var buf bytes.Buffer
		if err := gen.Generate(&buf, s, opts); err != nil {
			level.Error(logger).Log("msg", "generating code failed", "file", inputFile, "err", err)
			hasErrors = true
			continue
		}

		baseName := filepath.Base(inputFile)
		baseName = strings.TrimSuffix(baseName, filepath.Ext(baseName))
		outputFile := filepath.Join(*outDir, baseName+gen.FileExtension())
		if err := os.WriteFile(outputFile, buf.Bytes(), 0o644); err != nil {
			level.Error(logger).Log("msg", "writing output failed", "file", outputFile, "err", err)
			hasErrors = true
			continue
		}
		fmt.Fprintf(stdout, "Generated: %s\n", outputFile)
	}

	if hasErrors {
		return exitError
	}
	return exitOK
}

func cmdExtract(args []string) int {
	fs, verbose := newFlagSet("extract", `Usage: protoserial extract [options] <go-package>...

Extract a schema from Go source code.

Examples:
  protoserial extract ./...
  protoserial extract -out schema.yaml ./pkg/models
  protoserial extract -include "User*" -exclude "*Internal" ./...`)
	outFile := fs.String("out", "", "Output file (default: stdout)")
	pkg := fs.String("package", "", "Override package name")
	private := fs.Bool("private", false, "Include unexported types")
	dir := fs.String("C", "", "Resolve package patterns in this directory")
	tags := fs.String("tags", "", "Comma-separated build tags")
	var includePatterns stringSliceFlag
	fs.Var(&includePatterns, "include", "Type name pattern to include (glob, can be repeated)")
	var excludePatterns stringSliceFlag
	fs.Var(&excludePatterns, "exclude", "Type name pattern to exclude (glob, can be repeated)")
	if !parseFlags(fs, verbose, args) {
		return exitError
	}
	if fs.NArg() == 0 {
		fmt.Fprintln(stderr, "Error: no Go packages specified")
		fs.Usage()
		return exitError
	}

	cfg := &extract.ExtractorConfig{
		Config: &extract.Config{
			IncludePrivate:   *private,
			IncludePatterns:  includePatterns,
			ExcludePatterns:  excludePatterns,
			DetectInterfaces: true,
		},
		Patterns:   fs.Args(),
		OutputPath: *outFile,
		Package:    *pkg,
	}
	if *tags != "" {
		cfg.BuildTags = strings.Split(*tags, ",")
	}

	warnings, err := extract.NewExtractor(*dir).ExtractAndWrite(cfg, stdout)
	for _, w := range warnings {
		level.Warn(logger).Log("msg", "extraction warning", "warning", w)
	}
	if err != nil {
		level.Error(logger).Log("msg", "extracting schema failed", "err", err)
		return exitError
	}
	if *outFile != "" {
		fmt.Fprintf(stdout, "Extracted: %s\n", *outFile)
	}
	return exitOK
}

func cmdFormat(args []string) int {
	fs, verbose := newFlagSet("format", `Usage: protoserial format [options] <schema-file>...

Rewrite schema files in canonical YAML.`)
	write := fs.Bool("w", false, "Write result to (source) file instead of stdout")
	if !parseFlags(fs, verbose, args) {
		return exitError
	}
	if fs.NArg() == 0 {
		fmt.Fprintln(stderr, "Error: no input files")
		fs.Usage()
		return exitError
	}

	hasErrors := false
	for _, inputFile := range fs.Args() {
		content, err := os.ReadFile(inputFile)
		if err != nil {
			level.Error(logger).Log("msg", "reading schema failed", "file", inputFile, "err", err)
			hasErrors = true
			continue
		}
		s, err := schema.Parse(inputFile, content)
		if err != nil {
			level.Error(logger).Log("msg", "parsing schema failed", "err", err)
			hasErrors = true
			continue
		}
		formatted, err := schema.Format(s)
		if err != nil {
			level.Error(logger).Log("msg", "formatting schema failed", "file", inputFile, "err", err)
			hasErrors = true
			continue
		}

		if *write {
			if err := os.WriteFile(inputFile, []byte(formatted), 0o644); err != nil {
				level.Error(logger).Log("msg", "writing schema failed", "file", inputFile, "err", err)
				hasErrors = true
				continue
			}
			fmt.Fprintf(stdout, "Formatted: %s\n", inputFile)
		} else {
			fmt.Fprint(stdout, formatted)
		}
	}

	if hasErrors {
		return exitError
	}
	return exitOK
}

func cmdCompat(args []string) int {
	fs, verbose := newFlagSet("compat", `Usage: protoserial compat [options] <old-schema> <new-schema>

Report changes that break reading old data with the new schema or new data
with the old one.`)
	var searchPaths stringSliceFlag
	fs.Var(&searchPaths, "I", "Add import search path (can be repeated)")
	if !parseFlags(fs, verbose, args) {
		return exitError
	}
	if fs.NArg() != 2 {
		fmt.Fprintln(stderr, "Error: expected an old and a new schema file")
		fs.Usage()
		return exitError
	}

	oldSchema, err := schema.NewLoader(searchPaths...).Load(fs.Arg(0))
	if err != nil {
		level.Error(logger).Log("msg", "loading schema failed", "err", err)
		return exitError
	}
	newSchema, err := schema.NewLoader(searchPaths...).Load(fs.Arg(1))
	if err != nil {
		level.Error(logger).Log("msg", "loading schema failed", "err", err)
		return exitError
	}

	report := schema.CheckCompatibility(oldSchema, newSchema)
	for _, w := range report.Warnings {
		fmt.Fprintf(stdout, "warning: %s\n", w)
	}
	for _, b := range report.Breaking {
		fmt.Fprintf(stdout, "breaking: %s\n", b)
	}
	if !report.IsCompatible() {
		return exitError
	}
	fmt.Fprintln(stdout, "Compatible")
	return exitOK
}

func cmdDescriptor(args []string) int {
	fs, verbose := newFlagSet("descriptor", `Usage: protoserial descriptor [options] <schema-file>

Write the protobuf FileDescriptorSet of a schema.`)
	output := fs.String("o", "", "Output file (default: stdout)")
	asJSON := fs.Bool("json", false, "Write protojson instead of binary")
	var searchPaths stringSliceFlag
	fs.Var(&searchPaths, "I", "Add import search path (can be repeated)")
	if !parseFlags(fs, verbose, args) {
		return exitError
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(stderr, "Error: expected one schema file")
		fs.Usage()
		return exitError
	}

	s, err := schema.NewLoader(searchPaths...).Load(fs.Arg(0))
	if err != nil {
		level.Error(logger).Log("msg", "loading schema failed", "err", err)
		return exitError
	}
	fdp, err := schema.FileDescriptorProto(s)
	if err != nil {
		level.Error(logger).Log("msg", "describing schema failed", "err", err)
		return exitError
	}
	set := &descriptorpb.FileDescriptorSet{File: []*descriptorpb.FileDescriptorProto{fdp}}

	var data []byte
	if *asJSON {
		data, err = protojson.MarshalOptions{Multiline: true}.Marshal(set)
		data = append(data, '\n')
	} else {
		data, err = proto.MarshalOptions{Deterministic: true}.Marshal(set)
	}
	if err != nil {
		level.Error(logger).Log("msg", "encoding descriptor failed", "err", err)
		return exitError
	}
	level.Debug(logger).Log("msg", "described schema", "file", fdp.GetName(), "messages", len(fdp.GetMessageType()))
	return writeOutput(*output, data)
}

func readInput(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(stdin)
	}
	return os.ReadFile(path)
}

func writeOutput(path string, data []byte) int {
	var err error
	if path == "" {
		_, err = stdout.Write(data)
	} else {
		err = os.WriteFile(path, data, 0o644)
	}
	if err != nil {
		level.Error(logger).Log("msg", "writing output failed", "err", err)
		return exitError
	}
	return exitOK
}
