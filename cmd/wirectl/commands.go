package main

import (
	"bytes"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/goccy/go-json"

	"github.com/danmuck/msgwire/internal/codec"
	"github.com/danmuck/msgwire/internal/config"
	"github.com/danmuck/msgwire/internal/protocol"
	"github.com/danmuck/msgwire/internal/protocol/frame"
	"github.com/danmuck/msgwire/internal/protocol/mapping"
	"github.com/danmuck/msgwire/internal/protocol/schema"
	"github.com/danmuck/msgwire/internal/protocol/wire"
	"github.com/danmuck/msgwire/internal/schemafile"
)

// errInvalid reports a document that failed validation; the issues have
// already been printed.
var errInvalid = errors.New("invalid message")

type stringList []string

func (l *stringList) String() string {
	return strings.Join(*l, ",")
}

func (l *stringList) Set(v string) error {
	*l = append(*l, v)
	return nil
}

type env struct {
	cfg    config.Config
	codec  *codec.Codec
	stdout io.Writer
}

func run(args []string, stdout io.Writer) error {
	global := flag.NewFlagSet("wirectl", flag.ContinueOnError)
	global.SetOutput(io.Discard)
	configPath := global.String("config", "", "config file (toml)")
	var schemaFiles stringList
	global.Var(&schemaFiles, "schema", "schema file (toml|yaml), repeatable")
	if err := global.Parse(args); err != nil {
		printUsage(stdout)
		return err
	}
	rest := global.Args()
	if len(rest) == 0 {
		printUsage(stdout)
		return errors.New("missing command")
	}
	cmd, cmdArgs := rest[0], rest[1:]
	if cmd == "init" {
		return runInit(cmdArgs, stdout)
	}

	e, err := setup(*configPath, schemaFiles, stdout)
	if err != nil {
		return err
	}
	switch cmd {
	case "schemas":
		return e.schemas()
	case "validate":
		return e.validate(cmdArgs)
	case "encode":
		return e.encode(cmdArgs)
	case "decode":
		return e.decode(cmdArgs)
	case "inspect":
		return e.inspect(cmdArgs)
	default:
		printUsage(stdout)
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func setup(configPath string, schemaFiles []string, stdout io.Writer) (*env, error) {
	cfg := config.Default()
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	limits := cfg.DecodeLimits()
	c := codec.New(codec.Options{Limits: &limits})
	paths := append(append([]string(nil), cfg.Schemas...), schemaFiles...)
	if len(paths) > 0 {
		if _, err := schemafile.LoadInto(c.Registry(), paths...); err != nil {
			return nil, err
		}
	}
	c.Freeze()
	return &env{cfg: cfg, codec: c, stdout: stdout}, nil
}

func (e *env) schemas() error {
	for _, name := range e.codec.Schemas() {
		s, err := e.codec.Schema(name)
		if err != nil {
			return err
		}
		fmt.Fprintf(e.stdout, "%s\n", name)
		for _, f := range s.Fields() {
			fmt.Fprintf(e.stdout, "  %-3d %-12s %s %s\n", f.Number, f.Name, f.Cardinality, f.TypeName())
		}
	}
	return nil
}

func (e *env) validate(args []string) error {
	fs := flag.NewFlagSet("validate", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	typeName := fs.String("type", "", "schema name")
	in := fs.String("in", "", "input document (.json|.yaml|.yml)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	s, err := e.schema(*typeName)
	if err != nil {
		return err
	}
	m, err := readDocument(s, *in)
	if err != nil {
		return err
	}
	issues, err := e.codec.Validate(s.Name(), m)
	if err != nil {
		return err
	}
	if len(issues) == 0 {
		fmt.Fprintln(e.stdout, "valid")
		return nil
	}
	printIssues(e.stdout, issues)
	return errInvalid
}

func (e *env) encode(args []string) error {
	fs := flag.NewFlagSet("encode", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	typeName := fs.String("type", "", "schema name")
	in := fs.String("in", "", "input document (.json|.yaml|.yml)")
	out := fs.String("out", "", "output file (stdout when empty)")
	delimited := fs.Bool("delimited", false, "input is a JSON array; write length-prefixed records")
	if err := fs.Parse(args); err != nil {
		return err
	}
	s, err := e.schema(*typeName)
	if err != nil {
		return err
	}

	var messages []protocol.Message
	if *delimited {
		messages, err = readRecords(s, *in)
	} else {
		var m protocol.Message
		m, err = readDocument(s, *in)
		messages = []protocol.Message{m}
	}
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	for i, m := range messages {
		b, err := e.codec.Encode(s.Name(), m)
		if err != nil {
			if issues, ok := protocol.AsValidationErrors(err); ok {
				fmt.Fprintf(e.stdout, "record %d:\n", i)
				printIssues(e.stdout, issues)
				return errInvalid
			}
			return err
		}
		if *delimited {
			if err := frame.WriteDelimited(&buf, b, e.cfg.FrameLimits()); err != nil {
				return err
			}
			continue
		}
		buf.Write(b)
	}
	return writeOutput(*out, buf.Bytes(), e.stdout)
}

func (e *env) decode(args []string) error {
	fs := flag.NewFlagSet("decode", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	typeName := fs.String("type", "", "schema name")
	in := fs.String("in", "", "encoded input file")
	format := fs.String("format", "json", "output format: json|text")
	delimited := fs.Bool("delimited", false, "input holds length-prefixed records")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *format != "json" && *format != "text" {
		return fmt.Errorf("unknown format %q", *format)
	}
	s, err := e.schema(*typeName)
	if err != nil {
		return err
	}
	data, err := readInput(*in)
	if err != nil {
		return err
	}
	records := [][]byte{data}
	if *delimited {
		records, err = frame.NewReader(bytes.NewReader(data), e.cfg.FrameLimits()).ReadAll()
		if err != nil {
			return err
		}
	}
	for i, rec := range records {
		m, err := e.codec.Decode(s.Name(), rec)
		if err != nil {
			return fmt.Errorf("record %d: %w", i, err)
		}
		if *format == "text" {
			if *delimited {
				fmt.Fprintf(e.stdout, "# record %d\n", i)
			}
			fmt.Fprint(e.stdout, protocol.Format(s, m))
			continue
		}
		out, err := mapping.ToJSONIndent(s, m)
		if err != nil {
			return err
		}
		fmt.Fprintf(e.stdout, "%s\n", out)
	}
	return nil
}

func (e *env) inspect(args []string) error {
	fs := flag.NewFlagSet("inspect", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	in := fs.String("in", "", "encoded input file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	data, err := readInput(*in)
	if err != nil {
		return err
	}
	fields, err := wire.ParseFields(data)
	if err != nil {
		return err
	}
	for _, f := range fields {
		fmt.Fprintf(e.stdout, "#%d %s %s\n", f.Number, wire.TypeName(f.Type), describeField(f))
	}
	return nil
}

func describeField(f wire.Field) string {
	switch f.Type {
	case wire.TypeVarint:
		v, err := f.Varint()
		if err != nil {
			return err.Error()
		}
		return fmt.Sprintf("%d (signed %d)", v, int64(v))
	case wire.TypeBytes:
		return fmt.Sprintf("len=%d %s", len(f.Value), strconv.Quote(string(f.Value)))
	default:
		return fmt.Sprintf("% x", f.Value)
	}
}

func runInit(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	kind := fs.String("kind", "config", "template kind: config|schema")
	out := fs.String("out", "", "output path")
	force := fs.Bool("force", false, "overwrite an existing file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *out == "" {
		return errors.New("init: -out is required")
	}
	if err := config.WriteTemplate(*out, *kind, *force); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "wrote %s template to %s\n", *kind, *out)
	return nil
}

func (e *env) schema(name string) (*schema.Schema, error) {
	if name == "" {
		return nil, errors.New("-type is required")
	}
	return e.codec.Schema(name)
}

func printIssues(w io.Writer, issues protocol.ValidationErrors) {
	for _, issue := range issues {
		fmt.Fprintf(w, "  %s\n", issue.Error())
	}
}

func readInput(path string) ([]byte, error) {
	if path == "" || path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}

func writeOutput(path string, data []byte, stdout io.Writer) error {
	if path == "" || path == "-" {
		_, err := stdout.Write(data)
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

func readDocument(s *schema.Schema, path string) (protocol.Message, error) {
	data, err := readInput(path)
	if err != nil {
		return nil, err
	}
	if isYAML(path) {
		return mapping.FromYAML(s, data)
	}
	return mapping.FromJSON(s, data)
}

func readRecords(s *schema.Schema, path string) ([]protocol.Message, error) {
	data, err := readInput(path)
	if err != nil {
		return nil, err
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("delimited input must be a JSON array: %w", err)
	}
	out := make([]protocol.Message, 0, len(raw))
	for i, item := range raw {
		m, err := mapping.FromJSON(s, item)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		out = append(out, m)
	}
	return out, nil
}
