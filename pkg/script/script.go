// Package script reads operation scripts (YAML or JSON) and replays them
// against a tree of integers.
package script

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

// Sentinel errors.
var (
	// ErrInvalidScript is returned when a document is not a valid script.
	ErrInvalidScript = errors.New("invalid script")
	// ErrUnknownOp is returned for an operation name outside the supported set.
	ErrUnknownOp = errors.New("unknown operation")
)

// SchemaJSON is the JSON Schema every strict script must satisfy.
//
//go:embed schema.json
var SchemaJSON []byte

// Op names a tree operation.
type Op string

// Supported operations.
const (
	OpInsert Op = "insert"
	OpErase  Op = "erase"
	OpFind   Op = "find"
	OpClear  Op = "clear"
)

// Step is one operation of a script.
type Step struct {
	Op    Op  `json:"op"              yaml:"op"`
	Value int `json:"value,omitempty" yaml:"value,omitempty"`
}

// String renders the step the way it is logged.
func (s Step) String() string {
	if s.Op == OpClear {
		return string(s.Op)
	}

	return fmt.Sprintf("%s %d", s.Op, s.Value)
}

// Script is an ordered list of operations.
type Script struct {
	Name string `json:"name,omitempty" yaml:"name,omitempty"`
	Ops  []Step `json:"ops"            yaml:"ops"`
}

// Parse decodes a YAML or JSON script. Strict parsing validates the
// document against SchemaJSON first and reports every violation.
func Parse(data []byte, strict bool) (*Script, error) {
	var doc any

	err := yaml.Unmarshal(data, &doc)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidScript, err)
	}

	if doc == nil {
		return nil, fmt.Errorf("%w: empty document", ErrInvalidScript)
	}

	if strict {
		err = validate(doc)
		if err != nil {
			return nil, err
		}
	}

	var script Script

	err = yaml.Unmarshal(data, &script)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidScript, err)
	}

	for idx, step := range script.Ops {
		switch step.Op {
		case OpInsert, OpErase, OpFind, OpClear:
		default:
			return nil, fmt.Errorf("%w: step %d: %w %q", ErrInvalidScript, idx, ErrUnknownOp, step.Op)
		}
	}

	return &script, nil
}

// ParseFile reads and parses the script at path.
func ParseFile(path string, strict bool) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read script: %w", err)
	}

	script, err := Parse(data, strict)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	if script.Name == "" {
		script.Name = path
	}

	return script, nil
}

func validate(doc any) error {
	result, err := gojsonschema.Validate(gojsonschema.NewBytesLoader(SchemaJSON), gojsonschema.NewGoLoader(doc))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidScript, err)
	}

	if result.Valid() {
		return nil
	}

	messages := make([]string, 0, len(result.Errors()))
	for _, verr := range result.Errors() {
		messages = append(messages, verr.String())
	}

	return fmt.Errorf("%w: %s", ErrInvalidScript, strings.Join(messages, "; "))
}
