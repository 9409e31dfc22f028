package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Sumatoshi-tech/rbmap/pkg/rbtree"
)

// Tool name constants.
const (
	ToolNameInsert = "rbmap_insert"
	ToolNameErase  = "rbmap_erase"
	ToolNameFind   = "rbmap_find"
	ToolNameList   = "rbmap_list"
	ToolNameCheck  = "rbmap_check"
	ToolNameClear  = "rbmap_clear"
)

// Input size limits.
const (
	// MaxValuesPerCall bounds the values accepted by one insert or erase call.
	MaxValuesPerCall = 10000

	// defaultListLimit is used when rbmap_list gets no limit.
	defaultListLimit = 1000
)

// Sentinel errors for tool input validation.
var (
	// ErrEmptyValues indicates the values parameter is empty.
	ErrEmptyValues = errors.New("values parameter is required and must not be empty")
	// ErrTooManyValues indicates the values parameter exceeds MaxValuesPerCall.
	ErrTooManyValues = errors.New("too many values")
	// ErrNegativeLimit indicates a negative list limit.
	ErrNegativeLimit = errors.New("limit must not be negative")
)

// Input types (auto-generate JSON schemas via struct tags).

// ValuesInput is the input schema for rbmap_insert and rbmap_erase.
type ValuesInput struct {
	Values []int `json:"values" jsonschema:"integers to insert or erase, applied in order"`
}

// FindInput is the input schema for rbmap_find.
type FindInput struct {
	Value int `json:"value" jsonschema:"integer to look up"`
}

// ListInput is the input schema for rbmap_list.
type ListInput struct {
	From  *int `json:"from,omitempty"  jsonschema:"optional first value to list; listing starts at the smallest value not below it"`
	Limit int  `json:"limit,omitempty" jsonschema:"maximum number of values to return (default: 1000)"`
}

// EmptyInput is the input schema for tools without parameters.
type EmptyInput struct{}

// Output payloads.

// InsertOutput reports which values were new.
type InsertOutput struct {
	Inserted   []int `json:"inserted"`
	Duplicates []int `json:"duplicates"`
	Len        int   `json:"len"`
}

// EraseOutput reports which values were removed.
type EraseOutput struct {
	Erased  []int `json:"erased"`
	Missing []int `json:"missing"`
	Len     int   `json:"len"`
}

// FindOutput reports a lookup and the next larger value, if any.
type FindOutput struct {
	Found bool `json:"found"`
	Next  *int `json:"next,omitempty"`
}

// ListOutput is one page of the ascending listing.
type ListOutput struct {
	Values    []int `json:"values"`
	Len       int   `json:"len"`
	Truncated bool  `json:"truncated"`
}

// CheckOutput reports the invariant check and the tree shape.
type CheckOutput struct {
	Valid bool         `json:"valid"`
	Error string       `json:"error,omitempty"`
	Stats rbtree.Stats `json:"stats"`
}

// Output type (used as structured output for generic AddTool).

// ToolOutput is a generic wrapper for tool results.
type ToolOutput struct {
	Data any `json:"data"`
}

func (s *Server) handleInsert(_ context.Context, _ *mcpsdk.CallToolRequest, input ValuesInput) (*mcpsdk.CallToolResult, ToolOutput, error) {
	err := validateValues(input.Values)
	if err != nil {
		return errorResult(err)
	}

	out := InsertOutput{Inserted: []int{}, Duplicates: []int{}}

	s.withTree(func(tree *rbtree.Tree[int]) {
		for _, value := range input.Values {
			var inserted bool

			inserted, err = tree.Insert(value)
			if err != nil {
				break
			}

			if inserted {
				out.Inserted = append(out.Inserted, value)
			} else {
				out.Duplicates = append(out.Duplicates, value)
			}
		}

		out.Len = tree.Len()
	})

	if err != nil {
		return errorResult(fmt.Errorf("inserted %d of %d values: %w", len(out.Inserted)+len(out.Duplicates), len(input.Values), err))
	}

	return jsonResult(out)
}

func (s *Server) handleErase(_ context.Context, _ *mcpsdk.CallToolRequest, input ValuesInput) (*mcpsdk.CallToolResult, ToolOutput, error) {
	err := validateValues(input.Values)
	if err != nil {
		return errorResult(err)
	}

	out := EraseOutput{Erased: []int{}, Missing: []int{}}

	s.withTree(func(tree *rbtree.Tree[int]) {
		for _, value := range input.Values {
			if tree.Erase(value) != nil {
				out.Missing = append(out.Missing, value)
			} else {
				out.Erased = append(out.Erased, value)
			}
		}

		out.Len = tree.Len()
	})

	return jsonResult(out)
}

func (s *Server) handleFind(_ context.Context, _ *mcpsdk.CallToolRequest, input FindInput) (*mcpsdk.CallToolResult, ToolOutput, error) {
	var out FindOutput

	s.withTree(func(tree *rbtree.Tree[int]) {
		iter := tree.Find(input.Value)
		out.Found = !iter.IsEnd()

		if !out.Found {
			return
		}

		next, err := iter.Next()
		if err != nil {
			return
		}

		if value, err := next.Value(); err == nil {
			out.Next = &value
		}
	})

	return jsonResult(out)
}

func (s *Server) handleList(_ context.Context, _ *mcpsdk.CallToolRequest, input ListInput) (*mcpsdk.CallToolResult, ToolOutput, error) {
	if input.Limit < 0 {
		return errorResult(fmt.Errorf("%w: %d", ErrNegativeLimit, input.Limit))
	}

	limit := input.Limit
	if limit == 0 {
		limit = defaultListLimit
	}

	out := ListOutput{Values: []int{}}

	s.withTree(func(tree *rbtree.Tree[int]) {
		out.Len = tree.Len()

		for value := range tree.All() {
			if input.From != nil && value < *input.From {
				continue
			}

			if len(out.Values) == limit {
				out.Truncated = true

				break
			}

			out.Values = append(out.Values, value)
		}
	})

	return jsonResult(out)
}

func (s *Server) handleCheck(_ context.Context, _ *mcpsdk.CallToolRequest, _ EmptyInput) (*mcpsdk.CallToolResult, ToolOutput, error) {
	var out CheckOutput

	s.withTree(func(tree *rbtree.Tree[int]) {
		out.Valid = true
		out.Stats = tree.Stats()

		if err := tree.Validate(); err != nil {
			out.Valid = false
			out.Error = err.Error()
		}
	})

	return jsonResult(out)
}

func (s *Server) handleClear(_ context.Context, _ *mcpsdk.CallToolRequest, _ EmptyInput) (*mcpsdk.CallToolResult, ToolOutput, error) {
	var cleared int

	s.withTree(func(tree *rbtree.Tree[int]) {
		cleared = tree.Len()
		tree.Clear()
	})

	return jsonResult(map[string]int{"cleared": cleared})
}

// Result helpers.

// errorResult builds a CallToolResult with isError set.
func errorResult(err error) (*mcpsdk.CallToolResult, ToolOutput, error) {
	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{
			&mcpsdk.TextContent{Text: err.Error()},
		},
		IsError: true,
	}, ToolOutput{}, nil
}

// jsonResult builds a CallToolResult with JSON-encoded content.
func jsonResult(value any) (*mcpsdk.CallToolResult, ToolOutput, error) {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return errorResult(fmt.Errorf("encode result: %w", err))
	}

	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{
			&mcpsdk.TextContent{Text: string(data)},
		},
	}, ToolOutput{Data: value}, nil
}

func validateValues(values []int) error {
	if len(values) == 0 {
		return ErrEmptyValues
	}

	if len(values) > MaxValuesPerCall {
		return fmt.Errorf("%w: %d (max %d)", ErrTooManyValues, len(values), MaxValuesPerCall)
	}

	return nil
}

// Tool description constants.
const (
	insertToolDescription = "Insert integers into the session's ordered set. " +
		"Reports which values were new and which were already present."

	eraseToolDescription = "Erase integers from the session's ordered set. " +
		"Values that are not present are reported as missing."

	findToolDescription = "Look up an integer. When present, also returns the next larger value."

	listToolDescription = "List the set in ascending order, optionally starting at a value, up to a limit."

	checkToolDescription = "Verify the red-black invariants of the session tree and report its shape " +
		"(size, height, black height, rotations, arena usage)."

	clearToolDescription = "Remove every value from the session's ordered set."
)
