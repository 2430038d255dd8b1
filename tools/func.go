package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/mcpagent/chatmodel"
	"github.com/effective-security/mcpagent/encoding"
	"github.com/effective-security/mcpagent/pkg/schema"
	"github.com/effective-security/xlog"
)

// RunFunc is the typed implementation of a tool
type RunFunc[I any, O any] func(context.Context, *I) (*O, error)

// Func adapts RunFunc to ITool.
// The input schema is reflected from I, the output is
// O.String() when O implements fmt.Stringer, JSON otherwise.
type Func[I any, O any] struct {
	name        string
	description string
	schema      *schema.Schema
	parser      *encoding.TypedOutputParser[I]
	run         RunFunc[I, O]
}

var _ ITool = (*Func[struct{}, struct{}])(nil)

// NewFunc returns tool
func NewFunc[I any, O any](name, description string, run RunFunc[I, O]) (*Func[I, O], error) {
	var in I
	sc, err := schema.Of[I]()
	if err != nil {
		return nil, errors.WithMessagef(err, "failed to create schema for %s", name)
	}
	parser, err := encoding.NewTypedOutputParser(in, encoding.ModeJSON)
	if err != nil {
		return nil, err
	}
	return &Func[I, O]{
		name:        name,
		description: description,
		schema:      sc,
		parser:      parser.WithValidation(true),
		run:         run,
	}, nil
}

// MustFunc returns tool, or panics when the input type has no schema
func MustFunc[I any, O any](name, description string, run RunFunc[I, O]) *Func[I, O] {
	f, err := NewFunc(name, description, run)
	if err != nil {
		panic(err)
	}
	return f
}

func (f *Func[I, O]) Name() string {
	return f.name
}

func (f *Func[I, O]) Description() string {
	return f.description
}

func (f *Func[I, O]) Parameters() any {
	return f.schema.Parameters
}

func (f *Func[I, O]) Run(ctx context.Context, in *I) (*O, error) {
	return f.run(ctx, in)
}

func (f *Func[I, O]) Call(ctx context.Context, input string) (string, error) {
	if strings.TrimSpace(input) == "" {
		input = "{}"
	}
	in, err := f.parser.Parse(input)
	if err != nil {
		logger.ContextKV(ctx, xlog.DEBUG, "tool", f.name, "input", input, "err", err.Error())
		return "", errors.WithStack(chatmodel.ErrFailedUnmarshalInput)
	}
	out, err := f.run(ctx, in)
	if err != nil {
		return "", err
	}
	return Stringify(out)
}

// Stringify returns v.String() for fmt.Stringer, or JSON
func Stringify(v any) (string, error) {
	if s, ok := v.(fmt.Stringer); ok {
		return s.String(), nil
	}
	if s, ok := v.(string); ok {
		return s, nil
	}
	js, err := json.Marshal(v)
	if err != nil {
		return "", errors.Wrap(err, "failed to marshal output")
	}
	return string(js), nil
}
