package encoding

import (
	"github.com/cockroachdb/errors"
	jsonenc "github.com/effective-security/mcpagent/encoding/json"
	yamlenc "github.com/effective-security/mcpagent/encoding/yaml"
)

type SchemaEncoder interface {
	Marshal(req any) ([]byte, error)
	Unmarshal([]byte, any) error
	// GetFormatInstructions returns the wrapped message with message schema for the prompt
	GetFormatInstructions() string
}

type Validator interface {
	Validate(any) error
}

type Mode = string

const (
	ModeJSON Mode = "json"
	ModeYAML Mode = "yaml"
)

// ModeDefault is the default mode for the encoder.
// Allow to override in apps
var ModeDefault = ModeJSON

// ParseMode returns the mode by name, empty name returns ModeDefault
func ParseMode(name string) (Mode, error) {
	switch name {
	case "":
		return ModeDefault, nil
	case ModeJSON, ModeYAML:
		return name, nil
	}
	return "", errors.Newf("unsupported output format: %q", name)
}

func PredefinedSchemaEncoder(mode Mode, req any) (SchemaEncoder, error) {
	var (
		enc SchemaEncoder
		err error
	)
	switch mode {
	case ModeJSON:
		enc, err = jsonenc.NewEncoder(req)
	case ModeYAML:
		enc = yamlenc.NewEncoder(req)
	default:
		return nil, errors.New("no predefined encoder")
	}
	return enc, err
}

var (
	_ SchemaEncoder = (*jsonenc.Encoder)(nil)
	_ SchemaEncoder = (*yamlenc.Encoder)(nil)
	_ Validator     = (*jsonenc.Encoder)(nil)
	_ Validator     = (*yamlenc.Encoder)(nil)
)
