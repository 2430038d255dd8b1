package encoding

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/mcpagent/chatmodel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testStruct struct {
	Field1 string `json:"field1" yaml:"field1" validate:"required"`
	Field2 int    `json:"field2" yaml:"field2"`
}

func TestNewTypedOutputParser_OK(t *testing.T) {
	t.Parallel()
	parser, err := NewTypedOutputParser(testStruct{}, ModeJSON)
	require.NoError(t, err)
	require.NotNil(t, parser)
	assert.NotEmpty(t, parser.GetFormatInstructions())
	assert.Contains(t, parser.Type(), "testStruct")

	_, err = NewTypedOutputParser(testStruct{}, "toml")
	assert.EqualError(t, err, "failed to create encoder: no predefined encoder")
}

func TestTypedOutputParser_Parse(t *testing.T) {
	t.Parallel()
	parser, err := NewTypedOutputParser(testStruct{}, ModeJSON)
	require.NoError(t, err)

	result, err := parser.Parse(`{"field1": "foo", "field2": 42}`)
	require.NoError(t, err)
	assert.Equal(t, "foo", result.Field1)
	assert.Equal(t, 42, result.Field2)

	// surrounding text and backticks are trimmed
	result, err = parser.Parse("Sure:\n```json\n{\"field1\": \"bar\", \"field2\": 7}\n```")
	require.NoError(t, err)
	assert.Equal(t, "bar", result.Field1)
	assert.Equal(t, 7, result.Field2)

	_, err = parser.Parse("{bad json}")
	require.Error(t, err)
	assert.True(t, errors.Is(err, chatmodel.ErrFailedUnmarshalOutput))
}

func TestTypedOutputParser_WithValidation(t *testing.T) {
	t.Parallel()
	parser, err := NewTypedOutputParser(testStruct{}, ModeJSON)
	require.NoError(t, err)

	val, err := parser.Parse(`{"field2": 1}`)
	require.NoError(t, err)
	assert.Equal(t, 1, val.Field2)

	_, err = parser.WithValidation(true).Parse(`{"field2": 1}`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to validate")
}

func TestTypedOutputParser_YAML(t *testing.T) {
	t.Parallel()
	parser, err := NewTypedOutputParser(testStruct{}, ModeYAML)
	require.NoError(t, err)

	val, err := parser.Parse("```yaml\nfield1: foo\nfield2: 3\n```")
	require.NoError(t, err)
	assert.Equal(t, "foo", val.Field1)
	assert.Equal(t, 3, val.Field2)
}
