package builtin

import (
	"context"
	"math"
	"strconv"
	"strings"

	"github.com/effective-security/mcpagent/tools"
	"github.com/google/uuid"
)

// MaxUUIDs is the upper bound of uuid_generate count
const MaxUUIDs = 10

// UUIDInput is the input of uuid_generate.
// Count is coerced from a number or a numeric string.
type UUIDInput struct {
	Count any `json:"count,omitempty" jsonschema:"type=integer,minimum=1,maximum=10,default=1"`
}

// UUIDResult is the output of uuid_generate
type UUIDResult struct {
	Version int      `json:"version"`
	Count   int      `json:"count"`
	UUIDs   []string `json:"uuids"`
}

// UUIDGenerate returns the uuid_generate tool
func UUIDGenerate() *tools.Func[UUIDInput, UUIDResult] {
	return tools.MustFunc(UUIDName,
		"Generate UUIDv4 values (1-10).",
		func(_ context.Context, in *UUIDInput) (*UUIDResult, error) {
			n := clampCount(in.Count)
			res := &UUIDResult{Version: 4, Count: n, UUIDs: make([]string, 0, n)}
			for range n {
				res.UUIDs = append(res.UUIDs, uuid.NewString())
			}
			return res, nil
		})
}

func clampCount(v any) int {
	n := 1
	switch c := v.(type) {
	case float64:
		if !math.IsNaN(c) {
			n = int(math.Max(math.Min(c, MaxUUIDs), 1))
		}
	case int:
		n = c
	case int64:
		n = int(c)
	case string:
		if i, err := strconv.Atoi(strings.TrimSpace(c)); err == nil {
			n = i
		}
	}
	return max(1, min(n, MaxUUIDs))
}
