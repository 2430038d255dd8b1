package builtin

import (
	"context"
	"strings"
	"time"
	_ "time/tzdata" // zones for hosts without zoneinfo

	"github.com/effective-security/mcpagent/tools"
)

// CurrentTimeInput is the input of current_time
type CurrentTimeInput struct {
	Timezone string `json:"timezone,omitempty" jsonschema:"description=IANA timezone, e.g. America/Chicago"`
}

// CurrentTimeResult is the output of current_time
type CurrentTimeResult struct {
	Timezone string `json:"timezone"`
	ISO      string `json:"iso"`
	Date     string `json:"date"`
	Time     string `json:"time"`
	Weekday  string `json:"weekday"`
}

const isoMicros = "2006-01-02T15:04:05.000000-07:00"

// Clock returns current time, replaced in tests
var Clock = time.Now

// CurrentTime returns the current_time tool
func CurrentTime() *tools.Func[CurrentTimeInput, CurrentTimeResult] {
	return tools.MustFunc(CurrentTimeName,
		"Get current date/time in a timezone (IANA tz, e.g., America/Chicago).",
		func(_ context.Context, in *CurrentTimeInput) (*CurrentTimeResult, error) {
			name := strings.TrimSpace(in.Timezone)
			loc, err := time.LoadLocation(name)
			if name == "" || err != nil {
				name, loc = "UTC", time.UTC
			}
			now := Clock().In(loc)
			return &CurrentTimeResult{
				Timezone: name,
				ISO:      now.Format(isoMicros),
				Date:     now.Format(time.DateOnly),
				Time:     now.Format(time.TimeOnly),
				Weekday:  now.Weekday().String(),
			}, nil
		})
}
