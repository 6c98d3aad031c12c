package tool

import (
	"context"
	"time"

	"github.com/dispatchd/dispatch/fault"
)

// ClockTool reports the current time in a handful of formats.
type ClockTool struct {
	// Now is stubbed in tests; defaults to time.Now.
	Now func() time.Time
}

func (t *ClockTool) Definition() Def {
	return Def{
		Name:        "clock",
		Description: "Current date and time",
		Params: []Param{
			{Name: "format", Kind: KindString, Description: "One of iso, unix, date, time (default iso)"},
		},
	}
}

func (t *ClockTool) Execute(_ context.Context, args map[string]any) (any, error) {
	now := time.Now
	if t.Now != nil {
		now = t.Now
	}
	ts := now().UTC()

	format, _ := args["format"].(string)
	switch format {
	case "", "iso":
		return map[string]any{"value": ts.Format(time.RFC3339), "format": "iso"}, nil
	case "unix":
		return map[string]any{"value": ts.Unix(), "format": "unix"}, nil
	case "date":
		return map[string]any{"value": ts.Format("2006-01-02"), "format": "date"}, nil
	case "time":
		return map[string]any{"value": ts.Format("15:04:05"), "format": "time"}, nil
	default:
		return nil, fault.Validation("unknown time format %q", format)
	}
}
