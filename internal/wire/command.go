package wire

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/sweeney/sandglass/internal/cycle"
)

// ParseCommand builds a control command from an event name and its payload.
// The init payload may be a number or a numeric string; anything else
// yields NaN, which the timer rejects.
func ParseCommand(name string, data json.RawMessage) (cycle.Command, error) {
	cmd := cycle.Command{Name: cycle.CommandName(name)}
	switch cmd.Name {
	case cycle.CommandStart, cycle.CommandStop, cycle.CommandPause:
		return cmd, nil
	case cycle.CommandInit:
		cmd.Value = parseSeconds(data)
		return cmd, nil
	}
	return cycle.Command{}, fmt.Errorf("%w: %q", cycle.ErrUnknownCommand, name)
}

// DecodeCommand parses a JSON envelope into a control command.
func DecodeCommand(payload []byte) (cycle.Command, error) {
	var m Message
	if err := json.Unmarshal(payload, &m); err != nil {
		return cycle.Command{}, fmt.Errorf("decode command: %w", err)
	}
	return ParseCommand(m.Event, m.Data)
}

func parseSeconds(data json.RawMessage) float64 {
	if len(data) == 0 {
		return math.NaN()
	}
	var v interface{}
	if err := json.Unmarshal(data, &v); err != nil {
		return math.NaN()
	}
	switch x := v.(type) {
	case float64:
		return x
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return math.NaN()
		}
		return f
	}
	return math.NaN()
}
