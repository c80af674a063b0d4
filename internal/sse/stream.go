package sse

import (
	"bufio"
	"encoding/json"
	"io"
	"strings"
)

const maxFrame = 1 << 20

// Read parses an SSE stream and calls fn once per dispatched event. Only the
// event and data fields are interpreted; comments and other fields are skipped.
// It returns nil at EOF.
func Read(r io.Reader, fn func(Event) error) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 4096), maxFrame)

	var (
		kind string
		data []string
	)
	dispatch := func() error {
		if len(data) == 0 {
			kind = ""
			return nil
		}
		ev := Event{Type: kind, Data: json.RawMessage(strings.Join(data, "\n"))}
		if ev.Type == "" {
			ev.Type = "message"
		}
		kind, data = "", nil
		return fn(ev)
	}

	for sc.Scan() {
		line := sc.Text()
		if line == "" {
			if err := dispatch(); err != nil {
				return err
			}
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue
		}
		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")
		switch field {
		case "event":
			kind = value
		case "data":
			data = append(data, value)
		}
	}
	if err := sc.Err(); err != nil {
		return err
	}
	return dispatch()
}
