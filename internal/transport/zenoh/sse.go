package zenoh

import (
	"bufio"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// event is one server-sent event from the REST plugin stream.
type event struct {
	name string
	data string
}

// readEvents parses an SSE stream, invoking handle for each complete event
// that carries data. It returns when the stream ends or fails.
func readEvents(r io.Reader, handle func(event)) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var ev event
	for scanner.Scan() {
		line := scanner.Text()

		switch {
		case line == "":
			if ev.data != "" {
				handle(ev)
			}
			ev = event{}
		case strings.HasPrefix(line, "event:"):
			ev.name = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			data := strings.TrimPrefix(line, "data:")
			data = strings.TrimPrefix(data, " ")
			if ev.data != "" {
				ev.data += "\n"
			}
			ev.data += data
		case strings.HasPrefix(line, ":"):
			// comment line, used by the plugin as keepalive
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	return io.EOF
}

// sample is the JSON body the REST plugin emits for each Zenoh sample.
type sample struct {
	Key      string `json:"key"`
	Value    string `json:"value"`
	Encoding string `json:"encoding"`
	Time     string `json:"time"`
}

func decodeSample(data string) (*sample, error) {
	var s sample
	if err := json.Unmarshal([]byte(data), &s); err != nil {
		return nil, fmt.Errorf("invalid sample payload: %w", err)
	}
	if s.Key == "" {
		return nil, fmt.Errorf("sample has no key")
	}
	return &s, nil
}

// payload returns the sample value as raw bytes, reversing the base64
// wrapping the plugin applies to binary encodings.
func (s *sample) payload() []byte {
	if strings.Contains(s.Encoding, "base64") {
		if raw, err := base64.StdEncoding.DecodeString(s.Value); err == nil {
			return raw
		}
	}
	return []byte(s.Value)
}
