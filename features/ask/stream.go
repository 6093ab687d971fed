package ask

import (
	"time"

	"github.com/ToJen/crypto-news-agent/internal/news"
)

// Event names on the /ask stream.
const (
	EventChunk    = "answer_chunk"
	EventComplete = "answer_complete"
	EventError    = "error"
)

// Event is one server-sent event: a name and a JSON-serializable payload.
type Event struct {
	Name string
	Data interface{}
}

// ChunkData is the payload of an answer_chunk event. IsComplete is true only
// on the last chunk of the answer.
type ChunkData struct {
	Chunk      string `json:"chunk"`
	SessionID  string `json:"session_id"`
	IsComplete bool   `json:"is_complete"`
}

// CompleteData terminates a successful stream and carries the sources.
type CompleteData struct {
	Sources   []news.Article `json:"sources"`
	SessionID string         `json:"session_id"`
	Timestamp string         `json:"timestamp"`
}

// ErrorData terminates a failed stream.
type ErrorData struct {
	Error string `json:"error"`
}

// Streamer slices a finished answer into ordered chunk events followed by a
// single completion event. Chunks split on runes, never mid-codepoint.
type Streamer struct {
	chunkSize int
	now       func() time.Time
}

func NewStreamer(chunkSize int) *Streamer {
	return &Streamer{chunkSize: chunkSize, now: time.Now}
}

// Stream feeds the events for res to emit in order. An empty answer produces
// no chunk events, just the completion. emit errors stop the stream.
func (s *Streamer) Stream(res Result, sessionID string, emit func(Event) error) error {
	runes := []rune(res.Answer)
	for i := 0; i < len(runes); i += s.chunkSize {
		end := i + s.chunkSize
		if end > len(runes) {
			end = len(runes)
		}
		chunk := ChunkData{
			Chunk:      string(runes[i:end]),
			SessionID:  sessionID,
			IsComplete: end == len(runes),
		}
		if err := emit(Event{Name: EventChunk, Data: chunk}); err != nil {
			return err
		}
	}

	return emit(Event{Name: EventComplete, Data: CompleteData{
		Sources:   res.Sources,
		SessionID: sessionID,
		Timestamp: s.now().UTC().Format(time.RFC3339),
	}})
}
