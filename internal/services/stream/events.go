// Package stream defines the outbound event protocol of a codestream session
// and the helpers that produce it.
package stream

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/temirov/codestream/internal/types"
)

type EventType string

const (
	EventTypeConnection     EventType = "connection"
	EventTypeFile           EventType = "file"
	EventTypeFileStreamDone EventType = "file_stream_done"
	EventTypeChunk          EventType = "ai_chunk"
	EventTypeDone           EventType = "done"
	EventTypeError          EventType = "error"
)

// Client visible diagnostics. Upstream error text is never forwarded.
const (
	MessageConnected        = "WebSocket connected"
	MessageInvalidFormat    = "invalid message format"
	MessageInvalidPrompt    = "missing or invalid prompt"
	MessageGenerationFailed = "processing failed"
	MessageChatFailed       = "service error, please try again"
	MessageFileStreamFailed = "failed to stream files"
)

// FileData is the payload of a file event. Content is nil when the file body
// was not read, and non-nil (possibly empty) when it was.
type FileData struct {
	Path     string  `json:"path"`
	Filename string  `json:"filename"`
	Filetype string  `json:"filetype"`
	Content  *string `json:"content,omitempty"`
	Action   string  `json:"action"`
}

// Event is one outbound message. Only the fields relevant to Type are encoded.
type Event struct {
	Type    EventType
	Message string
	File    *FileData
	Chunk   string
}

type messageFrame struct {
	Type    EventType `json:"type"`
	Message string    `json:"message"`
}

type fileFrame struct {
	Type EventType `json:"type"`
	Data FileData  `json:"data"`
}

type chunkFrame struct {
	Type EventType `json:"type"`
	Data string    `json:"data"`
}

type markerFrame struct {
	Type EventType `json:"type"`
}

func Connection() Event {
	return Event{Type: EventTypeConnection, Message: MessageConnected}
}

func Chunk(fragment string) Event {
	return Event{Type: EventTypeChunk, Chunk: fragment}
}

func Done() Event {
	return Event{Type: EventTypeDone}
}

func FileStreamDone() Event {
	return Event{Type: EventTypeFileStreamDone}
}

func Failure(message string) Event {
	return Event{Type: EventTypeError, Message: message}
}

// DiscoveredFile converts a walker descriptor into a file event.
func DiscoveredFile(descriptor types.FileDescriptor) Event {
	data := FileData{
		Path:     descriptor.RelativePath,
		Filename: descriptor.Filename,
		Filetype: descriptor.Extension,
		Action:   types.ActionStream,
	}
	if descriptor.HasContent {
		content := descriptor.Content
		data.Content = &content
	}
	return Event{Type: EventTypeFile, File: &data}
}

// GeneratedFile converts a classifier unit into a file event.
func GeneratedFile(unit types.GeneratedFile) Event {
	content := unit.Content
	return Event{Type: EventTypeFile, File: &FileData{
		Path:     unit.Path,
		Filename: types.Filename(unit.Path),
		Filetype: types.FileExtension(unit.Path),
		Content:  &content,
		Action:   types.ActionStream,
	}}
}

// IsTerminal reports whether the event ends an instruction.
func (event Event) IsTerminal() bool {
	return event.Type == EventTypeDone || event.Type == EventTypeError
}

func (event Event) MarshalJSON() ([]byte, error) {
	switch event.Type {
	case EventTypeConnection, EventTypeError:
		return encodeFrame(messageFrame{Type: event.Type, Message: event.Message})
	case EventTypeFile:
		if event.File == nil {
			return nil, fmt.Errorf("stream: file event without data")
		}
		return encodeFrame(fileFrame{Type: event.Type, Data: *event.File})
	case EventTypeChunk:
		return encodeFrame(chunkFrame{Type: event.Type, Data: event.Chunk})
	case EventTypeFileStreamDone, EventTypeDone:
		return encodeFrame(markerFrame{Type: event.Type})
	default:
		return nil, fmt.Errorf("stream: unknown event type %q", event.Type)
	}
}

// MarshalEvent encodes event as a single JSON object. Unlike json.Marshal it
// leaves <, > and & unescaped, so chunk and file text reach clients verbatim.
func MarshalEvent(event Event) ([]byte, error) {
	return encodeFrame(event)
}

func encodeFrame(frame any) ([]byte, error) {
	var buffer bytes.Buffer
	encoder := json.NewEncoder(&buffer)
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(frame); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buffer.Bytes(), []byte("\n")), nil
}

func (event *Event) UnmarshalJSON(payload []byte) error {
	var frame struct {
		Type    EventType       `json:"type"`
		Message string          `json:"message"`
		Data    json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(payload, &frame); err != nil {
		return err
	}
	decoded := Event{Type: frame.Type, Message: frame.Message}
	switch frame.Type {
	case EventTypeFile:
		var data FileData
		if err := json.Unmarshal(frame.Data, &data); err != nil {
			return fmt.Errorf("stream: decode file data: %w", err)
		}
		decoded.File = &data
	case EventTypeChunk:
		if err := json.Unmarshal(frame.Data, &decoded.Chunk); err != nil {
			return fmt.Errorf("stream: decode chunk data: %w", err)
		}
	case EventTypeConnection, EventTypeError, EventTypeFileStreamDone, EventTypeDone:
	default:
		return fmt.Errorf("stream: unknown event type %q", frame.Type)
	}
	*event = decoded
	return nil
}
