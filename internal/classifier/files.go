// Package classifier turns streamed completion text into generated file units
// and decides which prompts ask for file generation.
package classifier

import (
	"bytes"
	"strings"

	"github.com/temirov/codestream/internal/types"
)

const (
	// FileHeaderPrefix opens a unit; the remainder of its line is the file path.
	FileHeaderPrefix = "--- FILE: "
	// FileHeaderSuffix optionally closes the header line.
	FileHeaderSuffix = "---"
	// FileEndMarker closes a unit when it starts a line.
	FileEndMarker = "--- END FILE ---"

	endMarkerWithNewline = "\n" + FileEndMarker
)

var (
	headerPrefix = []byte(FileHeaderPrefix)
	endMarker    = []byte(endMarkerWithNewline)
)

// GenerationInstructions is sent as the system message on the generation path so
// that the model emits units FileParser can recognize.
const GenerationInstructions = `You generate source files for a web application.
Emit every file in exactly this format and nothing else between files:
` + FileHeaderPrefix + `relative/path/to/File.ext ` + FileHeaderSuffix + `
<complete file content>
` + FileEndMarker + `
Use forward slashes in paths. Do not wrap file content in Markdown code fences.`

// FileParser extracts generated file units from completion fragments.
// A parser belongs to one instruction and is not safe for concurrent use.
type FileParser struct {
	buffer []byte
	// scanned counts the bytes after the current header line that cannot
	// start an end marker, so each Feed resumes the search instead of
	// rescanning the unit body.
	scanned int
}

// NewFileParser returns an empty parser.
func NewFileParser() *FileParser {
	return &FileParser{}
}

// Feed appends fragment to the accumulated text and returns every unit that is
// now complete, in order. Markers may be split across any number of fragments.
func (parser *FileParser) Feed(fragment string) []types.GeneratedFile {
	parser.buffer = append(parser.buffer, fragment...)
	var units []types.GeneratedFile
	for {
		unit, found := parser.next()
		if !found {
			return units
		}
		units = append(units, unit)
	}
}

// Pending reports how many accumulated bytes have not formed a unit yet.
// They are dropped when the parser is discarded.
func (parser *FileParser) Pending() int {
	return len(parser.buffer)
}

func (parser *FileParser) next() (types.GeneratedFile, bool) {
	for {
		start := bytes.Index(parser.buffer, headerPrefix)
		if start < 0 {
			// A header prefix split across fragments can only survive in the tail.
			if excess := len(parser.buffer) - (len(FileHeaderPrefix) - 1); excess > 0 {
				parser.discard(excess)
			}
			return types.GeneratedFile{}, false
		}
		if start > 0 {
			parser.discard(start)
		}

		headerLength := bytes.IndexByte(parser.buffer[len(FileHeaderPrefix):], '\n')
		if headerLength < 0 {
			return types.GeneratedFile{}, false
		}
		headerNewline := len(FileHeaderPrefix) + headerLength
		contentStart := headerNewline + 1

		searchFrom := headerNewline + parser.scanned
		endOffset := bytes.Index(parser.buffer[searchFrom:], endMarker)
		if endOffset < 0 {
			parser.scanned = max(0, len(parser.buffer)-headerNewline-(len(endMarker)-1))
			return types.GeneratedFile{}, false
		}
		contentEnd := searchFrom + endOffset

		path := headerPath(string(parser.buffer[len(FileHeaderPrefix):headerNewline]))
		content := ""
		if contentEnd > contentStart {
			content = string(parser.buffer[contentStart:contentEnd])
		}
		parser.discard(contentEnd + len(endMarker))

		if path == "" {
			continue
		}
		return types.GeneratedFile{Path: path, Content: content}, true
	}
}

// discard drops the first count buffered bytes.
func (parser *FileParser) discard(count int) {
	parser.buffer = parser.buffer[count:]
	parser.scanned = 0
}

func headerPath(headerLine string) string {
	trimmed := strings.TrimSpace(headerLine)
	trimmed = strings.TrimSuffix(trimmed, FileHeaderSuffix)
	return strings.Trim(strings.TrimSpace(trimmed), "`")
}
