package tts

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/book-expert/narrator/internal/tts/text"
)

// ErrNoChunksFound is returned when a chunks document holds no text.
var ErrNoChunksFound = errors.New("no chunks found")

// ParseChunks reads a chunks document. Both a JSON array of strings and the
// array of objects written by the chunks command are accepted. Empty entries
// are dropped and the result is renumbered from one.
func ParseChunks(data []byte) ([]text.Chunk, error) {
	var raw []json.RawMessage

	err := json.Unmarshal(data, &raw)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal JSON: %w", err)
	}

	texts := make([]string, 0, len(raw))

	for index, entry := range raw {
		value, err := chunkText(entry)
		if err != nil {
			return nil, fmt.Errorf("chunk %d: %w", index, err)
		}

		if strings.TrimSpace(value) != "" {
			texts = append(texts, value)
		}
	}

	if len(texts) == 0 {
		return nil, ErrNoChunksFound
	}

	chunks := make([]text.Chunk, len(texts))
	for index, value := range texts {
		chunks[index] = text.Chunk{Index: index + 1, Total: len(texts), Text: value}
	}

	return chunks, nil
}

func chunkText(entry json.RawMessage) (string, error) {
	if bytes.HasPrefix(bytes.TrimSpace(entry), []byte(`"`)) {
		var value string

		err := json.Unmarshal(entry, &value)
		if err != nil {
			return "", fmt.Errorf("failed to unmarshal JSON: %w", err)
		}

		return value, nil
	}

	var chunk text.Chunk

	err := json.Unmarshal(entry, &chunk)
	if err != nil {
		return "", fmt.Errorf("failed to unmarshal JSON: %w", err)
	}

	return chunk.Text, nil
}
