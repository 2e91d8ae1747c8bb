// Package audio validates synthesized audio and prepares chunk files for
// concatenation.
package audio

import (
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// DefaultMinBytes is the size a payload must exceed to count as real audio.
// Backends that fail silently tend to write a header and nothing else.
const DefaultMinBytes = 200

// Format represents supported audio formats.
type Format string

const (
	FormatWAV  Format = "wav"
	FormatMP3  Format = "mp3"
	FormatFLAC Format = "flac"
	FormatOGG  Format = "ogg"
	FormatM4A  Format = "m4a"
	FormatAAC  Format = "aac"
)

// Common errors for the audio package.
var (
	ErrTooSmall      = errors.New("audio payload is too small")
	ErrNotAudio      = errors.New("payload is not audio")
	ErrNoFiles       = errors.New("no audio files to concatenate")
	ErrUnsafeFileRef = errors.New("file name cannot be used in a concat list")
	ErrMixedFormats  = errors.New("concat list mixes audio formats")
)

// Validate checks that data is longer than minBytes and sniffs as audio. It
// returns the detected MIME type.
func Validate(data []byte, minBytes int) (string, error) {
	if minBytes <= 0 {
		minBytes = DefaultMinBytes
	}

	if len(data) <= minBytes {
		return "", fmt.Errorf("%w: %d bytes, want more than %d", ErrTooSmall, len(data), minBytes)
	}

	detected := DetectMIME(data)
	if !strings.HasPrefix(detected, "audio/") {
		return detected, fmt.Errorf("%w: detected %s", ErrNotAudio, detected)
	}

	return detected, nil
}

// DetectMIME reports the MIME type of data. The net/http sniffer is tried
// first and mimetype covers the containers it does not know.
func DetectMIME(data []byte) string {
	detected := http.DetectContentType(data)
	if strings.HasPrefix(detected, "audio/") {
		return detected
	}

	return mimetype.Detect(data).String()
}

// FormatOf returns the format implied by a file name's extension.
func FormatOf(filename string) (Format, bool) {
	switch format := Format(strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")); format {
	case FormatWAV, FormatMP3, FormatFLAC, FormatOGG, FormatM4A, FormatAAC:
		return format, true
	default:
		return "", false
	}
}

// ConcatList renders an ffmpeg concat demuxer manifest listing paths in order.
// Every path must carry the same known audio extension, since the demuxer
// copies streams without re-encoding.
func ConcatList(paths []string) (string, error) {
	if len(paths) == 0 {
		return "", ErrNoFiles
	}

	var builder strings.Builder

	first, ok := FormatOf(paths[0])
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrNotAudio, paths[0])
	}

	for _, path := range paths {
		if strings.ContainsAny(path, "\n\r") {
			return "", fmt.Errorf("%w: %q", ErrUnsafeFileRef, path)
		}

		format, ok := FormatOf(path)
		if !ok {
			return "", fmt.Errorf("%w: %q", ErrNotAudio, path)
		}

		if format != first {
			return "", fmt.Errorf("%w: %s and %s", ErrMixedFormats, first, format)
		}

		builder.WriteString("file '")
		builder.WriteString(strings.ReplaceAll(path, "'", `'\''`))
		builder.WriteString("'\n")
	}

	return builder.String(), nil
}
