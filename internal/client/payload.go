package client

import (
	"fmt"
	"os"

	"github.com/tidwall/gjson"
)

// LoadPayload reads the request payload from a file, once, at startup.
// The bytes are handed to the client at construction; nothing else reads
// the file during the run.
func LoadPayload(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read payload file: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("payload file %s is empty", path)
	}
	return data, nil
}

// DetectContentType guesses a content type for the payload: JSON payloads
// are common enough for inference endpoints to deserve detection, anything
// else is sent as an opaque byte stream.
func DetectContentType(payload []byte) string {
	if gjson.ValidBytes(payload) {
		return "application/json"
	}
	return "application/octet-stream"
}
