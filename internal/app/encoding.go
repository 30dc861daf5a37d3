package app

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// encode packs v as base64 JSON for socket.io string events.
func encode(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed marshalling: %w", err)
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

func decode(msg string, v any) error {
	data, err := base64.StdEncoding.DecodeString(msg)
	if err != nil {
		return fmt.Errorf("failed decoding base64: %w", err)
	}
	err = json.Unmarshal(data, v)
	if err != nil {
		return fmt.Errorf("failed unmarshalling: %w", err)
	}
	return nil
}
