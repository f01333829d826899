package clients

import (
	"encoding/json"
	"fmt"
	"os"
)

// LoadFile reads a JSON array of client registrations.
func LoadFile(path string) ([]*Client, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read clients file: %w", err)
	}
	var registered []*Client
	if err := json.Unmarshal(data, &registered); err != nil {
		return nil, fmt.Errorf("failed to decode clients file %s: %w", path, err)
	}
	for i, c := range registered {
		if c == nil || c.ID == "" {
			return nil, fmt.Errorf("client %d in %s has no client_id", i, path)
		}
	}
	return registered, nil
}
