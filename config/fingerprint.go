package config

import (
	"fmt"

	hash "github.com/mitchellh/hashstructure/v2"
	"gopkg.in/yaml.v3"
)

const DefaultFormat = hash.FormatV2

// Fingerprint identifies the acquisition settings a run was taken with.
// Two configurations that differ only outside the acquisition section share
// a fingerprint.
func Fingerprint(a Acquisition) (string, error) {
	h, err := hash.Hash(a, DefaultFormat, nil)
	if err != nil {
		return "", fmt.Errorf("failed to hash %w", err)
	}

	return fmt.Sprintf("%016x", h), nil
}

// Settings flattens the acquisition section into the key/value form stored
// next to a persisted histogram, keyed by the YAML names.
func Settings(a Acquisition) (map[string]string, error) {
	b, err := yaml.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal settings %w", err)
	}

	var m map[string]interface{}
	if err := yaml.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("failed to unmarshal settings %w", err)
	}

	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = fmt.Sprint(v)
	}

	return out, nil
}
