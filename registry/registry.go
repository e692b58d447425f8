package registry

import (
	"encoding/json"
	"errors"
)

const DefaultDomain = "pha"

var (
	ErrorNotInit     = errors.New("registry not initialized")
	ErrorInvalidKey  = errors.New("invalid key")
	ErrorUnknownKind = errors.New("unknown registry kind")
)

// Registry announces running analyzers so that displays and operators can
// find their metrics and live feeds. Entries expire when their owner stops
// refreshing them.
type Registry interface {
	Init() error
	Register(*Service, ...RegisterOption) error
	DeRegister(*Service, ...DeregisterOption) error
	ListServices(...ListOption) ([]*Service, error)
	Options() Options
	Release() error
	String() string
}

// Service is one announced run.
type Service struct {
	ID       string            `json:"id"`
	Name     string            `json:"name"`
	Metrics  string            `json:"metrics,omitempty"`
	Live     string            `json:"live,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

func Encode(s *Service) ([]byte, error) {
	return json.Marshal(s)
}

func Decode(b []byte) (*Service, error) {
	var s Service

	if err := json.Unmarshal(b, &s); err != nil {
		return nil, err
	}

	return &s, nil
}
