package json

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sync"
)

var (
	ErrorBug             = errors.New("bug")
	ErrorInvaildJSONData = errors.New("invalid json data")
	ErrorNoPointer       = errors.New("json message pointer required")
	ErrorUnnamed         = errors.New("unnamed json message")
	ErrorRegistered      = errors.New("message is already registered")
	ErrorNotRegister     = errors.New("message not registered")
)

// Processor encodes registered messages as a single-key object,
// {"TypeName": {...}}, so a topic can carry more than one message type.
type Processor struct {
	mtx     sync.RWMutex
	msgInfo map[string]reflect.Type
}

func NewCodec() *Processor {
	return &Processor{
		msgInfo: make(map[string]reflect.Type),
	}
}

func (p *Processor) Register(msg interface{}) (string, error) {
	msgType := reflect.TypeOf(msg)
	if msgType == nil || msgType.Kind() != reflect.Ptr {
		return "", ErrorNoPointer
	}

	msgID := msgType.Elem().Name()
	if msgID == "" {
		return "", ErrorUnnamed
	}

	p.mtx.Lock()
	defer p.mtx.Unlock()

	if _, ok := p.msgInfo[msgID]; ok {
		return "", fmt.Errorf("message %v %w", msgID, ErrorRegistered)
	}

	p.msgInfo[msgID] = msgType

	return msgID, nil
}

func (p *Processor) String() string {
	return "json"
}

func (p *Processor) lookup(msgID string) (reflect.Type, bool) {
	p.mtx.RLock()
	defer p.mtx.RUnlock()

	t, ok := p.msgInfo[msgID]

	return t, ok
}

func (p *Processor) Unmarshal(data []byte) (interface{}, error) {
	var m map[string]json.RawMessage

	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to unmarshal json %w", err)
	}

	if len(m) != 1 {
		return nil, ErrorInvaildJSONData
	}

	for msgID, data := range m {
		t, ok := p.lookup(msgID)
		if !ok {
			return nil, fmt.Errorf("message %v %w", msgID, ErrorNotRegister)
		}

		msg := reflect.New(t.Elem()).Interface()
		if err := json.Unmarshal(data, msg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal %v %w", msgID, err)
		}

		return msg, nil
	}

	return nil, ErrorBug
}

func (p *Processor) Marshal(msg interface{}) ([]byte, error) {
	msgType := reflect.TypeOf(msg)
	if msgType == nil || msgType.Kind() != reflect.Ptr {
		return nil, ErrorNoPointer
	}

	msgID := msgType.Elem().Name()
	if _, ok := p.lookup(msgID); !ok {
		return nil, fmt.Errorf("message %v %w", msgID, ErrorNotRegister)
	}

	data, err := json.Marshal(map[string]interface{}{msgID: msg})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal json %w", err)
	}

	return data, nil
}
