package memory

import (
	"errors"
	"testing"

	"pha/broker"
)

func TestPublishSubscribe(t *testing.T) {
	b := NewBroker(broker.OptionWithName("local"))

	if err := b.Publish("t", &broker.Message{}); !errors.Is(err, broker.ErrorNotConnected) {
		t.Fatalf("publish before connect err = %v", err)
	}

	if err := b.Connect(); err != nil {
		t.Fatal(err)
	}

	var got []string

	if err := b.Subscribe("t", func(e broker.Event) error {
		got = append(got, e.Topic()+":"+string(e.Message().Body))

		return nil
	}); err != nil {
		t.Fatal(err)
	}

	for _, body := range []string{"a", "b"} {
		if err := b.Publish("t", &broker.Message{Body: []byte(body)}); err != nil {
			t.Fatal(err)
		}
	}

	if err := b.Publish("other", &broker.Message{Body: []byte("c")}); err != nil {
		t.Fatal(err)
	}

	if len(got) != 2 || got[0] != "t:a" || got[1] != "t:b" {
		t.Errorf("delivered %v", got)
	}

	if b.Options().Name != "local" || b.Options().Timeout != broker.DefaultTimeout {
		t.Errorf("options = %+v", b.Options())
	}

	if err := b.Disconnect(); err != nil {
		t.Fatal(err)
	}

	if err := b.Subscribe("t", nil); !errors.Is(err, broker.ErrorNotConnected) {
		t.Errorf("subscribe after disconnect err = %v", err)
	}
}
