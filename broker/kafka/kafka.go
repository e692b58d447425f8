package kafka

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Shopify/sarama"
	cluster "github.com/bsm/sarama-cluster"
	"go.uber.org/zap"

	"pha/broker"
	"pha/log"
)

const DefaultGroupID = "pha"

type publication struct {
	m   *broker.Message
	t   string
	err error
}

type kafkaBroker struct {
	opts broker.Options
	p    sarama.SyncProducer

	mtx       sync.Mutex
	consumers []*cluster.Consumer
	wg        sync.WaitGroup
}

func (s *kafkaBroker) addrs() []string {
	return strings.Split(s.opts.Addr, ",")
}

func (s *kafkaBroker) Connect() error {
	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	config.Producer.Timeout = s.opts.Timeout

	p, err := sarama.NewSyncProducer(s.addrs(), config)
	if err != nil {
		return fmt.Errorf("fail to connect kafka %w", err)
	}

	s.p = p

	return nil
}

func (s *kafkaBroker) Disconnect() error {
	s.mtx.Lock()
	consumers := s.consumers
	s.consumers = nil
	s.mtx.Unlock()

	for _, c := range consumers {
		if err := c.Close(); err != nil {
			log.Warn("CloseConsumer", zap.String("err", err.Error()))
		}
	}

	s.wg.Wait()

	if s.p != nil {
		if err := s.p.Close(); err != nil {
			return fmt.Errorf("fail to close producer %w", err)
		}
	}

	return nil
}

func (s *kafkaBroker) Publish(topic string, m *broker.Message) error {
	if s.p == nil {
		return broker.ErrorNotConnected
	}

	msg := &sarama.ProducerMessage{
		Topic: topic,
		Value: sarama.ByteEncoder(m.Body),
	}

	for k, v := range m.Header {
		msg.Headers = append(msg.Headers, sarama.RecordHeader{Key: []byte(k), Value: []byte(v)})
	}

	if _, _, err := s.p.SendMessage(msg); err != nil {
		return fmt.Errorf("fail to publish %w", err)
	}

	return nil
}

func (s *kafkaBroker) Subscribe(topic string, h broker.Handler) error {
	config := cluster.NewConfig()
	config.Version = sarama.V1_0_0_0
	config.Consumer.Return.Errors = true
	config.Group.Return.Notifications = true
	config.Consumer.Offsets.CommitInterval = 1 * time.Second
	config.Consumer.Offsets.Initial = sarama.OffsetNewest

	groupID := s.opts.GroupID
	if groupID == "" {
		groupID = DefaultGroupID
	}

	c, err := cluster.NewConsumer(s.addrs(), groupID, strings.Split(topic, ","), config)
	if err != nil {
		return fmt.Errorf("fail to subscribe %w", err)
	}

	s.mtx.Lock()
	s.consumers = append(s.consumers, c)
	s.mtx.Unlock()

	s.wg.Add(2)

	go func() {
		defer s.wg.Done()

		errors := c.Errors()
		noti := c.Notifications()

		for {
			select {
			case err, ok := <-errors:
				if !ok {
					return
				}

				log.Error("ConsumeMessage", zap.String("err", err.Error()))
			case n, ok := <-noti:
				if !ok {
					return
				}

				log.Info("Rebalance", zap.Any("current", n.Current))
			}
		}
	}()

	go func() {
		defer s.wg.Done()

		for msg := range c.Messages() {
			header := make(map[string]string, len(msg.Headers))
			for _, rh := range msg.Headers {
				header[string(rh.Key)] = string(rh.Value)
			}

			push := &publication{
				m: &broker.Message{Header: header, Body: msg.Value},
				t: msg.Topic,
			}

			if push.err = h(push); push.err != nil {
				log.Warn("HandleMessage",
					zap.String("topic", msg.Topic),
					zap.String("err", push.err.Error()))
			}

			// offsets are committed on CommitInterval and may be lost on a crash
			c.MarkOffset(msg, "")
		}
	}()

	return nil
}

func (s *kafkaBroker) Options() broker.Options {
	return s.opts
}

func (s *kafkaBroker) String() string {
	return "kafka-broker"
}

func (p *publication) Topic() string {
	return p.t
}

func (p *publication) Message() *broker.Message {
	return p.m
}

func (p *publication) Ack() error {
	return nil
}

func (p *publication) Error() error {
	return p.err
}

func NewBroker(opts ...broker.Option) broker.Broker {
	return &kafkaBroker{
		opts: broker.NewOptions(opts...),
	}
}
