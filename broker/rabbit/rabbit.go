package rabbit

import (
	"errors"
	"fmt"
	"sync"

	"github.com/streadway/amqp"
	"go.uber.org/zap"

	"pha/broker"
	"pha/log"
)

var ErrNotParamNull = errors.New("exchange name or routing key must not be empty")

const DefaultExchange = "pha"

type rabbitBroker struct {
	opts    broker.Options
	conn    *amqp.Connection
	channel *amqp.Channel

	mtx      sync.Mutex
	declared map[string]bool
	wg       sync.WaitGroup

	ChannelPrefetchCount  int
	ChannelPrefetchGlobal bool
	nackMultiple          bool
	nackRequeue           bool
}

type publication struct {
	d   amqp.Delivery
	m   *broker.Message
	t   string
	err error
}

func (r *rabbitBroker) Connect() error {
	conn, err := amqp.Dial(r.opts.Addr)
	if err != nil {
		return fmt.Errorf("fail to connect amqp %w", err)
	}

	r.conn = conn

	channel, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("fail to connect channel %w", err)
	}

	r.channel = channel

	return nil
}

func (r *rabbitBroker) Disconnect() error {
	if r.channel != nil {
		r.channel.Close()
	}

	if r.conn != nil {
		r.conn.Close()
	}

	// closing the channel ends every consume loop
	r.wg.Wait()

	r.channel, r.conn = nil, nil

	return nil
}

func (r *rabbitBroker) queueName(routingKey string) string {
	if r.opts.Queue != "" {
		return r.opts.Queue
	}

	return routingKey
}

// declare sets up the exchange, the queue and their binding for routingKey
// once per key.
func (r *rabbitBroker) declare(routingKey string) error {
	if r.opts.Exchange == "" || routingKey == "" {
		return ErrNotParamNull
	}

	r.mtx.Lock()
	defer r.mtx.Unlock()

	if r.declared[routingKey] {
		return nil
	}

	kind := r.opts.ExchangeType
	if kind == "" {
		kind = "direct"
	}

	if err := r.channel.ExchangeDeclare(r.opts.Exchange, kind, true, false, false, false, nil); err != nil {
		return fmt.Errorf("fail to declare exchange %w", err)
	}

	queue := r.queueName(routingKey)

	if _, err := r.channel.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("fail to declare queue %w", err)
	}

	if err := r.channel.QueueBind(queue, routingKey, r.opts.Exchange, false, nil); err != nil {
		return fmt.Errorf("fail to bind queue %w", err)
	}

	r.declared[routingKey] = true

	return nil
}

func (r *rabbitBroker) Publish(topic string, msg *broker.Message) error {
	if r.channel == nil {
		return broker.ErrorNotConnected
	}

	if err := r.declare(topic); err != nil {
		return err
	}

	m := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         msg.Body,
		Headers:      amqp.Table{},
	}

	for k, v := range msg.Header {
		m.Headers[k] = v
	}

	if err := r.channel.Publish(r.opts.Exchange, topic, false, false, m); err != nil {
		return fmt.Errorf("fail to publish %w", err)
	}

	return nil
}

func (r *rabbitBroker) Subscribe(topic string, handler broker.Handler) error {
	if r.channel == nil {
		return broker.ErrorNotConnected
	}

	if err := r.declare(topic); err != nil {
		return err
	}

	if r.ChannelPrefetchCount == 0 {
		r.ChannelPrefetchCount = 1
		r.ChannelPrefetchGlobal = true
	}

	if err := r.channel.Qos(r.ChannelPrefetchCount, 0, r.ChannelPrefetchGlobal); err != nil {
		return fmt.Errorf("fail to channel qos %w", err)
	}

	msgList, err := r.channel.Consume(r.queueName(topic), "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("fail to channel consume %w", err)
	}

	r.wg.Add(1)

	go func() {
		defer r.wg.Done()

		for msg := range msgList {
			header := make(map[string]string)
			for k, v := range msg.Headers {
				header[k], _ = v.(string)
			}

			p := &publication{
				d: msg,
				m: &broker.Message{
					Header: header,
					Body:   msg.Body,
				},
				t: topic,
			}

			p.err = handler(p)
			if p.err == nil {
				if err := msg.Ack(false); err != nil {
					log.Error("AckMessage", zap.String("err", err.Error()))
				}

				continue
			}

			log.Warn("HandleMessage", zap.String("topic", topic), zap.String("err", p.err.Error()))

			if err := msg.Nack(r.nackMultiple, r.nackRequeue); err != nil {
				log.Error("NackMessage", zap.String("err", err.Error()))
			}
		}
	}()

	return nil
}

func (r *rabbitBroker) Options() broker.Options {
	return r.opts
}

func (r *rabbitBroker) String() string {
	return "rabbit-broker"
}

func (p *publication) Topic() string {
	return p.t
}

func (p *publication) Message() *broker.Message {
	return p.m
}

func (p *publication) Ack() error {
	return p.d.Ack(false)
}

func (p *publication) Error() error {
	return p.err
}

func NewBroker(opts ...broker.Option) broker.Broker {
	b := &rabbitBroker{
		opts:     broker.NewOptions(opts...),
		declared: make(map[string]bool),
	}

	if b.opts.Exchange == "" {
		b.opts.Exchange = DefaultExchange
	}

	return b
}
