package redis

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gomodule/redigo/redis"
	"go.uber.org/zap"

	"pha/broker"
	"pha/log"
)

var ErrorNoConn = errors.New("no redigo conn")

const (
	DefaultMaxIdle     uint32        = 10
	DefaultMaxActive   uint32        = 10
	DefaultIdleTimeout time.Duration = 1000 * time.Millisecond
)

type event struct {
	t   string
	m   *broker.Message
	err error
}

func (e *event) Topic() string {
	return e.t
}

func (e *event) Message() *broker.Message {
	return e.m
}

// Ack is a no-op; redis pub/sub has no delivery state.
func (e *event) Ack() error {
	return nil
}

func (e *event) Error() error {
	return e.err
}

type redisBroker struct {
	opts        broker.Options
	pool        *redis.Pool
	maxIdle     uint32
	maxActive   uint32
	idleTimeout time.Duration

	mtx  sync.Mutex
	subs []*redis.PubSubConn
	wg   sync.WaitGroup
}

func (b *redisBroker) String() string {
	return "redis-broker"
}

func (b *redisBroker) Connect() error {
	c := b.pool.Get()
	if c == nil {
		return ErrorNoConn
	}

	defer c.Close()

	if _, err := c.Do("PING"); err != nil {
		return fmt.Errorf("failed to ping %w", err)
	}

	return nil
}

func (b *redisBroker) Disconnect() error {
	b.mtx.Lock()
	subs := b.subs
	b.subs = nil
	b.mtx.Unlock()

	for _, psc := range subs {
		_ = psc.Unsubscribe()
		_ = psc.Close()
	}

	b.wg.Wait()

	if err := b.pool.Close(); err != nil {
		return fmt.Errorf("failed to disconnect %w", err)
	}

	return nil
}

func (b *redisBroker) Publish(topic string, msg *broker.Message) error {
	conn := b.pool.Get()
	defer conn.Close()

	if _, err := redis.Int(conn.Do("PUBLISH", topic, msg.Body)); err != nil {
		return fmt.Errorf("failed to publish %w", err)
	}

	return nil
}

func (b *redisBroker) Subscribe(topic string, h broker.Handler) error {
	psc := &redis.PubSubConn{Conn: b.pool.Get()}

	if err := psc.Subscribe(topic); err != nil {
		psc.Close()

		return fmt.Errorf("failed to subscribe %w", err)
	}

	b.mtx.Lock()
	b.subs = append(b.subs, psc)
	b.mtx.Unlock()

	b.wg.Add(1)

	go func() {
		defer b.wg.Done()

		for {
			switch v := psc.Receive().(type) {
			case redis.Message:
				e := &event{
					t: v.Channel,
					m: &broker.Message{Body: v.Data},
				}

				if e.err = h(e); e.err != nil {
					log.Warn("HandleMessage",
						zap.String("broker", b.String()),
						zap.String("topic", v.Channel),
						zap.String("err", e.err.Error()))
				}
			case redis.Subscription:
				if v.Count == 0 {
					return
				}
			case error:
				log.Warn("ReceiveMessage",
					zap.String("broker", b.String()),
					zap.String("err", v.Error()))

				return
			}
		}
	}()

	return nil
}

func (b *redisBroker) Options() broker.Options {
	return b.opts
}

func NewBroker(opts ...broker.Option) broker.Broker {
	b := &redisBroker{
		opts: broker.NewOptions(opts...),
	}

	b.maxIdle = DefaultMaxIdle
	b.maxActive = DefaultMaxActive
	b.idleTimeout = DefaultIdleTimeout

	b.pool = &redis.Pool{
		MaxIdle:     int(b.maxIdle),
		MaxActive:   int(b.maxActive),
		IdleTimeout: b.idleTimeout,
		Dial: func() (redis.Conn, error) {
			c, err := redis.Dial("tcp", b.opts.Addr,
				redis.DialConnectTimeout(b.opts.Timeout))
			if err != nil {
				return nil, fmt.Errorf("failed to dial addr %w", err)
			}

			if b.opts.Password == "" {
				return c, nil
			}

			if _, err := c.Do("AUTH", b.opts.Password); err != nil {
				c.Close()

				return nil, fmt.Errorf("failed to auth %w", err)
			}

			return c, nil
		},
	}

	return b
}
