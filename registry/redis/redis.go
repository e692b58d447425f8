package redis

import (
	"fmt"
	"strings"
	"time"

	redigo "github.com/gomodule/redigo/redis"

	"pha/registry"
)

const (
	DefaultMaxIdle     uint32        = 2
	DefaultMaxActive   uint32        = 4
	DefaultIdleTimeout time.Duration = 60 * time.Second
	DefaultSeparator   string        = ":"
)

// redisreg keeps one key per run holding the JSON announcement, expiring
// after the registration TTL.
type redisreg struct {
	opts        registry.Options
	pool        *redigo.Pool
	maxIdle     uint32
	maxActive   uint32
	idleTimeout time.Duration
}

func serviceKey(domain, id string) (string, error) {
	if domain == "" || id == "" || strings.Contains(domain, DefaultSeparator) || strings.Contains(id, DefaultSeparator) {
		return "", fmt.Errorf("%q %q: %w", domain, id, registry.ErrorInvalidKey)
	}

	return domain + DefaultSeparator + id, nil
}

func NewRegistry(opts ...registry.Option) registry.Registry {
	reg := &redisreg{
		opts:        registry.NewOptions(opts...),
		maxIdle:     DefaultMaxIdle,
		maxActive:   DefaultMaxActive,
		idleTimeout: DefaultIdleTimeout,
	}

	if reg.opts.Context != nil {
		cfg, ok := reg.opts.Context.Value(redisRegistryConfigKey{}).(*redisRegistryConfig)
		if ok {
			reg.maxIdle = cfg.MaxIdle
			reg.maxActive = cfg.MaxActive
			reg.idleTimeout = cfg.IdleTimeout
		}
	}

	reg.pool = &redigo.Pool{
		MaxIdle:     int(reg.maxIdle),
		MaxActive:   int(reg.maxActive),
		IdleTimeout: reg.idleTimeout,
		Dial: func() (redigo.Conn, error) {
			c, err := redigo.Dial("tcp", reg.opts.Addr, redigo.DialConnectTimeout(reg.opts.Timeout))
			if err != nil {
				return nil, fmt.Errorf("failed to dial addr %w", err)
			}

			if reg.opts.Password == "" {
				return c, nil
			}

			if _, err := c.Do("AUTH", reg.opts.Password); err != nil {
				c.Close()

				return nil, fmt.Errorf("failed to auth %w", err)
			}

			return c, nil
		},
	}

	return reg
}

func (r *redisreg) Init() error {
	c := r.pool.Get()
	defer c.Close()

	if _, err := c.Do("PING"); err != nil {
		return fmt.Errorf("failed to ping %w", err)
	}

	return nil
}

func (r *redisreg) Register(s *registry.Service, opt ...registry.RegisterOption) error {
	opts := registry.NewRegisterOptions(opt...)

	key, err := serviceKey(opts.Domain, s.ID)
	if err != nil {
		return err
	}

	b, err := registry.Encode(s)
	if err != nil {
		return fmt.Errorf("failed to encode service %w", err)
	}

	ttl := int(opts.TTL / time.Second)
	if ttl < 1 {
		ttl = 1
	}

	c := r.pool.Get()
	defer c.Close()

	if _, err := c.Do("SET", key, b, "EX", ttl); err != nil {
		return fmt.Errorf("failed to setex %w", err)
	}

	return nil
}

func (r *redisreg) DeRegister(s *registry.Service, opt ...registry.DeregisterOption) error {
	opts := registry.NewDeregisterOptions(opt...)

	key, err := serviceKey(opts.Domain, s.ID)
	if err != nil {
		return err
	}

	c := r.pool.Get()
	defer c.Close()

	if _, err := c.Do("DEL", key); err != nil {
		return fmt.Errorf("failed to del %w", err)
	}

	return nil
}

func (r *redisreg) ListServices(opt ...registry.ListOption) ([]*registry.Service, error) {
	opts := registry.NewListOptions(opt...)

	c := r.pool.Get()
	defer c.Close()

	keys, err := redigo.Strings(c.Do("KEYS", opts.Domain+DefaultSeparator+"*"))
	if err != nil {
		return nil, fmt.Errorf("failed to list keys %w", err)
	}

	if len(keys) == 0 {
		return nil, nil
	}

	args := make([]interface{}, len(keys))
	for i, k := range keys {
		args[i] = k
	}

	values, err := redigo.ByteSlices(c.Do("MGET", args...))
	if err != nil {
		return nil, fmt.Errorf("failed to get services %w", err)
	}

	services := make([]*registry.Service, 0, len(values))

	for _, v := range values {
		// expired between KEYS and MGET
		if v == nil {
			continue
		}

		s, err := registry.Decode(v)
		if err != nil {
			continue
		}

		services = append(services, s)
	}

	return services, nil
}

func (r *redisreg) Options() registry.Options {
	return r.opts
}

func (r *redisreg) Release() error {
	return r.pool.Close()
}

func (r *redisreg) String() string {
	return "redis"
}
