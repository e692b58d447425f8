package zookeeper

import (
	"errors"
	"fmt"
	"path"
	"strings"
	"sync"

	hash "github.com/mitchellh/hashstructure/v2"
	"github.com/samuel/go-zookeeper/zk"
	"go.uber.org/zap"

	"pha/log"
	"pha/registry"
)

const (
	DefaultProjectName string = "/pha-registry"
	DefaultFormat             = hash.FormatV2
)

// zookeeperRegistry announces runs as ephemeral nodes, so an entry lives as
// long as the session of the analyzer that wrote it.
type zookeeperRegistry struct {
	client  *zk.Conn
	options registry.Options
	sync.Mutex

	register map[string]uint64
}

type zkLogger struct{}

func (zkLogger) Printf(format string, a ...interface{}) {
	log.Debug("Zookeeper", zap.String("msg", fmt.Sprintf(format, a...)))
}

func NewRegistry(opts ...registry.Option) registry.Registry {
	return &zookeeperRegistry{
		options:  registry.NewOptions(opts...),
		register: make(map[string]uint64),
	}
}

func servers(addr string) []string {
	var out []string

	for _, s := range strings.Split(addr, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}

	return out
}

func domainPath(domain string) string {
	return path.Join(DefaultProjectName, strings.ReplaceAll(domain, "/", "-"))
}

func nodePath(domain, id string) string {
	return path.Join(domainPath(domain), strings.ReplaceAll(id, "/", "-"))
}

func (z *zookeeperRegistry) Init() error {
	c, _, err := zk.Connect(servers(z.options.Addr), z.options.Timeout, zk.WithLogger(zkLogger{}))
	if err != nil {
		return fmt.Errorf("failed to connect %w", err)
	}

	if err := ensurePath(DefaultProjectName, c); err != nil {
		c.Close()

		return err
	}

	z.Lock()
	z.client = c
	z.Unlock()

	return nil
}

func (z *zookeeperRegistry) conn() (*zk.Conn, error) {
	z.Lock()
	defer z.Unlock()

	if z.client == nil {
		return nil, registry.ErrorNotInit
	}

	return z.client, nil
}

func (z *zookeeperRegistry) Options() registry.Options {
	return z.options
}

func (z *zookeeperRegistry) String() string {
	return "zookeeper"
}

// Register writes the announcement unless the same one is already there.
// The TTL option is not used; the session bounds the entry.
func (z *zookeeperRegistry) Register(s *registry.Service, opt ...registry.RegisterOption) error {
	opts := registry.NewRegisterOptions(opt...)

	c, err := z.conn()
	if err != nil {
		return err
	}

	h, err := hash.Hash(s, DefaultFormat, nil)
	if err != nil {
		return fmt.Errorf("failed to hash %w", err)
	}

	p := nodePath(opts.Domain, s.ID)

	exists, _, err := c.Exists(p)
	if err != nil {
		return fmt.Errorf("failed to find node exist %w", err)
	}

	z.Lock()
	v, ok := z.register[p]
	z.Unlock()

	if exists && ok && v == h {
		return nil
	}

	b, err := registry.Encode(s)
	if err != nil {
		return fmt.Errorf("failed to encode service %w", err)
	}

	if exists {
		if _, err := c.Set(p, b, -1); err != nil {
			return fmt.Errorf("failed to set node %w", err)
		}
	} else {
		if err := ensurePath(domainPath(opts.Domain), c); err != nil {
			return err
		}

		if _, err := c.Create(p, b, zk.FlagEphemeral, zk.WorldACL(zk.PermAll)); err != nil {
			return fmt.Errorf("failed to create node %w", err)
		}
	}

	z.Lock()
	z.register[p] = h
	z.Unlock()

	return nil
}

func (z *zookeeperRegistry) DeRegister(s *registry.Service, opt ...registry.DeregisterOption) error {
	opts := registry.NewDeregisterOptions(opt...)

	c, err := z.conn()
	if err != nil {
		return err
	}

	p := nodePath(opts.Domain, s.ID)

	z.Lock()
	delete(z.register, p)
	z.Unlock()

	if err := c.Delete(p, -1); err != nil && !errors.Is(err, zk.ErrNoNode) {
		return fmt.Errorf("failed to delete node %w", err)
	}

	return nil
}

func (z *zookeeperRegistry) ListServices(opt ...registry.ListOption) ([]*registry.Service, error) {
	opts := registry.NewListOptions(opt...)

	c, err := z.conn()
	if err != nil {
		return nil, err
	}

	ids, _, err := c.Children(domainPath(opts.Domain))
	if errors.Is(err, zk.ErrNoNode) {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("failed to list children %w", err)
	}

	services := make([]*registry.Service, 0, len(ids))

	for _, id := range ids {
		b, _, err := c.Get(nodePath(opts.Domain, id))
		if err != nil {
			// gone since Children
			continue
		}

		s, err := registry.Decode(b)
		if err != nil {
			continue
		}

		services = append(services, s)
	}

	return services, nil
}

func (z *zookeeperRegistry) Release() error {
	z.Lock()
	defer z.Unlock()

	if z.client != nil {
		z.client.Close()
		z.client = nil
	}

	return nil
}

// ensurePath creates p and its parents as persistent nodes.
func ensurePath(p string, c *zk.Conn) error {
	name := ""

	for _, v := range strings.Split(strings.Trim(p, "/"), "/") {
		name += "/" + v

		exists, _, err := c.Exists(name)
		if err != nil {
			return fmt.Errorf("failed to find node exist %w", err)
		}

		if exists {
			continue
		}

		if _, err := c.Create(name, []byte{}, 0, zk.WorldACL(zk.PermAll)); err != nil && !errors.Is(err, zk.ErrNodeExists) {
			return fmt.Errorf("failed to create node %w", err)
		}
	}

	return nil
}
