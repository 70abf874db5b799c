// Package memory implements storage.Service entirely in process memory.
//
// It reproduces the S3 account model closely enough for tests and demos:
// container names are global, each container belongs to the account that
// created it, and accounts only see their own containers. Nothing survives a
// restart.
package memory

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/marmos91/dittoftp/pkg/storage"
)

// Config configures the memory backend.
type Config struct {
	// Accounts maps access key IDs to secret keys.
	Accounts map[string]string `mapstructure:"accounts"`
}

type object struct {
	data         []byte
	lastModified time.Time
}

type container struct {
	owner     string
	createdAt time.Time
	objects   map[string]*object
}

// Service is an in-memory storage service.
//
// Thread Safety:
// All state lives behind a single RWMutex shared by every client opened from
// the service.
type Service struct {
	mu         sync.RWMutex
	accounts   map[string]string
	containers map[string]*container

	// now is replaceable in tests.
	now func() time.Time
}

// New creates an empty in-memory service with the given accounts.
func New(cfg Config) *Service {
	accounts := make(map[string]string, len(cfg.Accounts))
	for id, secret := range cfg.Accounts {
		accounts[id] = secret
	}
	return &Service{
		accounts:   accounts,
		containers: make(map[string]*container),
		now:        time.Now,
	}
}

// AddAccount registers (or replaces) an account.
func (s *Service) AddAccount(accessKeyID, secret string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[accessKeyID] = secret
}

// Name implements storage.Service.
func (s *Service) Name() string { return "memory" }

// Open checks creds against the account table.
func (s *Service) Open(ctx context.Context, creds storage.Credentials) (storage.Client, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	secret, ok := s.accounts[creds.AccessKeyID]
	s.mu.RUnlock()

	if !ok || secret != creds.SecretAccessKey {
		return nil, fmt.Errorf("account %q: %w", creds.AccessKeyID, storage.ErrInvalidCredentials)
	}
	return &Client{svc: s, owner: creds.AccessKeyID}, nil
}

// Client is a memory storage client bound to one account.
type Client struct {
	svc   *Service
	owner string
}

// lookup returns the caller's container. Must hold svc.mu.
func (c *Client) lookup(name string) (*container, error) {
	ct, ok := c.svc.containers[name]
	if !ok || ct.owner != c.owner {
		return nil, fmt.Errorf("container %q: %w", name, storage.ErrContainerNotFound)
	}
	return ct, nil
}

func (c *Client) ListContainers(ctx context.Context) ([]storage.Container, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.svc.mu.RLock()
	defer c.svc.mu.RUnlock()

	result := make([]storage.Container, 0)
	for name, ct := range c.svc.containers {
		if ct.owner == c.owner {
			result = append(result, storage.Container{Name: name, CreatedAt: ct.createdAt})
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

func (c *Client) CreateContainer(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if name == "" {
		return fmt.Errorf("container name is required")
	}

	c.svc.mu.Lock()
	defer c.svc.mu.Unlock()

	if _, exists := c.svc.containers[name]; exists {
		return fmt.Errorf("container %q: %w", name, storage.ErrContainerExists)
	}
	c.svc.containers[name] = &container{
		owner:     c.owner,
		createdAt: c.svc.now(),
		objects:   make(map[string]*object),
	}
	return nil
}

func (c *Client) GetContainer(ctx context.Context, name string) (*storage.Container, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.svc.mu.RLock()
	defer c.svc.mu.RUnlock()

	ct, err := c.lookup(name)
	if err != nil {
		return nil, err
	}
	return &storage.Container{Name: name, CreatedAt: ct.createdAt}, nil
}

func (c *Client) DeleteContainer(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.svc.mu.Lock()
	defer c.svc.mu.Unlock()

	ct, err := c.lookup(name)
	if err != nil {
		return err
	}
	if len(ct.objects) > 0 {
		return fmt.Errorf("container %q: %w", name, storage.ErrContainerNotEmpty)
	}
	delete(c.svc.containers, name)
	return nil
}

// ListKeys snapshots the sorted key names matching the prefix and resolves
// each object only when the iterator reaches it. Keys deleted in between are
// skipped.
func (c *Client) ListKeys(ctx context.Context, name string, opts storage.ListOptions) (storage.KeyIterator, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.svc.mu.RLock()
	ct, err := c.lookup(name)
	if err != nil {
		c.svc.mu.RUnlock()
		return nil, err
	}
	keys := make([]string, 0, len(ct.objects))
	for key := range ct.objects {
		if strings.HasPrefix(key, opts.Prefix) {
			keys = append(keys, key)
		}
	}
	c.svc.mu.RUnlock()

	sort.Strings(keys)

	next := func() (storage.Object, bool, error) {
		for len(keys) > 0 {
			if err := ctx.Err(); err != nil {
				return storage.Object{}, false, err
			}
			key := keys[0]
			keys = keys[1:]

			c.svc.mu.RLock()
			obj, ok := ct.objects[key]
			var out storage.Object
			if ok {
				out = storage.Object{
					Container:    name,
					Key:          key,
					Size:         int64(len(obj.data)),
					LastModified: obj.lastModified,
				}
			}
			c.svc.mu.RUnlock()

			if ok {
				return out, true, nil
			}
		}
		return storage.Object{}, false, nil
	}
	return storage.NewGroupingIterator(next, opts), nil
}

func (c *Client) GetKey(ctx context.Context, name, key string) (*storage.Object, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.svc.mu.RLock()
	defer c.svc.mu.RUnlock()

	ct, err := c.lookup(name)
	if err != nil {
		return nil, err
	}
	obj, ok := ct.objects[key]
	if !ok {
		return nil, fmt.Errorf("object %s/%s: %w", name, key, storage.ErrKeyNotFound)
	}
	return &storage.Object{
		Container:    name,
		Key:          key,
		Size:         int64(len(obj.data)),
		LastModified: obj.lastModified,
	}, nil
}

func (c *Client) DeleteKey(ctx context.Context, name, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.svc.mu.Lock()
	defer c.svc.mu.Unlock()

	ct, err := c.lookup(name)
	if err != nil {
		return err
	}
	if _, ok := ct.objects[key]; !ok {
		return fmt.Errorf("object %s/%s: %w", name, key, storage.ErrKeyNotFound)
	}
	delete(ct.objects, key)
	return nil
}

// Upload reads the whole body before taking the lock.
func (c *Client) Upload(ctx context.Context, name, key string, body io.ReadSeeker, size int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	buf := bytes.NewBuffer(make([]byte, 0, size))
	if _, err := io.Copy(buf, body); err != nil {
		return fmt.Errorf("read upload body: %w", err)
	}

	c.svc.mu.Lock()
	defer c.svc.mu.Unlock()

	ct, err := c.lookup(name)
	if err != nil {
		return err
	}
	ct.objects[key] = &object{data: buf.Bytes(), lastModified: c.svc.now()}
	return nil
}

// Read returns a reader over a copy of the object, so later writes to the
// key do not affect an in-flight download.
func (c *Client) Read(ctx context.Context, name, key string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.svc.mu.RLock()
	defer c.svc.mu.RUnlock()

	ct, err := c.lookup(name)
	if err != nil {
		return nil, err
	}
	obj, ok := ct.objects[key]
	if !ok {
		return nil, fmt.Errorf("object %s/%s: %w", name, key, storage.ErrKeyNotFound)
	}

	data := make([]byte, len(obj.data))
	copy(data, obj.data)
	return io.NopCloser(bytes.NewReader(data)), nil
}

var (
	_ storage.Service = (*Service)(nil)
	_ storage.Client  = (*Client)(nil)
)
