// Package badger implements storage.Service on an embedded BadgerDB.
//
// It gives single-node deployments a persistent backend without an external
// object store. Accounts come from configuration; containers and objects are
// persisted.
//
// Key Layout:
//
//	c/<container>               -> containerRecord (JSON)
//	m/<container>\x00<key>      -> objectRecord (JSON)
//	d/<container>\x00<key>      -> object body
//
// The NUL separator cannot appear in container names, so a prefix scan over
// "m/<container>\x00" returns exactly the keys of one container.
package badger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	badgerdb "github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"

	"github.com/marmos91/dittoftp/pkg/storage"
)

// Config configures the badger backend.
type Config struct {
	// Path is the database directory. Created if missing.
	Path string `mapstructure:"path"`

	// Accounts maps access key IDs to secret keys.
	Accounts map[string]string `mapstructure:"accounts"`

	// InMemory runs badger without touching disk (tests only).
	InMemory bool `mapstructure:"in_memory"`
}

type containerRecord struct {
	Owner     string    `json:"owner"`
	CreatedAt time.Time `json:"created_at"`
}

type objectRecord struct {
	Size         int64     `json:"size"`
	LastModified time.Time `json:"last_modified"`
}

func keyContainer(name string) []byte { return []byte("c/" + name) }

func keyMetaPrefix(container string) []byte { return []byte("m/" + container + "\x00") }

func keyMeta(container, key string) []byte { return []byte("m/" + container + "\x00" + key) }

func keyData(container, key string) []byte { return []byte("d/" + container + "\x00" + key) }

// Service is a BadgerDB-backed storage service.
type Service struct {
	db       *badgerdb.DB
	accounts map[string]string
	now      func() time.Time
}

// Open opens (or creates) the database described by cfg.
func Open(cfg Config) (*Service, error) {
	if cfg.Path == "" && !cfg.InMemory {
		return nil, fmt.Errorf("badger storage: path is required")
	}

	opts := badgerdb.DefaultOptions(cfg.Path)
	if cfg.InMemory {
		opts = badgerdb.DefaultOptions("").WithInMemory(true)
	}
	opts = opts.WithLoggingLevel(badgerdb.WARNING)
	opts = opts.WithCompression(options.None)

	db, err := badgerdb.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open BadgerDB at %s: %w", cfg.Path, err)
	}

	accounts := make(map[string]string, len(cfg.Accounts))
	for id, secret := range cfg.Accounts {
		accounts[id] = secret
	}

	return &Service{db: db, accounts: accounts, now: time.Now}, nil
}

// Close closes the database.
func (s *Service) Close() error {
	return s.db.Close()
}

// Name implements storage.Service.
func (s *Service) Name() string { return "badger" }

// Open authenticates creds against the configured accounts.
func (s *Service) Open(ctx context.Context, creds storage.Credentials) (storage.Client, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	secret, ok := s.accounts[creds.AccessKeyID]
	if !ok || secret != creds.SecretAccessKey {
		return nil, fmt.Errorf("account %q: %w", creds.AccessKeyID, storage.ErrInvalidCredentials)
	}
	return &Client{svc: s, owner: creds.AccessKeyID}, nil
}

// Client is a badger storage client bound to one account.
type Client struct {
	svc   *Service
	owner string
}

// loadContainer reads the container record and enforces ownership.
func (c *Client) loadContainer(txn *badgerdb.Txn, name string) (*containerRecord, error) {
	item, err := txn.Get(keyContainer(name))
	if errors.Is(err, badgerdb.ErrKeyNotFound) {
		return nil, fmt.Errorf("container %q: %w", name, storage.ErrContainerNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read container %q: %w", name, err)
	}

	var rec containerRecord
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &rec)
	}); err != nil {
		return nil, fmt.Errorf("decode container %q: %w", name, err)
	}
	if rec.Owner != c.owner {
		return nil, fmt.Errorf("container %q: %w", name, storage.ErrContainerNotFound)
	}
	return &rec, nil
}

func loadObject(txn *badgerdb.Txn, container, key string) (*objectRecord, error) {
	item, err := txn.Get(keyMeta(container, key))
	if errors.Is(err, badgerdb.ErrKeyNotFound) {
		return nil, fmt.Errorf("object %s/%s: %w", container, key, storage.ErrKeyNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read object %s/%s: %w", container, key, err)
	}

	var rec objectRecord
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &rec)
	}); err != nil {
		return nil, fmt.Errorf("decode object %s/%s: %w", container, key, err)
	}
	return &rec, nil
}

// ============================================================================
// Containers
// ============================================================================

func (c *Client) ListContainers(ctx context.Context) ([]storage.Container, error) {
	result := make([]storage.Container, 0)

	err := c.svc.db.View(func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.Prefix = []byte("c/")

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}

			item := it.Item()
			var rec containerRecord
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			}); err != nil {
				return fmt.Errorf("decode container: %w", err)
			}
			if rec.Owner != c.owner {
				continue
			}
			result = append(result, storage.Container{
				Name:      strings.TrimPrefix(string(item.Key()), "c/"),
				CreatedAt: rec.CreatedAt,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (c *Client) CreateContainer(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if name == "" || strings.ContainsRune(name, 0) {
		return fmt.Errorf("invalid container name %q", name)
	}

	return c.svc.db.Update(func(txn *badgerdb.Txn) error {
		_, err := txn.Get(keyContainer(name))
		if err == nil {
			return fmt.Errorf("container %q: %w", name, storage.ErrContainerExists)
		}
		if !errors.Is(err, badgerdb.ErrKeyNotFound) {
			return fmt.Errorf("read container %q: %w", name, err)
		}

		data, err := json.Marshal(containerRecord{Owner: c.owner, CreatedAt: c.svc.now().UTC()})
		if err != nil {
			return fmt.Errorf("encode container: %w", err)
		}
		return txn.Set(keyContainer(name), data)
	})
}

func (c *Client) GetContainer(ctx context.Context, name string) (*storage.Container, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var result *storage.Container
	err := c.svc.db.View(func(txn *badgerdb.Txn) error {
		rec, err := c.loadContainer(txn, name)
		if err != nil {
			return err
		}
		result = &storage.Container{Name: name, CreatedAt: rec.CreatedAt}
		return nil
	})
	return result, err
}

func (c *Client) DeleteContainer(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return c.svc.db.Update(func(txn *badgerdb.Txn) error {
		if _, err := c.loadContainer(txn, name); err != nil {
			return err
		}

		opts := badgerdb.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = keyMetaPrefix(name)

		it := txn.NewIterator(opts)
		it.Rewind()
		hasKeys := it.Valid()
		it.Close()

		if hasKeys {
			return fmt.Errorf("container %q: %w", name, storage.ErrContainerNotEmpty)
		}
		return txn.Delete(keyContainer(name))
	})
}

// ============================================================================
// Keys
// ============================================================================

// listPageSize bounds how many metadata records one read transaction loads.
const listPageSize = 256

// ListKeys verifies the container and returns an iterator that scans its
// metadata prefix one page at a time.
func (c *Client) ListKeys(ctx context.Context, name string, opts storage.ListOptions) (storage.KeyIterator, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	err := c.svc.db.View(func(txn *badgerdb.Txn) error {
		_, err := c.loadContainer(txn, name)
		return err
	})
	if err != nil {
		return nil, err
	}

	metaPrefix := keyMetaPrefix(name)
	scan := append(append([]byte{}, metaPrefix...), opts.Prefix...)
	p := &keyPager{
		ctx:       ctx,
		db:        c.svc.db,
		container: name,
		trim:      len(metaPrefix),
		prefix:    scan,
		seek:      scan,
	}
	return storage.NewGroupingIterator(p.next, opts), nil
}

// keyPager reads object metadata in key order, listPageSize records per
// read transaction, so no transaction outlives a page.
type keyPager struct {
	ctx       context.Context
	db        *badgerdb.DB
	container string
	trim      int
	prefix    []byte
	seek      []byte
	buf       []storage.Object
	pos       int
	exhausted bool
}

func (p *keyPager) next() (storage.Object, bool, error) {
	if p.pos >= len(p.buf) {
		if p.exhausted {
			return storage.Object{}, false, nil
		}
		if err := p.fill(); err != nil {
			return storage.Object{}, false, err
		}
		if len(p.buf) == 0 {
			return storage.Object{}, false, nil
		}
	}

	obj := p.buf[p.pos]
	p.pos++
	return obj, true, nil
}

func (p *keyPager) fill() error {
	if err := p.ctx.Err(); err != nil {
		return err
	}

	p.buf = p.buf[:0]
	p.pos = 0

	return p.db.View(func(txn *badgerdb.Txn) error {
		iterOpts := badgerdb.DefaultIteratorOptions
		iterOpts.Prefix = p.prefix
		iterOpts.PrefetchSize = listPageSize

		it := txn.NewIterator(iterOpts)
		defer it.Close()

		for it.Seek(p.seek); it.Valid(); it.Next() {
			item := it.Item()
			if len(p.buf) == listPageSize {
				p.seek = item.KeyCopy(nil)
				return nil
			}

			var rec objectRecord
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			}); err != nil {
				return fmt.Errorf("decode object: %w", err)
			}
			p.buf = append(p.buf, storage.Object{
				Container:    p.container,
				Key:          string(item.Key()[p.trim:]),
				Size:         rec.Size,
				LastModified: rec.LastModified,
			})
		}

		p.exhausted = true
		return nil
	})
}

func (c *Client) GetKey(ctx context.Context, name, key string) (*storage.Object, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var result *storage.Object
	err := c.svc.db.View(func(txn *badgerdb.Txn) error {
		if _, err := c.loadContainer(txn, name); err != nil {
			return err
		}
		rec, err := loadObject(txn, name, key)
		if err != nil {
			return err
		}
		result = &storage.Object{Container: name, Key: key, Size: rec.Size, LastModified: rec.LastModified}
		return nil
	})
	return result, err
}

func (c *Client) DeleteKey(ctx context.Context, name, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return c.svc.db.Update(func(txn *badgerdb.Txn) error {
		if _, err := c.loadContainer(txn, name); err != nil {
			return err
		}
		if _, err := loadObject(txn, name, key); err != nil {
			return err
		}
		if err := txn.Delete(keyMeta(name, key)); err != nil {
			return err
		}
		return txn.Delete(keyData(name, key))
	})
}

// Upload writes metadata and body in one transaction, so readers never see
// one without the other.
func (c *Client) Upload(ctx context.Context, name, key string, body io.ReadSeeker, size int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	buf := bytes.NewBuffer(make([]byte, 0, size))
	if _, err := io.Copy(buf, body); err != nil {
		return fmt.Errorf("read upload body: %w", err)
	}

	meta, err := json.Marshal(objectRecord{Size: int64(buf.Len()), LastModified: c.svc.now().UTC()})
	if err != nil {
		return fmt.Errorf("encode object: %w", err)
	}

	return c.svc.db.Update(func(txn *badgerdb.Txn) error {
		if _, err := c.loadContainer(txn, name); err != nil {
			return err
		}
		if err := txn.Set(keyMeta(name, key), meta); err != nil {
			return err
		}
		return txn.Set(keyData(name, key), buf.Bytes())
	})
}

func (c *Client) Read(ctx context.Context, name, key string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var data []byte
	err := c.svc.db.View(func(txn *badgerdb.Txn) error {
		if _, err := c.loadContainer(txn, name); err != nil {
			return err
		}
		item, err := txn.Get(keyData(name, key))
		if errors.Is(err, badgerdb.ErrKeyNotFound) {
			return fmt.Errorf("object %s/%s: %w", name, key, storage.ErrKeyNotFound)
		}
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

var (
	_ storage.Service = (*Service)(nil)
	_ storage.Client  = (*Client)(nil)
)
