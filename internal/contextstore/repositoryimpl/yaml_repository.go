package repositoryimpl

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"regexp"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/kazz187/agenthub/internal/contextstore"
	"github.com/kazz187/agenthub/pkg/cerr"
	"github.com/kazz187/agenthub/pkg/storage"
)

const contextPrefix = "context"

type YAMLRepository struct {
	storage storage.Storage

	// Serializes the read-modify-write in Set so the version counter
	// cannot lose an update between concurrent writers.
	mu sync.Mutex
}

func NewYAMLRepository(s storage.Storage) *YAMLRepository {
	return &YAMLRepository{storage: s}
}

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// path keeps a readable sanitized slot name and appends an FNV hash of
// the exact (namespace, key) pair so distinct slots can never collide
// after sanitization.
func path(namespace, key string) string {
	h := fnv.New32a()
	h.Write([]byte(namespace))
	h.Write([]byte{0})
	h.Write([]byte(key))
	name := unsafeChars.ReplaceAllString(namespace+"."+key, "-")
	if len(name) > 100 {
		name = name[:100]
	}
	return fmt.Sprintf("%s/%s-%08x.yaml", contextPrefix, name, h.Sum32())
}

func (r *YAMLRepository) Set(ctx context.Context, e *contextstore.Entry) (*contextstore.Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, err := r.read(ctx, e.Namespace, e.Key)
	switch {
	case err == nil:
		e.Version = current.Version + 1
	case errors.Is(err, storage.ErrNotFound):
		e.Version = 1
	default:
		return nil, cerr.WrapStorageReadError("context entry", err)
	}

	data, err := yaml.Marshal(e)
	if err != nil {
		return nil, cerr.NewError(cerr.Internal, "server error", fmt.Errorf("failed to marshal context entry: %w", err))
	}
	if err := r.storage.Write(ctx, path(e.Namespace, e.Key), data); err != nil {
		return nil, cerr.WrapStorageWriteError("context entry", err)
	}
	return e, nil
}

func (r *YAMLRepository) Get(ctx context.Context, namespace, key string) (*contextstore.Entry, error) {
	e, err := r.read(ctx, namespace, key)
	if err != nil {
		return nil, cerr.WrapStorageReadError("context entry", err)
	}
	return e, nil
}

func (r *YAMLRepository) List(ctx context.Context, namespace string) ([]*contextstore.Entry, error) {
	paths, err := r.storage.List(ctx, contextPrefix)
	if err != nil {
		return nil, cerr.WrapStorageReadError("context entries", err)
	}

	var all []*contextstore.Entry
	for _, p := range paths {
		data, err := r.storage.Read(ctx, p)
		if err != nil {
			continue
		}
		var e contextstore.Entry
		if err := yaml.Unmarshal(data, &e); err != nil {
			continue
		}
		if namespace != "" && e.Namespace != namespace {
			continue
		}
		all = append(all, &e)
	}
	return all, nil
}

func (r *YAMLRepository) Delete(ctx context.Context, namespace, key string) error {
	if err := r.storage.Delete(ctx, path(namespace, key)); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil
		}
		return cerr.WrapStorageDeleteError("context entry", err)
	}
	return nil
}

func (r *YAMLRepository) read(ctx context.Context, namespace, key string) (*contextstore.Entry, error) {
	data, err := r.storage.Read(ctx, path(namespace, key))
	if err != nil {
		return nil, err
	}
	var e contextstore.Entry
	if err := yaml.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("failed to unmarshal context entry: %w", err)
	}
	return &e, nil
}
