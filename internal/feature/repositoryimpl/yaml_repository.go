package repositoryimpl

import (
	"context"
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/kazz187/agenthub/internal/feature"
	"github.com/kazz187/agenthub/pkg/cerr"
	"github.com/kazz187/agenthub/pkg/storage"
)

const featuresPrefix = "features"

type YAMLRepository struct {
	storage storage.Storage
}

func NewYAMLRepository(s storage.Storage) *YAMLRepository {
	return &YAMLRepository{storage: s}
}

func path(id string) string {
	return fmt.Sprintf("%s/%s.yaml", featuresPrefix, id)
}

func (r *YAMLRepository) Create(ctx context.Context, f *feature.Feature) error {
	exists, err := r.storage.Exists(ctx, path(f.ID))
	if err != nil {
		return cerr.WrapStorageWriteError("feature", err)
	}
	if exists {
		return cerr.NewError(cerr.AlreadyExists, "feature already exists", nil)
	}
	data, err := yaml.Marshal(f)
	if err != nil {
		return cerr.NewError(cerr.Internal, "server error", fmt.Errorf("failed to marshal feature: %w", err))
	}
	if err := r.storage.Write(ctx, path(f.ID), data); err != nil {
		return cerr.WrapStorageWriteError("feature", err)
	}
	return nil
}

func (r *YAMLRepository) Get(ctx context.Context, id string) (*feature.Feature, error) {
	data, err := r.storage.Read(ctx, path(id))
	if err != nil {
		return nil, cerr.WrapStorageReadError("feature", err)
	}
	var f feature.Feature
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, cerr.NewError(cerr.Internal, "server error", fmt.Errorf("failed to unmarshal feature: %w", err))
	}
	return &f, nil
}

func (r *YAMLRepository) List(ctx context.Context, status feature.Status) ([]*feature.Feature, error) {
	paths, err := r.storage.List(ctx, featuresPrefix)
	if err != nil {
		return nil, cerr.WrapStorageReadError("features", err)
	}

	sort.Strings(paths)

	var all []*feature.Feature
	for _, p := range paths {
		data, err := r.storage.Read(ctx, p)
		if err != nil {
			continue
		}
		var f feature.Feature
		if err := yaml.Unmarshal(data, &f); err != nil {
			continue
		}
		if status != "" && f.Status != status {
			continue
		}
		all = append(all, &f)
	}
	return all, nil
}

func (r *YAMLRepository) Update(ctx context.Context, f *feature.Feature) error {
	exists, err := r.storage.Exists(ctx, path(f.ID))
	if err != nil {
		return cerr.WrapStorageWriteError("feature", err)
	}
	if !exists {
		return cerr.NewError(cerr.NotFound, "feature not found", nil)
	}
	data, err := yaml.Marshal(f)
	if err != nil {
		return cerr.NewError(cerr.Internal, "server error", fmt.Errorf("failed to marshal feature: %w", err))
	}
	if err := r.storage.Write(ctx, path(f.ID), data); err != nil {
		return cerr.WrapStorageWriteError("feature", err)
	}
	return nil
}
