package repositoryimpl

import (
	"context"
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/kazz187/agenthub/internal/delegation"
	"github.com/kazz187/agenthub/pkg/cerr"
	"github.com/kazz187/agenthub/pkg/storage"
)

const delegationsPrefix = "delegations"

type YAMLRepository struct {
	storage storage.Storage
}

func NewYAMLRepository(s storage.Storage) *YAMLRepository {
	return &YAMLRepository{storage: s}
}

func path(id string) string {
	return fmt.Sprintf("%s/%s.yaml", delegationsPrefix, id)
}

func (r *YAMLRepository) Create(ctx context.Context, d *delegation.Delegation) error {
	exists, err := r.storage.Exists(ctx, path(d.ID))
	if err != nil {
		return cerr.WrapStorageWriteError("delegation", err)
	}
	if exists {
		return cerr.NewError(cerr.AlreadyExists, "delegation already exists", nil)
	}
	data, err := yaml.Marshal(d)
	if err != nil {
		return cerr.NewError(cerr.Internal, "server error", fmt.Errorf("failed to marshal delegation: %w", err))
	}
	if err := r.storage.Write(ctx, path(d.ID), data); err != nil {
		return cerr.WrapStorageWriteError("delegation", err)
	}
	return nil
}

func (r *YAMLRepository) Get(ctx context.Context, id string) (*delegation.Delegation, error) {
	data, err := r.storage.Read(ctx, path(id))
	if err != nil {
		return nil, cerr.WrapStorageReadError("delegation", err)
	}
	var d delegation.Delegation
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, cerr.NewError(cerr.Internal, "server error", fmt.Errorf("failed to unmarshal delegation: %w", err))
	}
	return &d, nil
}

func (r *YAMLRepository) List(ctx context.Context, taskID, toAgent string) ([]*delegation.Delegation, error) {
	paths, err := r.storage.List(ctx, delegationsPrefix)
	if err != nil {
		return nil, cerr.WrapStorageReadError("delegations", err)
	}

	sort.Strings(paths)

	var all []*delegation.Delegation
	for _, p := range paths {
		data, err := r.storage.Read(ctx, p)
		if err != nil {
			continue
		}
		var d delegation.Delegation
		if err := yaml.Unmarshal(data, &d); err != nil {
			continue
		}
		if taskID != "" && d.TaskID != taskID {
			continue
		}
		if toAgent != "" && d.ToAgent != toAgent {
			continue
		}
		all = append(all, &d)
	}
	return all, nil
}

func (r *YAMLRepository) Update(ctx context.Context, d *delegation.Delegation) error {
	exists, err := r.storage.Exists(ctx, path(d.ID))
	if err != nil {
		return cerr.WrapStorageWriteError("delegation", err)
	}
	if !exists {
		return cerr.NewError(cerr.NotFound, "delegation not found", nil)
	}
	data, err := yaml.Marshal(d)
	if err != nil {
		return cerr.NewError(cerr.Internal, "server error", fmt.Errorf("failed to marshal delegation: %w", err))
	}
	if err := r.storage.Write(ctx, path(d.ID), data); err != nil {
		return cerr.WrapStorageWriteError("delegation", err)
	}
	return nil
}
