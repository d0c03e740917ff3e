package repositoryimpl

import (
	"context"
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/kazz187/agenthub/internal/subtask"
	"github.com/kazz187/agenthub/pkg/cerr"
	"github.com/kazz187/agenthub/pkg/storage"
)

const subtasksPrefix = "subtasks"

type YAMLRepository struct {
	storage storage.Storage
}

func NewYAMLRepository(s storage.Storage) *YAMLRepository {
	return &YAMLRepository{storage: s}
}

func path(id string) string {
	return fmt.Sprintf("%s/%s.yaml", subtasksPrefix, id)
}

func (r *YAMLRepository) Create(ctx context.Context, st *subtask.Subtask) error {
	exists, err := r.storage.Exists(ctx, path(st.ID))
	if err != nil {
		return cerr.WrapStorageWriteError("subtask", err)
	}
	if exists {
		return cerr.NewError(cerr.AlreadyExists, "subtask already exists", nil)
	}
	data, err := yaml.Marshal(st)
	if err != nil {
		return cerr.NewError(cerr.Internal, "server error", fmt.Errorf("failed to marshal subtask: %w", err))
	}
	if err := r.storage.Write(ctx, path(st.ID), data); err != nil {
		return cerr.WrapStorageWriteError("subtask", err)
	}
	return nil
}

func (r *YAMLRepository) Get(ctx context.Context, id string) (*subtask.Subtask, error) {
	data, err := r.storage.Read(ctx, path(id))
	if err != nil {
		return nil, cerr.WrapStorageReadError("subtask", err)
	}
	var st subtask.Subtask
	if err := yaml.Unmarshal(data, &st); err != nil {
		return nil, cerr.NewError(cerr.Internal, "server error", fmt.Errorf("failed to unmarshal subtask: %w", err))
	}
	return &st, nil
}

func (r *YAMLRepository) List(ctx context.Context, taskID string) ([]*subtask.Subtask, error) {
	paths, err := r.storage.List(ctx, subtasksPrefix)
	if err != nil {
		return nil, cerr.WrapStorageReadError("subtasks", err)
	}

	sort.Strings(paths)

	var all []*subtask.Subtask
	for _, p := range paths {
		data, err := r.storage.Read(ctx, p)
		if err != nil {
			continue
		}
		var st subtask.Subtask
		if err := yaml.Unmarshal(data, &st); err != nil {
			continue
		}
		if taskID != "" && st.TaskID != taskID {
			continue
		}
		all = append(all, &st)
	}
	return all, nil
}

func (r *YAMLRepository) Update(ctx context.Context, st *subtask.Subtask) error {
	exists, err := r.storage.Exists(ctx, path(st.ID))
	if err != nil {
		return cerr.WrapStorageWriteError("subtask", err)
	}
	if !exists {
		return cerr.NewError(cerr.NotFound, "subtask not found", nil)
	}
	data, err := yaml.Marshal(st)
	if err != nil {
		return cerr.NewError(cerr.Internal, "server error", fmt.Errorf("failed to marshal subtask: %w", err))
	}
	if err := r.storage.Write(ctx, path(st.ID), data); err != nil {
		return cerr.WrapStorageWriteError("subtask", err)
	}
	return nil
}
