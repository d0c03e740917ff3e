package repositoryimpl

import (
	"context"
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/kazz187/agenthub/internal/tasklog"
	"github.com/kazz187/agenthub/pkg/cerr"
	"github.com/kazz187/agenthub/pkg/storage"
)

const taskLogsPrefix = "tasklogs"

type YAMLRepository struct {
	storage storage.Storage
}

func NewYAMLRepository(s storage.Storage) *YAMLRepository {
	return &YAMLRepository{storage: s}
}

func path(id string) string {
	return fmt.Sprintf("%s/%s.yaml", taskLogsPrefix, id)
}

func (r *YAMLRepository) Create(ctx context.Context, l *tasklog.TaskLog) error {
	data, err := yaml.Marshal(l)
	if err != nil {
		return cerr.NewError(cerr.Internal, "server error", fmt.Errorf("failed to marshal task log: %w", err))
	}
	if err := r.storage.Write(ctx, path(l.ID), data); err != nil {
		return cerr.WrapStorageWriteError("task log", err)
	}
	return nil
}

func (r *YAMLRepository) List(ctx context.Context, agent string) ([]*tasklog.TaskLog, error) {
	paths, err := r.storage.List(ctx, taskLogsPrefix)
	if err != nil {
		return nil, cerr.WrapStorageReadError("task logs", err)
	}

	sort.Strings(paths)

	var all []*tasklog.TaskLog
	for _, p := range paths {
		data, err := r.storage.Read(ctx, p)
		if err != nil {
			continue
		}
		var l tasklog.TaskLog
		if err := yaml.Unmarshal(data, &l); err != nil {
			continue
		}
		if agent != "" && l.Agent != agent {
			continue
		}
		all = append(all, &l)
	}
	return all, nil
}
