package agent

import (
	"context"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/kazz187/agenthub/internal/eventbus"
	"github.com/kazz187/agenthub/pkg/cerr"
)

type Service struct {
	repo Repository
	bus  *eventbus.Bus
}

func NewService(repo Repository, bus *eventbus.Bus) *Service {
	return &Service{
		repo: repo,
		bus:  bus,
	}
}

type RegisterParams struct {
	ID               string
	ProjectPath      string
	Role             string
	Capabilities     []string
	CollaboratesWith []string
}

type RegisterResult struct {
	Agent                *Agent
	DetectedCapabilities []string
}

// Register creates or refreshes an agent registration. When the id is
// already taken the registration is updated in place: agents restart
// freely and keep a stable id per workspace.
func (s *Service) Register(ctx context.Context, params RegisterParams) (*RegisterResult, error) {
	if params.ProjectPath == "" {
		return nil, cerr.NewError(cerr.InvalidArgument, "projectPath is required", nil)
	}
	if params.Role == "" {
		return nil, cerr.NewError(cerr.InvalidArgument, "role is required", nil)
	}

	detected := DetectCapabilities(params.Role)
	capabilities := params.Capabilities
	if len(capabilities) == 0 {
		capabilities = detected
	}

	id := params.ID
	if id == "" {
		id = GenerateID(params.ProjectPath)
	}

	now := time.Now()
	existing, err := s.repo.Get(ctx, id)
	switch {
	case err == nil:
		existing.ProjectPath = params.ProjectPath
		existing.Role = params.Role
		existing.Capabilities = capabilities
		existing.CollaboratesWith = params.CollaboratesWith
		existing.Status = StatusActive
		existing.LastSeen = now
		existing.UpdatedAt = now
		if err := s.repo.Update(ctx, existing); err != nil {
			return nil, err
		}
		s.bus.PublishNew(eventbus.AgentRegistered, existing.ID, map[string]string{"role": existing.Role})
		return &RegisterResult{Agent: existing, DetectedCapabilities: detected}, nil
	case cerr.IsCode(err, cerr.NotFound):
		a := &Agent{
			ID:               id,
			ProjectPath:      params.ProjectPath,
			Role:             params.Role,
			Capabilities:     capabilities,
			Status:           StatusActive,
			LastSeen:         now,
			CollaboratesWith: params.CollaboratesWith,
			CreatedAt:        now,
			UpdatedAt:        now,
		}
		if err := s.repo.Create(ctx, a); err != nil {
			return nil, err
		}
		s.bus.PublishNew(eventbus.AgentRegistered, a.ID, map[string]string{"role": a.Role})
		return &RegisterResult{Agent: a, DetectedCapabilities: detected}, nil
	default:
		return nil, err
	}
}

// Touch marks the agent as seen now and active. Called on every
// successful tool invocation so the periodic sweep only ever has to
// demote stale agents.
func (s *Service) Touch(ctx context.Context, id string) error {
	a, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	now := time.Now()
	a.LastSeen = now
	a.Status = StatusActive
	a.UpdatedAt = now
	return s.repo.Update(ctx, a)
}

func (s *Service) Get(ctx context.Context, id string) (*Agent, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context) ([]*Agent, error) {
	return s.repo.List(ctx)
}

var idUnsafe = regexp.MustCompile(`[^a-z0-9-]+`)

// GenerateID derives an agent id from the project directory name plus a
// short random suffix, e.g. "proj-a-x7k2m".
func GenerateID(projectPath string) string {
	base := strings.ToLower(filepath.Base(filepath.Clean(projectPath)))
	base = idUnsafe.ReplaceAllString(base, "-")
	base = strings.Trim(base, "-")
	if base == "" || base == "." {
		base = "agent"
	}
	suffix := strings.ToLower(ulid.Make().String())
	return base + "-" + suffix[len(suffix)-5:]
}

var roleCapabilities = []struct {
	keyword      string
	capabilities []string
}{
	{"backend", []string{"api", "database", "testing"}},
	{"frontend", []string{"ui", "components", "styling"}},
	{"fullstack", []string{"api", "database", "ui", "components"}},
	{"devops", []string{"ci", "deployment", "infrastructure"}},
	{"infra", []string{"ci", "deployment", "infrastructure"}},
	{"qa", []string{"testing", "review"}},
	{"test", []string{"testing", "review"}},
	{"review", []string{"review"}},
	{"doc", []string{"documentation"}},
	{"data", []string{"database", "analytics"}},
	{"mobile", []string{"ui", "mobile"}},
	{"security", []string{"security", "review"}},
}

// DetectCapabilities derives a capability set from the free-form role
// string when the caller does not declare one explicitly.
func DetectCapabilities(role string) []string {
	lower := strings.ToLower(role)
	seen := map[string]bool{}
	var out []string
	for _, rc := range roleCapabilities {
		if !strings.Contains(lower, rc.keyword) {
			continue
		}
		for _, c := range rc.capabilities {
			if seen[c] {
				continue
			}
			seen[c] = true
			out = append(out, c)
		}
	}
	if len(out) == 0 {
		out = []string{"general"}
	}
	return out
}
