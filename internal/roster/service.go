// Package roster maintains the organizational model the onboarding pipeline
// resolves against: which roles exist, which tasks each role owns, and which
// tasks apply to each department.
package roster

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/clintrovert/onboarder/internal/store"
	"github.com/clintrovert/onboarder/pkg/types"
)

// Service provides role/task/taskmap resolution and lifecycle operations on
// top of the transactional store.
type Service struct {
	store  *store.Store
	logger *zap.Logger
}

// NewService creates a new roster service.
func NewService(st *store.Store, logger *zap.Logger) *Service {
	return &Service{store: st, logger: logger}
}

// TasksForDepartment returns the tasks applicable to a department, in the
// task map's stored order. Subjects with no matching task record are dropped
// silently; an unknown department yields an empty list, not an error.
func (s *Service) TasksForDepartment(ctx context.Context, department string) ([]types.Task, error) {
	var tasks []types.Task
	err := s.store.WriteTransaction(ctx, func(tx *store.Tx) error {
		tm, ok, err := tx.FindTaskMap(department)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		for _, subject := range tm.Tasks {
			task, ok, err := tx.FindTask(subject)
			if err != nil {
				return err
			}
			if !ok {
				s.logger.Debug("dropping stale taskmap entry",
					zap.String("department", department),
					zap.String("subject", subject),
				)
				continue
			}
			tasks = append(tasks, task)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("resolving tasks for department %q: %w", department, err)
	}
	return tasks, nil
}

// AssigneeForRole returns the tracker login accountable for the named role.
// An unresolved role is a configuration error, surfaced as a NotFoundError;
// callers must not fall back to a default assignee.
func (s *Service) AssigneeForRole(ctx context.Context, role string) (string, error) {
	var user string
	err := s.store.WriteTransaction(ctx, func(tx *store.Tx) error {
		r, ok, err := tx.FindRole(role)
		if err != nil {
			return err
		}
		if !ok {
			return &NotFoundError{Kind: "role", Name: role}
		}
		user = r.User
		return nil
	})
	if err != nil {
		return "", err
	}
	return user, nil
}

// Roles returns every role, sorted by name.
func (s *Service) Roles(ctx context.Context) ([]types.Role, error) {
	var roles []types.Role
	err := s.store.WriteTransaction(ctx, func(tx *store.Tx) error {
		var err error
		roles, err = tx.Roles()
		return err
	})
	return roles, err
}

// Tasks returns every task, sorted by subject.
func (s *Service) Tasks(ctx context.Context) ([]types.Task, error) {
	var tasks []types.Task
	err := s.store.WriteTransaction(ctx, func(tx *store.Tx) error {
		var err error
		tasks, err = tx.Tasks()
		return err
	})
	return tasks, err
}

// TaskMaps returns every task map with its membership, sorted by name.
func (s *Service) TaskMaps(ctx context.Context) ([]types.TaskMap, error) {
	var maps []types.TaskMap
	err := s.store.WriteTransaction(ctx, func(tx *store.Tx) error {
		var err error
		maps, err = tx.TaskMaps()
		return err
	})
	return maps, err
}

// SaveRole stores a role, replacing any prior role with the same name.
func (s *Service) SaveRole(ctx context.Context, role types.Role) error {
	if blank(role.Name) {
		return fmt.Errorf("role name must not be blank: %w", ErrInvalidInput)
	}
	if blank(role.User) {
		return fmt.Errorf("role user must not be blank: %w", ErrInvalidInput)
	}
	return s.store.WriteTransaction(ctx, func(tx *store.Tx) error {
		return tx.PutRole(role)
	})
}

// DeleteRole removes a role. Deletion is rejected with a ConflictError while
// any task still references the role.
func (s *Service) DeleteRole(ctx context.Context, name string) error {
	return s.store.WriteTransaction(ctx, func(tx *store.Tx) error {
		tasks, err := tx.Tasks()
		if err != nil {
			return err
		}
		for _, task := range tasks {
			if task.Role == name {
				return &ConflictError{Message: fmt.Sprintf(
					"role %q still has tasks assigned; remove them first", name)}
			}
		}
		return tx.DeleteRole(name)
	})
}

// SaveTask stores a task, replacing any prior task with the same subject.
// The owning role name must be non-blank; it is not required to resolve,
// since the role may be defined later or removed underneath the task.
func (s *Service) SaveTask(ctx context.Context, task types.Task) error {
	if blank(task.Subject) {
		return fmt.Errorf("task subject must not be blank: %w", ErrInvalidInput)
	}
	if blank(task.Role) {
		return fmt.Errorf("task role must not be blank: %w", ErrInvalidInput)
	}
	return s.store.WriteTransaction(ctx, func(tx *store.Tx) error {
		return tx.PutTask(task)
	})
}

// DeleteTask removes a task. Task map entries referencing it are left alone
// and dropped lazily at resolution time.
func (s *Service) DeleteTask(ctx context.Context, subject string) error {
	return s.store.WriteTransaction(ctx, func(tx *store.Tx) error {
		return tx.DeleteTask(subject)
	})
}

// SaveTaskMap creates a task map for a new department. Creating a department
// that already exists aborts the transaction with a ConflictError.
func (s *Service) SaveTaskMap(ctx context.Context, name string) error {
	if blank(name) {
		return fmt.Errorf("department name must not be blank: %w", ErrInvalidInput)
	}
	return s.store.WriteTransaction(ctx, func(tx *store.Tx) error {
		_, ok, err := tx.FindTaskMap(name)
		if err != nil {
			return err
		}
		if ok {
			return &ConflictError{Message: fmt.Sprintf("department %q already exists", name)}
		}
		return tx.PutTaskMap(types.TaskMap{Name: name})
	})
}

// DeleteTaskMap removes a department's task map and its membership.
func (s *Service) DeleteTaskMap(ctx context.Context, name string) error {
	return s.store.WriteTransaction(ctx, func(tx *store.Tx) error {
		return tx.DeleteTaskMap(name)
	})
}

// ReplaceTaskTable rewrites the membership of every task map in one
// transaction: all memberships are cleared, then repopulated from the given
// department -> ordered subjects mapping. Departments not present in the
// store are skipped.
func (s *Service) ReplaceTaskTable(ctx context.Context, memberships map[string][]string) error {
	return s.store.WriteTransaction(ctx, func(tx *store.Tx) error {
		if err := tx.ClearTaskMapMemberships(); err != nil {
			return err
		}
		for department, subjects := range memberships {
			_, ok, err := tx.FindTaskMap(department)
			if err != nil {
				return err
			}
			if !ok {
				continue
			}
			if err := tx.PutTaskMap(types.TaskMap{Name: department, Tasks: subjects}); err != nil {
				return err
			}
		}
		return nil
	})
}

// Config returns the config value under key, or "" when unset.
func (s *Service) Config(ctx context.Context, key string) (string, error) {
	return s.store.Read(ctx, key)
}

// SetConfig stores a config scalar.
func (s *Service) SetConfig(ctx context.Context, key, value string) error {
	return s.store.WriteTransaction(ctx, func(tx *store.Tx) error {
		return tx.SetConfig(key, value)
	})
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}
