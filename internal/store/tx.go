package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/clintrovert/onboarder/pkg/types"
)

// Tx is the mutable view handed to WriteTransaction callbacks. It exposes
// the four collections the store holds; every method runs inside the same
// SQLite transaction, so either all of a callback's changes land or none do.
type Tx struct {
	tx  *sql.Tx
	ctx context.Context
}

// Roles returns every role, sorted by name.
func (t *Tx) Roles() ([]types.Role, error) {
	rows, err := t.tx.QueryContext(t.ctx, `SELECT name, user FROM roles ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("listing roles: %w", err)
	}
	defer rows.Close()

	var roles []types.Role
	for rows.Next() {
		var r types.Role
		if err := rows.Scan(&r.Name, &r.User); err != nil {
			return nil, fmt.Errorf("scanning role: %w", err)
		}
		roles = append(roles, r)
	}
	return roles, rows.Err()
}

// FindRole looks up a role by name.
func (t *Tx) FindRole(name string) (types.Role, bool, error) {
	var r types.Role
	err := t.tx.QueryRowContext(t.ctx,
		`SELECT name, user FROM roles WHERE name = ?`, name).Scan(&r.Name, &r.User)
	if err == sql.ErrNoRows {
		return types.Role{}, false, nil
	}
	if err != nil {
		return types.Role{}, false, fmt.Errorf("finding role %q: %w", name, err)
	}
	return r, true, nil
}

// PutRole inserts the role, replacing any existing role with the same name.
func (t *Tx) PutRole(role types.Role) error {
	_, err := t.tx.ExecContext(t.ctx,
		`INSERT INTO roles (name, user) VALUES (?, ?)
		 ON CONFLICT (name) DO UPDATE SET user = excluded.user`,
		role.Name, role.User)
	if err != nil {
		return fmt.Errorf("storing role %q: %w", role.Name, err)
	}
	return nil
}

// DeleteRole removes the role with the given name, if present.
func (t *Tx) DeleteRole(name string) error {
	if _, err := t.tx.ExecContext(t.ctx, `DELETE FROM roles WHERE name = ?`, name); err != nil {
		return fmt.Errorf("deleting role %q: %w", name, err)
	}
	return nil
}

// Tasks returns every task, sorted by subject.
func (t *Tx) Tasks() ([]types.Task, error) {
	rows, err := t.tx.QueryContext(t.ctx,
		`SELECT subject, role, long_descr FROM tasks ORDER BY subject`)
	if err != nil {
		return nil, fmt.Errorf("listing tasks: %w", err)
	}
	defer rows.Close()

	var tasks []types.Task
	for rows.Next() {
		var task types.Task
		if err := rows.Scan(&task.Subject, &task.Role, &task.LongDescr); err != nil {
			return nil, fmt.Errorf("scanning task: %w", err)
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

// FindTask looks up a task by subject.
func (t *Tx) FindTask(subject string) (types.Task, bool, error) {
	var task types.Task
	err := t.tx.QueryRowContext(t.ctx,
		`SELECT subject, role, long_descr FROM tasks WHERE subject = ?`, subject).
		Scan(&task.Subject, &task.Role, &task.LongDescr)
	if err == sql.ErrNoRows {
		return types.Task{}, false, nil
	}
	if err != nil {
		return types.Task{}, false, fmt.Errorf("finding task %q: %w", subject, err)
	}
	return task, true, nil
}

// PutTask inserts the task, replacing any existing task with the same subject.
func (t *Tx) PutTask(task types.Task) error {
	_, err := t.tx.ExecContext(t.ctx,
		`INSERT INTO tasks (subject, role, long_descr) VALUES (?, ?, ?)
		 ON CONFLICT (subject) DO UPDATE SET role = excluded.role, long_descr = excluded.long_descr`,
		task.Subject, task.Role, task.LongDescr)
	if err != nil {
		return fmt.Errorf("storing task %q: %w", task.Subject, err)
	}
	return nil
}

// DeleteTask removes the task with the given subject, if present. Task map
// entries referencing the subject are left in place; resolution drops them.
func (t *Tx) DeleteTask(subject string) error {
	if _, err := t.tx.ExecContext(t.ctx, `DELETE FROM tasks WHERE subject = ?`, subject); err != nil {
		return fmt.Errorf("deleting task %q: %w", subject, err)
	}
	return nil
}

// TaskMaps returns every task map with its membership, sorted by name.
func (t *Tx) TaskMaps() ([]types.TaskMap, error) {
	rows, err := t.tx.QueryContext(t.ctx, `SELECT name FROM taskmaps ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("listing taskmaps: %w", err)
	}
	defer rows.Close()

	var maps []types.TaskMap
	for rows.Next() {
		var tm types.TaskMap
		if err := rows.Scan(&tm.Name); err != nil {
			return nil, fmt.Errorf("scanning taskmap: %w", err)
		}
		maps = append(maps, tm)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range maps {
		subjects, err := t.taskMapSubjects(maps[i].Name)
		if err != nil {
			return nil, err
		}
		maps[i].Tasks = subjects
	}
	return maps, nil
}

// FindTaskMap looks up a task map and its ordered membership by name.
func (t *Tx) FindTaskMap(name string) (types.TaskMap, bool, error) {
	var tm types.TaskMap
	err := t.tx.QueryRowContext(t.ctx,
		`SELECT name FROM taskmaps WHERE name = ?`, name).Scan(&tm.Name)
	if err == sql.ErrNoRows {
		return types.TaskMap{}, false, nil
	}
	if err != nil {
		return types.TaskMap{}, false, fmt.Errorf("finding taskmap %q: %w", name, err)
	}
	tm.Tasks, err = t.taskMapSubjects(name)
	if err != nil {
		return types.TaskMap{}, false, err
	}
	return tm, true, nil
}

// PutTaskMap inserts the task map, replacing any existing map with the same
// name along with its entire membership.
func (t *Tx) PutTaskMap(tm types.TaskMap) error {
	_, err := t.tx.ExecContext(t.ctx,
		`INSERT INTO taskmaps (name) VALUES (?) ON CONFLICT (name) DO NOTHING`, tm.Name)
	if err != nil {
		return fmt.Errorf("storing taskmap %q: %w", tm.Name, err)
	}
	if _, err := t.tx.ExecContext(t.ctx,
		`DELETE FROM taskmap_tasks WHERE taskmap = ?`, tm.Name); err != nil {
		return fmt.Errorf("clearing taskmap %q: %w", tm.Name, err)
	}
	for i, subject := range tm.Tasks {
		if _, err := t.tx.ExecContext(t.ctx,
			`INSERT INTO taskmap_tasks (taskmap, position, subject) VALUES (?, ?, ?)`,
			tm.Name, i, subject); err != nil {
			return fmt.Errorf("storing taskmap %q entry %q: %w", tm.Name, subject, err)
		}
	}
	return nil
}

// DeleteTaskMap removes the task map and its membership, if present.
func (t *Tx) DeleteTaskMap(name string) error {
	if _, err := t.tx.ExecContext(t.ctx, `DELETE FROM taskmaps WHERE name = ?`, name); err != nil {
		return fmt.Errorf("deleting taskmap %q: %w", name, err)
	}
	return nil
}

// ClearTaskMapMemberships empties the membership of every task map while
// keeping the maps themselves, the first half of a task-table rewrite.
func (t *Tx) ClearTaskMapMemberships() error {
	if _, err := t.tx.ExecContext(t.ctx, `DELETE FROM taskmap_tasks`); err != nil {
		return fmt.Errorf("clearing taskmap memberships: %w", err)
	}
	return nil
}

// GetConfig returns the config value under key, or "" when unset.
func (t *Tx) GetConfig(key string) (string, error) {
	var value string
	err := t.tx.QueryRowContext(t.ctx,
		`SELECT value FROM config WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading config %q: %w", key, err)
	}
	return value, nil
}

// SetConfig stores a config scalar, replacing any previous value.
func (t *Tx) SetConfig(key, value string) error {
	_, err := t.tx.ExecContext(t.ctx,
		`INSERT INTO config (key, value) VALUES (?, ?)
		 ON CONFLICT (key) DO UPDATE SET value = excluded.value`,
		key, value)
	if err != nil {
		return fmt.Errorf("storing config %q: %w", key, err)
	}
	return nil
}

func (t *Tx) taskMapSubjects(name string) ([]string, error) {
	rows, err := t.tx.QueryContext(t.ctx,
		`SELECT subject FROM taskmap_tasks WHERE taskmap = ? ORDER BY position`, name)
	if err != nil {
		return nil, fmt.Errorf("listing taskmap %q entries: %w", name, err)
	}
	defer rows.Close()

	var subjects []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("scanning taskmap entry: %w", err)
		}
		subjects = append(subjects, s)
	}
	return subjects, rows.Err()
}
