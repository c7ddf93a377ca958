package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/clintrovert/onboarder/pkg/types"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := Open(filepath.Join(t.TempDir(), "onboarder.db"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func TestPutRole_ReplacesOnDuplicateName(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	for _, user := range []string{"alice", "bob", "carol"} {
		err := st.WriteTransaction(ctx, func(tx *Tx) error {
			return tx.PutRole(types.Role{Name: "IT", User: user})
		})
		require.NoError(t, err)
	}

	var roles []types.Role
	err := st.WriteTransaction(ctx, func(tx *Tx) error {
		var err error
		roles, err = tx.Roles()
		return err
	})
	require.NoError(t, err)

	// Repeated insertion must not accumulate duplicates.
	require.Len(t, roles, 1)
	assert.Equal(t, "IT", roles[0].Name)
	assert.Equal(t, "carol", roles[0].User)
}

func TestPutTask_ReplacesOnDuplicateSubject(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	err := st.WriteTransaction(ctx, func(tx *Tx) error {
		if err := tx.PutTask(types.Task{Subject: "Laptop", Role: "IT"}); err != nil {
			return err
		}
		return tx.PutTask(types.Task{Subject: "Laptop", Role: "Facilities", LongDescr: "order one"})
	})
	require.NoError(t, err)

	var tasks []types.Task
	err = st.WriteTransaction(ctx, func(tx *Tx) error {
		var err error
		tasks, err = tx.Tasks()
		return err
	})
	require.NoError(t, err)

	require.Len(t, tasks, 1)
	assert.Equal(t, "Facilities", tasks[0].Role)
	assert.Equal(t, "order one", tasks[0].LongDescr)
}

func TestWriteTransaction_ErrorRollsBackEverything(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	boom := errors.New("boom")
	err := st.WriteTransaction(ctx, func(tx *Tx) error {
		require.NoError(t, tx.PutRole(types.Role{Name: "IT", User: "alice"}))
		require.NoError(t, tx.PutTask(types.Task{Subject: "Laptop", Role: "IT"}))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	err = st.WriteTransaction(ctx, func(tx *Tx) error {
		roles, err := tx.Roles()
		require.NoError(t, err)
		tasks, err := tx.Tasks()
		require.NoError(t, err)
		assert.Empty(t, roles)
		assert.Empty(t, tasks)
		return nil
	})
	require.NoError(t, err)
}

func TestWriteTransaction_AbortDiscardsWithoutError(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	err := st.WriteTransaction(ctx, func(tx *Tx) error {
		require.NoError(t, tx.PutRole(types.Role{Name: "IT", User: "alice"}))
		return ErrAbort
	})
	require.NoError(t, err)

	err = st.WriteTransaction(ctx, func(tx *Tx) error {
		roles, err := tx.Roles()
		require.NoError(t, err)
		assert.Empty(t, roles)
		return nil
	})
	require.NoError(t, err)
}

func TestTaskMap_PreservesStoredOrder(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	subjects := []string{"Badge", "Laptop", "Accounts", "Desk"}
	err := st.WriteTransaction(ctx, func(tx *Tx) error {
		return tx.PutTaskMap(types.TaskMap{Name: "Engineering", Tasks: subjects})
	})
	require.NoError(t, err)

	err = st.WriteTransaction(ctx, func(tx *Tx) error {
		tm, ok, err := tx.FindTaskMap("Engineering")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, subjects, tm.Tasks)
		return nil
	})
	require.NoError(t, err)
}

func TestDeleteTask_LeavesTaskMapEntriesInPlace(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	err := st.WriteTransaction(ctx, func(tx *Tx) error {
		if err := tx.PutTask(types.Task{Subject: "Laptop", Role: "IT"}); err != nil {
			return err
		}
		return tx.PutTaskMap(types.TaskMap{Name: "Engineering", Tasks: []string{"Laptop"}})
	})
	require.NoError(t, err)

	err = st.WriteTransaction(ctx, func(tx *Tx) error {
		return tx.DeleteTask("Laptop")
	})
	require.NoError(t, err)

	// The dangling subject stays; resolution drops it lazily.
	err = st.WriteTransaction(ctx, func(tx *Tx) error {
		tm, ok, err := tx.FindTaskMap("Engineering")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, []string{"Laptop"}, tm.Tasks)
		return nil
	})
	require.NoError(t, err)
}

func TestConfig_ReadUnsetKeyReturnsEmpty(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	value, err := st.Read(ctx, ConfigDefaultProject)
	require.NoError(t, err)
	assert.Equal(t, "", value)

	err = st.WriteTransaction(ctx, func(tx *Tx) error {
		return tx.SetConfig(ConfigDefaultProject, "onboarding")
	})
	require.NoError(t, err)

	value, err = st.Read(ctx, ConfigDefaultProject)
	require.NoError(t, err)
	assert.Equal(t, "onboarding", value)
}
