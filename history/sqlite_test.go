package history

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/use-agent/lmstrack/models"
)

func TestSQLiteMirror_SyncAndHistory(t *testing.T) {
	m, err := OpenSQLite(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	defer m.Close()

	ctx := context.Background()
	ds := NewDataset()
	Merge(ds, []models.Outcome{success("Coaching 101", 10, 2)}, "2024-10-01", MergeOptions{})
	require.NoError(t, m.Sync(ctx, ds))

	Merge(ds, []models.Outcome{success("Coaching 101", 12, 3)}, "2024-10-02", MergeOptions{})
	Merge(ds, []models.Outcome{success("Coaching 101", 13, 3)}, "2024-10-02", MergeOptions{})
	require.NoError(t, m.Sync(ctx, ds))

	snaps, err := m.History(ctx, "Coaching 101")
	require.NoError(t, err)
	require.Len(t, snaps, 2)
	require.Equal(t, "2024-10-01", snaps[0].Date)
	require.Equal(t, 10, *snaps[0].Enrollments)
	require.Equal(t, "2024-10-02", snaps[1].Date)
	require.Equal(t, 13, *snaps[1].Enrollments)
	require.Equal(t, 3, *snaps[1].Completed)
}

func TestSQLiteMirror_OneSidedDate(t *testing.T) {
	m, err := OpenSQLite(":memory:")
	require.NoError(t, err)
	defer m.Close()

	ds := NewDataset()
	ds.add(&Record{
		Title:       "Legacy",
		Enrollments: map[string]int{"2024-09-01": 5},
		Completed:   map[string]int{},
	})
	require.NoError(t, m.Sync(context.Background(), ds))

	snaps, err := m.History(context.Background(), "Legacy")
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	require.Equal(t, 5, *snaps[0].Enrollments)
	require.Nil(t, snaps[0].Completed)
}

func TestSQLiteMirror_UnknownTitle(t *testing.T) {
	m, err := OpenSQLite(":memory:")
	require.NoError(t, err)
	defer m.Close()

	snaps, err := m.History(context.Background(), "nope")
	require.NoError(t, err)
	require.Empty(t, snaps)
}
