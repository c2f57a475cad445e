package bridge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adamancini/actionstatus/internal/types"
)

func TestMenu(t *testing.T) {
	s, err := New(newFakeProvider(types.StatusSucceeded, types.StatusFailed, types.StatusUnknown)).Snapshot()
	require.NoError(t, err)

	m := s.Menu("ActionStatus")
	assert.False(t, m.Passing)
	require.Len(t, m.Entries, 9)

	for i := 0; i < 3; i++ {
		assert.Equal(t, i, m.Entries[i].Tag)
		assert.Equal(t, ActionSelectItem, m.Entries[i].Action)
	}
	assert.Equal(t, types.StatusFailed, m.Entries[1].Status)
	assert.True(t, m.Entries[3].Separator)

	var titles []string
	for _, e := range m.Entries[4:] {
		titles = append(titles, e.Title)
		assert.Equal(t, -1, e.Tag)
	}
	assert.Equal(t, []string{
		"About ActionStatus",
		"Open ActionStatus",
		"Preferences…",
		"Check For Updates…",
		"Quit ActionStatus",
	}, titles)
}

func TestMenuWithoutItems(t *testing.T) {
	s, err := New(newFakeProvider()).Snapshot()
	require.NoError(t, err)

	m := s.Menu("ActionStatus")
	assert.True(t, m.Passing)
	require.Len(t, m.Entries, 6)
	assert.True(t, m.Entries[0].Separator)
}

func TestMenuString(t *testing.T) {
	s, err := New(newFakeProvider(types.StatusSucceeded, types.StatusFailed)).Snapshot()
	require.NoError(t, err)

	out := s.Menu("ActionStatus").String()
	assert.Contains(t, out, "● failing")
	assert.Contains(t, out, "✓ [0] owner/repo-a")
	assert.Contains(t, out, "✗ [1] owner/repo-b")
	assert.Contains(t, out, "Check For Updates…")
}
