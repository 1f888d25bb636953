package gridsync

import (
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEditCoordinator_ApplyEdit(t *testing.T) {
	reg := NewSheetRegistry()
	c := NewEditCoordinator(reg)

	res, err := c.ApplyEdit("s", "B2", Text("Alice"), "", "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Cell.Version)
	assert.True(t, res.Previous.IsNull())

	res, err = c.ApplyEdit("s", "B2", Text("Bob"), "", "u2")
	require.NoError(t, err)
	assert.Equal(t, 2, res.Cell.Version)
	assert.True(t, Text("Alice").Equal(res.Previous))
	assert.Equal(t, 2, c.LastSeenVersion("s", "B2"))
	assert.True(t, Text("Bob").Equal(reg.Read("s", "B2").Value))

	_, err = c.ApplyEdit("s", "B0", Text("x"), "", "u1")
	assert.ErrorIs(t, err, ErrInvalidReference)
}

func TestEditCoordinator_ConcurrentEdits(t *testing.T) {
	reg := NewSheetRegistry()
	c := NewEditCoordinator(reg)
	const writers = 50

	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := c.ApplyEdit("s", "A1", Text(strconv.Itoa(i)), "", "u"+strconv.Itoa(i))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	cell := reg.Read("s", "A1")
	assert.Equal(t, writers, cell.Version)
	assert.Equal(t, writers, c.LastSeenVersion("s", "A1"))
	n, ok := cell.Value.AsNumber()
	require.True(t, ok)
	assert.GreaterOrEqual(t, n, 0.0)
	assert.Less(t, n, float64(writers))
}
