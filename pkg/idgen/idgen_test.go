package idgen

import (
	"sync"
	"testing"
	"time"

	"github.com/sony/sonyflake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSequence(t *testing.T) {
	g := NewSequence(100)

	const workers, per = 8, 500
	var mu sync.Mutex
	seen := make(map[int64]struct{}, workers*per)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < per; j++ {
				id, err := g.NextID()
				require.NoError(t, err)
				mu.Lock()
				seen[id] = struct{}{}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, workers*per)
	_, ok := seen[101]
	assert.True(t, ok)
	_, ok = seen[100]
	assert.False(t, ok)
}

func TestSonyflakeMonotonic(t *testing.T) {
	g, err := NewSonyflake(7, time.Time{})
	require.NoError(t, err)

	prev := int64(0)
	for i := 0; i < 100; i++ {
		id, err := g.NextID()
		require.NoError(t, err)
		assert.Greater(t, id, prev)
		assert.EqualValues(t, 7, sonyflake.MachineID(uint64(id)))
		prev = id
	}
}

func TestSonyflakeEpoch(t *testing.T) {
	_, err := NewSonyflake(1, time.Now().Add(time.Hour))
	assert.Error(t, err)

	g, err := New(&Config{Kind: KindSonyflake, MachineID: 42, Epoch: "2025-06-01"})
	require.NoError(t, err)
	id, err := g.NextID()
	require.NoError(t, err)
	assert.EqualValues(t, 42, sonyflake.MachineID(uint64(id)))

	_, err = New(&Config{Kind: KindSonyflake, Epoch: "june"})
	assert.Error(t, err)
}

func TestNew(t *testing.T) {
	g, err := New(nil)
	require.NoError(t, err)
	_, ok := g.(*instanceIDs)
	assert.True(t, ok)

	g, err = New(&Config{Kind: KindSequence, Start: 5})
	require.NoError(t, err)
	id, _ := g.NextID()
	assert.EqualValues(t, 6, id)

	_, err = New(&Config{Kind: "uuid"})
	assert.ErrorIs(t, err, ErrUnknownKind)
}
