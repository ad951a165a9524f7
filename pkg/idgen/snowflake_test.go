package idgen

import (
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNextIDUnique(t *testing.T) {
	const n = 10000

	var mu sync.Mutex
	seen := make(map[int64]struct{}, n)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < n/10; j++ {
				id := NextID()
				mu.Lock()
				_, dup := seen[id]
				seen[id] = struct{}{}
				mu.Unlock()
				assert.False(t, dup, "ID 重复: %d", id)
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, n)
}

func TestNextIDMonotonic(t *testing.T) {
	prev := NextID()
	for i := 0; i < 1000; i++ {
		id := NextID()
		assert.Greater(t, id, prev)
		prev = id
	}
}

func TestGenerateInvoiceNo(t *testing.T) {
	no := GenerateInvoiceNo()
	assert.True(t, strings.HasPrefix(no, "INV"))
	assert.Len(t, no, 3+14+8)
}

func TestGenerateTransactionNo(t *testing.T) {
	no := GenerateTransactionNo()
	assert.True(t, strings.HasPrefix(no, "TXN"))
	assert.Len(t, no, 3+14+8)
}
