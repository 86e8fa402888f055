package idgen

import (
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextIDUniqueUnderConcurrency(t *testing.T) {
	Init(3)

	const workers, perWorker = 8, 500
	var (
		mu   sync.Mutex
		seen = make(map[int64]struct{}, workers*perWorker)
		wg   sync.WaitGroup
	)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				id := NextID()
				mu.Lock()
				seen[id] = struct{}{}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Len(t, seen, workers*perWorker)
}

func TestGenerateNoPrefixes(t *testing.T) {
	w := GenerateWithdrawalNo()
	tx := GenerateTransactionNo()

	assert.True(t, strings.HasPrefix(w, "WDR"), w)
	assert.True(t, strings.HasPrefix(tx, "PTX"), tx)
	assert.Len(t, w, 3+8+19)
	assert.NotEqual(t, GenerateTransactionNo(), GenerateTransactionNo())
}
