package scan

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGate_SuppressesDuplicates(t *testing.T) {
	var g Gate
	assert.True(t, g.Accept("ATT-2021-0001"))
	assert.False(t, g.Accept("ATT-2021-0001"), "same code within the window")
	assert.False(t, g.Accept("ATT-2021-0002"), "any code while busy")

	g.Release()
	assert.True(t, g.Accept("ATT-2021-0001"), "accepted again after release")
}

func TestGate_ConcurrentAcceptAdmitsOne(t *testing.T) {
	var g Gate
	var wg sync.WaitGroup
	accepted := make(chan struct{}, 50)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if g.Accept("ATT-X01") {
				accepted <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(accepted)
	assert.Len(t, accepted, 1)
}
