package errors

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError(t *testing.T) {
	e1 := New("cause1")
	e2 := New("cause2").Wrap(e1)
	e := New("dummy").Wrap(e2)
	e3 := e.Unwrap()
	assert.True(t, Is(e, e1))
	assert.True(t, Is(e, e2))
	assert.True(t, e3 == e2)
	assert.Equal(t, "dummy: cause2: cause1", e.Error())
}

func TestWrapKeepsSentinel(t *testing.T) {
	sentinel := New("source read")
	wrapped := sentinel.Wrapf("resource %q", "/a")

	assert.True(t, Is(wrapped, sentinel))
	assert.Equal(t, "source read", sentinel.Error())
	assert.Nil(t, sentinel.Unwrap())
	assert.Equal(t, `source read: resource "/a"`, wrapped.Error())

	other := New("source read")
	assert.False(t, Is(wrapped, other))
}

func TestWrapConcurrently(t *testing.T) {
	sentinel := New("commit")
	var wg sync.WaitGroup
	errs := make([]error, 32)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = sentinel.Wrap(fmt.Errorf("cause %d", i))
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		require.True(t, Is(err, sentinel))
		require.Equal(t, fmt.Sprintf("commit: cause %d", i), err.Error())
	}
}

func TestAs(t *testing.T) {
	sentinel := New("scheduling")
	err := fmt.Errorf("submit: %w", sentinel.Wrap(New("closed")))

	var target *Error
	require.True(t, As(err, &target))
	assert.True(t, Is(target, sentinel))
}
