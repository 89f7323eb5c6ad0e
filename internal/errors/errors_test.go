package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilderDefaults(t *testing.T) {
	t.Parallel()

	ce := New(fmt.Errorf("boom")).Build()
	require.Equal(t, "boom", ce.Error())
	assert.Equal(t, CategoryGeneric, ce.Category)
}

func TestBuilderComponentAndCategory(t *testing.T) {
	t.Parallel()

	ce := New(fmt.Errorf("pool exhausted")).
		Component("pool").
		Category(CategoryInit).
		Context("requested_bytes", 128).
		Build()

	assert.Equal(t, "pool", ce.GetComponent())
	assert.Equal(t, CategoryInit, ce.Category)
	assert.Equal(t, 128, ce.GetContext()["requested_bytes"])
}

func TestIsCategory(t *testing.T) {
	t.Parallel()

	var err error = New(fmt.Errorf("bad arg")).Category(CategoryRuntime).Build()
	assert.True(t, IsCategory(err, CategoryRuntime))
	assert.False(t, IsCategory(err, CategoryCDC))
}

func TestUnwrap(t *testing.T) {
	t.Parallel()

	base := fmt.Errorf("base")
	ce := New(base).Build()
	assert.Equal(t, base, Unwrap(ce))
	assert.True(t, Is(ce, base))
}
