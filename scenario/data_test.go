package scenario

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestData(t *testing.T) {
	d := NewData()
	assert.Nil(t, d.Get("pageTitle"))

	d.Set("pageTitle", "StackDemo")
	d.SetMultiple(map[string]any{"product": "iPhone 12", "qty": 2})

	assert.Equal(t, "StackDemo", d.Get("pageTitle"))
	assert.Equal(t, map[string]any{"product": "iPhone 12", "missing": nil}, d.GetMultiple("product", "missing"))
	assert.Equal(t, map[string]any{"pageTitle": "StackDemo", "product": "iPhone 12", "qty": 2}, d.All())

	title, ok := d.String("pageTitle")
	assert.True(t, ok)
	assert.Equal(t, "StackDemo", title)
	_, ok = d.String("qty")
	assert.False(t, ok)

	_, ok = d.Lookup("missing")
	assert.False(t, ok)
}

func TestAllReturnsCopy(t *testing.T) {
	d := NewData()
	d.Set("a", 1)
	all := d.All()
	all["a"] = 2
	assert.Equal(t, 1, d.Get("a"))
}

func TestContext(t *testing.T) {
	_, ok := FromContext(context.Background())
	assert.False(t, ok)

	d := NewData()
	ctx := WithData(context.Background(), d)
	got, ok := FromContext(ctx)
	require.True(t, ok)
	assert.Same(t, d, got)

	// a fresh scenario does not see the previous one's data
	d.Set("pageTitle", "old")
	next, _ := FromContext(WithData(ctx, NewData()))
	assert.Nil(t, next.Get("pageTitle"))
}
