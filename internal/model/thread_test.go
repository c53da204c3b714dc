package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestThreadContext_Texts(t *testing.T) {
	t.Parallel()

	ctx := ThreadContext{
		Current: Message{ID: "3", Content: "Shipping terms FOB"},
		History: []Message{
			{ID: "1", Content: "Need a quote"},
			{ID: "2", Content: "   "},
		},
	}
	assert.Equal(t, []string{"Shipping terms FOB", "Need a quote"}, ctx.Texts())
	assert.Empty(t, ThreadContext{}.Texts())
}

func TestThread_Context(t *testing.T) {
	t.Parallel()

	latest := &Extraction{Shipment: Fields{"origin": "Shanghai"}}

	empty := &Thread{ID: "t"}
	assert.Equal(t, ThreadContext{Latest: latest}, empty.Context(latest))

	th := &Thread{
		ID: "t",
		Messages: []Message{
			{ID: "1", Content: "first"},
			{ID: "2", Content: "second"},
		},
	}
	ctx := th.Context(latest)
	assert.Equal(t, "2", ctx.Current.ID)
	assert.Len(t, ctx.History, 1)
	assert.Equal(t, "1", ctx.History[0].ID)
	assert.Same(t, latest, ctx.Latest)
}
