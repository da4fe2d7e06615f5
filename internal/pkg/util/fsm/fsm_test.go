package fsm

import (
	"context"
	"errors"
	"testing"

	"github.com/looplab/fsm"
	"github.com/stretchr/testify/assert"
)

func TestWrapEventPropagatesError(t *testing.T) {
	boom := errors.New("boom")
	f := fsm.NewFSM("a",
		fsm.Events{{Name: "go", Src: []string{"a"}, Dst: "b"}},
		fsm.Callbacks{
			"enter_b": WrapEvent(func(context.Context, *fsm.Event) error { return boom }),
		},
	)

	err := f.Event(context.Background(), "go")
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, "b", f.Current())
}

func TestIsInvalidEvent(t *testing.T) {
	f := fsm.NewFSM("a", fsm.Events{{Name: "go", Src: []string{"b"}, Dst: "c"}}, nil)

	assert.True(t, IsInvalidEvent(f.Event(context.Background(), "go")))
	assert.False(t, IsInvalidEvent(errors.New("other")))
}
