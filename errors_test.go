package workspacefs_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/brettbedarf/workspacefs"
	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want workspacefs.Kind
	}{
		{"nil", nil, workspacefs.KindNone},
		{"foreign", errors.New("boom"), workspacefs.KindUnknown},
		{"sentinel", workspacefs.ErrNotFound, workspacefs.KindNotFound},
		{"wrapped", workspacefs.NewError(workspacefs.OpRead, "/a", workspacefs.ErrReadOnly), workspacefs.KindReadOnly},
		{"fmt wrapped", fmt.Errorf("outer: %w", workspacefs.NewError(workspacefs.OpMkdir, "/a/b", workspacefs.ErrParentNotFound)), workspacefs.KindParentNotFound},
		{"errorf", workspacefs.Errorf(workspacefs.OpCreate, "/a", workspacefs.ErrInvalidName, "bad char %q", "/"), workspacefs.KindInvalidName},
		{"partial move wins", fmt.Errorf("%w: %w", workspacefs.ErrPartialMove, workspacefs.ErrDisconnected), workspacefs.KindPartialMove},
		{"joined", errors.Join(errors.New("x"), workspacefs.ErrDisconnected), workspacefs.KindDisconnected},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, workspacefs.KindOf(tt.err))
		})
	}
}

func TestErrorFormatting(t *testing.T) {
	t.Parallel()

	err := workspacefs.NewError(workspacefs.OpWrite, "/home/a.txt", workspacefs.ErrNotFound)
	assert.Equal(t, "write /home/a.txt: not found", err.Error())
	assert.ErrorIs(t, err, workspacefs.ErrNotFound)

	noPath := workspacefs.NewError(workspacefs.OpMount, "", workspacefs.ErrAlreadyExists)
	assert.Equal(t, "mount: already exists", noPath.Error())

	detailed := workspacefs.Errorf(workspacefs.OpValidate, "", workspacefs.ErrInvalidName, "name %q is reserved", "..")
	assert.Equal(t, `validate: invalid name: name ".." is reserved`, detailed.Error())
	assert.ErrorIs(t, detailed, workspacefs.ErrInvalidName)

	var target *workspacefs.Error
	if assert.ErrorAs(t, fmt.Errorf("ctx: %w", detailed), &target) {
		assert.Equal(t, workspacefs.OpValidate, target.Op)
	}
}
