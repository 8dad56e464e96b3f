package fpenv

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAcquireRelease(t *testing.T) {
	ctx := Acquire()
	assert.NotNil(t, ctx)
	ctx.Release()
}

func TestReleaseIsIdempotent(t *testing.T) {
	ctx := Acquire()
	ctx.Release()
	ctx.Release()
}

func TestNestedScopes(t *testing.T) {
	outer := Acquire()
	inner := Acquire()
	inner.Release()
	outer.Release()
}
