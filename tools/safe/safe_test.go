package safe

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"IMGateway/tools/errs"
)

func TestMustNotNil(t *testing.T) {
	assert.NotPanics(t, func() { MustNotNil("value", "s") })
	assert.NotPanics(t, func() { MustNotNil(42, "n") })
	assert.NotPanics(t, func() { MustNotNil(&struct{}{}, "ptr") })

	assert.PanicsWithValue(t, "x must not be nil", func() { MustNotNil(nil, "x") })

	var p *struct{}
	assert.PanicsWithValue(t, "ptr must not be nil", func() { MustNotNil(p, "ptr") })

	var m map[string]int
	assert.PanicsWithValue(t, "m must not be nil", func() { MustNotNil(m, "m") })

	var fn func()
	assert.PanicsWithValue(t, "fn must not be nil", func() { MustNotNil(fn, "fn") })
}

func TestRecoveredConvertsPanic(t *testing.T) {
	err := Recovered(func() error { panic("boom") })
	require.Error(t, err)
	coded, ok := errs.AsCodeError(err)
	require.True(t, ok)
	assert.Equal(t, errs.ServerInternalError, coded.Code)
}

func TestRecoveredPassesThroughError(t *testing.T) {
	want := errs.ErrValidation.WrapMsg("bad input")
	assert.Equal(t, want.Error(), Recovered(func() error { return want }).Error())
	assert.NoError(t, Recovered(func() error { return nil }))
}
