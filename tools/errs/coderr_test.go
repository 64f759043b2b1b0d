package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapKeepsCode(t *testing.T) {
	err := ErrNotAMember.Wrap()
	coded, ok := AsCodeError(err)
	require.True(t, ok)
	assert.Equal(t, NotAMemberCode, coded.Code)
	assert.True(t, errors.Is(err, &ErrNotAMember))
}

func TestWrapMsgAppendsDetail(t *testing.T) {
	err := ErrPersistence.WrapMsg("save failed", "room", "general")
	coded, ok := AsCodeError(err)
	require.True(t, ok)
	assert.Equal(t, PersistenceCode, coded.Code)
	assert.Contains(t, coded.Detail, "save failed")
	assert.Contains(t, coded.Detail, "general")
	// The shared sentinel must not accumulate detail across wraps.
	assert.Empty(t, ErrPersistence.Detail)
}

func TestAsCodeErrorOnForeignError(t *testing.T) {
	_, ok := AsCodeError(fmt.Errorf("plain"))
	assert.False(t, ok)
	_, ok = AsCodeError(nil)
	assert.False(t, ok)

	wrapped := WrapMsg(fmt.Errorf("io broke"), "context")
	_, ok = AsCodeError(wrapped)
	assert.False(t, ok, "foreign errors carry no business code")
}

func TestName(t *testing.T) {
	assert.Equal(t, "NotAMember", Name(NotAMemberCode))
	assert.Equal(t, "ValidationError", Name(ArgsError))
	assert.Equal(t, "PersistenceFailure", Name(PersistenceCode))
	assert.Equal(t, "InternalError", Name(999999))
}
