package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorBuilder(t *testing.T) {
	err := Newf("login page returned status %d", 503).
		Category(CategoryNetwork).
		Component("session").
		Context("status_code", 503).
		Build()

	require.Error(t, err)
	assert.Equal(t, "login page returned status 503", err.Error())
	assert.Equal(t, CategoryNetwork, err.Category)
	assert.Equal(t, "session", err.GetComponent())
	assert.Equal(t, 503, err.GetContext()["status_code"])
	assert.False(t, err.GetTimestamp().IsZero())
}

func TestBuildDefaults(t *testing.T) {
	err := Newf("something went wrong").Build()

	assert.Equal(t, CategoryGeneric, err.Category)
	assert.Equal(t, ComponentUnknown, err.GetComponent())
	assert.Nil(t, err.GetContext())
}

func TestUnwrap(t *testing.T) {
	base := NewStd("base error")
	wrapped := Newf("wrapped: %w", base).Category(CategoryFileIO).Build()

	assert.True(t, Is(wrapped, base))

	var ee *EnhancedError
	require.True(t, As(wrapped, &ee))
	assert.Equal(t, CategoryFileIO, ee.Category)
}

func TestIsCategory(t *testing.T) {
	protoErr := Newf("execution token missing").Category(CategoryProtocol).Build()
	authErr := Newf("session cookie not present").Category(CategoryAuthentication).Build()

	assert.True(t, IsProtocol(protoErr))
	assert.False(t, IsProtocol(authErr))
	assert.True(t, IsAuthentication(authErr))
	assert.False(t, IsAuthentication(protoErr))

	// Category check survives wrapping with fmt.Errorf
	wrapped := fmt.Errorf("login failed: %w", protoErr)
	assert.True(t, IsCategory(wrapped, CategoryProtocol))
}

func TestContextCopyIsolation(t *testing.T) {
	err := Newf("err").Context("key", "value").Build()

	ctx := err.GetContext()
	ctx["key"] = "mutated"

	assert.Equal(t, "value", err.GetContext()["key"])
}
