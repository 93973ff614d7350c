package environment

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOsEnvProviderFound(t *testing.T) {
	t.Setenv("TEST1", "VALUE1")

	provider := NewOsEnvProvider()
	value, found := provider.Get(t.Context(), "TEST1")

	assert.True(t, found)
	assert.Equal(t, "VALUE1", value)
}

func TestOsEnvProviderEmpty(t *testing.T) {
	t.Setenv("TEST2", "")

	provider := NewOsEnvProvider()
	value, found := provider.Get(t.Context(), "TEST2")

	assert.True(t, found)
	assert.Empty(t, value)
}

func TestOsEnvProviderNotFound(t *testing.T) {
	provider := NewOsEnvProvider()
	_, found := provider.Get(t.Context(), "RULELAWYER_SURELY_UNSET_VARIABLE")

	assert.False(t, found)
}

func TestLookup(t *testing.T) {
	t.Setenv("RULELAWYER_TEST_EMPTY", "")
	t.Setenv("RULELAWYER_TEST_SET", "sk-2")

	env := NewOsEnvProvider()
	assert.Equal(t, "sk-2", Lookup(t.Context(), env, "RULELAWYER_TEST_UNSET", "RULELAWYER_TEST_EMPTY", "RULELAWYER_TEST_SET"))
	assert.Empty(t, Lookup(t.Context(), env, "RULELAWYER_TEST_UNSET"))
}
