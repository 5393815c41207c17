package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBoolEnvTruthyValues(t *testing.T) {
	for _, v := range []string{"1", "true", "TRUE", "yes", "on", " On "} {
		t.Setenv(EnvDLPOnSend, v)
		assert.True(t, DLPOnSend(), "value %q", v)
	}
	for _, v := range []string{"0", "false", "no", "off", "", "2", "enabled"} {
		t.Setenv(EnvDLPOnSend, v)
		assert.False(t, DLPOnSend(), "value %q", v)
	}
}

func TestBoolEnvDefaults(t *testing.T) {
	assert.True(t, DLPOnSend())
	assert.False(t, DLPBlockOnHigh())
	assert.False(t, AuditSearches())
	assert.False(t, AuditStrict())
}

func TestIntEnvDefaultsAndOverrides(t *testing.T) {
	t.Setenv(EnvMaxContextTokens, "")
	n, err := MaxContextTokens()
	require.NoError(t, err)
	assert.Equal(t, DefaultMaxContextTokens, n)

	t.Setenv(EnvMaxContextTokens, " 1234 ")
	n, err = MaxContextTokens()
	require.NoError(t, err)
	assert.Equal(t, 1234, n)

	t.Setenv(EnvMaxContextTokens, "lots")
	_, err = MaxContextTokens()
	require.Error(t, err)

	t.Setenv(EnvPerDocumentCap, "3")
	n, err = PerDocumentCap()
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}
