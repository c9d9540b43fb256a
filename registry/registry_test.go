package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListFieldsIsStable(t *testing.T) {
	fields := ListFields()
	require.Len(t, fields, 12)

	// Fixed catalog order, member fields first.
	assert.Equal(t, "member.first_name", fields[0].Key)
	assert.Equal(t, PhotoFieldKey, fields[5].Key)
	assert.Equal(t, ValidationURLKey, fields[11].Key)

	// Mutating the returned slice must not touch the registry.
	fields[0].Key = "tampered"
	assert.Equal(t, "member.first_name", ListFields()[0].Key)
}

func TestIsAllowed(t *testing.T) {
	for _, f := range ListFields() {
		assert.True(t, IsAllowed(f.Key), f.Key)
	}
	assert.False(t, IsAllowed("member.email"))
	assert.False(t, IsAllowed(""))
	assert.False(t, IsAllowed("member.first_name "))
}

func TestUnknownFieldError(t *testing.T) {
	err := UnknownFieldError("member.email")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown merge field "member.email"`)
}
