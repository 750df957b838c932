package application

import (
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalogValidators(t *testing.T) {
	v := validator.New()
	require.NoError(t, RegisterCatalogValidators(v))

	tests := []struct {
		tag   string
		value string
		valid bool
	}{
		{"semver", "1.0.0", true},
		{"semver", "10.20.30", true},
		{"semver", "1.0", false},
		{"semver", "v1.0.0", false},
		{"semver", "", false},
		{"typename", "hello.world", true},
		{"typename", "text.similarity", true},
		{"typename", "plain", true},
		{"typename", "snake_case.v2", true},
		{"typename", "Hello.World", false},
		{"typename", "hello..world", false},
		{"typename", ".hello", false},
		{"typename", "hello world", false},
		{"typename", "1hello", false},
		{"instancename", "greeter", true},
		{"instancename", "exact-match_2", true},
		{"instancename", "-leading", false},
		{"instancename", "has space", false},
		{"pinname", "in", true},
		{"pinname", "_private", true},
		{"pinname", "", false},
		{"pinname", "a.b", false},
	}

	for _, tt := range tests {
		t.Run(tt.tag+"/"+tt.value, func(t *testing.T) {
			err := v.Var(tt.value, tt.tag)
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestValidTypeName(t *testing.T) {
	assert.True(t, ValidTypeName("hello.world"))
	assert.False(t, ValidTypeName(""))
	assert.False(t, ValidTypeName("hello."))
}
