package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Frrank1/arangodb/internal/storeerr"
)

func TestValidateKeyRejectsEmpty(t *testing.T) {
	v := NewValidator()
	err := v.ValidateKey("")
	require.Error(t, err)
	require.True(t, storeerr.Is(err, storeerr.BadParameter))
}

func TestValidateKeyRejectsDisallowedCharacters(t *testing.T) {
	v := NewValidator()
	require.Error(t, v.ValidateKey("has space"))
	require.Error(t, v.ValidateKey("has/slash"))
	require.NoError(t, v.ValidateKey("valid-key_123:foo.bar@baz"))
}

func TestValidateKeyRejectsOversized(t *testing.T) {
	v := NewValidator()
	require.Error(t, v.ValidateKey(strings.Repeat("a", MaxKeySize+1)))
}

func TestValidateCollectionNameRequiresLetterOrUnderscorePrefix(t *testing.T) {
	v := NewValidator()
	require.Error(t, v.ValidateCollectionName("1invalid"))
	require.NoError(t, v.ValidateCollectionName("_system"))
	require.NoError(t, v.ValidateCollectionName("documents"))
}

func TestValidateDocumentRejectsEmptyOrOversized(t *testing.T) {
	v := NewValidatorWithLimits(MaxKeySize, MaxCollectionNameSize, 8)
	require.Error(t, v.ValidateDocument(nil))
	require.Error(t, v.ValidateDocument([]byte("this is too long")))
	require.NoError(t, v.ValidateDocument([]byte("short")))
}

func TestSanitizeKeyStripsDisallowedCharacters(t *testing.T) {
	require.Equal(t, "helloworld", SanitizeKey("hello world"))
}
