package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graphindex/core/internal/errs"
)

func TestValidateIdentifierAcceptsAlphanumericAndUnderscore(t *testing.T) {
	for _, ok := range []string{"File", "Module", "_Private", "calls_function", "A1"} {
		assert.NoError(t, validateIdentifier("label", ok), ok)
	}
}

func TestValidateIdentifierRejectsInjectionAttempts(t *testing.T) {
	malicious := []string{
		"",
		"File) DETACH DELETE n //",
		"File`; DROP",
		"File Relationship",
		"1File",
		"File-Type",
		"File.Type",
	}
	for _, bad := range malicious {
		err := validateIdentifier("label", bad)
		var verr *errs.ValidationError
		require.ErrorAsf(t, err, &verr, "expected %q to be rejected", bad)
	}
}

func TestValidateLabelsRequiresAtLeastOne(t *testing.T) {
	err := validateLabels(nil)
	var verr *errs.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "labels", verr.Field)
}

func TestValidateLabelsRejectsAnyInvalidEntry(t *testing.T) {
	err := validateLabels([]string{"File", "bad label"})
	assert.Error(t, err)
}

func TestValidateLabelsAcceptsAllValid(t *testing.T) {
	assert.NoError(t, validateLabels([]string{"File", "Module"}))
}
