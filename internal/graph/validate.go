package graph

import (
	"regexp"

	"github.com/graphindex/core/internal/errs"
)

// identifierPattern is the only shape a node label or relationship
// type may take before it is string-interpolated into a query,
// since neither is parameterisable in Cypher or the FalkorDB query
// language (§4.3).
var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// validateIdentifier rejects any label or relationship type that
// does not match identifierPattern, before any query is executed.
func validateIdentifier(kind, value string) error {
	if !identifierPattern.MatchString(value) {
		return &errs.ValidationError{
			Field:   kind,
			Message: "must match ^[A-Za-z_][A-Za-z0-9_]*$: " + value,
		}
	}
	return nil
}

// validateLabels validates every label on a node.
func validateLabels(labels []string) error {
	if len(labels) == 0 {
		return &errs.ValidationError{Field: "labels", Message: "at least one label is required"}
	}
	for _, l := range labels {
		if err := validateIdentifier("label", l); err != nil {
			return err
		}
	}
	return nil
}
