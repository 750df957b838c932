package application

import (
	"fmt"
	"regexp"

	"github.com/go-playground/validator/v10"
)

var (
	// typeNamePattern matches dotted lowercase type names such as
	// "hello.world" or "text.similarity".
	typeNamePattern = regexp.MustCompile(`^[a-z][a-z0-9_]*(\.[a-z][a-z0-9_]*)*$`)

	// identifierPattern matches instance, call-site and pin names.
	identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_\-]*$`)
)

// RegisterCatalogValidators registers the custom validation functions used
// by catalog configuration struct tags.
// RegisterCatalogValidators returns an error if any validator registration
// fails.
func RegisterCatalogValidators(v *validator.Validate) error {
	if err := v.RegisterValidation("semver", validateSemver); err != nil {
		return fmt.Errorf("failed to register semver validator: %w", err)
	}

	if err := v.RegisterValidation("typename", validateTypeName); err != nil {
		return fmt.Errorf("failed to register typename validator: %w", err)
	}

	if err := v.RegisterValidation("instancename", validateIdentifier); err != nil {
		return fmt.Errorf("failed to register instancename validator: %w", err)
	}

	if err := v.RegisterValidation("pinname", validateIdentifier); err != nil {
		return fmt.Errorf("failed to register pinname validator: %w", err)
	}

	return nil
}

// ValidTypeName reports whether name is acceptable as a function type name.
func ValidTypeName(name string) bool { return typeNamePattern.MatchString(name) }

// validateSemver validates that a string follows semantic versioning
// format (X.Y.Z where X, Y, Z are non-negative integers).
func validateSemver(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	var major, minor, patch int
	n, err := fmt.Sscanf(value, "%d.%d.%d", &major, &minor, &patch)
	return err == nil && n == 3 && major >= 0 && minor >= 0 && patch >= 0
}

// validateTypeName validates the dotted function type name format.
func validateTypeName(fl validator.FieldLevel) bool {
	return ValidTypeName(fl.Field().String())
}

// validateIdentifier validates instance, call-site and pin names.
func validateIdentifier(fl validator.FieldLevel) bool {
	return identifierPattern.MatchString(fl.Field().String())
}
