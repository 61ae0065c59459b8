package config

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/FriedCerebrum/WakeOnLanBot/internal/macaddr"
)

// validate is the shared validator instance.
var validate *validator.Validate

// Linux interface names: at most 15 characters, no shell metacharacters.
var ifnamePattern = regexp.MustCompile(`^[A-Za-z0-9._-]{1,15}$`)

func init() {
	validate = validator.New()

	validate.RegisterValidation("strictmac", validateMAC)
	validate.RegisterValidation("ifname", validateIfname)
}

func validateMAC(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true // Let 'required' handle empty values
	}
	return macaddr.Valid(value)
}

func validateIfname(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true
	}
	return ifnamePattern.MatchString(value)
}

// validateStruct validates a struct using the go-playground validator.
func validateStruct(v any) error {
	if err := validate.Struct(v); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			return formatValidationErrors(validationErrors)
		}
		return err
	}
	return nil
}

// formatValidationErrors formats validation errors into a human-readable error.
func formatValidationErrors(errs validator.ValidationErrors) error {
	var messages []string
	for _, e := range errs {
		messages = append(messages, formatFieldError(e))
	}
	return fmt.Errorf("validation failed: %s", strings.Join(messages, "; "))
}

// formatFieldError formats a single field error using the config key it
// came from, e.g. "router.key_path is required".
func formatFieldError(e validator.FieldError) string {
	field := configKey(e.Namespace())

	switch e.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "strictmac":
		return fmt.Sprintf("%s must be a MAC address like 00:11:22:33:44:55", field)
	case "ifname":
		return fmt.Sprintf("%s must be a network interface name", field)
	case "min":
		return fmt.Sprintf("%s must have at least %s entries", field, e.Param())
	case "gte":
		return fmt.Sprintf("%s must be >= %s", field, e.Param())
	case "lte":
		return fmt.Sprintf("%s must be <= %s", field, e.Param())
	case "ne":
		return fmt.Sprintf("%s must not be %s", field, e.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, e.Param())
	default:
		return fmt.Sprintf("%s failed validation: %s", field, e.Tag())
	}
}

// configKey turns a validator namespace such as "Config.Router.KeyPath"
// into the config key "router.key_path".
func configKey(namespace string) string {
	parts := strings.Split(namespace, ".")
	if len(parts) > 1 {
		parts = parts[1:]
	}
	for i, p := range parts {
		parts[i] = toSnakeCase(p)
	}
	return strings.Join(parts, ".")
}

// toSnakeCase converts a PascalCase or camelCase string to snake_case.
// Runs of capitals stay together, so "MAC" becomes "mac" and "HTTP"
// becomes "http".
func toSnakeCase(s string) string {
	var result strings.Builder
	runes := []rune(s)
	for i, r := range runes {
		upper := r >= 'A' && r <= 'Z'
		if upper && i > 0 {
			prevLower := runes[i-1] >= 'a' && runes[i-1] <= 'z'
			nextLower := i+1 < len(runes) && runes[i+1] >= 'a' && runes[i+1] <= 'z'
			if prevLower || (nextLower && runes[i-1] >= 'A' && runes[i-1] <= 'Z') {
				result.WriteByte('_')
			}
		}
		if upper {
			result.WriteRune(r + 32) // Convert to lowercase
		} else {
			result.WriteRune(r)
		}
	}
	return result.String()
}
