package links

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/go-playground/validator/v10"
)

// TargetField is the external name of the target URL field.
const TargetField = "original_url"

const maxTargetLength = 2048

var validate = validator.New()

// ValidateTarget checks that raw is an absolute http or https URL and returns
// it trimmed.
func ValidateTarget(raw string) (string, error) {
	target := strings.TrimSpace(raw)

	if err := validate.Var(target, "required"); err != nil {
		return "", &ValidationError{Field: TargetField, Message: "The original url field is required."}
	}
	if err := validate.Var(target, fmt.Sprintf("max=%d", maxTargetLength)); err != nil {
		return "", &ValidationError{Field: TargetField, Message: "The original url must not be greater than 2048 characters."}
	}
	if err := validate.Var(target, "url"); err != nil {
		return "", &ValidationError{Field: TargetField, Message: "The original url must be a valid URL."}
	}

	u, err := url.Parse(target)
	if err != nil || !u.IsAbs() {
		return "", &ValidationError{Field: TargetField, Message: "The original url must be a valid URL."}
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return "", &ValidationError{Field: TargetField, Message: "The original url must use http or https."}
	}
	if u.Host == "" || u.Hostname() == "" {
		return "", &ValidationError{Field: TargetField, Message: "The original url must include a host."}
	}
	return target, nil
}
