package secretstore

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"db-initializer/internal/models"
)

//nolint:gochecknoglobals
var validate = validator.New(validator.WithRequiredStructEnabled())

// ParseSecret decodes the JSON credential document. Unknown fields are ignored;
// host, username and password are required.
func ParseSecret(raw []byte) (*models.SecretRecord, error) {
	var record models.SecretRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedSecret, err)
	}

	if err := validate.Struct(record); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMalformedSecret, describeValidationError(err))
	}
	return &record, nil
}

// describeValidationError names the failing fields without echoing their values.
func describeValidationError(err error) string {
	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return err.Error()
	}

	missing := make([]string, 0, len(validationErrors))
	for _, fe := range validationErrors {
		missing = append(missing, strings.ToLower(fe.Field()))
	}
	return "missing " + strings.Join(missing, ", ")
}
