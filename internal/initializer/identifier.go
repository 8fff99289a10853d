package initializer

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5"
)

const maxIdentifierLength = 63

var ErrInvalidDatabaseName = errors.New("invalid database name")

//nolint:gochecknoglobals
var databaseNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_$]*$`)

// ValidateDatabaseName accepts plain PostgreSQL identifiers only.
func ValidateDatabaseName(name string) error {
	switch {
	case name == "":
		return fmt.Errorf("%w: name is empty", ErrInvalidDatabaseName)
	case len(name) > maxIdentifierLength:
		return fmt.Errorf("%w: name is longer than %d bytes", ErrInvalidDatabaseName, maxIdentifierLength)
	case !databaseNamePattern.MatchString(name):
		return fmt.Errorf("%w: %q must start with a letter or underscore and contain only letters, digits, underscores or dollar signs", ErrInvalidDatabaseName, name)
	}
	return nil
}

// CreateDatabaseStatement renders the quoted CREATE DATABASE statement. The name
// is folded to lower case first, which is what the server does with an unquoted
// identifier.
func CreateDatabaseStatement(name string) (string, error) {
	if err := ValidateDatabaseName(name); err != nil {
		return "", err
	}
	return "CREATE DATABASE " + pgx.Identifier{strings.ToLower(name)}.Sanitize(), nil
}
