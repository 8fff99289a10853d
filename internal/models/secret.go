package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
)

// SecretRecord is the credential document stored for the database instance.
// It lives for one invocation and is never written anywhere.
type SecretRecord struct {
	Host     string     `json:"host" validate:"required"`
	Port     SecretPort `json:"port"`
	Username string     `json:"username" validate:"required"`
	Password string     `json:"password" validate:"required"`
}

// MarshalZerologObject keeps the password out of structured logs.
func (s SecretRecord) MarshalZerologObject(e *zerolog.Event) {
	e.Str("host", s.Host).Int("port", int(s.Port)).Str("username", s.Username)
}

// String never includes the password.
func (s SecretRecord) String() string {
	return fmt.Sprintf("host=%s port=%d username=%s", s.Host, s.Port, s.Username)
}

// SecretPort accepts both the numeric form written by RDS and a quoted string.
type SecretPort int

func (p *SecretPort) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" || raw == `""` {
		*p = 0
		return nil
	}
	raw = strings.Trim(raw, `"`)

	n, err := strconv.Atoi(raw)
	if err != nil {
		return fmt.Errorf("port %s is not a number: %w", raw, err)
	}
	*p = SecretPort(n)
	return nil
}

func (p SecretPort) MarshalJSON() ([]byte, error) {
	return json.Marshal(int(p))
}
