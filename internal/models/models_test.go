package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAction(t *testing.T) {
	for _, a := range Actions() {
		parsed, err := ParseAction(a.String())
		require.NoError(t, err)
		assert.Equal(t, a, parsed)
	}

	for _, raw := range []string{"", "oncreate", "onRestore"} {
		_, err := ParseAction(raw)
		assert.ErrorIs(t, err, ErrUnknownAction, raw)
	}
}

func TestDecodeEvent(t *testing.T) {
	t.Run("decodes each lifecycle phase into its own type", func(t *testing.T) {
		tests := []struct {
			payload  string
			expected Event
		}{
			{
				payload:  `{"params":{"secretName":"S","databaseName":"mydb","action":"onCreate"}}`,
				expected: CreateEvent{RequestParams{SecretName: "S", DatabaseName: "mydb", Action: ActionCreate}},
			},
			{
				payload:  `{"params":{"secretName":"S","databaseName":"mydb","action":"onUpdate"}}`,
				expected: UpdateEvent{RequestParams{SecretName: "S", DatabaseName: "mydb", Action: ActionUpdate}},
			},
			{
				payload:  `{"params":{"secretName":"S","databaseName":"mydb","action":"onDelete"}}`,
				expected: DeleteEvent{RequestParams{SecretName: "S", DatabaseName: "mydb", Action: ActionDelete}},
			},
		}

		for _, tt := range tests {
			event, _, err := DecodeEvent([]byte(tt.payload))
			require.NoError(t, err)
			assert.Equal(t, tt.expected, event)
		}
	})

	t.Run("missing action is an unknown action", func(t *testing.T) {
		event, params, err := DecodeEvent([]byte(`{"params":{"secretName":"S","databaseName":"mydb"}}`))

		assert.ErrorIs(t, err, ErrUnknownAction)
		assert.Nil(t, event)
		assert.Equal(t, "mydb", params.DatabaseName)
	})

	t.Run("unrecognized action is an unknown action", func(t *testing.T) {
		_, _, err := DecodeEvent([]byte(`{"params":{"action":"onRestore"}}`))

		assert.ErrorIs(t, err, ErrUnknownAction)
	})

	t.Run("wrongly typed action is an unknown action", func(t *testing.T) {
		for _, payload := range []string{
			`{"params":{"secretName":"S","databaseName":"mydb","action":5}}`,
			`{"params":{"secretName":"S","databaseName":"mydb","action":true}}`,
			`{"params":{"secretName":"S","databaseName":"mydb","action":{"name":"onCreate"}}}`,
			`{"params":{"secretName":"S","databaseName":"mydb","action":null}}`,
		} {
			event, params, err := DecodeEvent([]byte(payload))

			assert.ErrorIs(t, err, ErrUnknownAction, payload)
			assert.Nil(t, event, payload)
			assert.Equal(t, "mydb", params.DatabaseName, payload)
		}
	})

	t.Run("payload without params is invalid", func(t *testing.T) {
		_, _, err := DecodeEvent([]byte(`{"secretName":"S"}`))

		assert.ErrorIs(t, err, ErrInvalidPayload)
	})

	t.Run("malformed json is invalid", func(t *testing.T) {
		_, _, err := DecodeEvent([]byte(`{"params":`))

		assert.ErrorIs(t, err, ErrInvalidPayload)
	})
}

func TestSecretRecord(t *testing.T) {
	t.Run("accepts numeric and string ports", func(t *testing.T) {
		var numeric, quoted SecretRecord
		require.NoError(t, json.Unmarshal([]byte(`{"host":"h","port":5432,"username":"u","password":"p"}`), &numeric))
		require.NoError(t, json.Unmarshal([]byte(`{"host":"h","port":"6543","username":"u","password":"p"}`), &quoted))

		assert.Equal(t, SecretPort(5432), numeric.Port)
		assert.Equal(t, SecretPort(6543), quoted.Port)
	})

	t.Run("rejects a non numeric port", func(t *testing.T) {
		var s SecretRecord
		err := json.Unmarshal([]byte(`{"port":"abc"}`), &s)

		assert.Error(t, err)
	})

	t.Run("String omits the password", func(t *testing.T) {
		s := SecretRecord{Host: "h", Port: 5432, Username: "u", Password: "hunter2"}

		assert.Equal(t, "host=h port=5432 username=u", s.String())
		assert.NotContains(t, s.String(), "hunter2")
	})

	t.Run("zerolog object omits the password", func(t *testing.T) {
		var buf bytes.Buffer
		logger := zerolog.New(&buf)
		s := SecretRecord{Host: "h", Port: 5432, Username: "u", Password: "hunter2"}

		logger.Info().Object("secret", s).Msg("fetched")

		assert.Contains(t, buf.String(), `"username":"u"`)
		assert.NotContains(t, buf.String(), "hunter2")
	})
}

func TestCallbackResult(t *testing.T) {
	t.Run("skip result", func(t *testing.T) {
		r := NewSkipResult()

		assert.True(t, r.IsOK())
		assert.True(t, r.IsSkip())

		raw, err := json.Marshal(r)
		require.NoError(t, err)
		assert.JSONEq(t, `{"status":"OK","results":"Skip"}`, string(raw))
	})

	t.Run("error result carries cause and message", func(t *testing.T) {
		r := NewErrorResult(errors.New("dial tcp: refused"), "connect_failed", "could not connect")

		assert.False(t, r.IsOK())
		raw, err := json.Marshal(r)
		require.NoError(t, err)
		assert.JSONEq(t,
			`{"status":"ERROR","err":{"message":"dial tcp: refused","detail":"connect_failed"},"message":"could not connect"}`,
			string(raw))
	})
}
