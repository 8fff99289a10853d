package invoke

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"db-initializer/internal/models"
)

const sampleEvent = `{"params":{"secretName":"S","databaseName":"mydb","action":"onCreate"}}`

func TestReadEvent(t *testing.T) {
	t.Run("stdin", func(t *testing.T) {
		for _, path := range []string{"", "-"} {
			raw, err := readEvent(strings.NewReader(sampleEvent), path)

			require.NoError(t, err)
			assert.JSONEq(t, sampleEvent, string(raw))
		}
	})

	t.Run("file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "event.json")
		require.NoError(t, os.WriteFile(path, []byte(sampleEvent), 0o600))

		raw, err := readEvent(strings.NewReader("ignored"), path)

		require.NoError(t, err)
		assert.JSONEq(t, sampleEvent, string(raw))
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := readEvent(nil, filepath.Join(t.TempDir(), "absent.json"))

		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to read event")
	})
}

func TestWriteResult(t *testing.T) {
	t.Run("ok result", func(t *testing.T) {
		var buf bytes.Buffer

		require.NoError(t, writeResult(&buf, models.NewOKResult("host=h port=5432 username=u")))

		var decoded models.CallbackResult
		require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
		assert.True(t, decoded.IsOK())
		assert.Equal(t, "host=h port=5432 username=u", decoded.Results)
	})

	t.Run("error result", func(t *testing.T) {
		var buf bytes.Buffer

		result := models.NewErrorResult(errors.New("boom"), "connect_failed", "Failed to connect to database server")
		require.NoError(t, writeResult(&buf, result))

		assert.Contains(t, buf.String(), `"status": "ERROR"`)
		assert.Contains(t, buf.String(), `"detail": "connect_failed"`)
	})
}

func TestRunInvokeFailsOnInvalidConfig(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	cmd := &cobra.Command{}
	cmd.SetContext(context.Background())
	cmd.SetIn(strings.NewReader(sampleEvent))
	var out bytes.Buffer
	cmd.SetOut(&out)

	err := runInvoke(cmd, nil)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "Config.ID is required")
	assert.Empty(t, out.String())
}
