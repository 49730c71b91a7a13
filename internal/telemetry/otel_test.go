package telemetry

import (
	"bytes"
	"context"
	"testing"

	"github.com/aaronromeo/imapbox/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupDisabledUsesTextLogger(t *testing.T) {
	var stderr bytes.Buffer
	tel, err := Setup(context.Background(), config.Telemetry{}, WithStderr(&stderr))
	require.NoError(t, err)

	tel.Logger.Debug("hidden")
	tel.Logger.Info("folder selected", "folder", "INBOX")
	require.NoError(t, tel.Shutdown(context.Background()))

	assert.NotContains(t, stderr.String(), "hidden")
	assert.Contains(t, stderr.String(), "folder=INBOX")
}

func TestSetupDisabledVerbose(t *testing.T) {
	var stderr bytes.Buffer
	tel, err := Setup(context.Background(), config.Telemetry{}, WithStderr(&stderr), WithVerbose(true))
	require.NoError(t, err)

	tel.Logger.Debug("expanded criteria")
	assert.Contains(t, stderr.String(), "expanded criteria")
}

func TestSetupStdoutExportsLogs(t *testing.T) {
	var stdout bytes.Buffer
	tel, err := Setup(context.Background(), config.Telemetry{Mode: "stdout"}, WithStdout(&stdout))
	require.NoError(t, err)

	tel.Logger.Info("cleanup finished")
	require.NoError(t, tel.Shutdown(context.Background()))
	require.NoError(t, tel.Shutdown(context.Background()))

	assert.Contains(t, stdout.String(), "cleanup finished")
}
