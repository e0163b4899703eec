package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCommand() *cobra.Command {
	cmd := &cobra.Command{Use: "test"}
	RegisterParseFlags(cmd)
	RegisterRenderFlags(cmd)
	RegisterBatchFlags(cmd)
	RegisterServerFlags(cmd)
	return cmd
}

func TestFromCommandDefaults(t *testing.T) {
	cmd := newTestCommand()

	cfg, err := FromCommand(cmd, "")

	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestFromCommandFlagsWinOverFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := "workers: 2\ndefault_charset: iso-8859-1\nhtml_output: true\n"
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0644))

	cmd := newTestCommand()
	require.NoError(t, cmd.Flags().Set("workers", "5"))
	require.NoError(t, cmd.Flags().Set("detect-charset", "false"))

	cfg, err := FromCommand(cmd, path)

	require.NoError(t, err)
	assert.Equal(t, 5, cfg.Workers, "flag wins over file")
	assert.False(t, cfg.DetectCharset, "explicit flag wins over default")
	assert.Equal(t, "iso-8859-1", cfg.DefaultCharset, "file value survives without a flag")
	assert.True(t, cfg.HTMLOutput)
}

func TestFromCommandSkipsUnregisteredFlags(t *testing.T) {
	cmd := &cobra.Command{Use: "bare"}
	RegisterParseFlags(cmd)

	cfg, err := FromCommand(cmd, "")

	require.NoError(t, err)
	assert.Equal(t, Default().Workers, cfg.Workers)
}

func TestFromCommandValidates(t *testing.T) {
	cmd := newTestCommand()
	require.NoError(t, cmd.Flags().Set("workers", "0"))

	_, err := FromCommand(cmd, "")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "workers")
}

func TestFromCommandMissingFile(t *testing.T) {
	cmd := newTestCommand()

	_, err := FromCommand(cmd, "/nonexistent/config.yaml")

	require.Error(t, err)
}
