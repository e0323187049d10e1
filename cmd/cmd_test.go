package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mezonai/starledger/mempool"
	"github.com/mezonai/starledger/wallet"
)

func resetFlags() {
	configPath, iniPath, storeType, dataDir = "", "", "", ""
	signKey, signKeyFile, signMessage, signAddress = "", "", "", ""
	signEd25519, signNewKey = false, false
	signTimestamp = 0
}

func TestLoadConfigurationFlagOverrides(t *testing.T) {
	resetFlags()
	t.Cleanup(resetFlags)

	dir := t.TempDir()
	ini := filepath.Join(dir, "overrides.ini")
	require.NoError(t, os.WriteFile(ini, []byte("[validation]\nwindow_seconds = 42\n"), 0600))

	iniPath = ini
	storeType = "memory"
	dataDir = filepath.Join(dir, "data")

	cfg, err := loadConfiguration()
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.Store.Type)
	assert.Equal(t, dataDir, cfg.Store.Directory)
	assert.Equal(t, 42, cfg.Validation.WindowSeconds)
}

func TestLoadConfigurationRejectsUnknownStore(t *testing.T) {
	resetFlags()
	t.Cleanup(resetFlags)

	storeType = "cassandra"
	_, err := loadConfiguration()
	assert.Error(t, err)
}

func TestSignProducesVerifiableSignature(t *testing.T) {
	resetFlags()
	t.Cleanup(resetFlags)

	key, err := wallet.NewBitcoinKey()
	require.NoError(t, err)
	wif, err := key.WIF()
	require.NoError(t, err)
	address, err := key.Address()
	require.NoError(t, err)

	var out bytes.Buffer
	signCmd.SetOut(&out)
	t.Cleanup(func() { signCmd.SetOut(nil) })

	signKey = wif
	signTimestamp = 1700000000
	require.NoError(t, signCmd.RunE(signCmd, nil))

	var signature string
	for _, line := range strings.Split(out.String(), "\n") {
		if strings.HasPrefix(line, "signature:") {
			signature = strings.TrimSpace(strings.TrimPrefix(line, "signature:"))
		}
	}
	require.NotEmpty(t, signature)

	msg := mempool.ChallengeMessage(address, 1700000000)
	assert.True(t, wallet.DefaultVerifier().Verify(msg, address, signature))
}

func TestSignRequiresKey(t *testing.T) {
	resetFlags()
	t.Cleanup(resetFlags)

	err := signCmd.RunE(signCmd, nil)
	assert.Error(t, err)
}
