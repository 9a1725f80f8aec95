package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Signer.URL = "http://10.0.0.5:9797/rpc/v1"
	cfg.Signer.Token = "sekrit"
	cfg.Ethereum.ChainID = 137
	cfg.Requests.ApprovalTimeout = time.Minute * 5
	cfg.Requests.Retention = time.Hour * 24 * 7

	cfgPath := filepath.Join(t.TempDir(), ConfigFile)
	assert.NoError(t, WriteConfig(cfgPath, cfg))

	res, err := ReadConfig(cfgPath)
	assert.NoError(t, err)
	assert.Equal(t, cfg, res)

	// non-default fields survive the round trip individually, not just by
	// deep-equal luck
	assert.Equal(t, "http://10.0.0.5:9797/rpc/v1", res.Signer.URL)
	assert.Equal(t, "sekrit", res.Signer.Token)
	assert.Equal(t, int64(137), res.Ethereum.ChainID)
	assert.Equal(t, time.Minute*5, res.Requests.ApprovalTimeout)
	assert.Equal(t, time.Hour*24*7, res.Requests.Retention)
}
