package testhelper

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/keepkey-community/wallet-gateway/walletstate"
)

var (
	_ walletstate.Signer      = (*MemWallet)(nil)
	_ walletstate.Broadcaster = (*MemWallet)(nil)
)

// MemWallet is a deterministic in-process signer and broadcaster. Signed
// payloads wrap the input so tests can assert what reached the device, and
// every broadcast is recorded.
type MemWallet struct {
	lk        sync.Mutex
	fail      bool
	broadcast [][]byte
	txSeq     int
}

func NewMemWallet() *MemWallet {
	return &MemWallet{}
}

func (m *MemWallet) SetFail(fail bool) {
	m.lk.Lock()
	defer m.lk.Unlock()
	m.fail = fail
}

func (m *MemWallet) failing() bool {
	m.lk.Lock()
	defer m.lk.Unlock()
	return m.fail
}

func (m *MemWallet) SignTransaction(ctx context.Context, networkID, path string, unsigned json.RawMessage) (json.RawMessage, error) {
	if m.failing() {
		return nil, fmt.Errorf("mock error")
	}
	signed, err := json.Marshal(map[string]interface{}{
		"network": networkID,
		"path":    path,
		"payload": unsigned,
	})
	if err != nil {
		return nil, err
	}
	return signed, nil
}

func (m *MemWallet) SignMessage(ctx context.Context, networkID, path string, message []byte) (string, error) {
	if m.failing() {
		return "", fmt.Errorf("mock error")
	}
	return "0x" + hex.EncodeToString(message), nil
}

func (m *MemWallet) SignTypedData(ctx context.Context, networkID, path string, typedData json.RawMessage) (string, error) {
	if m.failing() {
		return "", fmt.Errorf("mock error")
	}
	return "0x" + hex.EncodeToString(typedData), nil
}

func (m *MemWallet) Broadcast(ctx context.Context, networkID string, signed json.RawMessage) (string, error) {
	if m.failing() {
		return "", fmt.Errorf("mock error")
	}
	m.lk.Lock()
	defer m.lk.Unlock()
	m.broadcast = append(m.broadcast, append([]byte(nil), signed...))
	m.txSeq++
	return fmt.Sprintf("0x%064x", m.txSeq), nil
}

// Broadcasts returns every payload handed to Broadcast, in order.
func (m *MemWallet) Broadcasts() [][]byte {
	m.lk.Lock()
	defer m.lk.Unlock()
	out := make([][]byte, len(m.broadcast))
	copy(out, m.broadcast)
	return out
}
