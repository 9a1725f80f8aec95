package walletstate

import (
	"context"
	"encoding/json"
)

// Signer is the external hardware-wallet capability. Payload contents are
// chain specific and opaque to the gateway; the device owns serialization
// and key material.
type Signer interface {
	SignTransaction(ctx context.Context, networkID, path string, unsigned json.RawMessage) (json.RawMessage, error)
	SignMessage(ctx context.Context, networkID, path string, message []byte) (string, error)
	SignTypedData(ctx context.Context, networkID, path string, typedData json.RawMessage) (string, error)
}

// Broadcaster submits a signed transaction to its network and returns the
// transaction id.
type Broadcaster interface {
	Broadcast(ctx context.Context, networkID string, signed json.RawMessage) (string, error)
}
