package sdk

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/keepkey-community/wallet-gateway/walletstate"
)

// Loader pulls keys and balances from the device daemon into the shared
// wallet state, and keeps them fresh on an interval.
type Loader struct {
	client *Client
	state  *walletstate.State
	log    *zap.SugaredLogger
}

func NewLoader(client *Client, state *walletstate.State, log *zap.SugaredLogger) *Loader {
	return &Loader{client: client, state: state, log: log}
}

// Sync does one full key and balance refresh.
func (l *Loader) Sync(ctx context.Context) error {
	keys, err := l.client.Keys(ctx)
	if err != nil {
		return errors.Wrap(err, "load keys")
	}
	flat := make([]walletstate.KeyInfo, 0, len(keys))
	for _, k := range keys {
		flat = append(flat, *k)
	}
	l.state.SetKeys(flat)

	balances, err := l.client.Balances(ctx)
	if err != nil {
		return errors.Wrap(err, "load balances")
	}
	for _, b := range balances {
		l.state.SetBalance(*b)
	}
	l.log.Infof("synced %d keys and %d balances", len(flat), len(balances))
	return nil
}

// Run retries the initial sync until it lands, then refreshes on interval.
func (l *Loader) Run(ctx context.Context, interval time.Duration) {
	for {
		if err := l.Sync(ctx); err != nil {
			l.log.Errorf("wallet state sync errored: %s", err)
			select {
			case <-time.After(time.Second):
				continue
			case <-ctx.Done():
				return
			}
		}
		break
	}
	tm := time.NewTicker(interval)
	defer tm.Stop()
	for {
		select {
		case <-tm.C:
			if err := l.Sync(ctx); err != nil {
				l.log.Errorf("wallet state refresh errored: %s", err)
			}
		case <-ctx.Done():
			return
		}
	}
}
