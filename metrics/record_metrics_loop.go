package metrics

import (
	"context"
	"time"

	"github.com/keepkey-community/wallet-gateway/store"
)

// RecordQueueDepthLoop samples queue depths once a minute so operators can
// see stuck approvals.
func RecordQueueDepthLoop(ctx context.Context, st store.Store) {
	ticker := time.NewTicker(60 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			recordQueueDepth(ctx, st)
		case <-ctx.Done():
			log.Infof("context done, stop record metrics")
			return
		}
	}
}

func recordQueueDepth(ctx context.Context, st store.Store) {
	pending, err := st.List(ctx, store.QueuePending)
	if err != nil {
		log.Warnf("failed to list pending queue %v", err)
		return
	}
	awaiting, err := st.List(ctx, store.QueueAwaitingApproval)
	if err != nil {
		log.Warnf("failed to list awaiting-approval queue %v", err)
		return
	}

	PendingRecords.Set(ctx, int64(len(pending)))
	AwaitingApprovalRecords.Set(ctx, int64(len(awaiting)))
}
