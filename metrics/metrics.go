package metrics

import (
	"time"

	"github.com/ipfs-force-community/metrics"
	"go.opencensus.io/stats"
	"go.opencensus.io/stats/view"
	"go.opencensus.io/tag"
)

// Global Tags
var (
	ChainKey, _  = tag.NewKey("chain")
	MethodKey, _ = tag.NewKey("method")
	SiteKey, _   = tag.NewKey("site")
)

// Distribution
var defaultMillisecondsDistribution = view.Distribution(0.01, 0.05, 0.1, 0.3, 0.6, 0.8, 1, 2, 3, 4, 5, 6, 8, 10, 13, 16, 20, 25, 30, 40, 50, 65, 80, 100, 130, 160, 200, 250, 300, 400, 500, 650, 800, 1000, 2000, 3000, 4000, 5000, 7500, 10000, 20000, 50000, 100000)

var (
	// dispatch
	RequestCount    = metrics.NewCounter("request/count", "Dispatched wallet requests", ChainKey, MethodKey)
	RequestErrors   = metrics.NewCounter("request/errors", "Requests that resolved to a provider error", ChainKey, MethodKey)
	RequestDuration = stats.Float64("request/duration", "Request handling time", stats.UnitMilliseconds)

	// approval gate
	ApprovalRequested = stats.Int64("approval/requested", "Approval gate invocations", stats.UnitDimensionless)
	ApprovalApproved  = stats.Int64("approval/approved", "Approvals granted", stats.UnitDimensionless)
	ApprovalRejected  = stats.Int64("approval/rejected", "Approvals denied", stats.UnitDimensionless)
	ApprovalWait      = stats.Float64("approval/wait", "Time blocked on user decision", stats.UnitMilliseconds)

	// chain handlers
	TxBuilt     = metrics.NewCounter("tx/built", "Unsigned transactions built", ChainKey)
	TxBroadcast = metrics.NewCounter("tx/broadcast", "Signed transactions broadcast", ChainKey)

	// queue depth
	PendingRecords          = metrics.NewInt64("queue/pending", "Records awaiting user decision", "")
	AwaitingApprovalRecords = metrics.NewInt64("queue/awaiting_approval", "Approved records being processed", "")

	ApiState = metrics.NewInt64("api/state", "api service state. 0: down, 1: up", "")
)

var (
	requestDurationView = &view.View{
		Measure:     RequestDuration,
		Aggregation: defaultMillisecondsDistribution,
		TagKeys:     []tag.Key{ChainKey, MethodKey},
	}
	approvalRequestedView = &view.View{
		Measure:     ApprovalRequested,
		Aggregation: view.Count(),
		TagKeys:     []tag.Key{ChainKey, SiteKey},
	}
	approvalApprovedView = &view.View{
		Measure:     ApprovalApproved,
		Aggregation: view.Count(),
		TagKeys:     []tag.Key{ChainKey},
	}
	approvalRejectedView = &view.View{
		Measure:     ApprovalRejected,
		Aggregation: view.Count(),
		TagKeys:     []tag.Key{ChainKey},
	}
	approvalWaitView = &view.View{
		Measure:     ApprovalWait,
		Aggregation: defaultMillisecondsDistribution,
		TagKeys:     []tag.Key{ChainKey},
	}
)

var views = []*view.View{
	requestDurationView,
	approvalRequestedView,
	approvalApprovedView,
	approvalRejectedView,
	approvalWaitView,
}

// SinceInMilliseconds returns the duration of time since the provide time as a float64.
func SinceInMilliseconds(startTime time.Time) float64 {
	return float64(time.Since(startTime).Nanoseconds()) / 1e6
}

func init() {
	// register metrics
	_ = view.Register(views...)
}
