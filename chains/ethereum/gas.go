package ethereum

// Gas limit policy. Raw node estimates are unreliable for contract-heavy
// swaps, so estimates get a floor, a proportional margin once they pass the
// threshold, and a hard ceiling that keeps user cost exposure below the
// block gas limit.
const (
	GasFloor           uint64 = 615_000
	GasMarginThreshold uint64 = 1_200_000
	gasMarginPercent   uint64 = 20
	GasCeiling         uint64 = 7_920_000
)

// ClampGas applies the gas limit policy to a raw estimate.
func ClampGas(raw uint64) uint64 {
	gas := raw
	if gas > GasMarginThreshold {
		gas += gas * gasMarginPercent / 100
	}
	if gas < GasFloor {
		gas = GasFloor
	}
	if gas > GasCeiling {
		gas = GasCeiling
	}
	return gas
}
