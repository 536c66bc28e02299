package game

import "impostor/pkg/types"

// WinState is the input to the win policy, evaluated after every Result.
type WinState struct {
	AliveImpostors int
	AliveCrew      int
	Round          int
	TotalRounds    int
}

// CheckWin applies the win policy in order: all impostors out, numeric
// parity (impostors >= crew), then the round limit. WinnerNone means the
// game continues with another round.
func CheckWin(state WinState) (types.Winner, string) {
	if state.AliveImpostors == 0 {
		return types.WinnerMajority, types.WinReasonImpostorsEliminated
	}
	if state.AliveImpostors >= state.AliveCrew {
		return types.WinnerImpostor, types.WinReasonParity
	}
	if state.Round >= state.TotalRounds {
		return types.WinnerImpostor, types.WinReasonSurvival
	}
	return types.WinnerNone, ""
}
