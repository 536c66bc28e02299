package statemachine

import "impostor/pkg/types"

// transitions is the complete edge table. Anything not listed is illegal.
var transitions = map[types.Phase][]types.Phase{
	types.PhaseIdle:       {types.PhaseAssignment},
	types.PhaseAssignment: {types.PhaseCluesTurn},
	types.PhaseCluesTurn:  {types.PhaseDiscussion},
	types.PhaseDiscussion: {types.PhaseVoting},
	types.PhaseVoting:     {types.PhaseResult},
	types.PhaseResult:     {types.PhaseGameEnd, types.PhaseNextRound},
	types.PhaseNextRound:  {types.PhaseAssignment},
}

// CanTransition reports whether the table has an edge from -> to.
func CanTransition(from, to types.Phase) bool {
	for _, phase := range transitions[from] {
		if phase == to {
			return true
		}
	}
	return false
}

// actionPhases maps each participant action to the only phase accepting it.
var actionPhases = map[types.Action]types.Phase{
	types.ActionSubmitClue:            types.PhaseCluesTurn,
	types.ActionCastVote:              types.PhaseVoting,
	types.ActionSendDiscussionMessage: types.PhaseDiscussion,
}
