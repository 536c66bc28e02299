package game

import (
	"errors"
	"testing"

	"impostor/pkg/types"
)

func TestNewController_ConfigViolations(t *testing.T) {
	tests := []struct {
		name     string
		ids      []string
		mutate   func(*Options)
		seats    []int
		expected error
	}{
		{"single participant", []string{"a"}, nil, []int{0}, ErrTooFewParticipants},
		{"no participants", nil, nil, []int{0}, ErrTooFewParticipants},
		{"impostors equal participants", []string{"a", "b"}, func(o *Options) { o.ImpostorCount = 2 }, []int{0}, ErrTooManyImpostors},
		{"zero impostors", []string{"a", "b", "c"}, func(o *Options) { o.ImpostorCount = 0 }, []int{0}, ErrInvalidImpostorCount},
		{"zero rounds", []string{"a", "b", "c"}, func(o *Options) { o.TotalRounds = 0 }, []int{0}, ErrInvalidRounds},
		{"duplicate participant", []string{"a", "b", "a"}, nil, []int{0}, ErrDuplicateParticipant},
		{"invalid participant id", []string{"a", "b c"}, nil, []int{0}, ErrInvalidParticipant},
		{"seat out of range", []string{"a", "b"}, nil, []int{5}, ErrInvalidConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := testOptions()
			if tt.mutate != nil {
				tt.mutate(&opts)
			}
			notifier := &recordingNotifier{}

			ctrl, err := NewController(Config{
				RoomID:       "room-1",
				Participants: players(tt.ids...),
				Options:      opts,
				Provider:     &fixedProvider{items: []types.Item{{Word: "x"}}, seats: tt.seats},
				Notifier:     notifier,
			})

			if ctrl != nil {
				t.Error("Expected no controller on config violation")
			}
			if !errors.Is(err, tt.expected) {
				t.Errorf("Expected %v, got %v", tt.expected, err)
			}
			if !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("Expected error to wrap ErrInvalidConfig, got %v", err)
			}
			if notifier.count() != 0 {
				t.Errorf("Expected no events, got %d", notifier.count())
			}
		})
	}
}

func TestNewController_MissingDependencies(t *testing.T) {
	_, err := NewController(Config{RoomID: "room-1", Participants: players("a", "b"), Options: testOptions()})
	if !errors.Is(err, ErrMissingDependency) {
		t.Errorf("Expected ErrMissingDependency, got %v", err)
	}
}

func TestController_StartsIdleAndAssignsRoles(t *testing.T) {
	h := newHarness(t, testOptions(), 3, "a", "b", "c", "d")

	if phase := h.phase(t); phase != types.PhaseIdle {
		t.Fatalf("Expected phase %s before start, got %s", types.PhaseIdle, phase)
	}

	if err := h.ctrl.Start(); err != nil {
		t.Fatalf("Failed to start: %v", err)
	}
	if err := h.ctrl.Start(); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("Expected ErrAlreadyStarted on second start, got %v", err)
	}

	for _, id := range []string{"a", "b", "c"} {
		roles := h.notifier.private(id, types.EventRoleAssigned)
		if len(roles) != 1 {
			t.Fatalf("Expected one role for %s, got %d", id, len(roles))
		}
		role := roles[0].(*types.RoleAssignment)
		if role.IsImpostor || role.Item == nil || role.Item.Word != "lighthouse" {
			t.Errorf("Expected crew role with item for %s, got %+v", id, role)
		}
	}

	impostorRole := h.notifier.private("d", types.EventRoleAssigned)[0].(*types.RoleAssignment)
	if !impostorRole.IsImpostor || impostorRole.Item != nil {
		t.Errorf("Expected impostor role without item, got %+v", impostorRole)
	}

	if h.clock.pendingTimer().d != h.ctrl.opts.AssignmentDuration {
		t.Errorf("Expected assignment timer of %v", h.ctrl.opts.AssignmentDuration)
	}
}

func TestController_MajorityWinsWhenImpostorVotedOut(t *testing.T) {
	h := newHarness(t, testOptions(), 3, "a", "b", "c", "d")
	h.startToClues(t)

	h.submitAllClues(t, "a", "b", "c", "d")

	if phase := h.phase(t); phase != types.PhaseDiscussion {
		t.Fatalf("Expected phase %s after all clues, got %s", types.PhaseDiscussion, phase)
	}
	clues := h.notifier.broadcasts(types.EventClueReceived)
	if len(clues) != 4 {
		t.Fatalf("Expected 4 clues, got %d", len(clues))
	}
	for i, payload := range clues {
		clue := payload.(types.ClueReceived).Clue
		if clue.Order != i+1 {
			t.Errorf("Expected clue order %d, got %d", i+1, clue.Order)
		}
	}

	h.fire(t) // discussion timer
	if phase := h.phase(t); phase != types.PhaseVoting {
		t.Fatalf("Expected phase %s, got %s", types.PhaseVoting, phase)
	}

	for _, ballot := range [][2]string{{"a", "d"}, {"b", "d"}, {"c", "d"}, {"d", types.SkipVote}} {
		if err := h.ctrl.CastVote(ballot[0], ballot[1]); err != nil {
			t.Fatalf("Expected vote %v to be accepted, got %v", ballot, err)
		}
	}

	if phase := h.phase(t); phase != types.PhaseResult {
		t.Fatalf("Expected phase %s after last vote, got %s", types.PhaseResult, phase)
	}

	eliminated := h.notifier.broadcasts(types.EventPlayerEliminated)
	if len(eliminated) != 1 {
		t.Fatalf("Expected one elimination, got %d", len(eliminated))
	}
	event := eliminated[0].(types.PlayerEliminated)
	if event.ParticipantID != "d" || !event.WasImpostor || event.Votes != 3 {
		t.Errorf("Expected d eliminated as impostor with 3 votes, got %+v", event)
	}

	h.fire(t) // result display
	h.waitDone(t)

	ended := h.notifier.broadcasts(types.EventGameEnded)
	if len(ended) != 1 {
		t.Fatalf("Expected one game_ended, got %d", len(ended))
	}
	result := ended[0].(types.GameEnded)
	if result.Winner != types.WinnerMajority || result.Reason != types.WinReasonImpostorsEliminated {
		t.Errorf("Expected majority win, got %s (%s)", result.Winner, result.Reason)
	}
	if len(result.Impostors) != 1 || result.Impostors[0].ID != "d" {
		t.Errorf("Expected impostor d revealed, got %+v", result.Impostors)
	}

	select {
	case room := <-h.ended:
		if room != "room-1" {
			t.Errorf("Expected OnEnd for room-1, got %s", room)
		}
	default:
		t.Error("Expected OnEnd to be called")
	}

	if h.store.winner != types.WinnerMajority {
		t.Errorf("Expected stored winner majority, got %q", h.store.winner)
	}
	if len(h.store.clues) != 4 || len(h.store.votes) != 4 || len(h.store.results) != 1 {
		t.Errorf("Expected 4 clues, 4 votes and 1 result stored, got %d, %d, %d",
			len(h.store.clues), len(h.store.votes), len(h.store.results))
	}
}

func TestController_TieStartsNextRoundWithFreshItem(t *testing.T) {
	h := newHarness(t, testOptions(), 3, "a", "b", "c", "d")
	h.startToClues(t)
	h.submitAllClues(t, "a", "b", "c", "d")
	h.fire(t)

	for _, ballot := range [][2]string{{"a", "b"}, {"b", "a"}, {"c", "a"}, {"d", "b"}} {
		if err := h.ctrl.CastVote(ballot[0], ballot[1]); err != nil {
			t.Fatalf("Expected vote %v to be accepted, got %v", ballot, err)
		}
	}

	none := h.notifier.broadcasts(types.EventNoElimination)
	if len(none) != 1 || none[0].(types.NoElimination).Reason != types.NoEliminationTie {
		t.Fatalf("Expected one tie no-elimination, got %+v", none)
	}
	if len(h.notifier.broadcasts(types.EventPlayerEliminated)) != 0 {
		t.Error("Expected nobody eliminated on a tie")
	}

	h.fire(t) // result display

	summary, err := h.ctrl.Summary()
	if err != nil {
		t.Fatalf("Failed to read summary: %v", err)
	}
	if summary.Phase != types.PhaseAssignment || summary.Round != 2 {
		t.Fatalf("Expected assignment of round 2, got %s of round %d", summary.Phase, summary.Round)
	}
	if summary.Alive != 4 {
		t.Errorf("Expected 4 alive, got %d", summary.Alive)
	}

	roles := h.notifier.private("a", types.EventRoleAssigned)
	if len(roles) != 2 {
		t.Fatalf("Expected a second role assignment, got %d", len(roles))
	}
	second := roles[1].(*types.RoleAssignment)
	if second.Round != 2 || second.Item == nil || second.Item.Word != "violin" {
		t.Errorf("Expected fresh item for round 2, got %+v", second)
	}

	phases := h.notifier.phases()
	last := phases[len(phases)-2:]
	if last[0] != types.PhaseNextRound || last[1] != types.PhaseAssignment {
		t.Errorf("Expected next_round then assignment, got %v", last)
	}
}

func TestController_ImpostorWinsOnParity(t *testing.T) {
	h := newHarness(t, testOptions(), 2, "a", "b", "c")
	h.startToClues(t)
	h.submitAllClues(t, "a", "b", "c")
	h.fire(t)

	for _, ballot := range [][2]string{{"a", "b"}, {"b", "a"}, {"c", "a"}} {
		if err := h.ctrl.CastVote(ballot[0], ballot[1]); err != nil {
			t.Fatalf("Expected vote %v to be accepted, got %v", ballot, err)
		}
	}

	h.fire(t)
	h.waitDone(t)

	ended := h.notifier.broadcasts(types.EventGameEnded)
	if len(ended) != 1 {
		t.Fatalf("Expected one game_ended, got %d", len(ended))
	}
	result := ended[0].(types.GameEnded)
	if result.Winner != types.WinnerImpostor || result.Reason != types.WinReasonParity {
		t.Errorf("Expected impostor parity win, got %s (%s)", result.Winner, result.Reason)
	}
}

func TestController_ImpostorSurvivesRoundLimit(t *testing.T) {
	opts := testOptions()
	opts.TotalRounds = 1
	h := newHarness(t, opts, 0, "a", "b", "c", "d")
	h.startToClues(t)

	// every turn times out
	for i := 0; i < 4; i++ {
		h.fire(t)
	}
	if phase := h.phase(t); phase != types.PhaseDiscussion {
		t.Fatalf("Expected discussion after forfeited turns, got %s", phase)
	}
	for _, payload := range h.notifier.broadcasts(types.EventClueReceived) {
		clue := payload.(types.ClueReceived).Clue
		if !clue.Forfeited || clue.Text != forfeitText {
			t.Errorf("Expected forfeited clue, got %+v", clue)
		}
	}

	h.fire(t) // discussion
	h.fire(t) // voting, nobody voted

	none := h.notifier.broadcasts(types.EventNoElimination)
	if len(none) != 1 || none[0].(types.NoElimination).Reason != types.NoEliminationNoVotes {
		t.Fatalf("Expected no-votes result, got %+v", none)
	}

	h.fire(t)
	h.waitDone(t)

	result := h.notifier.broadcasts(types.EventGameEnded)[0].(types.GameEnded)
	if result.Winner != types.WinnerImpostor || result.Reason != types.WinReasonSurvival {
		t.Errorf("Expected impostor survival win, got %s (%s)", result.Winner, result.Reason)
	}
}

func TestController_RejectsOutOfTurnAndWrongPhase(t *testing.T) {
	h := newHarness(t, testOptions(), 3, "a", "b", "c", "d")
	h.startToClues(t)

	if err := h.ctrl.SubmitClue("b", "early"); !errors.Is(err, ErrNotYourTurn) {
		t.Errorf("Expected ErrNotYourTurn, got %v", err)
	}
	rejected := h.notifier.private("b", types.EventActionRejected)
	if len(rejected) != 1 {
		t.Fatalf("Expected one soft notice for b, got %d", len(rejected))
	}

	if err := h.ctrl.CastVote("a", "b"); !errors.Is(err, ErrWrongPhase) {
		t.Errorf("Expected ErrWrongPhase, got %v", err)
	}
	if err := h.ctrl.SendDiscussionMessage("a", "hello"); !errors.Is(err, ErrChatLocked) {
		t.Errorf("Expected ErrChatLocked, got %v", err)
	}
	if err := h.ctrl.SubmitClue("a", "   "); !errors.Is(err, ErrEmptyClue) {
		t.Errorf("Expected ErrEmptyClue, got %v", err)
	}

	if speaker := h.notifier.broadcasts(types.EventTurnChanged); len(speaker) != 1 {
		t.Errorf("Expected the turn to stay with a, got %d turn changes", len(speaker))
	}
}

func TestController_IgnoresStrangers(t *testing.T) {
	h := newHarness(t, testOptions(), 3, "a", "b", "c", "d")
	h.startToClues(t)

	before := h.notifier.count()
	if err := h.ctrl.SubmitClue("mallory", "hi"); !errors.Is(err, ErrNotParticipant) {
		t.Errorf("Expected ErrNotParticipant, got %v", err)
	}
	if err := h.ctrl.CastVote("mallory", "a"); !errors.Is(err, ErrNotParticipant) {
		t.Errorf("Expected ErrNotParticipant, got %v", err)
	}
	h.sync(t)
	if after := h.notifier.count(); after != before {
		t.Errorf("Expected no events for a stranger, got %d new", after-before)
	}
}

func TestController_EliminatedCannotAct(t *testing.T) {
	h := newHarness(t, testOptions(), 3, "a", "b", "c", "d")
	h.startToClues(t)
	h.submitAllClues(t, "a", "b", "c", "d")
	h.fire(t)
	for _, ballot := range [][2]string{{"a", "b"}, {"b", "a"}, {"c", "b"}, {"d", "b"}} {
		if err := h.ctrl.CastVote(ballot[0], ballot[1]); err != nil {
			t.Fatalf("Expected vote %v to be accepted, got %v", ballot, err)
		}
	}

	h.fire(t) // result
	h.fire(t) // assignment of round 2

	if !h.ctrl.IsParticipant("b") {
		t.Error("Expected eliminated participant to remain on the roster")
	}
	if err := h.ctrl.SubmitClue("b", "ghost"); !errors.Is(err, ErrEliminated) {
		t.Errorf("Expected ErrEliminated, got %v", err)
	}

	turns := h.notifier.broadcasts(types.EventTurnChanged)
	latest := turns[len(turns)-1].(types.TurnChanged)
	if latest.ParticipantID != "a" || latest.TurnCount != 3 {
		t.Errorf("Expected a to open round 2 with 3 turns, got %+v", latest)
	}

	h.submitAllClues(t, "a", "c", "d")
	h.fire(t)
	if err := h.ctrl.CastVote("a", "b"); !errors.Is(err, ErrInvalidTarget) {
		t.Errorf("Expected ErrInvalidTarget for eliminated target, got %v", err)
	}
	if err := h.ctrl.CastVote("a", "a"); !errors.Is(err, ErrInvalidTarget) {
		t.Errorf("Expected ErrInvalidTarget for self vote, got %v", err)
	}
}

func TestController_EarlyCompletionAdvancesOnce(t *testing.T) {
	h := newHarness(t, testOptions(), 2, "a", "b", "c")
	h.startToClues(t)

	turnTimer := h.clock.pendingTimer()
	if err := h.ctrl.SubmitClue("a", "first"); err != nil {
		t.Fatalf("Expected clue to be accepted, got %v", err)
	}
	if !turnTimer.stopped {
		t.Error("Expected the turn timer to be cancelled")
	}

	// a callback that had already fired before cancellation must be ignored
	turnTimer.fn()
	h.sync(t)

	clues := h.notifier.broadcasts(types.EventClueReceived)
	if len(clues) != 1 {
		t.Fatalf("Expected exactly one clue, got %d", len(clues))
	}
	turns := h.notifier.broadcasts(types.EventTurnChanged)
	if latest := turns[len(turns)-1].(types.TurnChanged); latest.ParticipantID != "b" {
		t.Errorf("Expected turn to pass to b, got %s", latest.ParticipantID)
	}

	h.submitAllClues(t, "b", "c")
	h.fire(t)

	votingTimer := h.clock.pendingTimer()
	for _, ballot := range [][2]string{{"a", "c"}, {"b", "c"}, {"c", "a"}} {
		if err := h.ctrl.CastVote(ballot[0], ballot[1]); err != nil {
			t.Fatalf("Expected vote %v to be accepted, got %v", ballot, err)
		}
	}
	votingTimer.fn()
	h.sync(t)

	results := 0
	for _, phase := range h.notifier.phases() {
		if phase == types.PhaseResult {
			results++
		}
	}
	if results != 1 {
		t.Errorf("Expected exactly one result phase, got %d", results)
	}
	if h.clock.pendingCount() != 1 {
		t.Errorf("Expected only the result timer pending, got %d", h.clock.pendingCount())
	}
}

func TestController_VoteOverwriteAndPublicBallots(t *testing.T) {
	opts := testOptions()
	opts.PublicVoting = true
	h := newHarness(t, opts, 2, "a", "b", "c")
	h.startToClues(t)
	h.submitAllClues(t, "a", "b", "c")
	h.fire(t)

	if err := h.ctrl.CastVote("a", "b"); err != nil {
		t.Fatalf("Expected vote to be accepted, got %v", err)
	}
	if err := h.ctrl.CastVote("a", "c"); err != nil {
		t.Fatalf("Expected vote change to be accepted, got %v", err)
	}

	updates := h.notifier.broadcasts(types.EventVoteTallyUpdated)
	latest := updates[len(updates)-1].(types.VoteTallyUpdated)
	if latest.Cast != 1 || latest.Expected != 3 {
		t.Errorf("Expected 1 of 3 ballots, got %d of %d", latest.Cast, latest.Expected)
	}
	if latest.Counts["c"] != 1 || latest.Counts["b"] != 0 {
		t.Errorf("Expected overwritten ballot to count for c, got %v", latest.Counts)
	}
	if latest.Ballots["a"] != "c" {
		t.Errorf("Expected public ballot a->c, got %v", latest.Ballots)
	}
	if phase := h.phase(t); phase != types.PhaseVoting {
		t.Errorf("Expected voting to continue, got %s", phase)
	}
}

func TestController_SkipDiscussionNeedsMajority(t *testing.T) {
	h := newHarness(t, testOptions(), 3, "a", "b", "c", "d")
	h.startToClues(t)
	h.submitAllClues(t, "a", "b", "c", "d")

	if err := h.ctrl.SendDiscussionMessage("a", "I think it is d"); err != nil {
		t.Fatalf("Expected message to be accepted, got %v", err)
	}
	if err := h.ctrl.SkipDiscussion("a"); err != nil {
		t.Fatalf("Expected skip to be accepted, got %v", err)
	}
	if err := h.ctrl.SkipDiscussion("a"); err != nil {
		t.Fatalf("Expected repeated skip to be ignored, got %v", err)
	}
	if err := h.ctrl.SkipDiscussion("b"); err != nil {
		t.Fatalf("Expected skip to be accepted, got %v", err)
	}
	if phase := h.phase(t); phase != types.PhaseDiscussion {
		t.Fatalf("Expected discussion to continue with 2 of 4, got %s", phase)
	}

	snapshot, err := h.ctrl.Snapshot("a")
	if err != nil {
		t.Fatalf("Failed to snapshot: %v", err)
	}
	if len(snapshot.Discussion) != 1 {
		t.Errorf("Expected 1 discussion message in snapshot, got %d", len(snapshot.Discussion))
	}

	if err := h.ctrl.SkipDiscussion("c"); err != nil {
		t.Fatalf("Expected skip to be accepted, got %v", err)
	}
	if phase := h.phase(t); phase != types.PhaseVoting {
		t.Errorf("Expected voting after 3 of 4 skips, got %s", phase)
	}

	progress := h.notifier.broadcasts(types.EventSkipProgress)
	if len(progress) != 3 {
		t.Fatalf("Expected 3 skip progress updates, got %d", len(progress))
	}
	if last := progress[2].(types.SkipProgress); last.Requested != 3 || last.Needed != 3 {
		t.Errorf("Expected 3 of 3, got %+v", last)
	}
}

func TestController_StopCancelsTimers(t *testing.T) {
	h := newHarness(t, testOptions(), 3, "a", "b", "c", "d")
	h.startToClues(t)

	if err := h.ctrl.Stop("room closed"); err != nil {
		t.Fatalf("Expected clean stop, got %v", err)
	}
	h.waitDone(t)

	if h.clock.pendingCount() != 0 {
		t.Errorf("Expected no pending timers, got %d", h.clock.pendingCount())
	}
	closed := h.notifier.broadcasts(types.EventSessionClosed)
	if len(closed) != 1 || closed[0].(types.SessionClosed).Reason != "room closed" {
		t.Errorf("Expected session_closed with reason, got %+v", closed)
	}
	if h.store.reason != types.WinReasonAborted {
		t.Errorf("Expected aborted game in store, got %q", h.store.reason)
	}

	if err := h.ctrl.SubmitClue("a", "late"); !errors.Is(err, ErrSessionClosed) {
		t.Errorf("Expected ErrSessionClosed, got %v", err)
	}
	if err := h.ctrl.Stop("again"); err != nil {
		t.Errorf("Expected second stop to be a no-op, got %v", err)
	}
	if len(h.ended) != 1 {
		t.Errorf("Expected OnEnd exactly once, got %d", len(h.ended))
	}
}

func TestController_StoreFailureDoesNotBlockGame(t *testing.T) {
	h := newHarness(t, testOptions(), 2, "a", "b", "c")
	h.store.fail = true
	h.startToClues(t)
	h.submitAllClues(t, "a", "b", "c")

	if phase := h.phase(t); phase != types.PhaseDiscussion {
		t.Errorf("Expected discussion despite store failures, got %s", phase)
	}
}

func TestController_SnapshotHidesSecrets(t *testing.T) {
	h := newHarness(t, testOptions(), 2, "a", "b", "c")
	h.startToClues(t)

	crew, err := h.ctrl.Snapshot("a")
	if err != nil {
		t.Fatalf("Failed to snapshot: %v", err)
	}
	if crew.Role == nil || crew.Role.IsImpostor || crew.Role.Item == nil {
		t.Errorf("Expected crew role with item, got %+v", crew.Role)
	}
	if crew.CurrentSpeaker != "a" {
		t.Errorf("Expected current speaker a, got %q", crew.CurrentSpeaker)
	}

	impostor, _ := h.ctrl.Snapshot("c")
	if impostor.Role == nil || !impostor.Role.IsImpostor || impostor.Role.Item != nil {
		t.Errorf("Expected impostor role without item, got %+v", impostor.Role)
	}

	spectator, _ := h.ctrl.Snapshot("")
	if spectator.Role != nil {
		t.Errorf("Expected no role for spectator, got %+v", spectator.Role)
	}
	for _, p := range spectator.Participants {
		if p.IsImpostor {
			t.Errorf("Expected impostor flag hidden for %s", p.ID)
		}
	}
}
