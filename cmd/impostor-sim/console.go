package main

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/pterm/pterm"

	"impostor/pkg/types"
)

// console prints a room's events as they happen. Private events are shown
// with the recipient so the whole table is visible at once.
type console struct {
	mu    sync.Mutex
	names map[string]string
	out   func(string)
}

func newConsole(participants []types.Participant) *console {
	names := make(map[string]string, len(participants))
	for _, p := range participants {
		names[p.ID] = p.Name
	}
	return &console{names: names, out: func(s string) { pterm.Print(s) }}
}

func (c *console) Broadcast(roomID string, event *types.Event) {
	c.print(c.render("", event))
}

func (c *console) SendTo(roomID, participantID string, event *types.Event) {
	c.print(c.render(participantID, event))
}

func (c *console) print(line string) {
	if line == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.out(line)
}

func (c *console) name(id string) string {
	if name, ok := c.names[id]; ok && name != "" {
		return name
	}
	return id
}

// render returns the formatted line for an event, or "" for events not
// worth showing.
func (c *console) render(recipient string, event *types.Event) string {
	switch payload := event.Payload.(type) {
	case *types.RoleAssignment:
		return c.renderRole(recipient, payload)
	case types.PhaseChanged:
		header := fmt.Sprintf("Round %d/%d  %s", payload.Round, payload.TotalRounds, strings.ToUpper(string(payload.Phase)))
		return "\n" + pterm.DefaultSection.Sprint(header)
	case types.TurnChanged:
		return pterm.Sprintfln("%s is giving a clue (%d/%d)", pterm.Cyan(payload.Name), payload.TurnIndex+1, payload.TurnCount)
	case types.ClueReceived:
		if payload.Clue.Forfeited {
			return pterm.Sprintfln("  %s forfeited the turn", c.name(payload.Clue.ParticipantID))
		}
		return pterm.Sprintfln("  %s: %q", c.name(payload.Clue.ParticipantID), payload.Clue.Text)
	case types.DiscussionMessage:
		return pterm.Sprintfln("  [chat] %s: %s", payload.Name, payload.Text)
	case types.SkipProgress:
		return pterm.Sprintfln("  %d/%d want to skip the discussion", payload.Requested, payload.Needed)
	case types.VoteTallyUpdated:
		return pterm.Sprintfln("  votes %d/%d %s", payload.Cast, payload.Expected, formatCounts(payload.Counts, c.name))
	case types.PlayerEliminated:
		verdict := pterm.LightGreen("an impostor")
		if !payload.WasImpostor {
			verdict = pterm.LightRed("not an impostor")
		}
		return pterm.Sprintfln("%s was eliminated with %d votes and was %s", pterm.Bold.Sprint(payload.Name), payload.Votes, verdict)
	case types.NoElimination:
		return pterm.Sprintfln("Nobody was eliminated (%s)", payload.Reason)
	case types.GameEnded:
		return c.renderEnd(payload)
	case types.ActionRejected:
		return pterm.Sprintfln("  %s: %s rejected (%s)", c.name(recipient), payload.Action, payload.Reason)
	case types.SessionClosed:
		return pterm.Sprintfln("Session closed: %s", payload.Reason)
	}
	return ""
}

func (c *console) renderRole(recipient string, role *types.RoleAssignment) string {
	if role.IsImpostor {
		return pterm.Sprintfln("  %s is the %s", c.name(recipient), pterm.LightRed("impostor"))
	}
	word := ""
	if role.Item != nil {
		word = role.Item.Word
	}
	return pterm.Sprintfln("  %s knows the word %s", c.name(recipient), pterm.LightCyan(word))
}

func (c *console) renderEnd(ended types.GameEnded) string {
	impostors := make([]string, len(ended.Impostors))
	for i, ref := range ended.Impostors {
		impostors[i] = ref.Name
	}

	winner := "The majority"
	if ended.Winner == types.WinnerImpostor {
		winner = "The impostor"
	}

	body := pterm.Sprintfln("%s wins (%s) after %d rounds", winner, ended.Reason, ended.Rounds)
	body += pterm.Sprintfln("Impostors: %s", strings.Join(impostors, ", "))
	body += pterm.Sprintf("Last word: %s", ended.Item.Word)

	box := pterm.DefaultBox.WithLeftPadding(4).WithRightPadding(4).WithTopPadding(1).WithBottomPadding(1)
	return "\n" + box.WithTitle(pterm.LightGreen("|GAME OVER|")).WithTitleTopCenter().Sprint(body) + "\n"
}

func formatCounts(counts map[string]int, name func(string) string) string {
	ids := make([]string, 0, len(counts))
	for id := range counts {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprintf("%s=%d", name(id), counts[id])
	}
	return "[" + strings.Join(parts, " ") + "]"
}
