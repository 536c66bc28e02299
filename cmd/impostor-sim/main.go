// Command impostor-sim plays a complete game between simulated
// participants and prints it to the terminal.
package main

import (
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"time"

	"github.com/pterm/pterm"

	"impostor/internal/game"
	"impostor/internal/logging"
	"impostor/internal/secret"
	"impostor/internal/session"
	"impostor/pkg/types"
)

var botNames = []string{"Ada", "Basil", "Cleo", "Dario", "Edda", "Fritz", "Gaia", "Hugo", "Iris", "Jonas", "Kira", "Leon"}

type options struct {
	players   int
	impostors int
	rounds    int
	phase     time.Duration
	think     time.Duration
	seed      int64
	catalog   string
	debug     bool
}

func parseFlags(args []string) (options, error) {
	fs := flag.NewFlagSet("impostor-sim", flag.ContinueOnError)
	opts := options{}
	fs.IntVar(&opts.players, "players", 5, "number of simulated participants")
	fs.IntVar(&opts.impostors, "impostors", 1, "number of impostors")
	fs.IntVar(&opts.rounds, "rounds", 3, "round limit")
	fs.DurationVar(&opts.phase, "phase", 2*time.Second, "length of every timed phase")
	fs.DurationVar(&opts.think, "think", 300*time.Millisecond, "base think time of each participant")
	fs.Int64Var(&opts.seed, "seed", time.Now().UnixNano(), "random seed for item and role selection")
	fs.StringVar(&opts.catalog, "catalog", "", "path to a JSON item catalog")
	fs.BoolVar(&opts.debug, "debug", false, "enable debug logging")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}

	if opts.players < 2 || opts.players > len(botNames) {
		return options{}, fmt.Errorf("players must be between 2 and %d", len(botNames))
	}
	return opts, nil
}

func (o options) gameOptions() game.Options {
	gameOpts := game.DefaultOptions()
	gameOpts.AssignmentDuration = o.phase / 2
	gameOpts.TurnDuration = o.phase
	gameOpts.DiscussionDuration = o.phase
	gameOpts.VotingDuration = o.phase
	gameOpts.ResultDuration = o.phase / 2
	gameOpts.TotalRounds = o.rounds
	gameOpts.ImpostorCount = o.impostors
	return gameOpts
}

func participants(count int) []types.Participant {
	out := make([]types.Participant, count)
	for i := range out {
		out[i] = types.Participant{
			ID:          fmt.Sprintf("bot-%d", i+1),
			Name:        botNames[i],
			IsSimulated: true,
		}
	}
	return out
}

func main() {
	opts, err := parseFlags(os.Args[1:])
	if err != nil {
		if err == flag.ErrHelp {
			return
		}
		pterm.Error.Println(err)
		os.Exit(2)
	}
	if err := run(opts); err != nil {
		log.Fatal(err)
	}
}

func run(opts options) error {
	logging.SetDebug(opts.debug)

	catalog := secret.DefaultCatalog()
	if opts.catalog != "" {
		loaded, err := secret.LoadCatalog(opts.catalog)
		if err != nil {
			return err
		}
		catalog = loaded
	}

	provider, err := secret.NewProvider(catalog, rand.New(rand.NewSource(opts.seed)))
	if err != nil {
		return err
	}

	players := participants(opts.players)
	out := newConsole(players)
	registry := session.NewRegistry(session.Config{
		Provider: provider,
		Notifier: out,
		Options:  opts.gameOptions(),
		BotDelay: opts.think,
	})
	defer registry.Shutdown("simulation finished")

	pterm.Info.Printfln("Simulating %d participants, %d impostor(s), %d round(s), seed %d", opts.players, opts.impostors, opts.rounds, opts.seed)

	ctrl, err := registry.Start(session.StartRequest{RoomID: "simulation", Participants: players})
	if err != nil {
		return fmt.Errorf("failed to start simulation: %w", err)
	}

	<-ctrl.Done()
	return nil
}
