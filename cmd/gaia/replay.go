package main

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/gaia-mentor/internal/config"
	"github.com/danielpatrickdp/gaia-mentor/internal/logging"
	"github.com/danielpatrickdp/gaia-mentor/internal/replay"
)

// errReplayMismatch makes the command exit non-zero when a fixture drifts.
var errReplayMismatch = errors.New("replay does not match fixture")

var (
	fixturePath   string
	replayVerbose bool

	exportUID   string
	exportOut   string
	exportLimit int
	exportStart string
)

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Replay a recorded fixture through the routing policy",
	Long: `Runs every turn of a fixture through the policy and handoff machine in
memory with a simulated clock, then compares each outcome to the fixture's
expectations. Exits non-zero on any mismatch.`,
	Example: `  gaia replay --fixture internal/replay/testdata/handoff_scenario.json -v`,
	RunE:    runReplay,
}

var fixtureExportCmd = &cobra.Command{
	Use:     "fixture-export",
	Short:   "Export a user's routing log as a replay fixture",
	Example: `  gaia fixture-export --user auth0|42 --out session.json`,
	RunE:    runFixtureExport,
}

func init() {
	replayCmd.Flags().StringVarP(&fixturePath, "fixture", "f", "", "fixture JSON")
	replayCmd.Flags().BoolVarP(&replayVerbose, "verbose", "v", false, "print every turn")
	_ = replayCmd.MarkFlagRequired("fixture")

	fixtureExportCmd.Flags().StringVar(&dbPath, "db", "", "SQLite store (default: store.path from config)")
	fixtureExportCmd.Flags().StringVarP(&exportUID, "user", "u", "", "user id")
	fixtureExportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "output file (default: stdout)")
	fixtureExportCmd.Flags().IntVarP(&exportLimit, "last", "n", 200, "export the N most recent turns")
	fixtureExportCmd.Flags().StringVar(&exportStart, "start-persona", "", "persona before the first exported turn (default: registry default)")
	_ = fixtureExportCmd.MarkFlagRequired("user")
}

// #region replay

func runReplay(cmd *cobra.Command, _ []string) error {
	f, err := replay.LoadFixture(fixturePath)
	if err != nil {
		return err
	}
	results, s, err := f.Run(time.Now().UTC())
	if err != nil {
		return err
	}
	w := cmd.OutOrStdout()
	if replayVerbose {
		printResults(w, results)
	}
	printSummary(w, f.Description, s)
	if !s.Passed() {
		return errReplayMismatch
	}
	return nil
}

func printResults(w io.Writer, results []replay.Result) {
	fmt.Fprintf(w, "%-8s  %-8s  %-8s  %-10s  %-10s  %-22s  %s\n", "Turn", "Action", "Mode", "Persona", "Suggested", "Stage", "Reason")
	for _, r := range results {
		fmt.Fprintf(w, "%-8s  %-8s  %-8s  %-10s  %-10s  %-22s  %s\n",
			r.TurnID, r.Action, r.Decision.Mode, r.Persona, orDash(r.Suggested), r.Stage, r.Decision.Reason)
		for _, n := range r.Notes {
			fmt.Fprintf(w, "          note: %s\n", n)
		}
	}
	fmt.Fprintln(w)
}

func printSummary(w io.Writer, desc string, s replay.Summary) {
	if desc != "" {
		fmt.Fprintf(w, "%s\n", desc)
	}
	fmt.Fprintf(w, "turns=%d stay=%d suggest=%d switch=%d confirm=%d decline=%d reprompt=%d fresh=%d no_pending=%d\n",
		s.TotalTurns, s.Stays, s.Suggests, s.Switches, s.Confirms, s.Declines, s.Reprompts, s.Fresh, s.NoPending)
	fmt.Fprintf(w, "final persona=%s stage=%s\n", s.FinalPersona, s.FinalStage)
	if s.Passed() {
		fmt.Fprintln(w, "PASS")
		return
	}
	fmt.Fprintf(w, "FAIL (%d mismatches)\n  %s\n", len(s.Mismatches), strings.Join(s.Mismatches, "\n  "))
}

// #endregion replay

// #region export

func runFixtureExport(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Read(configPath)
	if err != nil {
		return err
	}
	pc, err := cfg.Policy()
	if err != nil {
		return err
	}
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	entries, err := logging.ListEntries(cmd.Context(), store.DB(), exportUID, exportLimit)
	if err != nil {
		return err
	}
	desc := fmt.Sprintf("exported routing log for %s (%d turns)", exportUID, len(entries))
	f, err := replay.ExportFixture(entries, desc, exportStart, pc)
	if err != nil {
		return err
	}
	f.Registry = cfg.Personas.Registry

	if exportOut == "" {
		return printJSON(cmd.OutOrStdout(), f)
	}
	if err := f.Save(exportOut); err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "wrote %d turns to %s\n", len(f.Turns), exportOut)
	return nil
}

// #endregion export
