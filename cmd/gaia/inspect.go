package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/gaia-mentor/internal/config"
	"github.com/danielpatrickdp/gaia-mentor/internal/logging"
	"github.com/danielpatrickdp/gaia-mentor/internal/state"
)

var (
	dbPath     string
	inspectUID string
	inspectN   int
	jsonOut    bool
)

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Show a user's routing state versions and decision log",
	Example: `  gaia inspect --user auth0|42
  gaia inspect --user auth0|42 --last 5 --json`,
	RunE: runInspect,
}

func init() {
	inspectCmd.Flags().StringVar(&dbPath, "db", "", "SQLite store (default: store.path from config)")
	inspectCmd.Flags().StringVarP(&inspectUID, "user", "u", "", "user id")
	inspectCmd.Flags().IntVarP(&inspectN, "last", "n", 20, "show N most recent versions and log rows")
	inspectCmd.Flags().BoolVar(&jsonOut, "json", false, "output as JSON instead of table")
	_ = inspectCmd.MarkFlagRequired("user")
}

// #region inspect

type inspectOutput struct {
	User     *state.User            `json:"user,omitempty"`
	Current  *state.RoutingState    `json:"current,omitempty"`
	Versions []state.RoutingVersion `json:"versions"`
	Log      []logging.Entry        `json:"log"`
}

func runInspect(cmd *cobra.Command, _ []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()
	ctx := cmd.Context()

	var out inspectOutput
	if u, err := store.GetUser(ctx, inspectUID); err == nil {
		out.User = &u
	}
	if st, err := store.Get(ctx, inspectUID); err == nil {
		out.Current = &st
	}
	if out.Versions, err = store.ListVersions(ctx, inspectUID, inspectN); err != nil {
		return err
	}
	if out.Log, err = logging.ListEntries(ctx, store.DB(), inspectUID, inspectN); err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if jsonOut {
		return printJSON(w, out)
	}
	printInspect(w, out)
	return nil
}

func printInspect(w io.Writer, out inspectOutput) {
	if out.User != nil {
		fmt.Fprintf(w, "User %s <%s>  selected=%s  intents=%s\n",
			out.User.ID, out.User.Email, orDash(out.User.SelectedPersona), strings.Join(out.User.IntentsSeen, ","))
	}
	if out.Current == nil {
		fmt.Fprintln(w, "no routing state")
		return
	}
	c := out.Current
	fmt.Fprintf(w, "Current: persona=%s stage=%s suggested=%s window=[%s]\n",
		c.CurrentPersona, c.Stage, orDash(c.SuggestedPersona), strings.Join(c.WinHistory, ","))
	for id, at := range c.DeclineCooldowns {
		fmt.Fprintf(w, "  declined %s at %s\n", id, at.Format("2006-01-02T15:04:05Z"))
	}

	fmt.Fprintf(w, "\n%-12s  %-12s  %-10s  %-22s  %s\n", "Version", "Parent", "Persona", "Stage", "Time")
	fmt.Fprintf(w, "%-12s+-%-12s+-%-10s+-%-22s+-%s\n", "------------", "------------", "----------", "----------------------", "--------------------")
	for _, v := range out.Versions {
		fmt.Fprintf(w, "%-12s  %-12s  %-10s  %-22s  %s\n",
			shortID(v.VersionID), orDash(shortID(v.ParentID)), v.State.CurrentPersona, v.State.Stage, v.CreatedAt.Format("2006-01-02T15:04:05Z"))
	}

	fmt.Fprintf(w, "\n%-10s  %-8s  %-8s  %-10s  %6s  %-10s  %s\n", "Turn", "Action", "Mode", "Candidate", "Score", "Persona", "Reason")
	for _, e := range out.Log {
		fmt.Fprintf(w, "%-10s  %-8s  %-8s  %-10s  %6.2f  %-10s  %s\n",
			shortID(e.TurnID), e.Action, e.Mode, orDash(e.Candidate), e.CandidateScore, e.PersonaAfter, e.Reason)
	}
}

// #endregion inspect

// #region helpers

func openStore() (*state.Store, error) {
	path := dbPath
	if path == "" {
		cfg, err := config.Read(configPath)
		if err != nil {
			return nil, err
		}
		path = cfg.Store.Path
	}
	store, err := state.NewStore(path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	return store, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// #endregion helpers
