package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/gaia-mentor/internal/config"
	"github.com/danielpatrickdp/gaia-mentor/internal/persona"
	"github.com/danielpatrickdp/gaia-mentor/internal/signals"
)

var (
	registryPath string
	personasJSON bool
)

var personasCmd = &cobra.Command{
	Use:   "personas",
	Short: "Validate and print the persona registry",
	RunE:  runPersonas,
}

func init() {
	personasCmd.Flags().StringVar(&registryPath, "registry", "", "persona YAML (default: personas.registry from config, else built-in)")
	personasCmd.Flags().BoolVar(&personasJSON, "json", false, "output as JSON")
}

func runPersonas(cmd *cobra.Command, _ []string) error {
	path := registryPath
	if path == "" {
		cfg, err := config.Read(configPath)
		if err != nil {
			return err
		}
		path = cfg.Personas.Registry
	}
	reg, err := loadRegistry(path)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if personasJSON {
		return printJSON(w, reg.All())
	}
	for _, p := range reg.All() {
		marker := " "
		if p.ID == reg.DefaultID() {
			marker = "*"
		}
		fmt.Fprintf(w, "%s %-10s %-12s %s\n", marker, p.ID, p.DisplayName, p.Tagline)
		fmt.Fprintf(w, "    keywords: %d  bias: %.1f  boosts: %s\n", len(p.Keywords), p.Bias, boosts(p))
	}
	fmt.Fprintf(w, "traits: %s\n", strings.Join(reg.Traits(), ", "))
	fmt.Fprintf(w, "intents: %s\n", strings.Join(signals.Categories(), ", "))
	return nil
}

func boosts(p persona.Persona) string {
	keys := make([]string, 0, len(p.IntentBoost))
	for k := range p.IntentBoost {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%.1f", k, p.IntentBoost[k])
	}
	return orDash(strings.Join(parts, " "))
}
