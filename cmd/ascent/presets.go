package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/san-kum/ascent/internal/config"
	"github.com/spf13/cobra"
)

func newPresetsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "presets",
		Short: "list named scenarios",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tSTAGES\tPERIAPSIS\tAPOAPSIS\tINC")
			for _, name := range config.ListPresets() {
				p := config.GetPreset(name)
				fmt.Fprintf(w, "%s\t%d\t%.0fkm\t%.0fkm\t%.3f°\n",
					name,
					len(p.Stages),
					(p.Target.Periapsis-p.Body.Radius)/1e3,
					(p.Target.Apoapsis-p.Body.Radius)/1e3,
					p.Target.Inclination,
				)
			}
			return w.Flush()
		},
	}
}

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init [preset] [path]",
		Short: "write a preset to a scenario file for editing",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.GetPreset(args[0])
			if cfg == nil {
				return fmt.Errorf("unknown preset %q (have %v)", args[0], config.ListPresets())
			}
			if _, err := os.Stat(args[1]); err == nil {
				return fmt.Errorf("%s already exists", args[1])
			}
			if err := config.Save(args[1], cfg); err != nil {
				return err
			}
			fmt.Printf("wrote %s\n", args[1])
			return nil
		},
	}
}
