package main

import (
	"encoding/json"
	"os"
	"time"

	"github.com/aretw0/trajview/internal/cli"
	"github.com/aretw0/trajview/internal/presentation/tui"
	"github.com/aretw0/trajview/pkg/domain"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var probeCmd = &cobra.Command{
	Use:   "probe <subject>",
	Short: "Load one subject and report what a viewer would show",
	Long: `Loads the structure of a subject, and a trajectory segment when --frames,
--selection or --trajectory is given, then prints a report of the composed
source and the status. The report is styled when stdout is a terminal.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		frames, _ := cmd.Flags().GetString("frames")
		selection, _ := cmd.Flags().GetString("selection")
		withTrajectory, _ := cmd.Flags().GetBool("trajectory")
		timeout, _ := cmd.Flags().GetDuration("timeout")
		asJSON, _ := cmd.Flags().GetBool("json")
		plain, _ := cmd.Flags().GetBool("plain")

		cfg, logger, err := loadConfig(cmd, nil)
		if err != nil {
			return err
		}
		cfg.HTTP.Metrics = false

		rt, err := cli.NewRuntime(cfg, logger)
		if err != nil {
			return err
		}
		defer rt.Close()

		opts := cli.ProbeOptions{Subject: domain.Subject(args[0]), Timeout: timeout}
		if withTrajectory || frames != "" || selection != "" {
			opts.Request = &domain.TrajectoryRequest{FrameRange: frames, Selection: selection}
		}

		sigCtx, stop := shutdownContext(cmd.Context())
		defer stop()

		snap, err := cli.Probe(sigCtx, rt.Engine, opts)
		if err != nil && snap.Subject == "" {
			return err
		}
		if err != nil {
			logger.Warn("Probe incomplete", "err", err)
		}

		if asJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(snap)
		}

		render := tui.Renderer(tui.Plain)
		fd := int(os.Stdout.Fd())
		if !plain && term.IsTerminal(fd) {
			width, _, _ := term.GetSize(fd)
			if styled, err := tui.NewRenderer(width); err == nil {
				render = styled
			}
		}
		out, err := render(cli.RenderReport(snap))
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write([]byte(out))
		return err
	},
}

func init() {
	rootCmd.AddCommand(probeCmd)
	probeCmd.Flags().String("frames", "", "Frame range of the trajectory segment, e.g. 0-100")
	probeCmd.Flags().String("selection", "", "Atom selection of the trajectory segment")
	probeCmd.Flags().Bool("trajectory", false, "Load the full trajectory")
	probeCmd.Flags().Duration("timeout", 30*time.Second, "Give up waiting after this long")
	probeCmd.Flags().Bool("json", false, "Print the snapshot as JSON")
	probeCmd.Flags().Bool("plain", false, "Print plain Markdown even on a terminal")
}
