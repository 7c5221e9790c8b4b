package main

import (
	"github.com/aretw0/trajview/internal/cli"
	"github.com/aretw0/trajview/internal/logging"
	"github.com/aretw0/trajview/internal/presentation/tui"
	"github.com/aretw0/trajview/pkg/domain"
	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch <subject>",
	Short: "Open a live terminal view of a viewer session",
	Long: `Opens a viewer session for a subject and follows it live. Keys load the
full trajectory, clear it, or retry failed fetches.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		frames, _ := cmd.Flags().GetString("frames")
		selection, _ := cmd.Flags().GetString("selection")

		cfg, _, err := loadConfig(cmd, nil)
		if err != nil {
			return err
		}
		cfg.HTTP.Metrics = false

		// The terminal belongs to the view.
		rt, err := cli.NewRuntime(cfg, logging.NewNop())
		if err != nil {
			return err
		}
		defer rt.Close()

		sigCtx, stop := shutdownContext(cmd.Context())
		defer stop()
		go func() { _ = rt.Engine.Run(sigCtx) }()

		sess := rt.Engine.Session("watch")
		if err := sess.SetSubject(sigCtx, domain.Subject(args[0])); err != nil {
			return err
		}
		if frames != "" || selection != "" {
			if err := sess.RequestTrajectory(sigCtx, domain.TrajectoryRequest{FrameRange: frames, Selection: selection}); err != nil {
				return err
			}
		}
		return tui.RunWatch(sigCtx, sess)
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().String("frames", "", "Frame range of the trajectory segment to load first")
	watchCmd.Flags().String("selection", "", "Atom selection of the trajectory segment to load first")
}
