package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/teslashibe/cube-action/internal/config"
	"github.com/teslashibe/cube-action/internal/log"
	"github.com/teslashibe/cube-action/pkg/anim"
	"github.com/teslashibe/cube-action/pkg/cubeaction"
	"github.com/teslashibe/cube-action/pkg/daemon"
	"github.com/teslashibe/cube-action/pkg/facedetect"
	"github.com/teslashibe/cube-action/pkg/metrics"
	"github.com/teslashibe/cube-action/pkg/viewer"
)

func newRootCmd() *cobra.Command {
	var (
		robotIP  string
		logLevel string
		noViewer bool
	)

	cmd := &cobra.Command{
		Use:   "cube-action",
		Short: "React to taps on the robot's light cubes",
		Long: `cube-action connects to the robot daemon, scans for three light cubes
and binds a behavior to each: cube 1 drives up to the cube, cube 2 takes a
greyscale portrait of the nearest face and cube 3 plays an animation.

Configuration comes from the environment (ROBOT_IP, ROBOT_PORT, LOG_LEVEL,
VIEWER_ENABLED, VIEWER_PORT, PHOTO_PATH, ANIMATIONS_DIR, FACE_MODEL_PATH);
flags override it.`,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("robot") {
				cfg.RobotIP = robotIP
			}
			if cmd.Flags().Changed("log-level") {
				cfg.LogLevel = logLevel
			}
			if noViewer {
				cfg.ViewerEnabled = false
			}

			log.Init(cfg.LogLevel)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			// Interrupted during startup is still a clean exit.
			if err := run(ctx, cfg); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("cube-action failed", "error", err)
				return err
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&robotIP, "robot", config.DefaultRobotIP, "Robot IP address (overrides ROBOT_IP)")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warn, error (overrides LOG_LEVEL)")
	cmd.Flags().BoolVar(&noViewer, "no-viewer", false, "Disable the debugging overlay")
	return cmd
}

// run wires the daemon client, optional face finder and overlay around the
// controller, and blocks until ctx is done or startup fails.
func run(ctx context.Context, cfg config.Config) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	lib, err := anim.LoadDir(cfg.AnimationsDir)
	if err != nil {
		return fmt.Errorf("load animations: %w", err)
	}
	log.Info("animations loaded", "dir", cfg.AnimationsDir, "clips", lib.Len())

	robot := daemon.New(cfg.RobotAPIURL(), cfg.RobotEventsURL(), daemon.WithAnimations(lib))
	if err := robot.Connect(ctx); err != nil {
		return err
	}
	defer robot.Close()

	settings := cubeaction.DefaultSettings()
	settings.PhotoPath = cfg.PhotoPath
	opts := []cubeaction.Option{
		cubeaction.WithSettings(settings),
		cubeaction.WithMetrics(m),
	}

	g, ctx := errgroup.WithContext(ctx)

	if cfg.FaceModelPath != "" {
		det, err := facedetect.NewYuNet(facedetect.DefaultConfig(cfg.FaceModelPath))
		if err != nil {
			return err
		}
		defer det.Close()

		finder := facedetect.NewFinder(det, robot, robot, robot)
		g.Go(func() error { return finder.Run(ctx) })
		log.Info("local face detection enabled", "model", cfg.FaceModelPath)
	}

	var overlay *viewer.Server
	if cfg.ViewerEnabled {
		overlay = viewer.New(cfg.ViewerPort, viewer.WithFrames(robot), viewer.WithGatherer(reg))
		opts = append(opts, cubeaction.WithObserver(overlay))
		g.Go(func() error { return overlay.Run(ctx) })
	}

	ctrl := cubeaction.New(robot, opts...)
	if overlay != nil {
		overlay.SetSession(ctrl.ID())
	}
	g.Go(func() error { return ctrl.Run(ctx) })

	return g.Wait()
}
