package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/golang/geo/r3"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.viam.com/rdk/logging"
	goutils "go.viam.com/utils"
	"golang.org/x/sync/errgroup"

	egm "egm_trajectory"
	"egm_trajectory/motion"
	"egm_trajectory/sim"
	"egm_trajectory/transport"
	"egm_trajectory/types"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          "egmtraj",
		Short:        "Stream trajectory references to a robot controller",
		SilenceUsage: true,
	}
	root.AddCommand(newServeCommand(), newSimulateCommand(), newPortsCommand())
	return root
}

type serveOptions struct {
	configFile     string
	trajectoryFile string
	udpAddr        string
	serialPort     string
	baudrate       int
	timeout        time.Duration
	deadline       time.Duration
	statusInterval time.Duration
}

func newServeCommand() *cobra.Command {
	opts := serveOptions{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Answer robot feedback over UDP or a serial link",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, opts, logging.NewLogger("egmtraj"))
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.configFile, "config", "", "configuration file (.json or .yaml)")
	f.StringVar(&opts.trajectoryFile, "trajectory", "", "trajectory file to queue on start")
	f.StringVar(&opts.udpAddr, "udp", ":6510", "UDP address to listen on")
	f.StringVar(&opts.serialPort, "serial", "", "serial port to use instead of UDP")
	f.IntVar(&opts.baudrate, "baud", 115200, "serial baudrate")
	f.DurationVar(&opts.timeout, "timeout", 100*time.Millisecond, "feedback silence that ends a session")
	f.DurationVar(&opts.deadline, "deadline", 4*time.Millisecond, "time budget per cycle")
	f.DurationVar(&opts.statusInterval, "status-interval", time.Second, "how often to log execution progress")
	return cmd
}

func serve(ctx context.Context, opts serveOptions, logger logging.Logger) error {
	cfg, _ := egm.LoadConfiguration(opts.configFile, logger)
	engine, err := egm.NewTrajectoryInterface(cfg, logger)
	if err != nil {
		return err
	}
	if opts.trajectoryFile != "" {
		goal, err := egm.LoadTrajectoryFile(opts.trajectoryFile)
		if err != nil {
			return err
		}
		id := engine.AddTrajectory(goal, false)
		logger.Infof("Queued %s as trajectory %s", opts.trajectoryFile, id)
	}

	var link transport.Link
	if opts.serialPort != "" {
		link, err = transport.OpenSerial(opts.serialPort, opts.baudrate, opts.timeout)
		if err != nil {
			return err
		}
		logger.Infof("Serving on serial port %s at %d baud", opts.serialPort, opts.baudrate)
	} else {
		udp, err := transport.ListenUDP(opts.udpAddr, opts.timeout)
		if err != nil {
			return err
		}
		link = udp
		logger.Infof("Serving on UDP %s", udp.LocalAddr())
	}
	defer link.Close()

	session := transport.NewSession(link, engine, transport.Options{Deadline: opts.deadline}, logger)

	var monitors sync.WaitGroup
	defer monitors.Wait()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	monitors.Add(1)
	goutils.ManagedGo(func() {
		logProgress(ctx, engine, session, opts.statusInterval, logger)
	}, monitors.Done)

	return session.Run(ctx)
}

// logProgress reports execution progress until ctx is done.
func logProgress(ctx context.Context, engine *egm.TrajectoryInterface, session *transport.Session, interval time.Duration, logger logging.Logger) {
	for goutils.SelectContextOrWait(ctx, interval) {
		p, fresh := engine.RetrieveExecutionProgress()
		stats := session.Stats()
		if !fresh {
			logger.Debugf("No cycles in the last %s (sessions=%d)", interval, stats.Sessions)
			continue
		}
		if p.HasActiveGoal {
			logger.Infof("%s: trajectory %s point %d (%d left, %d queued), %.2f/%.2fs, factor %.1f, max cycle %s",
				p.State, p.ActiveTrajectory, p.ActivePointIndex, p.RemainingPoints, p.PendingTrajectories,
				p.TimePassed, p.GoalDuration, p.DurationFactor, stats.MaxCycle)
		} else {
			logger.Infof("%s: idle (%d queued), %d frames, %d overruns", p.State, p.PendingTrajectories, stats.Frames, stats.Overruns)
		}
	}
}

type simulateOptions struct {
	configFile     string
	trajectoryFile string
	mode           string
	sampleTime     time.Duration
	overUDP        bool
	trackingGain   float64
	limit          time.Duration
}

func newSimulateCommand() *cobra.Command {
	opts := simulateOptions{}
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run a trajectory against a simulated robot",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return simulate(ctx, opts, logging.NewLogger("egmtraj"))
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.configFile, "config", "", "configuration file (.json or .yaml)")
	f.StringVar(&opts.trajectoryFile, "trajectory", "", "trajectory file; a demo wave is used when empty")
	f.StringVar(&opts.mode, "mode", "joint", "motion mode reported by the simulated robot (joint or pose)")
	f.DurationVar(&opts.sampleTime, "sample-time", 4*time.Millisecond, "simulated controller cycle")
	f.BoolVar(&opts.overUDP, "udp", false, "exchange frames over UDP loopback instead of in memory")
	f.Float64Var(&opts.trackingGain, "tracking-gain", 1, "fraction of the reference error the robot closes per cycle")
	f.DurationVar(&opts.limit, "limit", time.Minute, "give up after this long")
	return cmd
}

func demoWave() types.TrajectoryGoal {
	var goal types.TrajectoryGoal
	for _, v := range []float64{30, -30, 15, 0} {
		pose := types.NewPoseFromEuler(
			sim.Home.Position.Add(r3.Vector{Y: 5 * v, Z: -2 * v}),
			types.Euler{Roll: sim.Home.Euler.Roll, Yaw: v},
		)
		goal.Points = append(goal.Points, types.PointGoal{
			Robot: types.RobotGoal{
				Joints:    &types.JointGoal{Position: types.Joints{v, v / 2, -v / 2, 0, v / 3, 0}},
				Cartesian: &types.CartesianGoal{Pose: pose},
			},
		})
	}
	return goal
}

func simulate(ctx context.Context, opts simulateOptions, logger logging.Logger) error {
	mode, err := types.ParseMode(opts.mode)
	if err != nil {
		return err
	}
	cfg, _ := egm.LoadConfiguration(opts.configFile, logger)
	engine, err := egm.NewTrajectoryInterface(cfg, logger)
	if err != nil {
		return err
	}

	goal := demoWave()
	if opts.trajectoryFile != "" {
		if goal, err = egm.LoadTrajectoryFile(opts.trajectoryFile); err != nil {
			return err
		}
	}
	id := engine.AddTrajectory(goal, false)

	robotLink, engineLink, err := simulationLinks(opts)
	if err != nil {
		return err
	}
	defer robotLink.Close()
	defer engineLink.Close()

	robot := sim.NewRobot(mode, opts.sampleTime.Seconds())
	robot.SetTrackingGain(opts.trackingGain)
	peer := sim.NewPeer(robot, robotLink, opts.sampleTime, logger)
	session := transport.NewSession(engineLink, engine, transport.Options{Deadline: opts.sampleTime}, logger)

	ctx, cancel := context.WithTimeout(ctx, opts.limit)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return session.Run(gctx) })
	g.Go(func() error { return peer.Run(gctx) })
	g.Go(func() error {
		defer cancel()
		return waitForTrajectory(gctx, engine, id, opts.sampleTime, logger)
	})
	if err := g.Wait(); err != nil {
		return err
	}

	fb := robot.Feedback()
	stats := session.Stats()
	fmt.Printf("cycles=%d missed=%d overruns=%d max_cycle=%s sim_time=%.3fs\n",
		peer.Cycles(), peer.Missed(), stats.Overruns, stats.MaxCycle, fb.Time)
	fmt.Printf("joints=%v\n", fb.Robot.Joints.Position)
	return nil
}

func simulationLinks(opts simulateOptions) (transport.Link, transport.Link, error) {
	timeout := 25 * opts.sampleTime
	if !opts.overUDP {
		robotLink, engineLink := transport.NewPipe(timeout)
		return robotLink, engineLink, nil
	}
	engineLink, err := transport.ListenUDP("127.0.0.1:0", timeout)
	if err != nil {
		return nil, nil, err
	}
	robotLink, err := transport.DialUDP(engineLink.LocalAddr().String(), timeout)
	if err != nil {
		engineLink.Close()
		return nil, nil, err
	}
	return robotLink, engineLink, nil
}

// waitForTrajectory returns once trajectory id has started and nothing is left to execute.
func waitForTrajectory(ctx context.Context, engine *egm.TrajectoryInterface, id uuid.UUID, poll time.Duration, logger logging.Logger) error {
	started := false
	for goutils.SelectContextOrWait(ctx, poll) {
		p, fresh := engine.RetrieveExecutionProgress()
		if !fresh {
			continue
		}
		if p.HasActiveGoal && p.ActiveTrajectory == id {
			if !started {
				logger.Infof("Trajectory %s started", id)
			}
			started = true
		}
		if started && p.State == motion.Normal && !p.HasActiveGoal && p.PendingTrajectories == 0 {
			logger.Infof("Trajectory %s finished at cycle %d", id, p.Cycle)
			return nil
		}
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return errors.Errorf("trajectory %s did not finish in time", id)
	}
	return nil
}

func newPortsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "ports",
		Short: "List serial ports that may carry a bench controller",
		RunE: func(cmd *cobra.Command, args []string) error {
			ports, err := transport.DiscoverSerialPorts()
			if err != nil {
				return err
			}
			if len(ports) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no candidate serial ports found")
				return nil
			}
			for _, p := range ports {
				vendor := p.Vendor
				if vendor == "" {
					vendor = "-"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%-28s %-20s %-18s usb=%t vid=%s pid=%s serial=%s\n",
					p.Path, p.Name, vendor, p.IsUSB, p.VID, p.PID, p.SerialNumber)
			}
			return nil
		},
	}
}
