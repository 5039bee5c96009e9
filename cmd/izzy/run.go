package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ryandielhenn/izzy/discovery"
	"github.com/ryandielhenn/izzy/internal/config"
	"github.com/ryandielhenn/izzy/internal/observability"
	"github.com/ryandielhenn/izzy/internal/telemetry"
	"github.com/ryandielhenn/izzy/pkg/motion"
	"github.com/ryandielhenn/izzy/pkg/node"
	"github.com/ryandielhenn/izzy/pkg/session"
	"github.com/ryandielhenn/izzy/pkg/status"
	"github.com/ryandielhenn/izzy/pkg/transport/udp"
)

func NewRunCmd() *cobra.Command {
	var advertiseHost string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Answer heartbeat Hellos with the unit's status",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, advertiseHost)
		},
	}
	host, _ := os.Hostname()
	cmd.Flags().StringVar(&advertiseHost, "advertise-host", host, "host registered in etcd when net.listen has none")
	return cmd
}

func run(ctx context.Context, advertiseHost string) error {
	// 1. Configuration and logging
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log, err := observability.SetupLogger(cfg.Log)
	if err != nil {
		return err
	}
	defer log.Sync()
	telemetry.SetBuildInfo(version, gitSHA)

	id := cfg.UnitID()
	log.Info("boot", zap.String("version", version), zap.Stringer("unit", id), zap.String("name", cfg.Unit.Name))

	// 2. Heartbeat socket, session and telemetry
	conn, err := udp.Listen(udp.Options{
		Listen:      cfg.Net.Listen,
		ReplyBind:   cfg.Net.ReplyBind,
		SendTimeout: cfg.SendTimeout(),
	})
	if err != nil {
		return err
	}
	defer conn.Close()

	tel := status.NewTelemetry(cfg.InitialStatus())
	n := node.New(conn, session.NewTracker(cfg.PeerTimeout()), tel, node.Options{
		ID:          id,
		Name:        cfg.Unit.Name,
		Tag:         cfg.Tag(),
		ReplyPort:   cfg.Net.ReplyPort,
		SendTimeout: cfg.SendTimeout(),
		Logger:      log,
	})

	// 3. Motion controller, when a serial port is configured
	var drive *motion.Drive
	if cfg.Motion.Port != "" {
		port, err := motion.OpenPort(cfg.Motion.Port, cfg.Motion.Baud)
		if err != nil {
			return err
		}
		defer port.Close()
		drive, err = motion.NewDrive(motion.NewController(port, motion.DefaultSettle, log.Named("kangaroo")), motion.Geometry{
			WheelRadiusMM:     cfg.Motion.WheelRadiusMM,
			SystemRadiusMM:    cfg.Motion.SystemRadiusMM,
			EncoderResolution: cfg.Motion.EncoderResolution,
			MotorRatio:        cfg.Motion.MotorRatio,
		}, tel, log.Named("drive"))
		if err != nil {
			// the heartbeat still reports; the supervisor sees the status
			log.Error("motion controller setup", zap.Error(err))
			tel.SetStatus(status.Broken)
			drive = nil
		}
	}

	// 4. Register with etcd so supervisors can find the unit
	if len(cfg.Discovery.EtcdEndpoints) > 0 {
		cli, err := discovery.NewClient(cfg.Discovery.EtcdEndpoints)
		if err != nil {
			return err
		}
		defer cli.Close()

		addr := node.AdvertiseAddr(conn.LocalAddr().String(), advertiseHost)
		rctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		leaseID, stopKeepAlive, err := discovery.RegisterUnit(rctx, cli, id.String(), addr, cfg.Discovery.LeaseTTL)
		cancel()
		if err != nil {
			log.Error("etcd registration", zap.Error(err))
		} else {
			log.Info("registered", zap.String("key", discovery.Key(id.String())), zap.String("addr", addr))
			defer func() {
				stopKeepAlive()
				revokeCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
				defer cancel()
				_, _ = cli.Revoke(revokeCtx, leaseID)
			}()
		}
	}

	// 5. HTTP status surface
	var srv *http.Server
	if cfg.HTTP.Listen != "" {
		mux := http.NewServeMux()
		mux.Handle("/healthz", telemetry.Instrument("healthz", http.HandlerFunc(n.Healthz)))
		mux.Handle("/info", telemetry.Instrument("info", http.HandlerFunc(n.Info)))
		mux.Handle("/session", telemetry.Instrument("session", http.HandlerFunc(n.Session)))
		mux.Handle("/status", telemetry.Instrument("status", http.HandlerFunc(n.Status)))
		mux.Handle("/metrics", telemetry.MetricsHandler())
		if drive != nil {
			m := node.NewMotion(drive, log.Named("motion"))
			mux.Handle("/motion/speed", telemetry.Instrument("speed", http.HandlerFunc(m.Speed)))
			mux.Handle("/motion/turn", telemetry.Instrument("turn", http.HandlerFunc(m.Turn)))
			mux.Handle("/motion/estop", telemetry.Instrument("estop", http.HandlerFunc(m.EStop)))
			mux.Handle("/motion/reset", telemetry.Instrument("reset", http.HandlerFunc(m.Reset)))
		}

		srv = &http.Server{Addr: cfg.HTTP.Listen, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			log.Info("http listening", zap.String("addr", cfg.HTTP.Listen))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("http server", zap.Error(err))
			}
		}()
	}

	// 6. Serve heartbeats until signalled
	err = n.Run(ctx)

	if srv != nil {
		sctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(sctx)
	}
	if drive != nil {
		// leave the drivetrain powered down
		_ = drive.SoftEStop()
	}
	log.Info("shutdown")
	return err
}
