package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/jromeu/vitalink/internal/config"
	"github.com/jromeu/vitalink/internal/ingest"
	"github.com/jromeu/vitalink/internal/record"
	"github.com/jromeu/vitalink/internal/store"
	"github.com/jromeu/vitalink/internal/transport"
)

// watchCmd represents the watch command
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Connect to the sensor board and ingest live readings",
	Long: `Connect to the sensor board and ingest live readings until stopped.

By default the serial transport is used (first available port, or --port).
With --ble the board is discovered over Bluetooth Low Energy instead;
--service and --char are required then, --name-prefix narrows discovery.

Each reading is decoded, normalized, and persisted through the gateway.
Step readings are deltas and accumulate into today's record.

Examples:
  # Serial board on an explicit port
  vitalink watch --port /dev/ttyUSB0

  # BLE board advertising a custom service
  vitalink watch --ble --service 6e400001-b5a3-f393-e0a9-e50e24dcca9e \
      --char 6e400003-b5a3-f393-e0a9-e50e24dcca9e --name-prefix HealthBoard`,
	RunE: runWatch,
}

var (
	watchBLE         bool
	watchService     string
	watchChar        string
	watchNamePrefix  string
	watchPort        string
	watchScanTimeout time.Duration
	watchEcho        bool
)

func init() {
	watchCmd.Flags().BoolVar(&watchBLE, "ble", false, "Use the BLE transport instead of serial")
	watchCmd.Flags().StringVar(&watchService, "service", "", "BLE service UUID")
	watchCmd.Flags().StringVar(&watchChar, "char", "", "BLE characteristic UUID")
	watchCmd.Flags().StringVar(&watchNamePrefix, "name-prefix", "", "BLE device name prefix filter")
	watchCmd.Flags().StringVar(&watchPort, "port", "", "Serial port (default: first available)")
	watchCmd.Flags().DurationVar(&watchScanTimeout, "scan-timeout", 0, "BLE discovery timeout")
	watchCmd.Flags().BoolVar(&watchEcho, "echo", false, "Echo every raw frame to stderr")
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	logger, err := configureLogger(cmd, "", cfg.LogLevel)
	if err != nil {
		return err
	}

	tr, mode, err := buildTransport(cfg, logger)
	if err != nil {
		return err
	}

	cmd.SilenceUsage = true

	if !stdoutIsTerminal() {
		color.NoColor = true
	}

	gw := newGateway(cfg, logger)
	sink := &gatewaySink{gw: gw, out: cmd.OutOrStdout()}
	session := ingest.NewSession(tr, ingest.NewDecoder(mode, logger), sink, logger)

	unsubscribe := session.Subscribe(func(st ingest.State) {
		fmt.Fprintf(os.Stderr, "Estado: %s\n", stateBadge(st))
	})
	defer unsubscribe()

	if watchEcho {
		session.SetFrameObserver(func(f transport.Frame) {
			fmt.Fprintf(os.Stderr, "<- %s\n", f.Text())
		})
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		<-sigChan
		cancel()
	}()

	if err := session.Connect(ctx); err != nil {
		return fmt.Errorf("connect failed: %w", err)
	}

	// Watch for the session dropping back to disconnected, whether from
	// Ctrl+C below or from a read-loop failure.
	done := make(chan struct{})
	var once sync.Once
	unsubDone := session.Subscribe(func(st ingest.State) {
		if st == ingest.StateDisconnected {
			once.Do(func() { close(done) })
		}
	})
	defer unsubDone()

	fmt.Fprintln(os.Stderr, "Press Ctrl+C to stop...")

	select {
	case <-ctx.Done():
		session.Disconnect()
		<-done
	case <-done:
	}
	return nil
}

// buildTransport picks the transport from flags and configuration; flags win.
func buildTransport(cfg config.Config, logger *logrus.Logger) (transport.Transport, ingest.Mode, error) {
	if watchBLE {
		bleCfg := transport.BLEConfig{
			ServiceUUID:        firstNonEmpty(watchService, cfg.BLE.ServiceUUID),
			CharacteristicUUID: firstNonEmpty(watchChar, cfg.BLE.CharacteristicUUID),
			NamePrefix:         firstNonEmpty(watchNamePrefix, cfg.BLE.NamePrefix),
			ScanTimeout:        cfg.BLE.ScanTimeout,
		}
		if watchScanTimeout > 0 {
			bleCfg.ScanTimeout = watchScanTimeout
		}
		if bleCfg.ServiceUUID == "" || bleCfg.CharacteristicUUID == "" {
			return nil, 0, fmt.Errorf("--ble requires --service and --char (or VITALINK_BLE_* variables)")
		}
		return transport.NewBLETransport(bleCfg, logger), ingest.ModeBLE, nil
	}

	serialCfg := transport.SerialConfig{Port: firstNonEmpty(watchPort, cfg.SerialPort)}
	return transport.NewSerialTransport(serialCfg, logger), ingest.ModeSerial, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// gatewaySink routes normalized readings into the persistence gateway and
// echoes each stored record.
type gatewaySink struct {
	gw  *store.Gateway
	out io.Writer
}

func (s *gatewaySink) Ingest(ctx context.Context, kind record.Kind, r record.Reading) error {
	switch kind {
	case record.KindSteps:
		stored, err := s.gw.UpsertStepsForToday(ctx, r)
		if err != nil {
			return err
		}
		fmt.Fprintf(s.out, "steps %s  count=%d\n", stored.Date, stored.Count)
	case record.KindHeartRate:
		if !record.ValidBPM(r.BPM) {
			return fmt.Errorf("bpm %d outside valid range %d-%d", r.BPM, record.MinBPM, record.MaxBPM)
		}
		stored := s.gw.Create(ctx, kind, r)
		fmt.Fprintf(s.out, "heart %s  bpm=%d activity=%s\n", stored.Timestamp, stored.BPM, stored.Activity)
	}
	return nil
}
