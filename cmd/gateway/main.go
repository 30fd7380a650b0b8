// Command gateway bridges the proprietary BLE power-station devices to the
// display co-processor's local UI and to the web UI, running the
// authentication/session core, the device manager's scan arbitration, and
// the inter-MCU UART transport as concurrent execution contexts (§5).
//
// Grounded on the teacher's reset/main.go CLI and slog wiring (-v,
// -log-format, config-path resolution relative to the executable).
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/lollokara/ecoflow-gateway/internal/config"
	"github.com/lollokara/ecoflow-gateway/internal/store"
	"github.com/lollokara/ecoflow-gateway/pkg/blelink"
	"github.com/lollokara/ecoflow-gateway/pkg/devicemanager"
	"github.com/lollokara/ecoflow-gateway/pkg/intermcu"
)

const configFileName = "config.yaml"

// managerTickPeriod approximates the ~100 Hz supervisor cadence of §5.
const managerTickPeriod = 10 * time.Millisecond

func main() {
	verbose := flag.Bool("v", false, "enable debug logging")
	logFormat := flag.String("log-format", "text", "log format: text or json")
	configFlag := flag.String("config", "", "path to config.yaml (defaults to alongside the executable)")
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	if *logFormat == "json" {
		slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, opts)))
	} else {
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, opts)))
	}

	configPath := *configFlag
	if configPath == "" {
		p, err := defaultConfigPath()
		if err != nil {
			log.Fatalf("resolve config path failed: %v", err)
		}
		configPath = p
	}
	fmt.Printf("Using config: %s\n", configPath)

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	if err := run(cfg); err != nil {
		log.Fatalf("gateway exited: %v", err)
	}
}

func run(cfg *config.Config) error {
	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}

	adapter := blelink.NewTinygoAdapter()
	if err := adapter.Enable(); err != nil {
		return fmt.Errorf("enable BLE adapter: %w", err)
	}

	mgr, err := devicemanager.New(adapter, st, cfg.BLE.UserID)
	if err != nil {
		return fmt.Errorf("construct device manager: %w", err)
	}

	port, err := intermcu.OpenUART(cfg.InterMCU.UARTDevice)
	if err != nil {
		return fmt.Errorf("open inter-MCU UART: %w", err)
	}
	transport := intermcu.NewTransport(port)
	registerCommandHandlers(transport, mgr)

	ctx, cancel := signalContext()
	defer cancel()

	go func() {
		if err := transport.Run(); err != nil {
			slog.Warn("inter-MCU transport stopped", "error", err)
		}
	}()

	slog.Info("gateway running", "staging_root", cfg.InterMCU.StagingRoot)
	ticker := time.NewTicker(managerTickPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			slog.Info("shutting down")
			return nil
		case <-ticker.C:
			mgr.Update(ctx)
		}
	}
}

// registerCommandHandlers registers a handler for CmdStatusGet only, which
// logs the device manager's slots and answers with one empty
// CmdStatusRespond frame; no other inter-MCU command is forwarded to the
// device manager.
func registerCommandHandlers(t *intermcu.Transport, mgr *devicemanager.Manager) {
	t.OnCommand(intermcu.CmdStatusGet, func(f intermcu.Frame) {
		respondWithDeviceList(t, mgr)
	})
}

func respondWithDeviceList(t *intermcu.Transport, mgr *devicemanager.Manager) {
	for _, slot := range mgr.List() {
		slog.Debug("device status", "variant", slot.Variant, "state", slot.State)
	}
	_ = t.Send(intermcu.Frame{Command: intermcu.CmdStatusRespond})
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()
	return ctx, cancel
}

func defaultConfigPath() (string, error) {
	exePath, err := os.Executable()
	if err != nil {
		return "", err
	}
	exeConfigPath := filepath.Join(filepath.Dir(exePath), configFileName)
	if fileExists(exeConfigPath) {
		return exeConfigPath, nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return exeConfigPath, nil
	}
	cwdConfigPath := filepath.Join(cwd, configFileName)
	if fileExists(cwdConfigPath) {
		return cwdConfigPath, nil
	}
	return exeConfigPath, nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
