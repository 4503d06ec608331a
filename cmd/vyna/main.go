package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/joebot/vyna/internal/api"
	"github.com/joebot/vyna/internal/bus"
	"github.com/joebot/vyna/internal/channel"
	"github.com/joebot/vyna/internal/cli"
	"github.com/joebot/vyna/internal/config"
	"github.com/joebot/vyna/internal/debug"
	"github.com/joebot/vyna/internal/logging"
	"github.com/joebot/vyna/internal/session"
	"github.com/joebot/vyna/internal/state"
	"github.com/joebot/vyna/internal/watchdog"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(0)
	}

	switch os.Args[1] {
	case "connect":
		cmdConnect()
	case "ask":
		cmdAsk()
	case "status":
		cmdStatus()
	case "onboard":
		cli.RunOnboard()
	case "version", "--version", "-v":
		fmt.Println(cli.TitleStyle.Render(
			fmt.Sprintf("  %s vyna v%s", cli.Logo, cli.Version),
		))
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	dim := cli.DimStyle.Render
	fmt.Println()
	fmt.Println(cli.TitleStyle.Render(fmt.Sprintf("  %s vyna", cli.Logo)) + dim(" · voice agent companion"))
	fmt.Println()
	fmt.Println("  " + cli.BoldStyle.Render("Usage"))
	fmt.Println()
	fmt.Printf("    vyna %-14s %s\n", "connect", dim("Join the agent's room"))
	fmt.Printf("    vyna %-14s %s\n", "ask -m \"…\"", dim("Ask the chat backend once"))
	fmt.Printf("    vyna %-14s %s\n", "status", dim("Show configuration"))
	fmt.Printf("    vyna %-14s %s\n", "onboard", dim("Initialize setup"))
	fmt.Printf("    vyna %-14s %s\n", "version", dim("Show version"))
	fmt.Println()
}

// --- connect command ---

func cmdConnect() {
	cfg := mustLoadConfig()
	level := newLevel(cfg)
	closer := redirectLogs(cfg, level)
	defer closer.Close()

	client := mustMakeClient(cfg)

	store := state.NewStore()
	events := bus.NewEventBus()

	var wd *watchdog.Service
	loop := session.NewLoop(session.LoopConfig{
		Bus:   events,
		Store: store,
		OnAgentState: func(st state.AgentState) {
			wd.Observe(st)
		},
	})
	lk := channel.NewLiveKit(channel.LiveKitConfig{
		Fetch:      client.FetchConnectionDetails,
		Sink:       loop,
		Bus:        events,
		Dispatcher: loop.Dispatcher(),
		Invoke:     loop.Invoke,
		RPCTimeout: cfg.Session.RPCTimeout(),
	})
	wd = watchdog.NewService(cfg.Session.AgentTimeout(), events, lk.Disconnect)

	alerts := cli.AlertFeed(events)
	events.SubscribeAlerts(logAlert)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		loop.Run(gctx)
		return nil
	})
	g.Go(func() error {
		events.DispatchAlerts(gctx)
		return nil
	})
	g.Go(func() error {
		wd.Run(gctx)
		return nil
	})
	g.Go(func() error {
		// Connection failures surface as alerts; the TUI stays up.
		if err := lk.Start(gctx); err != nil && gctx.Err() == nil {
			slog.Error("LiveKit channel error", "err", err)
		}
		return nil
	})
	if cfg.Debug.Enabled {
		inspector := debug.NewServer(cfg.Debug.Addr, store, loop.Dispatcher().Methods(), level)
		g.Go(func() error {
			return inspector.Run(gctx)
		})
	}
	g.Go(func() error {
		defer cancel()
		err := cli.RunSession(gctx, cli.SessionConfig{
			Store:      store,
			Session:    loop,
			Sender:     lk,
			Chatter:    client,
			Alerts:     alerts,
			ReadingWPM: cfg.UI.ReadingWPM,
			ShowTimes:  cfg.UI.ShowTimes,
		})
		if gctx.Err() != nil {
			return nil
		}
		return err
	})

	if err := g.Wait(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

// --- ask command ---

func cmdAsk() {
	message := ""
	for i := 2; i < len(os.Args); i++ {
		if (os.Args[i] == "-m" || os.Args[i] == "--message") && i+1 < len(os.Args) {
			message = os.Args[i+1]
			break
		}
	}
	if strings.TrimSpace(message) == "" {
		fmt.Fprintln(os.Stderr, "Usage: vyna ask -m \"message\"")
		os.Exit(1)
	}

	cfg := mustLoadConfig()
	closer := redirectLogs(cfg, newLevel(cfg))
	defer closer.Close()

	client := mustMakeClient(cfg)
	store := state.NewStore()
	loop := session.NewLoop(session.LoopConfig{Bus: bus.NewEventBus(), Store: store})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		loop.Run(gctx)
		return nil
	})
	g.Go(func() error {
		defer cancel()
		return cli.RunAsk(gctx, cli.AskConfig{
			Store:      store,
			Session:    loop,
			Chatter:    client,
			ReadingWPM: cfg.UI.ReadingWPM,
		}, message)
	})

	if err := g.Wait(); err != nil {
		os.Exit(1)
	}
}

// --- status command ---

func cmdStatus() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %s\n", err)
	}
	logging.Terminal(newLevel(cfg))
	cli.RunStatus(cfg)
}

// --- helpers ---

func newLevel(cfg *config.Config) *slog.LevelVar {
	level := new(slog.LevelVar)
	level.Set(logging.ParseLevel(cfg.Logging.Level))
	return level
}

// redirectLogs sends logs to the rotated file while the TUI owns the terminal.
func redirectLogs(cfg *config.Config, level slog.Leveler) io.Closer {
	closer, err := logging.ToFile(logging.FileOptions{
		Path:       cfg.Logging.FilePath(),
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
	}, level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: logging disabled: %s\n", err)
	}
	return closer
}

func logAlert(_ context.Context, a bus.Alert) error {
	slog.Warn("alert", "kind", a.Kind, "title", a.Title, "content", a.Description)
	return nil
}

func mustLoadConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %s\n", err)
	}
	return cfg
}

func mustMakeClient(cfg *config.Config) *api.Client {
	client, err := api.NewClient(cfg.Backend.Origin, cfg.Backend.ConnectionURL, cfg.Backend.ChatURL)
	if err != nil {
		fmt.Println()
		fmt.Println(cli.ErrStyle.Render("  Error: " + err.Error()))
		fmt.Println(cli.DimStyle.Render("  Check backend.origin in ~/.vyna/config.json or " + config.EnvAPIURL))
		fmt.Println()
		os.Exit(1)
	}
	client.SetParticipantName(cfg.Session.ParticipantName)
	return client
}
