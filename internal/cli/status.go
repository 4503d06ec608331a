package cli

import (
	"fmt"
	"os"

	"github.com/joebot/vyna/internal/api"
	"github.com/joebot/vyna/internal/config"
)

// RunStatus displays the current configuration status with styled output.
func RunStatus(cfg *config.Config) {
	cfgPath := config.ConfigPath()

	fmt.Println()
	fmt.Println(TitleStyle.Render(fmt.Sprintf("  %s vyna Status", Logo)))
	fmt.Println()

	fmt.Printf("  %-14s %s  %s\n", "Config", StatusBadge(fileExists(cfgPath)), DimStyle.Render(cfgPath))
	logPath := cfg.Logging.FilePath()
	fmt.Printf("  %-14s %s  %s\n", "Log file", StatusBadge(fileExists(logPath)), DimStyle.Render(logPath))
	fmt.Println()

	fmt.Println("  " + BoldStyle.Render("Backend"))
	endpoint, err := api.ResolveEndpoint(cfg.Backend.Origin, cfg.Backend.ConnectionURL)
	if err != nil {
		fmt.Printf("    %s  %-12s %s\n", StatusBadge(false), "Connection", ErrStyle.Render(err.Error()))
	} else {
		fmt.Printf("    %s  %-12s %s\n", StatusBadge(true), "Connection", endpoint)
	}
	fmt.Printf("    %s  %-12s %s\n", StatusBadge(cfg.Backend.ChatURL != ""), "Chat", cfg.Backend.ChatURL)
	if os.Getenv(config.EnvAPIURL) != "" {
		fmt.Println("    " + DimStyle.Render("connection endpoint overridden by "+config.EnvAPIURL))
	}
	fmt.Println()

	fmt.Println("  " + BoldStyle.Render("Session"))
	fmt.Printf("    %-16s %s\n", "Agent timeout", cfg.Session.AgentTimeout())
	fmt.Printf("    %-16s %s\n", "Command timeout", cfg.Session.RPCTimeout())
	fmt.Printf("    %-16s %d wpm\n", "Reply pacing", cfg.UI.ReadingWPM)
	fmt.Println()

	fmt.Println("  " + BoldStyle.Render("Inspector"))
	fmt.Printf("    %s  %s\n", StatusBadge(cfg.Debug.Enabled), DimStyle.Render("http://"+cfg.Debug.Addr))
	fmt.Println()
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
