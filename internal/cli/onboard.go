package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/joebot/vyna/internal/api"
	"github.com/joebot/vyna/internal/config"
)

type onboardStep int

const (
	stepExisting onboardStep = iota
	stepOrigin
	stepEndpoint
	stepDone
)

type existingChoice int

const (
	choiceUpgrade existingChoice = iota
	choiceOverwrite
	choiceSkip
)

var existingChoices = []string{
	"Upgrade: add new fields, keep existing values",
	"Overwrite: replace with fresh defaults",
	"Skip: do not modify config",
}

// onboardModel walks through the existing-config choice and the backend
// addresses. It only collects answers; RunOnboard applies them.
type onboardModel struct {
	step    onboardStep
	cursor  int
	choice  existingChoice
	input   textinput.Model
	origin  string
	path    string
	errLine string
	aborted bool
}

func newOnboardModel(exists bool, cfg *config.Config) onboardModel {
	ti := textinput.New()
	ti.Prompt = "❯ "
	ti.PromptStyle = lipgloss.NewStyle().Foreground(Accent)
	ti.CharLimit = 256

	m := onboardModel{
		input:  ti,
		origin: cfg.Backend.Origin,
		path:   cfg.Backend.ConnectionURL,
	}
	if exists {
		m.step = stepExisting
	} else {
		m.enterOrigin()
	}
	return m
}

func (m *onboardModel) enterOrigin() {
	m.step = stepOrigin
	m.input.Placeholder = api.DefaultOrigin
	m.input.SetValue(m.origin)
	m.input.Focus()
}

func (m *onboardModel) enterEndpoint() {
	m.step = stepEndpoint
	m.input.Placeholder = api.DefaultConnectionPath
	m.input.SetValue(m.path)
	m.input.Focus()
}

func (m onboardModel) Init() tea.Cmd {
	if m.step == stepExisting {
		return nil
	}
	return textinput.Blink
}

func (m onboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
	if key.Type == tea.KeyCtrlC {
		m.aborted = true
		return m, tea.Quit
	}

	switch m.step {
	case stepExisting:
		switch key.Type {
		case tea.KeyUp, tea.KeyShiftTab:
			m.cursor = max(m.cursor-1, 0)
		case tea.KeyDown, tea.KeyTab:
			m.cursor = min(m.cursor+1, len(existingChoices)-1)
		case tea.KeyEnter:
			m.choice = existingChoice(m.cursor)
			if m.choice == choiceSkip {
				m.step = stepDone
				return m, tea.Quit
			}
			m.enterOrigin()
			return m, textinput.Blink
		}
		return m, nil

	case stepOrigin, stepEndpoint:
		if key.Type != tea.KeyEnter {
			var cmd tea.Cmd
			m.input, cmd = m.input.Update(msg)
			return m, cmd
		}
		value := strings.TrimSpace(m.input.Value())
		if m.step == stepOrigin {
			if value == "" {
				value = api.DefaultOrigin
			}
			if !strings.HasPrefix(value, "http://") && !strings.HasPrefix(value, "https://") {
				m.errLine = "origin must start with http:// or https://"
				return m, nil
			}
			m.errLine = ""
			m.origin = value
			m.enterEndpoint()
			return m, nil
		}
		if _, err := api.ResolveEndpoint(m.origin, value); err != nil {
			m.errLine = err.Error()
			return m, nil
		}
		m.path = value
		m.step = stepDone
		return m, tea.Quit
	}
	return m, nil
}

func (m onboardModel) View() string {
	var sb strings.Builder
	sb.WriteString("\n")

	switch m.step {
	case stepExisting:
		fmt.Fprintf(&sb, "  Config already exists at %s\n\n", DimStyle.Render(config.ConfigPath()))
		for i, c := range existingChoices {
			marker := "  "
			if i == m.cursor {
				marker = BotLabel.Render("❯ ")
			}
			sb.WriteString("  " + marker + c + "\n")
		}
		sb.WriteString("\n" + DimStyle.Render("  ↑/↓ navigate · enter select · ctrl+c cancel") + "\n")
		return sb.String()
	case stepOrigin:
		sb.WriteString("  " + BoldStyle.Render("Backend origin") + DimStyle.Render("  (where the web app runs)") + "\n\n")
	case stepEndpoint:
		sb.WriteString("  " + BoldStyle.Render("Connection endpoint") + DimStyle.Render("  (absolute, or relative to "+m.origin+")") + "\n\n")
	default:
		return ""
	}

	sb.WriteString("  " + m.input.View() + "\n")
	if m.errLine != "" {
		sb.WriteString("  " + ErrStyle.Render(m.errLine) + "\n")
	}
	sb.WriteString("\n" + DimStyle.Render("  enter accept · ctrl+c cancel") + "\n")
	return sb.String()
}

// RunOnboard runs the onboard wizard.
func RunOnboard() {
	cfgPath := config.ConfigPath()
	_, statErr := os.Stat(cfgPath)
	exists := statErr == nil

	current, _ := config.LoadFrom(cfgPath)

	fmt.Println()
	fmt.Println(TitleStyle.Render(fmt.Sprintf("  %s vyna Onboard", Logo)))

	final, err := tea.NewProgram(newOnboardModel(exists, current)).Run()
	if err != nil {
		fail(err)
	}
	m := final.(onboardModel)
	fmt.Println()

	if m.aborted {
		fmt.Println("  " + DimStyle.Render("Onboarding cancelled, config unchanged"))
		fmt.Println()
		return
	}

	cfg, verb, err := applyOnboard(m, exists)
	if err != nil {
		fail(err)
	}
	fmt.Println("  " + OkStyle.Render("✓") + " " + verb + " " + DimStyle.Render(cfgPath))
	fmt.Println("  " + OkStyle.Render("✓") + " Log file at " + DimStyle.Render(cfg.Logging.FilePath()))

	if created, err := writeEnvTemplate(DataEnvPath()); err != nil {
		fmt.Println("  " + WarnStyle.Render("! ") + err.Error())
	} else if created {
		fmt.Println("  " + OkStyle.Render("✓") + " Env file at " + DimStyle.Render(DataEnvPath()))
	}

	fmt.Println()
	fmt.Println(OkStyle.Render("  vyna is ready!"))
	fmt.Println()
	fmt.Println(DimStyle.Render("  Next steps:"))
	fmt.Println(DimStyle.Render("  1. Check the setup: vyna status"))
	fmt.Println(DimStyle.Render("  2. Talk to the agent: vyna connect"))
	fmt.Println()
}

// applyOnboard writes the answers collected by m and reports what it did.
func applyOnboard(m onboardModel, exists bool) (*config.Config, string, error) {
	if exists && m.choice == choiceSkip {
		cfg, _ := config.Load()
		return cfg, "Config unchanged at", nil
	}

	var (
		cfg  *config.Config
		verb string
		err  error
	)
	switch {
	case exists && m.choice == choiceUpgrade:
		cfg, err = config.Upgrade()
		verb = "Upgraded config at"
	case exists:
		cfg = config.DefaultConfig()
		verb = "Overwrote config at"
	default:
		cfg = config.DefaultConfig()
		verb = "Created config at"
	}
	if err != nil {
		return nil, "", err
	}

	cfg.Backend.Origin = m.origin
	cfg.Backend.ConnectionURL = m.path
	if err := cfg.Validate(); err != nil {
		return nil, "", err
	}
	if err := config.Save(cfg); err != nil {
		return nil, "", err
	}
	return cfg, verb, nil
}

func fail(err error) {
	fmt.Println("  " + ErrStyle.Render("Error: "+err.Error()))
	os.Exit(1)
}

// DataEnvPath is the .env file read at startup next to the config.
func DataEnvPath() string {
	return filepath.Join(config.DataDir(), ".env")
}

// writeEnvTemplate creates path with commented defaults unless it exists.
func writeEnvTemplate(path string) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return false, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return false, fmt.Errorf("create data dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(envTemplate), 0o600); err != nil {
		return false, fmt.Errorf("write env file: %w", err)
	}
	return true, nil
}

const envTemplate = `# Connection-details endpoint, absolute or relative to backend.origin.
# VYNA_API_URL=/api/connection-details
# VYNA_CHAT_URL=http://localhost:3000
# VYNA_LOG_LEVEL=info
# VYNA_DEBUG_ADDR=127.0.0.1:7468
`
