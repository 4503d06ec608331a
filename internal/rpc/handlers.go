package rpc

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/joebot/vyna/internal/state"
)

// illustrationPayload is the client.showIllustration request body.
type illustrationPayload struct {
	State    *string `json:"state"`
	ImageURL *string `json:"image_url"`
}

func (d *Dispatcher) showIllustration(inv Invocation) string {
	slog.Info("rpc: showIllustration", "caller", inv.CallerIdentity)

	var p illustrationPayload
	if err := json.Unmarshal([]byte(inv.Payload), &p); err != nil {
		slog.Error("rpc: showIllustration payload", "err", err)
		return failure("%s", err.Error())
	}
	if p.State == nil {
		return failure("missing field: state")
	}

	switch *p.State {
	case "show":
		d.store.ShowIllustration(p.ImageURL)
	case "hidden":
		d.store.HideIllustration()
	default:
		msg := fmt.Sprintf("Invalid state: %q. Must be \"show\" or \"hidden\".", *p.State)
		slog.Error("rpc: showIllustration", "err", msg)
		return failure("%s", msg)
	}

	slog.Info("rpc: illustration updated", "state", *p.State, "image_url", deref(p.ImageURL))
	return Result{OK: true}.String()
}

// componentPayload is the client.component request body.
type componentPayload struct {
	Action  string `json:"action"`
	ID      string `json:"id"`
	Content string `json:"content"`
}

// component upserts a UI fragment on "toggle". Other actions are accepted
// and ignored.
func (d *Dispatcher) component(inv Invocation) string {
	if strings.TrimSpace(inv.Payload) == "" {
		return "Error: Invalid RPC data format"
	}

	var p componentPayload
	if err := json.Unmarshal([]byte(inv.Payload), &p); err != nil {
		slog.Error("rpc: component payload", "err", err)
		return "Error " + err.Error()
	}

	if p.Action == "toggle" {
		d.store.UpsertComponent(state.Component{ID: p.ID, Content: p.Content, Shown: true})
		slog.Info("rpc: component toggled", "id", p.ID)
	}
	return "Success"
}

func greet(inv Invocation) string {
	slog.Info("rpc: greeting", "caller", inv.CallerIdentity, "payload", inv.Payload)
	return "Hello, " + inv.CallerIdentity
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
