package rpc

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/joebot/vyna/internal/metrics"
	"github.com/joebot/vyna/internal/state"
)

// Method is the name of a remote-callable operation.
type Method string

const (
	MethodShowIllustration Method = "client.showIllustration"
	MethodComponent        Method = "client.component"
	MethodGreet            Method = "greet"
)

// Invocation is one remote call received over the session data channel.
type Invocation struct {
	RequestID       string
	Method          string
	CallerIdentity  string
	Payload         string
	ResponseTimeout time.Duration
}

// Handler produces the string returned to the remote caller. Handlers report
// failures in the returned string, never through panics.
type Handler func(inv Invocation) string

// Registrar is the part of a real-time session that accepts method handlers.
type Registrar interface {
	Register(method string, h Handler) error
	Unregister(method string)
}

// Result is the structured reply used by client.showIllustration.
type Result struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

func (r Result) String() string {
	data, _ := json.Marshal(r)
	return string(data)
}

func failure(format string, args ...any) string {
	return Result{Error: fmt.Sprintf(format, args...)}.String()
}

// Dispatcher maps method names to handlers that validate a payload and
// mutate the store.
type Dispatcher struct {
	store    *state.Store
	handlers map[Method]Handler

	mu      sync.Mutex
	mounted []Method
	reg     Registrar
}

// NewDispatcher creates a dispatcher with the built-in methods.
func NewDispatcher(store *state.Store) *Dispatcher {
	d := &Dispatcher{store: store}
	d.handlers = map[Method]Handler{
		MethodShowIllustration: d.showIllustration,
		MethodComponent:        d.component,
		MethodGreet:            greet,
	}
	return d
}

// Methods returns the supported method names in sorted order.
func (d *Dispatcher) Methods() []Method {
	methods := make([]Method, 0, len(d.handlers))
	for m := range d.handlers {
		methods = append(methods, m)
	}
	sort.Slice(methods, func(i, j int) bool { return methods[i] < methods[j] })
	return methods
}

// Dispatch runs the handler for inv.Method. Unknown methods, panics and
// payload errors all come back as failure strings.
func (d *Dispatcher) Dispatch(inv Invocation) (result string) {
	h, ok := d.handlers[Method(inv.Method)]
	if !ok {
		slog.Warn("rpc: unknown method", "method", inv.Method, "caller", inv.CallerIdentity)
		metrics.RPCInvocations.WithLabelValues("unknown", "error").Inc()
		return failure("unknown method: %s", inv.Method)
	}

	defer func() {
		if r := recover(); r != nil {
			slog.Error("rpc: handler panic", "method", inv.Method, "panic", r)
			metrics.RPCInvocations.WithLabelValues(inv.Method, "error").Inc()
			result = failure("internal error: %v", r)
		}
	}()

	slog.Debug("rpc: invocation", "method", inv.Method, "caller", inv.CallerIdentity, "payload", inv.Payload)
	result = h(inv)
	metrics.RPCInvocations.WithLabelValues(inv.Method, outcome(result)).Inc()
	return result
}

// Mount registers every method with r. Calls are routed through call, which
// lets the session run them on its own goroutine; a nil call dispatches
// directly. A rejected registration is retried once after unregistering the
// stale handler; remaining failures are returned but never abort the others.
func (d *Dispatcher) Mount(r Registrar, call Handler) error {
	if call == nil {
		call = d.Dispatch
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	var errs []error
	for _, m := range d.Methods() {
		method := string(m)
		err := r.Register(method, call)
		if err != nil {
			slog.Warn("rpc: register rejected, replacing existing handler", "method", method, "err", err)
			r.Unregister(method)
			err = r.Register(method, call)
		}
		if err != nil {
			metrics.RPCRegistrationFailures.WithLabelValues(method).Inc()
			errs = append(errs, fmt.Errorf("register %s: %w", method, err))
			continue
		}
		slog.Info("rpc: registered method", "method", method)
		d.mounted = append(d.mounted, m)
	}
	d.reg = r
	return errors.Join(errs...)
}

// Unmount unregisters every method registered by Mount.
func (d *Dispatcher) Unmount() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.reg == nil {
		return
	}
	for _, m := range d.mounted {
		d.reg.Unregister(string(m))
		slog.Info("rpc: unregistered method", "method", string(m))
	}
	d.mounted = nil
	d.reg = nil
}

// outcome classifies a handler result for metrics.
func outcome(result string) string {
	var r Result
	if json.Unmarshal([]byte(result), &r) == nil && !r.OK && r.Error != "" {
		return "error"
	}
	if len(result) >= 5 && result[:5] == "Error" {
		return "error"
	}
	return "ok"
}
