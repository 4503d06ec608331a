package rpc

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joebot/vyna/internal/state"
)

func invoke(d *Dispatcher, method, payload string) string {
	return d.Dispatch(Invocation{Method: method, CallerIdentity: "agent-1", Payload: payload})
}

func decode(t *testing.T, s string) Result {
	t.Helper()
	var r Result
	require.NoError(t, json.Unmarshal([]byte(s), &r), "result %q is not JSON", s)
	return r
}

func TestShowThenHideRetainsURL(t *testing.T) {
	store := state.NewStore()
	d := NewDispatcher(store)

	res := decode(t, invoke(d, "client.showIllustration", `{"state":"show","image_url":"http://x/img.png"}`))
	require.True(t, res.OK)
	got := store.Illustration()
	require.True(t, got.Visible)
	require.Equal(t, "http://x/img.png", *got.ImageURL)

	res = decode(t, invoke(d, "client.showIllustration", `{"state":"hidden"}`))
	require.True(t, res.OK)
	got = store.Illustration()
	require.False(t, got.Visible)
	require.Equal(t, "http://x/img.png", *got.ImageURL)
}

func TestShowWithoutURLSetsNil(t *testing.T) {
	store := state.NewStore()
	d := NewDispatcher(store)

	invoke(d, "client.showIllustration", `{"state":"show","image_url":"a"}`)
	res := decode(t, invoke(d, "client.showIllustration", `{"state":"show","image_url":null}`))
	require.True(t, res.OK)
	require.True(t, store.Illustration().Visible)
	require.Nil(t, store.Illustration().ImageURL)
}

func TestShowIllustrationRejectsWithoutMutating(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		wantErr string
	}{
		{"unknown state", `{"state":"blink"}`, `Invalid state: "blink". Must be "show" or "hidden".`},
		{"missing state", `{"image_url":"x"}`, "missing field: state"},
		{"not json", `{{{`, ""},
		{"empty", ``, ""},
		{"wrong type", `{"state":3}`, ""},
		{"array", `["show"]`, ""},
		{"null", `null`, "missing field: state"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := state.NewStore()
			url := "keep"
			store.ShowIllustration(&url)
			before := store.Illustration()

			d := NewDispatcher(store)
			var out string
			require.NotPanics(t, func() { out = invoke(d, "client.showIllustration", tt.payload) })

			res := decode(t, out)
			require.False(t, res.OK)
			require.NotEmpty(t, res.Error)
			if tt.wantErr != "" {
				require.Equal(t, tt.wantErr, res.Error)
			}
			require.Equal(t, before, store.Illustration())
		})
	}
}

func TestComponentToggleUpserts(t *testing.T) {
	store := state.NewStore()
	d := NewDispatcher(store)

	require.Equal(t, "Success", invoke(d, "client.component", `{"action":"toggle","id":"c1","content":"one"}`))
	require.Equal(t, "Success", invoke(d, "client.component", `{"action":"toggle","id":"c2","content":"two"}`))
	require.Equal(t, "Success", invoke(d, "client.component", `{"action":"toggle","id":"c1","content":"uno"}`))

	got := store.Components()
	require.Len(t, got, 2)
	require.Equal(t, state.Component{ID: "c1", Content: "uno", Shown: true}, got[0])
}

func TestComponentOtherActionsAreNoops(t *testing.T) {
	store := state.NewStore()
	d := NewDispatcher(store)

	require.Equal(t, "Success", invoke(d, "client.component", `{"action":"hide","id":"c1"}`))
	require.Empty(t, store.Components())
}

func TestComponentMalformedPayload(t *testing.T) {
	d := NewDispatcher(state.NewStore())

	require.Equal(t, "Error: Invalid RPC data format", invoke(d, "client.component", ""))
	require.Contains(t, invoke(d, "client.component", "nope"), "Error ")
}

func TestGreetEchoesCaller(t *testing.T) {
	d := NewDispatcher(state.NewStore())
	require.Equal(t, "Hello, agent-1", invoke(d, "greet", "hi"))
}

func TestUnknownMethodRejectedCentrally(t *testing.T) {
	d := NewDispatcher(state.NewStore())
	res := decode(t, invoke(d, "client.selfDestruct", "{}"))
	require.False(t, res.OK)
	require.Equal(t, "unknown method: client.selfDestruct", res.Error)
}

func TestDispatchRecoversFromPanics(t *testing.T) {
	d := NewDispatcher(state.NewStore())
	d.handlers[MethodGreet] = func(Invocation) string { panic("boom") }

	var out string
	require.NotPanics(t, func() { out = invoke(d, "greet", "") })
	res := decode(t, out)
	require.False(t, res.OK)
	require.Contains(t, res.Error, "boom")
}

func TestMethodsSorted(t *testing.T) {
	d := NewDispatcher(state.NewStore())
	require.Equal(t, []Method{MethodComponent, MethodShowIllustration, MethodGreet}, d.Methods())
}

// fakeRegistrar mimics a session that rejects duplicate registrations.
type fakeRegistrar struct {
	handlers   map[string]Handler
	failAlways map[string]bool
	calls      []string
}

func newFakeRegistrar() *fakeRegistrar {
	return &fakeRegistrar{handlers: map[string]Handler{}, failAlways: map[string]bool{}}
}

func (f *fakeRegistrar) Register(method string, h Handler) error {
	f.calls = append(f.calls, "register "+method)
	if f.failAlways[method] {
		return errors.New("rejected")
	}
	if _, ok := f.handlers[method]; ok {
		return errors.New("already registered")
	}
	f.handlers[method] = h
	return nil
}

func (f *fakeRegistrar) Unregister(method string) {
	f.calls = append(f.calls, "unregister "+method)
	delete(f.handlers, method)
}

func TestMountRegistersAllMethods(t *testing.T) {
	store := state.NewStore()
	d := NewDispatcher(store)
	reg := newFakeRegistrar()

	require.NoError(t, d.Mount(reg, nil))
	require.Len(t, reg.handlers, 3)

	out := reg.handlers["greet"](Invocation{Method: "greet", CallerIdentity: "bob"})
	require.Equal(t, "Hello, bob", out)

	d.Unmount()
	require.Empty(t, reg.handlers)
}

func TestMountReplacesStaleRegistration(t *testing.T) {
	d := NewDispatcher(state.NewStore())
	reg := newFakeRegistrar()
	reg.handlers["greet"] = func(Invocation) string { return "stale" }

	require.NoError(t, d.Mount(reg, nil))
	require.Equal(t, "Hello, x", reg.handlers["greet"](Invocation{Method: "greet", CallerIdentity: "x"}))
	require.Contains(t, reg.calls, "unregister greet")
}

func TestMountToleratesPersistentFailure(t *testing.T) {
	d := NewDispatcher(state.NewStore())
	reg := newFakeRegistrar()
	reg.failAlways["greet"] = true

	var err error
	require.NotPanics(t, func() { err = d.Mount(reg, nil) })
	require.Error(t, err)
	require.Len(t, reg.handlers, 2)

	d.Unmount()
	require.Empty(t, reg.handlers)
}

func TestMountRoutesThroughCall(t *testing.T) {
	d := NewDispatcher(state.NewStore())
	reg := newFakeRegistrar()
	var routed []string
	call := func(inv Invocation) string {
		routed = append(routed, inv.Method)
		return d.Dispatch(inv)
	}

	require.NoError(t, d.Mount(reg, call))
	reg.handlers["greet"](Invocation{Method: "greet"})
	require.Equal(t, []string{"greet"}, routed)
}
