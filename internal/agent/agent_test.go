package agent

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/breeze-rmm/agent/internal/controlclient"
	"github.com/breeze-rmm/agent/internal/correction"
)

func newTestAgent(t *testing.T, serverURL string, supportsPTZ bool) *Agent {
	t.Helper()
	client := controlclient.New(serverURL, "", nil)
	descriptor := Descriptor{
		Name:       "cam-1",
		Mode:       "AUTONOMOUS",
		MasterMFID: "mf-1",
		Connection: controlclient.Connection{Type: "WEBRTC", Address: "127.0.0.1"},
		Capabilities: controlclient.Capabilities{
			SupportsPTZ: supportsPTZ,
		},
	}
	return New(client, descriptor, correction.Correction{}, nil, true, nil)
}

func TestRegisterAdoptsCameraID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/cameras" {
			t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		json.NewEncoder(w).Encode(controlclient.RegisterResponse{CameraID: "cam-abc", Status: "REGISTERED"})
	}))
	defer srv.Close()

	a := newTestAgent(t, srv.URL, true)
	if err := a.Register(context.Background()); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if got := a.CameraID(); got != "cam-abc" {
		t.Fatalf("CameraID() = %q, want %q", got, "cam-abc")
	}
}

func TestUnregisterNoopWithoutCameraID(t *testing.T) {
	a := newTestAgent(t, "http://unused.invalid", false)
	if err := a.Unregister(context.Background()); err != nil {
		t.Fatalf("Unregister() on unregistered agent error = %v", err)
	}
}

func TestHeartbeatLoopReregistersOnNotFound(t *testing.T) {
	var registerCount, heartbeatCount atomic.Int32
	var notFoundOnce atomic.Bool

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/v1/cameras":
			registerCount.Add(1)
			json.NewEncoder(w).Encode(controlclient.RegisterResponse{CameraID: "cam-xyz"})
		default:
			heartbeatCount.Add(1)
			if notFoundOnce.CompareAndSwap(false, true) {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			json.NewEncoder(w).Encode(controlclient.HeartbeatResponse{Acknowledged: true})
		}
	}))
	defer srv.Close()

	a := newTestAgent(t, srv.URL, false)
	if err := a.Register(context.Background()); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), HeartbeatInterval*2+200*time.Millisecond)
	defer cancel()
	a.Run(ctx)

	if registerCount.Load() < 2 {
		t.Fatalf("expected re-registration after NOT_FOUND, registerCount = %d", registerCount.Load())
	}
}

func TestPollLoopExecutesAbsoluteMoveCommand(t *testing.T) {
	var served atomic.Bool

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if served.CompareAndSwap(false, true) {
			json.NewEncoder(w).Encode(controlclient.PollingResponse{
				CurrentCommand: &controlclient.PTZCommand{
					TaskID:    "task-1",
					Operation: "ABSOLUTE_MOVE",
					Absolute:  &controlclient.AbsoluteMovePayload{X: 0.5, Y: 0, Z: 0},
				},
			})
			return
		}
		json.NewEncoder(w).Encode(controlclient.PollingResponse{})
	}))
	defer srv.Close()

	a := newTestAgent(t, srv.URL, true)
	a.setCameraID("cam-1")

	ctx, cancel := context.WithTimeout(context.Background(), PollInterval*3+200*time.Millisecond)
	defer cancel()
	a.Run(ctx)

	current := a.executor.Current()
	if current.Pan != 90 {
		t.Fatalf("executor pan = %v, want 90 (0.5*180)", current.Pan)
	}
}

func TestStopEndsRunPromptly(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(controlclient.PollingResponse{})
	}))
	defer srv.Close()

	a := newTestAgent(t, srv.URL, true)
	a.setCameraID("cam-1")

	done := make(chan struct{})
	go func() {
		a.Run(context.Background())
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	a.Stop()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after Stop")
	}
}
