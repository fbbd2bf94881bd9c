//go:build cgo

package analyticspipeline

import (
	"context"
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// triggerMessage is the only message shape the manual crop trigger
// understands: an external preview process sends a
// {"trigger":"manual_crop"} frame.
type triggerMessage struct {
	Trigger string `json:"trigger"`
}

const manualCropTrigger = "manual_crop"

// ManualTrigger is a local loopback WebSocket listener standing in for an
// out-of-band trigger — e.g. a user keypress surfaced by a preview
// process — without tying this package to any particular UI. It accepts
// inbound connections from whatever local preview process wants to
// request an off-cycle crop.
type ManualTrigger struct {
	srv     *http.Server
	pending atomic.Bool
	upgrade websocket.Upgrader
}

// NewManualTrigger creates a trigger server bound to addr (e.g.
// "127.0.0.1:8787"). It does not start listening until Start is called.
func NewManualTrigger(addr string) *ManualTrigger {
	t := &ManualTrigger{upgrade: websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}}
	mux := http.NewServeMux()
	mux.HandleFunc("/trigger", t.handle)
	t.srv = &http.Server{Addr: addr, Handler: mux}
	return t
}

// Start begins listening in the background. Errors after shutdown
// (http.ErrServerClosed) are not reported.
func (t *ManualTrigger) Start() {
	go func() {
		if err := t.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Warn("manual trigger server stopped", "error", err)
		}
	}()
}

// Stop shuts the server down, waiting up to 5s for in-flight connections.
func (t *ManualTrigger) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	t.srv.Shutdown(ctx)
}

// Take reports whether a manual crop request has arrived since the last
// Take, clearing the flag (latest-wins: a burst of requests before the
// consumer polls collapses to one crop).
func (t *ManualTrigger) Take() bool {
	return t.pending.Swap(false)
}

func (t *ManualTrigger) handle(w http.ResponseWriter, r *http.Request) {
	conn, err := t.upgrade.Upgrade(w, r, nil)
	if err != nil {
		log.Warn("manual trigger upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var msg triggerMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Warn("manual trigger: malformed message", "error", err)
			continue
		}
		if msg.Trigger == manualCropTrigger {
			t.pending.Store(true)
			log.Info("manual crop requested")
		}
	}
}
