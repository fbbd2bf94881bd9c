package controlclient

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRegisterCameraSendsDescriptorAndParsesResponse(t *testing.T) {
	var gotReq RegisterRequest
	var gotAuth string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if r.Method != http.MethodPost || r.URL.Path != "/v1/cameras" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&gotReq)
		json.NewEncoder(w).Encode(RegisterResponse{CameraID: "cam-123", Status: "registered"})
	}))
	defer srv.Close()

	c := New(srv.URL, "secret-token", nil)
	resp, err := c.RegisterCamera(t.Context(), RegisterRequest{Name: "front-door", MasterMFID: "master-1"})
	if err != nil {
		t.Fatalf("RegisterCamera() error = %v", err)
	}
	if resp.CameraID != "cam-123" {
		t.Fatalf("CameraID = %q, want cam-123", resp.CameraID)
	}
	if gotReq.Name != "front-door" {
		t.Fatalf("server saw Name = %q, want front-door", gotReq.Name)
	}
	if gotAuth != "Bearer secret-token" {
		t.Fatalf("Authorization header = %q, want Bearer secret-token", gotAuth)
	}
}

func TestHeartbeatReturnsErrNotFoundOn404(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := New(srv.URL, "", nil)
	_, err := c.Heartbeat(t.Context(), HeartbeatRequest{CameraID: "cam-123"})
	if err != ErrNotFound {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestPollingParsesNextCommand(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(PollingResponse{
			NextCommand: &PTZCommand{TaskID: "task-1", Operation: "ABSOLUTE_MOVE", Absolute: &AbsoluteMovePayload{X: 0.5}},
		})
	}))
	defer srv.Close()

	c := New(srv.URL, "", nil)
	resp, err := c.Polling(t.Context(), PollingRequest{CameraID: "cam-123"})
	if err != nil {
		t.Fatalf("Polling() error = %v", err)
	}
	if resp.NextCommand == nil || resp.NextCommand.TaskID != "task-1" {
		t.Fatalf("NextCommand = %+v, want task-1", resp.NextCommand)
	}
}

func TestUnregisterCameraUsesDeleteOnCameraPath(t *testing.T) {
	var gotMethod, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod, gotPath = r.Method, r.URL.Path
		json.NewEncoder(w).Encode(UnregisterResponse{Success: true})
	}))
	defer srv.Close()

	c := New(srv.URL, "", nil)
	resp, err := c.UnregisterCamera(t.Context(), "cam-123")
	if err != nil {
		t.Fatalf("UnregisterCamera() error = %v", err)
	}
	if !resp.Success {
		t.Fatal("Success = false, want true")
	}
	if gotMethod != http.MethodDelete || gotPath != "/v1/cameras/cam-123" {
		t.Fatalf("request = %s %s, want DELETE /v1/cameras/cam-123", gotMethod, gotPath)
	}
}

func TestUnexpectedStatusIsAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte("bad request"))
	}))
	defer srv.Close()

	c := New(srv.URL, "", nil)
	_, err := c.RegisterCamera(t.Context(), RegisterRequest{})
	if err == nil {
		t.Fatal("expected an error for a 400 response")
	}
}
