// Package controlclient implements the ControlClient port: four RPCs over
// a request/response connection. The ConnectRPC wire format of real
// control services is out of scope; this models the same four contracts
// over plain HTTP+JSON.
package controlclient

// Credentials carries optional connection credentials.
type Credentials struct {
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
	Token    string `json:"token,omitempty"`
}

// Connection describes how the control plane should reach the camera.
type Connection struct {
	Type        string       `json:"type"`
	Address     string       `json:"address"`
	Port        int          `json:"port,omitempty"`
	Credentials *Credentials `json:"credentials,omitempty"`
}

// Capabilities describes what the camera supports.
type Capabilities struct {
	SupportsPTZ bool `json:"supportsPtz"`
}

// RegisterRequest is the camera registration descriptor.
type RegisterRequest struct {
	Name         string            `json:"name"`
	Mode         string            `json:"mode"`
	MasterMFID   string            `json:"masterMfId"`
	Connection   Connection        `json:"connection"`
	Capabilities Capabilities      `json:"capabilities"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// RegisterResponse carries the server-assigned camera identity.
type RegisterResponse struct {
	CameraID string `json:"cameraId"`
	Status   string `json:"status"`
}

// UnregisterResponse reports whether deregistration succeeded.
type UnregisterResponse struct {
	Success bool `json:"success"`
}

// PTZ mirrors the PTZ parameters value type.
type PTZ struct {
	Pan       float64 `json:"pan"`
	Tilt      float64 `json:"tilt"`
	Zoom      float64 `json:"zoom"`
	PanSpeed  float64 `json:"panSpeed,omitempty"`
	TiltSpeed float64 `json:"tiltSpeed,omitempty"`
	ZoomSpeed float64 `json:"zoomSpeed,omitempty"`
}

// HeartbeatRequest is the liveness RPC payload.
type HeartbeatRequest struct {
	CameraID    string `json:"cameraId"`
	TimestampMs int64  `json:"timestampMs"`
	CurrentPTZ  *PTZ   `json:"currentPtz,omitempty"`
	Status      string `json:"status,omitempty"`
}

// HeartbeatResponse acknowledges a heartbeat.
type HeartbeatResponse struct {
	Acknowledged      bool  `json:"acknowledged"`
	ServerTimestampMs int64 `json:"serverTimestampMs"`
}

// AbsoluteMovePayload is the ABSOLUTE_MOVE task body.
type AbsoluteMovePayload struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// RelativeMovePayload is the RELATIVE_MOVE task body.
type RelativeMovePayload struct {
	PanDelta  float64 `json:"panDelta"`
	TiltDelta float64 `json:"tiltDelta"`
	ZoomDelta float64 `json:"zoomDelta"`
}

// ContinuousMovePayload is the CONTINUOUS_MOVE task body.
type ContinuousMovePayload struct {
	PanVelocity  float64 `json:"panVelocity"`
	TiltVelocity float64 `json:"tiltVelocity"`
	ZoomVelocity float64 `json:"zoomVelocity"`
	TimeoutMs    int     `json:"timeoutMs"`
}

// PTZCommand is a polling-response task body for layer=PTZ.
type PTZCommand struct {
	TaskID    string                 `json:"taskId"`
	Operation string                 `json:"operation"` // ABSOLUTE_MOVE | RELATIVE_MOVE | CONTINUOUS_MOVE
	Absolute  *AbsoluteMovePayload   `json:"absolute,omitempty"`
	Relative  *RelativeMovePayload   `json:"relative,omitempty"`
	Continuous *ContinuousMovePayload `json:"continuous,omitempty"`
}

// PollingRequest is the PTZ polling request.
type PollingRequest struct {
	CameraID        string `json:"cameraId"`
	DeviceStatus    string `json:"deviceStatus"`
	CameraStatus    string `json:"cameraStatus,omitempty"`
	TimestampMs     int64  `json:"timestampMs"`
	CompletedTaskID string `json:"completedTaskId,omitempty"`
	ExecutingTaskID string `json:"executingTaskId,omitempty"`
	CurrentPTZ      *PTZ   `json:"currentPtz,omitempty"`
}

// PollingResponse carries the next task to execute (if any) and any
// pending interrupt.
type PollingResponse struct {
	CurrentCommand *PTZCommand `json:"currentCommand,omitempty"`
	NextCommand    *PTZCommand `json:"nextCommand,omitempty"`
	Interrupt      bool        `json:"interrupt"`
}
