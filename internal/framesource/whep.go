//go:build cgo

// Package framesource pulls a live video track over WebRTC/WHEP and
// decodes it into raw BGR frames for the analytics pipeline.
package framesource

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/pion/webrtc/v4"

	"github.com/breeze-rmm/agent/internal/detection"
	"github.com/breeze-rmm/agent/internal/logging"
)

var log = logging.L("framesource")

// connectedTimeout/trackTimeout mirror connect_whep's 10s waits for
// connection establishment and first track arrival.
const (
	connectedTimeout = 10 * time.Second
	trackTimeout     = 10 * time.Second
)

// Source pulls a single video track from a go2rtc-style WHEP endpoint and
// decodes it into BGR frames.
type Source struct {
	endpoint string
	insecure bool

	pc      *webrtc.PeerConnection
	decoder *h264Decoder
	frames  chan detection.Frame
}

// New creates a Source targeting endpoint (a full WHEP URL, e.g.
// "https://host/api/webrtc?src=camera1").
func New(endpoint string, insecure bool) *Source {
	return &Source{endpoint: endpoint, insecure: insecure}
}

// Connect performs the WHEP offer/answer exchange and returns a channel of
// decoded frames. The channel is closed when the connection ends or ctx is
// cancelled.
func (s *Source) Connect(ctx context.Context) (<-chan detection.Frame, error) {
	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{})
	if err != nil {
		return nil, fmt.Errorf("framesource: create peer connection: %w", err)
	}
	s.pc = pc

	if _, err := pc.AddTransceiverFromKind(webrtc.RTPCodecTypeVideo, webrtc.RTPTransceiverInit{
		Direction: webrtc.RTPTransceiverDirectionRecvonly,
	}); err != nil {
		pc.Close()
		return nil, fmt.Errorf("framesource: add video transceiver: %w", err)
	}

	decoder, err := newH264Decoder()
	if err != nil {
		pc.Close()
		return nil, fmt.Errorf("framesource: create decoder: %w", err)
	}
	s.decoder = decoder

	frames := make(chan detection.Frame, 4)
	s.frames = frames

	connected := make(chan struct{})
	var connectedOnce sync.Once
	trackSeen := make(chan struct{})
	var trackOnce sync.Once

	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		log.Info("webrtc connection state changed", "state", state.String())
		switch state {
		case webrtc.PeerConnectionStateConnected, webrtc.PeerConnectionStateFailed, webrtc.PeerConnectionStateClosed:
			connectedOnce.Do(func() { close(connected) })
		}
	})

	pc.OnTrack(func(track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver) {
		log.Info("track received", "kind", track.Kind().String())
		if track.Kind() != webrtc.RTPCodecTypeVideo {
			return
		}
		trackOnce.Do(func() { close(trackSeen) })
		go s.readTrack(ctx, track)
	})

	if err := s.exchangeSDP(ctx, pc); err != nil {
		pc.Close()
		return nil, err
	}

	select {
	case <-connected:
	case <-time.After(connectedTimeout):
		log.Warn("connection establishment timed out, waiting for track anyway")
	case <-ctx.Done():
		pc.Close()
		return nil, ctx.Err()
	}

	select {
	case <-trackSeen:
	case <-time.After(trackTimeout):
		pc.Close()
		return nil, fmt.Errorf("framesource: timed out waiting for video track")
	case <-ctx.Done():
		pc.Close()
		return nil, ctx.Err()
	}

	log.Info("webrtc connection established")
	return frames, nil
}

// exchangeSDP creates a local offer, waits for ICE gathering to complete,
// POSTs the offer SDP to the WHEP endpoint, and applies the returned
// answer.
func (s *Source) exchangeSDP(ctx context.Context, pc *webrtc.PeerConnection) error {
	offer, err := pc.CreateOffer(nil)
	if err != nil {
		return fmt.Errorf("framesource: create offer: %w", err)
	}

	gatherComplete := webrtc.GatheringCompletePromise(pc)
	if err := pc.SetLocalDescription(offer); err != nil {
		return fmt.Errorf("framesource: set local description: %w", err)
	}

	select {
	case <-gatherComplete:
	case <-ctx.Done():
		return ctx.Err()
	}

	client := &http.Client{Timeout: 15 * time.Second}
	if s.insecure {
		client.Transport = &http.Transport{TLSClientConfig: &tls.Config{InsecureSkipVerify: true}} //nolint:gosec // operator-opted-in
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewBufferString(pc.LocalDescription().SDP))
	if err != nil {
		return fmt.Errorf("framesource: build whep request: %w", err)
	}
	req.Header.Set("Content-Type", "application/sdp")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("framesource: whep request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("framesource: read whep response: %w", err)
	}
	if resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("framesource: whep endpoint returned %d: %s", resp.StatusCode, string(body))
	}

	answer := webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: string(body)}
	if err := pc.SetRemoteDescription(answer); err != nil {
		return fmt.Errorf("framesource: set remote description: %w", err)
	}
	return nil
}

// readTrack pulls RTP packets off track, reassembles H264 access units, and
// decodes them into BGR frames delivered on s.frames.
func (s *Source) readTrack(ctx context.Context, track *webrtc.TrackRemote) {
	defer close(s.frames)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		rtp, _, err := track.ReadRTP()
		if err != nil {
			if err != io.EOF {
				log.Warn("rtp read failed", "error", err)
			}
			return
		}

		frame, ok, err := s.decoder.PushRTP(rtp)
		if err != nil {
			log.Warn("h264 decode failed, skipping access unit", "error", err)
			continue
		}
		if !ok {
			continue
		}

		select {
		case s.frames <- frame:
		case <-ctx.Done():
			return
		default:
			log.Warn("frame channel full, dropping decoded frame")
		}
	}
}

// Close tears down the peer connection and decoder.
func (s *Source) Close() error {
	if s.decoder != nil {
		s.decoder.Close()
	}
	if s.pc != nil {
		return s.pc.Close()
	}
	return nil
}
