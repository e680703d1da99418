package device

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/RyanBlaney/eeg-capture/pkg/common"
	"github.com/RyanBlaney/eeg-capture/pkg/logging"
)

// Frame is one batch pushed by a websocket bridge.
type Frame struct {
	Timestamps []float64   `json:"timestamps"`
	Samples    [][]float64 `json:"samples"`
}

type controlMessage struct {
	Type string `json:"type"`
}

// WebSocketDevice receives sample frames from a bridge process that owns the
// headset radio, such as a BLE-to-websocket relay.
type WebSocketDevice struct {
	info Info
	url  string
	opts options

	HandshakeTimeout time.Duration

	connMu sync.Mutex
	conn   *websocket.Conn
	loopWG sync.WaitGroup

	// cbMu is held while a callback runs; Stop takes it to fence callbacks.
	cbMu      sync.Mutex
	cb        SampleCallback
	streaming bool

	malformed atomic.Int64
	frames    atomic.Int64
}

// NewWebSocketDevice creates a websocket-backed device.
func NewWebSocketDevice(info Info, url string, opts ...Option) *WebSocketDevice {
	info.Kind = KindWebSocket
	return &WebSocketDevice{
		info:             info,
		url:              url,
		opts:             newOptions("websocket_device", opts),
		HandshakeTimeout: 10 * time.Second,
	}
}

func (d *WebSocketDevice) Info() Info {
	info := d.info
	info.Channels = append([]string(nil), d.info.Channels...)
	info.NonDataChannels = append([]string(nil), d.info.NonDataChannels...)
	return info
}

func (d *WebSocketDevice) Capabilities() Capabilities {
	return d.opts.caps
}

// Malformed returns the number of frames dropped for bad shape or encoding.
func (d *WebSocketDevice) Malformed() int64 {
	return d.malformed.Load()
}

// Frames returns the number of frames delivered to the callback.
func (d *WebSocketDevice) Frames() int64 {
	return d.frames.Load()
}

// Connect dials the bridge.
func (d *WebSocketDevice) Connect(ctx context.Context) error {
	d.connMu.Lock()
	defer d.connMu.Unlock()

	if d.conn != nil {
		return nil
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: d.HandshakeTimeout,
	}

	conn, resp, err := dialer.DialContext(ctx, d.url, nil)
	if err != nil {
		msg := fmt.Sprintf("websocket dial %s failed", d.url)
		if resp != nil {
			msg = fmt.Sprintf("websocket dial %s failed (status %d)", d.url, resp.StatusCode)
		}
		return common.NewError("websocket_device", common.ErrCodeDeviceUnreachable, msg, err)
	}

	d.conn = conn
	d.loopWG.Add(1)
	go d.readLoop(conn)

	d.opts.logger.Info("websocket device connected", logging.Fields{
		"device": d.info.Name,
		"url":    d.url,
	})
	return nil
}

// Start asks the bridge to stream and begins delivering frames to cb.
func (d *WebSocketDevice) Start(cb SampleCallback) error {
	if !d.opts.caps.Has(CapStream) {
		return common.NewError("websocket_device", common.ErrCodeUnsupported, "device cannot stream", nil)
	}
	if cb == nil {
		return common.NewError("websocket_device", common.ErrCodeInvalidArgument, "callback is required", nil)
	}

	d.cbMu.Lock()
	d.cb = cb
	d.streaming = true
	d.cbMu.Unlock()

	if err := d.send(controlMessage{Type: "start"}); err != nil {
		d.cbMu.Lock()
		d.streaming = false
		d.cb = nil
		d.cbMu.Unlock()
		return err
	}
	return nil
}

// Stop asks the bridge to stop and fences out further callbacks. Frames
// still in flight are discarded.
func (d *WebSocketDevice) Stop() error {
	d.cbMu.Lock()
	wasStreaming := d.streaming
	d.streaming = false
	d.cb = nil
	d.cbMu.Unlock()

	if !wasStreaming {
		return nil
	}
	return d.send(controlMessage{Type: "stop"})
}

// Disconnect closes the connection and waits for the read loop.
func (d *WebSocketDevice) Disconnect() error {
	stopErr := d.Stop()

	d.connMu.Lock()
	conn := d.conn
	d.conn = nil
	d.connMu.Unlock()

	if conn == nil {
		return stopErr
	}

	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	err := conn.Close()
	d.loopWG.Wait()

	d.opts.logger.Debug("websocket device disconnected", logging.Fields{
		"device":    d.info.Name,
		"frames":    d.frames.Load(),
		"malformed": d.malformed.Load(),
	})

	if stopErr != nil {
		return stopErr
	}
	return err
}

func (d *WebSocketDevice) send(msg controlMessage) error {
	d.connMu.Lock()
	defer d.connMu.Unlock()

	if d.conn == nil {
		return common.NewError("websocket_device", common.ErrCodeDeviceUnreachable, "device not connected", nil)
	}
	if err := d.conn.WriteJSON(msg); err != nil {
		return common.NewError("websocket_device", common.ErrCodeDeviceUnreachable,
			fmt.Sprintf("failed to send %s", msg.Type), err)
	}
	return nil
}

func (d *WebSocketDevice) readLoop(conn *websocket.Conn) {
	defer d.loopWG.Done()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				d.opts.logger.Error(err, "websocket read failed", logging.Fields{"device": d.info.Name})
			}
			return
		}

		samples, timestamps, err := d.decode(message)
		if err != nil {
			d.malformed.Add(1)
			d.opts.logger.Debug("dropping malformed frame", logging.Fields{"error": err.Error()})
			continue
		}

		d.deliver(samples, timestamps)
	}
}

func (d *WebSocketDevice) decode(message []byte) (common.Samples, []float64, error) {
	var frame Frame
	if err := json.Unmarshal(message, &frame); err != nil {
		return nil, nil, err
	}

	samples := common.Samples(frame.Samples)
	if samples.Channels() != len(d.info.Channels) {
		return nil, nil, fmt.Errorf("frame has %d channels, device has %d", samples.Channels(), len(d.info.Channels))
	}
	if err := samples.Validate(); err != nil {
		return nil, nil, err
	}
	if samples.Len() != len(frame.Timestamps) {
		return nil, nil, fmt.Errorf("frame has %d timestamps for %d samples", len(frame.Timestamps), samples.Len())
	}
	return samples, frame.Timestamps, nil
}

func (d *WebSocketDevice) deliver(samples common.Samples, timestamps []float64) {
	d.cbMu.Lock()
	defer d.cbMu.Unlock()

	if !d.streaming || d.cb == nil {
		return
	}
	d.cb(samples, timestamps)
	d.frames.Add(1)
}
