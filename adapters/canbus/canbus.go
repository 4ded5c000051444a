// Package canbus is a boundary stub for a CAN/CANopen frame source: it
// implements adapters.DeviceSource without speaking SocketCAN or CANopen,
// using the can_frame/canfd_frame shape a real bus interface would hand
// off.
package canbus

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ioplex/mqttcore/adapters"
)

// Frame mirrors the fields of a Linux struct can_frame that matter to a
// subscriber: arbitration ID, data length code, and payload bytes.
type Frame struct {
	ID   uint32
	DLC  uint8
	Data [8]byte
}

type frameReading struct {
	ID   uint32 `json:"id"`
	DLC  uint8  `json:"dlc"`
	Data []byte `json:"data"`
}

// Source republishes frames delivered on its Frames channel as QoS-0,
// non-retained PUBLISHes under TopicPrefix. Production wiring would read
// Frames from a SocketCAN raw socket; that transport is out of scope.
type Source struct {
	TopicPrefix string
	Frames      <-chan Frame
}

func (s *Source) Name() string { return "canbus" }

func (s *Source) CommandTopic() string { return "" }

func (s *Source) HandleCommand(payload []byte) error { return nil }

func (s *Source) Run(ctx context.Context, pub adapters.Publisher) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case frame, ok := <-s.Frames:
			if !ok {
				return nil
			}
			payload, err := json.Marshal(frameReading{
				ID:   frame.ID,
				DLC:  frame.DLC,
				Data: frame.Data[:frame.DLC],
			})
			if err != nil {
				continue
			}
			topicName := fmt.Sprintf("%s/%x", s.TopicPrefix, frame.ID)
			_ = pub.PublishLocal(topicName, payload, 0, false)
		}
	}
}
