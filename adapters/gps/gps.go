// Package gps is a boundary stub for a GPS fix source (modeled on the
// SIM7600 AT-command GNSS module): it implements adapters.DeviceSource
// without speaking the module's AT command set, using the fix-mode
// state a real GNSS module reports.
package gps

import (
	"context"
	"encoding/json"
	"time"

	"github.com/ioplex/mqttcore/adapters"
)

// Fix is one GNSS position report. FixMode follows the module's own
// encoding: 2 for a 2D fix, 3 for a 3D fix.
type Fix struct {
	Latitude  float64
	Longitude float64
	FixMode   int
	Timestamp time.Time
}

type fixReading struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	FixMode   int     `json:"fix_mode"`
	Timestamp int64   `json:"timestamp"`
}

// Source republishes fixes delivered on its Fixes channel as QoS-0,
// non-retained PUBLISHes to Topic. Production wiring would read Fixes from
// the module's serial AT-command stream; that transport is out of scope.
type Source struct {
	Topic string
	Fixes <-chan Fix
}

func (s *Source) Name() string { return "gps" }

func (s *Source) CommandTopic() string { return "" }

func (s *Source) HandleCommand(payload []byte) error { return nil }

func (s *Source) Run(ctx context.Context, pub adapters.Publisher) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case fix, ok := <-s.Fixes:
			if !ok {
				return nil
			}
			payload, err := json.Marshal(fixReading{
				Latitude:  fix.Latitude,
				Longitude: fix.Longitude,
				FixMode:   fix.FixMode,
				Timestamp: fix.Timestamp.Unix(),
			})
			if err != nil {
				continue
			}
			_ = pub.PublishLocal(s.Topic, payload, 0, false)
		}
	}
}
