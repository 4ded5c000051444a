// Package modbus is a boundary stub for a Modbus RTU/TCP master source: it
// implements adapters.DeviceSource without speaking the Modbus wire
// protocol itself, using the register taxonomy ("input_register",
// "holding_register") a real master would poll.
package modbus

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ioplex/mqttcore/adapters"
)

// Register describes one polled Modbus register, named per the original
// implementation's "input_register"/"holding_register" taxonomy.
type Register struct {
	SlaveID uint8
	Address uint16
	Type    string // "input_register" or "holding_register"
}

// reading is the JSON payload shape synthesized for each polled register.
type reading struct {
	SlaveID uint8  `json:"slave_id"`
	Address uint16 `json:"address"`
	Type    string `json:"type"`
	Value   uint16 `json:"value"`
}

// Source polls a fixed set of registers on an interval and publishes each
// reading as its own retained-false, QoS-0 PUBLISH.
type Source struct {
	TopicPrefix string
	Registers   []Register
	PollEvery   time.Duration
	// Read is injected so tests can substitute a fake register read
	// without a real Modbus transport; production wiring supplies the
	// actual master client.
	Read func(Register) (uint16, error)
}

func (s *Source) Name() string { return "modbus" }

func (s *Source) CommandTopic() string { return s.TopicPrefix + "/cmd" }

func (s *Source) HandleCommand(payload []byte) error {
	// Command dispatch (register writes) is not implemented; this stub
	// only confirms the contract round-trips.
	return nil
}

func (s *Source) Run(ctx context.Context, pub adapters.Publisher) error {
	if s.PollEvery <= 0 {
		s.PollEvery = time.Second
	}
	ticker := time.NewTicker(s.PollEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			for _, reg := range s.Registers {
				value, err := s.Read(reg)
				if err != nil {
					continue
				}
				payload, err := json.Marshal(reading{
					SlaveID: reg.SlaveID,
					Address: reg.Address,
					Type:    reg.Type,
					Value:   value,
				})
				if err != nil {
					continue
				}
				topicName := fmt.Sprintf("%s/%d/%s/%d", s.TopicPrefix, reg.SlaveID, reg.Type, reg.Address)
				_ = pub.PublishLocal(topicName, payload, 0, false)
			}
		}
	}
}
