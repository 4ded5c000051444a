// Package adapters defines the boundary contract between the broker's
// Router and external field-protocol collaborators (Modbus, CAN/CANopen,
// GPS). The protocols themselves are not reimplemented here; only the
// shape each adapter turns a register/frame/fix reading into — a topic and
// payload handed to the Router — is defined by this package.
package adapters

import "context"

// Publisher is the narrow slice of the Router a DeviceSource needs: publish
// a sample, and learn about command-topic deliveries addressed to it.
type Publisher interface {
	PublishLocal(topicName string, payload []byte, qos uint8, retain bool) error
}

// Sample is one reading synthesized by a DeviceSource into a PUBLISH. QoS is
// always 0 and Retain is always false: field readings are transient, and
// re-delivering a stale one on a fresh subscribe would be misleading.
type Sample struct {
	Topic   string
	Payload []byte
}

// DeviceSource is the contract every field-protocol collaborator
// implements: Run streams samples until ctx is cancelled, and an optional
// CommandTopic lets the Router forward inbound PUBLISHes addressed to the
// device back into HandleCommand.
type DeviceSource interface {
	// Name identifies the adapter instance for logging and the
	// list-topics admin command.
	Name() string
	// Run starts the device source's sampling loop, publishing each
	// Sample via pub, until ctx is cancelled.
	Run(ctx context.Context, pub Publisher) error
	// CommandTopic returns the topic filter this source wants to receive
	// inbound PUBLISHes on, or "" if it accepts no commands.
	CommandTopic() string
	// HandleCommand processes a PUBLISH payload delivered to CommandTopic.
	HandleCommand(payload []byte) error
}
