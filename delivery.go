package mqtt

import (
	"sync"

	"github.com/ioplex/mqttcore/packet"
)

// outboundState is where one outbound QoS1/2 delivery sits in its
// handshake.
type outboundState int

const (
	outboundWaitPuback outboundState = iota + 1
	outboundWaitPubrec
	outboundWaitPubcomp
)

type outboundDelivery struct {
	state   outboundState
	publish *packet.PUBLISH
}

// DeliveryEngine tracks the full outbound/inbound QoS1/2 state machines:
// mid allocation with wraparound, inflight/queued caps, and the
// PUBREC/PUBREL/PUBCOMP handshakes. One DeliveryEngine is owned per-session
// (per *conn).
type DeliveryEngine struct {
	mu sync.Mutex

	lastMid uint16

	// outbound tracks messages this session sent to its peer that are
	// awaiting PUBACK (QoS1) or PUBREC/PUBCOMP (QoS2).
	outbound map[uint16]*outboundDelivery

	// inbound stages QoS2 PUBLISHes received from the peer between
	// PUBREC and PUBREL, so the matching PUBLISH is only routed once
	// (on PUBREL), per [MQTT-4.3.3-2].
	inbound map[uint16]*packet.PUBLISH

	// queued holds outbound messages that exceeded maxInflight and are
	// waiting for a slot to free up.
	queued      []*packet.PUBLISH
	queuedBytes int

	maxInflight    int
	maxQueued      int
	maxQueuedBytes int
}

// NewDeliveryEngine returns an engine with the given resource caps. A
// cap of 0 means unlimited.
func NewDeliveryEngine(maxInflight, maxQueued, maxQueuedBytes int) *DeliveryEngine {
	return &DeliveryEngine{
		outbound:       make(map[uint16]*outboundDelivery),
		inbound:        make(map[uint16]*packet.PUBLISH),
		maxInflight:    maxInflight,
		maxQueued:      maxQueued,
		maxQueuedBytes: maxQueuedBytes,
	}
}

// NextPacketID allocates the next outbound packet identifier in [1,65535],
// skipping 0 and wrapping around, per [MQTT-2.2.1-3].
func (e *DeliveryEngine) NextPacketID() uint16 {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.lastMid++
	if e.lastMid == 0 {
		e.lastMid = 1
	}
	return e.lastMid
}

// TrackOutbound records an in-flight outbound QoS1/2 PUBLISH, or queues it
// if the inflight cap is already reached. It reports whether the message
// should be sent now (true) or was queued for later (false).
func (e *DeliveryEngine) TrackOutbound(pub *packet.PUBLISH) (sendNow bool, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.maxInflight > 0 && len(e.outbound) >= e.maxInflight {
		if e.maxQueued > 0 && len(e.queued) >= e.maxQueued {
			return false, errQueueFull
		}
		if e.maxQueuedBytes > 0 && e.queuedBytes+len(pub.Message.Content) > e.maxQueuedBytes {
			return false, errQueueFull
		}
		e.queued = append(e.queued, pub)
		e.queuedBytes += len(pub.Message.Content)
		return false, nil
	}
	state := outboundWaitPuback
	if pub.QoS == 2 {
		state = outboundWaitPubrec
	}
	e.outbound[pub.PacketID] = &outboundDelivery{state: state, publish: pub}
	return true, nil
}

// dequeueLocked pops the next queued outbound message, if one is waiting
// and a slot has freed up. Caller must hold e.mu.
func (e *DeliveryEngine) dequeueLocked() *packet.PUBLISH {
	if len(e.queued) == 0 {
		return nil
	}
	if e.maxInflight > 0 && len(e.outbound) >= e.maxInflight {
		return nil
	}
	pub := e.queued[0]
	e.queued = e.queued[1:]
	e.queuedBytes -= len(pub.Message.Content)
	state := outboundWaitPuback
	if pub.QoS == 2 {
		state = outboundWaitPubrec
	}
	e.outbound[pub.PacketID] = &outboundDelivery{state: state, publish: pub}
	return pub
}

// AckPuback completes a QoS1 outbound delivery and returns the next queued
// message to send, if any.
func (e *DeliveryEngine) AckPuback(mid uint16) (*packet.PUBLISH, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	d, ok := e.outbound[mid]
	if !ok || d.state != outboundWaitPuback {
		return nil, errUnknownPacketID
	}
	delete(e.outbound, mid)
	return e.dequeueLocked(), nil
}

// AckPubrec advances a QoS2 outbound delivery from awaiting PUBREC to
// awaiting PUBCOMP; the caller is responsible for emitting the PUBREL.
// On reconnect, only the PUBREL needs retransmitting for deliveries in
// this state.
func (e *DeliveryEngine) AckPubrec(mid uint16) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	d, ok := e.outbound[mid]
	if !ok || d.state != outboundWaitPubrec {
		return errUnknownPacketID
	}
	d.state = outboundWaitPubcomp
	return nil
}

// AbortOutbound discards an outbound QoS2 delivery in response to a PUBREC
// reason code >= 0x80: the peer rejected the message outright, so the
// handshake ends here with no PUBREL/PUBCOMP exchange. Returns the next
// queued message to send, if any, freeing the inflight slot the way
// AckPubcomp does.
func (e *DeliveryEngine) AbortOutbound(mid uint16) (*packet.PUBLISH, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	d, ok := e.outbound[mid]
	if !ok || d.state != outboundWaitPubrec {
		return nil, errUnknownPacketID
	}
	delete(e.outbound, mid)
	return e.dequeueLocked(), nil
}

// AckPubcomp completes a QoS2 outbound delivery and returns the next
// queued message to send, if any.
func (e *DeliveryEngine) AckPubcomp(mid uint16) (*packet.PUBLISH, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	d, ok := e.outbound[mid]
	if !ok || d.state != outboundWaitPubcomp {
		return nil, errUnknownPacketID
	}
	delete(e.outbound, mid)
	return e.dequeueLocked(), nil
}

// PendingPubrels lists the packet IDs of outbound QoS2 deliveries awaiting
// PUBCOMP; on reconnect these are resumed by resending the PUBREL, not the
// PUBLISH.
func (e *DeliveryEngine) PendingPubrels() []uint16 {
	e.mu.Lock()
	defer e.mu.Unlock()
	var ids []uint16
	for mid, d := range e.outbound {
		if d.state == outboundWaitPubcomp {
			ids = append(ids, mid)
		}
	}
	return ids
}

// Counts reports the current inflight (outbound, awaiting ack) and queued
// message counts, for the mqtt_inflight_messages/mqtt_queued_messages
// gauges.
func (e *DeliveryEngine) Counts() (inflight, queued int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.outbound), len(e.queued)
}

// StoreInbound stages an inbound QoS2 PUBLISH by source packet ID, to be
// released to the Router only when the matching PUBREL arrives.
func (e *DeliveryEngine) StoreInbound(pub *packet.PUBLISH) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.inbound[pub.PacketID] = pub
}

// ReleaseInbound returns and forgets the PUBLISH staged for mid, on
// receipt of the matching PUBREL.
func (e *DeliveryEngine) ReleaseInbound(mid uint16) (*packet.PUBLISH, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	pub, ok := e.inbound[mid]
	if ok {
		delete(e.inbound, mid)
	}
	return pub, ok
}
