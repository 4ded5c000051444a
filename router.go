package mqtt

import (
	"context"
	"log"

	"github.com/ioplex/mqttcore/packet"
	"github.com/ioplex/mqttcore/store"
	"golang.org/x/sync/errgroup"
)

// Router matches an inbound PUBLISH against the SubscriptionTable and fans
// it out to every matched client: topic-alias resolution, per-subscriber
// QoS downgrade, no_local suppression, retain_as_published, and
// subscription-identifier attachment.
type Router struct {
	subs     *SubscriptionTable
	retained store.RetainedStore
	maxQoS   uint8
}

// NewRouter wires a SubscriptionTable and RetainedStore into a Router.
// maxQoS is the broker-wide ceiling negotiated in CONNACK.
func NewRouter(subs *SubscriptionTable, retained store.RetainedStore, maxQoS uint8) *Router {
	return &Router{subs: subs, retained: retained, maxQoS: maxQoS}
}

// Publish resolves any topic alias, stores/clears the retained message,
// then fans the PUBLISH out to every matched subscriber using
// errgroup.Group. The returned count is the number of subscribers the
// PUBLISH was actually delivered to (excluding any skipped for no_local),
// so the caller can report "no matching subscribers" in its PUBACK/PUBREC.
func (r *Router) Publish(from *conn, pub *packet.PUBLISH) (int, error) {
	topicName := pub.Message.TopicName
	if pub.Props != nil && pub.Props.TopicAlias != 0 {
		if topicName == "" {
			resolved, ok := from.topicAliases.Resolve(uint16(pub.Props.TopicAlias))
			if !ok {
				return 0, errTopicNameInvalid
			}
			topicName = resolved
		} else {
			_ = from.topicAliases.Set(uint16(pub.Props.TopicAlias), topicName)
		}
	}
	if pub.Retain != 0 {
		r.retained.Store(store.RetainedMessage{
			TopicName: topicName,
			Payload:   pub.Message.Content,
			QoS:       pub.QoS,
		})
	}

	matches := r.subs.Matching(topicName)
	group, _ := errgroup.WithContext(context.Background())
	delivered := 0
	for _, sub := range matches {
		sub := sub
		if sub.NoLocal && sub.Client == from {
			continue
		}
		delivered++
		group.Go(func() error {
			return r.deliver(sub, topicName, pub)
		})
	}
	return delivered, group.Wait()
}

// deliver builds and sends the outbound PUBLISH for a single matched
// subscription, computing effective QoS as min(publish qos, subscription
// max qos, broker max qos).
func (r *Router) deliver(sub *Subscription, topicName string, pub *packet.PUBLISH) error {
	c := sub.Client
	qos := pub.QoS
	if sub.MaximumQoS < qos {
		qos = sub.MaximumQoS
	}
	if r.maxQoS < qos {
		qos = r.maxQoS
	}
	retain := false
	if sub.RetainAsPublished {
		retain = pub.Retain != 0
	}

	out := &packet.PUBLISH{
		FixedHeader: &packet.FixedHeader{Version: c.version, Kind: PUBLISH, QoS: qos},
		Message:     &packet.Message{TopicName: topicName, Content: pub.Message.Content},
		Props:       pub.Props,
	}
	if retain {
		out.FixedHeader.Retain = 1
	}
	if qos > 0 {
		out.PacketID = c.delivery.NextPacketID()
		if sendNow, err := c.delivery.TrackOutbound(out); err != nil {
			return err
		} else if !sendNow {
			return nil
		}
	}
	log.Printf("router: deliver: clientId=%s, topic=%s, qos=%d, retain=%v", c.ID, topicName, qos, retain)
	return (&response{conn: c}).OnSend(out)
}

// PublishLocal implements adapters.Publisher for the field-protocol
// collaborators under adapters/: it synthesizes a minimal PUBLISH and
// routes it exactly like one received over the wire.
func (r *Router) PublishLocal(topicName string, payload []byte, qos uint8, retain bool) error {
	pub := &packet.PUBLISH{
		FixedHeader: &packet.FixedHeader{Kind: PUBLISH, QoS: qos},
		Message:     &packet.Message{TopicName: topicName, Content: payload},
	}
	if retain {
		pub.FixedHeader.Retain = 1
	}
	_, err := r.Publish(nil, pub)
	return err
}

// DeliverRetained sends every retained message matching filter to c, on a
// fresh (non-zero RetainHandling-suppressed) SUBSCRIBE.
func (r *Router) DeliverRetained(c *conn, filter string, qos uint8) error {
	for _, msg := range r.retained.Match(filter) {
		effectiveQoS := msg.QoS
		if qos < effectiveQoS {
			effectiveQoS = qos
		}
		out := &packet.PUBLISH{
			FixedHeader: &packet.FixedHeader{Version: c.version, Kind: PUBLISH, QoS: effectiveQoS, Retain: 1},
			Message:     &packet.Message{TopicName: msg.TopicName, Content: msg.Payload},
		}
		if effectiveQoS > 0 {
			out.PacketID = c.delivery.NextPacketID()
			if sendNow, err := c.delivery.TrackOutbound(out); err != nil || !sendNow {
				continue
			}
		}
		if err := (&response{conn: c}).OnSend(out); err != nil {
			return err
		}
	}
	return nil
}
