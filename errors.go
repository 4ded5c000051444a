package mqtt

import "errors"

// Sentinel errors for the broker's domain logic (Session, Router,
// DeliveryEngine), kept as plain errors.New values rather than a wrapping
// library.
var (
	errTopicFilterInvalid = errors.New("mqtt: invalid topic filter")
	errTopicNameInvalid   = errors.New("mqtt: invalid topic name")
	errPacketOversize     = errors.New("mqtt: packet exceeds maximum packet size")
	errInflightFull        = errors.New("mqtt: inflight message limit reached")
	errQueueFull           = errors.New("mqtt: queued message limit reached")
	errUnknownPacketID     = errors.New("mqtt: unknown packet identifier")
)
