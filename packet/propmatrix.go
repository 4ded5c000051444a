package packet

// Property identifiers, matching the byte values used throughout props.go.
const (
	propPayloadFormatIndicator          = 0x01
	propMessageExpiryInterval           = 0x02
	propContentType                     = 0x03
	propResponseTopic                   = 0x08
	propCorrelationData                 = 0x09
	propSubscriptionIdentifier          = 0x0B
	propSessionExpiryInterval           = 0x11
	propAssignedClientIdentifier        = 0x12
	propServerKeepAlive                 = 0x13
	propAuthenticationMethod            = 0x15
	propAuthenticationData              = 0x16
	propRequestProblemInformation       = 0x17
	propWillDelayInterval               = 0x18
	propRequestResponseInformation      = 0x19
	propResponseInformation             = 0x1A
	propServerReference                 = 0x1C
	propReasonString                    = 0x1F
	propReceiveMaximum                  = 0x21
	propTopicAliasMaximum               = 0x22
	propTopicAlias                      = 0x23
	propMaximumQoS                      = 0x24
	propRetainAvailable                 = 0x25
	propUserProperty                    = 0x26
	propMaximumPacketSize               = 0x27
	propWildcardSubscriptionAvailable   = 0x28
	propSubscriptionIdentifiersAvailble = 0x29
	propSharedSubscriptionAvailable     = 0x2A
)

// validProperties maps a v5 property identifier to the set of packet kinds
// it is legal on. Grounded on the ValidProperties/ValidateID pattern from
// the retrieval pack's alsm paho.mqtt.golang properties.go, re-keyed to this
// codec's packet-kind bytes (mqtt.CONNECT == 0x1, etc) and property IDs.
var validProperties = map[byte]map[byte]struct{}{
	propPayloadFormatIndicator:          {0x3: {}},
	propMessageExpiryInterval:           {0x3: {}},
	propContentType:                     {0x3: {}},
	propResponseTopic:                   {0x3: {}},
	propCorrelationData:                 {0x3: {}},
	propTopicAlias:                      {0x3: {}},
	propSubscriptionIdentifier:          {0x3: {}, 0x8: {}},
	propSessionExpiryInterval:           {0x1: {}, 0xE: {}},
	propAssignedClientIdentifier:        {0x2: {}},
	propServerKeepAlive:                 {0x2: {}},
	propWildcardSubscriptionAvailable:   {0x2: {}},
	propSubscriptionIdentifiersAvailble: {0x2: {}},
	propSharedSubscriptionAvailable:     {0x2: {}},
	propRetainAvailable:                 {0x2: {}},
	propResponseInformation:             {0x2: {}},
	propAuthenticationMethod:            {0x1: {}, 0x2: {}, 0xF: {}},
	propAuthenticationData:              {0x1: {}, 0x2: {}, 0xF: {}},
	propRequestProblemInformation:       {0x1: {}},
	propWillDelayInterval:               {0x1: {}},
	propRequestResponseInformation:      {0x1: {}},
	propServerReference:                 {0x2: {}, 0xE: {}},
	propReasonString:                    {0x2: {}, 0x4: {}, 0x5: {}, 0x6: {}, 0x7: {}, 0x9: {}, 0xB: {}, 0xE: {}, 0xF: {}},
	propReceiveMaximum:                  {0x1: {}, 0x2: {}},
	propTopicAliasMaximum:               {0x1: {}, 0x2: {}},
	propMaximumQoS:                      {0x1: {}, 0x2: {}},
	propMaximumPacketSize:               {0x1: {}, 0x2: {}},
	propUserProperty:                    {0x1: {}, 0x2: {}, 0x3: {}, 0x4: {}, 0x5: {}, 0x6: {}, 0x7: {}, 0x8: {}, 0xA: {}, 0x9: {}, 0xB: {}, 0xE: {}, 0xF: {}},
}

// ValidatePropertyForKind reports whether property id may legally appear on
// a control packet of the given kind.
func ValidatePropertyForKind(kind byte, id byte) bool {
	_, ok := validProperties[id][kind]
	return ok
}

// PropertySeenSet tracks property identifiers already decoded on a single
// packet so duplicate properties can be rejected with DuplicateProperty,
// except user-property which the spec explicitly allows to repeat.
type PropertySeenSet struct {
	seen map[byte]bool
}

// NewPropertySeenSet returns an empty tracker.
func NewPropertySeenSet() *PropertySeenSet {
	return &PropertySeenSet{seen: make(map[byte]bool)}
}

// Observe records an occurrence of property id for packet kind and reports
// an error if it violates the command matrix or the no-duplicates rule.
func (s *PropertySeenSet) Observe(kind, id byte) error {
	if !ValidatePropertyForKind(kind, id) {
		return ErrProtocolViolationUnsupportedProperty
	}
	if id == propUserProperty {
		return nil
	}
	if s.seen[id] {
		return ErrMalformedDuplicateProperty
	}
	s.seen[id] = true
	return nil
}
