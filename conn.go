package mqtt

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/golang-io/requests"
	"github.com/ioplex/mqttcore/packet"
	"github.com/ioplex/mqttcore/store"
	"github.com/ioplex/mqttcore/topic"
	"golang.org/x/net/websocket"
)

// defaultTopicAliasMaximum bounds how many topic aliases a session will
// track on behalf of its peer when the CONNECT/CONNACK exchange doesn't
// negotiate a smaller value.
const defaultTopicAliasMaximum = 64

// conn represents one MQTT network connection (TCP, TLS or WebSocket).
type conn struct {
	// server is the server on which the connection arrived. Immutable; never nil.
	server *Server

	// cancelCtx cancels the connection-level context.
	cancelCtx context.CancelFunc

	// rwc is the underlying network connection.
	// It is usually of type *net.TCPConn, *tls.Conn or *websocket.Conn.
	rwc net.Conn

	// remoteAddr is the peer address used in log lines. (*conn).serve sets it
	// from rwc.RemoteAddr(), or from the HTTP request of a WebSocket connection.
	remoteAddr string

	// tlsState is the TLS connection state when using TLS. nil means not TLS.
	tlsState *tls.ConnectionState

	curState atomic.Uint64 // packed (unix time<<8|uint8(ConnState))

	// delivery owns this session's QoS1/2 outbound and inbound handshakes
	// and packet ID allocation, replacing the bare map infight.go kept.
	delivery *DeliveryEngine

	// topicAliases resolves/remembers the v5 topic aliases this session's
	// peer has assigned on outbound PUBLISHes.
	topicAliases *store.TopicAliasMap

	ID      string
	version byte // mqtt version

	connected   bool // true once a CONNECT has been accepted
	cleanStart  bool
	isBridge    bool // version byte high bit set on CONNECT
	keepAlive   uint16
	username    string

	willTopic         string
	willPayload       []byte
	willQoS           uint8
	willRetain        bool
	willDelayInterval uint32

	sessionExpiryInterval uint32

	mu sync.Mutex
}

func (c *conn) setState(nc net.Conn, state ConnState, runHook bool) {
	srv := c.server
	switch state {
	case StateNew:
		srv.trackConn(c, true)
	case StateHijacked, StateClosed:
		srv.trackConn(c, false)
	default:
	}
	if state > 0xFF || state < 0 {
		panic("invalid conn state")
	}
	packedState := uint64(time.Now().Unix()<<8) | uint64(state)
	c.curState.Store(packedState)
	if !runHook {
		return
	}
	if hook := srv.ConnState; hook != nil {
		hook(nc, state)
	}
}

func (c *conn) Write(w []byte) (int, error) {
	if c.rwc == nil {
		return 0, fmt.Errorf("connection is nil or closed")
	}
	return c.rwc.Write(w)
}

func (c *conn) getState() (state ConnState, unixSec int64) {
	packedState := c.curState.Load()
	return ConnState(packedState & 0xFF), int64(packedState >> 8)
}

// Close the connection.
func (c *conn) close() {
	_ = c.rwc.Close()
}

// persistOrDiscardSession stores the session for later resumption when
// the negotiated session-expiry-interval is non-zero, or drops every
// trace of it (subscriptions included) otherwise.
func (c *conn) persistOrDiscardSession() {
	if c.ID == "" {
		return
	}
	if c.sessionExpiryInterval == 0 {
		c.server.subs.RemoveClient(c)
		c.server.clients.Delete(c.ID)
		return
	}
	subs := c.server.subs.toSubscriptionRecords(c)
	c.server.subs.RemoveClient(c)
	c.server.clients.Store(store.SessionState{
		ClientID:          c.ID,
		Subscriptions:     subs,
		SessionExpiry:     c.sessionExpiryInterval,
		WillTopic:         c.willTopic,
		WillPayload:       c.willPayload,
		WillQoS:           c.willQoS,
		WillRetain:        c.willRetain,
		WillDelayInterval: c.willDelayInterval,
	})
}

// publishWill sends this connection's will message, if any, on ungraceful
// disconnect [MQTT-3.1.2-8].
func (c *conn) publishWill() {
	if c.willTopic == "" {
		return
	}
	if err := c.server.router.PublishLocal(c.willTopic, c.willPayload, c.willQoS, c.willRetain); err != nil {
		log.Printf("will publish: clientId=%s, topic=%s, err=%v", c.ID, c.willTopic, err)
	}
}

// Serve a new connection.
func (c *conn) serve(ctx context.Context) {
	// 兼容 websocket.Conn 的 RemoteAddr 字段实现，避免 URL.String 的空指针
	if ws, ok := c.rwc.(*websocket.Conn); ok {
		if req := ws.Request(); req != nil {
			c.remoteAddr = req.RemoteAddr
		} else {
			// 兜底不调用 ra.String()，避免潜在的 URL nil 崩溃
			c.remoteAddr = ""
		}
	} else {
		if ra := c.rwc.RemoteAddr(); ra != nil {
			c.remoteAddr = ra.String()
		}
	}

	// 记录客户端连接日志
	log.Printf("connect connected: remote=%s", c.remoteAddr)

	defer func() {
		if err := recover(); err != nil && err != ErrAbortHandler {
			buf := make([]byte, size)
			buf = buf[:runtime.Stack(buf, false)]
			log.Printf("mqtt: panic serving %v: %v", c.remoteAddr, err)
			log.Printf("%s", buf)
		}

		// 记录客户端断开连接日志
		log.Printf("connect disconnected: clientId=%s, remote=%s", c.ID, c.remoteAddr)

		c.persistOrDiscardSession()
		c.close()
		c.setState(c.rwc, StateClosed, true)
		c.publishWill()
	}()
	if tlsConn, ok := c.rwc.(*tls.Conn); ok {
		tlsTO := 10 * time.Second
		if tlsTO > 0 {
			dl := time.Now().Add(tlsTO)
			_ = c.rwc.SetReadDeadline(dl)
			_ = c.rwc.SetWriteDeadline(dl)
		}
		if err := tlsConn.HandshakeContext(ctx); err != nil {
			// If the handshake failed due to the client not speaking
			// TLS, assume they're speaking plaintext HTTP and write a
			// 400 response on the TLS conn is underlying net.Conn.
			var reason string
			if re, ok := err.(tls.RecordHeaderError); ok && re.Conn != nil {
				_, _ = io.WriteString(re.Conn, "HTTP/1.0 400 Bad Request\r\n\r\nClient sent an HTTP request to an HTTPS server.\n")
				_ = re.Conn.Close()
				reason = "client sent an HTTP request to an HTTPS server"
			} else {
				reason = err.Error()
			}
			log.Printf("mqtt: TLS handshake error from %s: %v", c.rwc.RemoteAddr(), reason)
			return
		}
		// Restore Conn-level deadlines.
		if tlsTO > 0 {
			_ = c.rwc.SetReadDeadline(time.Time{})
			_ = c.rwc.SetWriteDeadline(time.Time{})
		}
		c.tlsState = new(tls.ConnectionState)
		*c.tlsState = tlsConn.ConnectionState()
	}
	ctx, cancel := context.WithCancel(ctx)
	c.cancelCtx = cancel
	defer cancel()

	for {
		if c.keepAlive > 0 {
			_ = c.rwc.SetReadDeadline(time.Now().Add(time.Duration(c.keepAlive) * 3 * time.Second / 2))
		}
		rw, err := c.readRequest(ctx)
		if err != nil {
			log.Printf("readRequest: err=%v", err)
			return
		}
		serverHandler{c.server}.ServeMQTT(rw, rw.packet)
		c.setState(c.rwc, StateIdle, true)
	}
}

// Read next request from connection.
func (c *conn) readRequest(_ context.Context) (*response, error) {
	w, err := &response{conn: c}, error(nil)
	w.packet, err = packet.Unpack(c.version, c.rwc)
	stat.PacketReceived.Inc()
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("makeRequest: version=%d, %s, err=%w", c.version, packet.Kind[w.packet.Kind()], err)
	}
	return w, err
}

type defaultHandler struct{}

// connectReasonCode maps a packet.ReasonCode to the version-appropriate
// CONNACK return code: v5 keeps the reason code as-is, v3.1.1/v3.1 only
// know a handful of legacy codes.
func connectReasonCode(version byte, v5 packet.ReasonCode) packet.ReasonCode {
	if version == packet.VERSION500 {
		return v5
	}
	switch v5.Code {
	case packet.CodeSuccess.Code:
		return packet.ReasonCode{Code: 0}
	case packet.ErrUnsupportedProtocolVersion.Code:
		return packet.ReasonCode{Code: 0x01}
	case packet.ErrClientIdentifierNotValid.Code:
		return packet.ReasonCode{Code: 0x02}
	case packet.ErrServerUnavailable.Code:
		return packet.ReasonCode{Code: 0x03}
	case packet.ErrMalformedUsernameOrPassword.Code, packet.ErrBadUsernameOrPassword.Code:
		return packet.ReasonCode{Code: 0x04}
	case packet.ErrNotAuthorized.Code:
		return packet.ReasonCode{Code: 0x05}
	default:
		return packet.ReasonCode{Code: 0x03}
	}
}

func (defaultHandler) ServeMQTT(w ResponseWriter, req packet.Packet) {
	var spkt packet.Packet
	c := w.(*response).conn
	s := c.server
	switch rpkt := req.(type) {
	case *packet.RESERVED:
		return
	case *packet.CONNECT:
		if c.connected {
			// 服务端必须将客户端发送的第二个CONNECT包视为协议违规并断开客户端连接 [MQTT-3.1.0-2]。
			panic(ErrAbortHandler)
		}
		// Version byte high bit (0x80) signals a bridge client; mask it
		// off before treating the rest as the protocol level so a
		// bridge's CONNECT parses like any other client's.
		c.isBridge = rpkt.Version&0x80 != 0
		c.version = rpkt.Version &^ 0x80
		connack := &packet.CONNACK{FixedHeader: &packet.FixedHeader{Version: c.version, Kind: CONNACK}}

		var reason packet.ReasonCode
		switch c.version {
		case packet.VERSION310, packet.VERSION311, packet.VERSION500:
		default:
			reason = packet.ErrUnsupportedProtocolVersion
		}

		clientID := rpkt.ClientID
		if reason.Code == 0 && clientID == "" {
			if !rpkt.ConnectFlags.CleanStart() && c.version != packet.VERSION500 {
				reason = packet.ErrClientIdentifierNotValid
			} else {
				clientID = "mqtt-" + requests.GenId()
			}
		}

		if reason.Code == 0 {
			ok, err := s.credentials.Verify(rpkt.Username, rpkt.Password)
			if err != nil || !ok {
				reason = connectReasonCode(c.version, packet.ErrBadUsernameOrPassword)
			}
		}

		connack.ConnectReturnCode = connectReasonCode(c.version, reason)

		if connack.ConnectReturnCode.Code != 0 {
			log.Printf("client auth failed: clientId=%s, username=%s, remote=%s, reason=%v", clientID, rpkt.Username, c.remoteAddr, connack.ConnectReturnCode)
			_ = w.OnSend(connack)
			panic(ErrAbortHandler)
		}

		if c.isBridge {
			log.Printf("bridge connected (stub, no outbound replication): clientId=%s, remote=%s", clientID, c.remoteAddr)
		}
		c.ID, c.username, c.connected = clientID, rpkt.Username, true
		c.cleanStart = rpkt.ConnectFlags.CleanStart()
		c.keepAlive = rpkt.KeepAlive
		c.willQoS, c.willRetain = rpkt.ConnectFlags.WillQoS(), rpkt.ConnectFlags.WillRetain()
		if rpkt.ConnectFlags.WillFlag() {
			c.willTopic, c.willPayload = rpkt.WillTopic, rpkt.WillPayload
			if rpkt.WillProperties != nil {
				c.willDelayInterval = rpkt.WillProperties.WillDelayInterval
			}
		}
		if rpkt.Props != nil {
			c.sessionExpiryInterval = uint32(rpkt.Props.SessionExpiryInterval)
		}

		if c.cleanStart {
			s.clients.Delete(clientID)
		} else if prior, ok := s.clients.Load(clientID); ok {
			connack.SessionPresent = 1
			for filter, sub := range prior.Subscriptions {
				_ = s.subs.Add(&Subscription{
					Client: c, TopicFilter: filter, MaximumQoS: sub.MaximumQoS,
					NoLocal: sub.NoLocal, RetainAsPublished: sub.RetainAsPublished,
					SubscriptionIdentifier: sub.SubscriptionIdentifier,
				})
			}
		}

		log.Printf("client auth ok: clientId=%s, username=%s, remote=%s, sessionPresent=%d", c.ID, c.username, c.remoteAddr, connack.SessionPresent)
		spkt = connack
	case *packet.PUBLISH:
		if !topic.ValidateTopicName(rpkt.Message.TopicName) && (rpkt.Props == nil || rpkt.Props.TopicAlias == 0) {
			return
		}
		switch rpkt.QoS {
		case 0:
			if _, err := s.router.Publish(c, rpkt); err != nil {
				log.Printf("publish: err=%v", err)
			}
			return
		case 1:
			delivered, err := s.router.Publish(c, rpkt)
			if err != nil {
				log.Printf("publish: err=%v", err)
			}
			puback := &packet.PUBACK{FixedHeader: &packet.FixedHeader{Version: c.version, Kind: PUBACK}, PacketID: rpkt.PacketID}
			if delivered == 0 && c.version == packet.VERSION500 {
				puback.ReasonCode = packet.CodeNoMatchingSubscribers
			}
			spkt = puback
		case 2:
			c.delivery.StoreInbound(rpkt)
			spkt = &packet.PUBREC{FixedHeader: &packet.FixedHeader{Version: c.version, Kind: PUBREC}, PacketID: rpkt.PacketID}
		}
	case *packet.PUBACK:
		next, err := c.delivery.AckPuback(rpkt.PacketID)
		if err != nil {
			log.Printf("puback: err=%v", err)
			return
		}
		if next == nil {
			return
		}
		spkt = next
	case *packet.PUBREC:
		if c.version == packet.VERSION500 && rpkt.ReasonCode.Code >= 0x80 {
			// A PUBREC reason >= 0x80 rejects the message outright: the
			// QoS2 flow ends here, with no PUBREL/PUBCOMP exchange.
			next, err := c.delivery.AbortOutbound(rpkt.PacketID)
			if err != nil {
				log.Printf("pubrec: err=%v", err)
				return
			}
			if next == nil {
				return
			}
			spkt = next
			break
		}
		if err := c.delivery.AckPubrec(rpkt.PacketID); err != nil {
			log.Printf("pubrec: err=%v", err)
			return
		}
		spkt = &packet.PUBREL{FixedHeader: &packet.FixedHeader{Version: c.version, Kind: PUBREL, QoS: 1}, PacketID: rpkt.PacketID}
	case *packet.PUBREL:
		pub, ok := c.delivery.ReleaseInbound(rpkt.PacketID)
		if ok {
			if _, err := s.router.Publish(c, pub); err != nil {
				log.Printf("publish err: err=%v", err)
			}
		}
		spkt = &packet.PUBCOMP{
			FixedHeader: &packet.FixedHeader{Version: c.version, Kind: PUBCOMP},
			PacketID:    rpkt.PacketID,
			ReasonCode:  packet.ReasonCode{Code: 0},
		}
	case *packet.PUBCOMP:
		next, err := c.delivery.AckPubcomp(rpkt.PacketID)
		if err != nil || next == nil {
			return
		}
		spkt = next
	case *packet.SUBSCRIBE:
		var reasons []packet.ReasonCode
		var subscribedTopics []string
		var failedTopics []string

		for _, sb := range rpkt.Subscriptions {
			maxQoS := sb.MaximumQoS
			if s.MaxQoS < maxQoS {
				maxQoS = s.MaxQoS
			}
			err := s.subs.Add(&Subscription{
				Client:                 c,
				TopicFilter:            sb.TopicFilter,
				MaximumQoS:             maxQoS,
				NoLocal:                sb.NoLocal == 1,
				RetainAsPublished:      sb.RetainAsPublished == 1,
				SubscriptionIdentifier: subscriptionIdentifierOf(rpkt.Props),
			})
			if err != nil {
				log.Printf("subscribe: err=%v", err)
				reasons = append(reasons, packet.ErrTopicFilterInvalid)
				failedTopics = append(failedTopics, sb.TopicFilter)
				continue
			}
			reasons = append(reasons, packet.ReasonCode{Code: maxQoS})
			subscribedTopics = append(subscribedTopics, sb.TopicFilter)
			if sb.RetainHandling != 2 {
				if err := s.router.DeliverRetained(c, sb.TopicFilter, maxQoS); err != nil {
					log.Printf("deliver retained: err=%v", err)
				}
			}
		}

		if len(subscribedTopics) > 0 {
			log.Printf("client subscribed: clientId=%s, remote=%s, topics: %v", c.ID, c.remoteAddr, subscribedTopics)
		}
		if len(failedTopics) > 0 {
			log.Printf("client subscription failed: clientId=%s, remote=%s, failed_topics: %v", c.ID, c.remoteAddr, failedTopics)
		}

		spkt = &packet.SUBACK{FixedHeader: &packet.FixedHeader{Version: c.version, Kind: SUBACK}, PacketID: rpkt.PacketID, ReasonCode: reasons}
	case *packet.UNSUBSCRIBE:
		var unsubscribedTopics []string
		for _, sb := range rpkt.Subscriptions {
			s.subs.Remove(c, sb.TopicFilter)
			unsubscribedTopics = append(unsubscribedTopics, sb.TopicFilter)
		}

		if len(unsubscribedTopics) > 0 {
			log.Printf("client unsubscribed: clientId=%s, remote=%s, topics: %v", c.ID, c.remoteAddr, unsubscribedTopics)
		}

		spkt = &packet.UNSUBACK{FixedHeader: &packet.FixedHeader{Version: c.version, Kind: UNSUBACK}, PacketID: rpkt.PacketID}
	case *packet.PINGREQ:
		// 服务端必须发送 PINGRESP报文响应客户端的PINGREQ报文 [MQTT-3.12.4-1]。
		spkt = &packet.PINGRESP{FixedHeader: &packet.FixedHeader{Version: c.version, Kind: PINGRESP}}
	case *packet.DISCONNECT:
		// 记录客户端主动断开连接日志
		log.Printf("client requested disconnect: clientId=%s, remote=%s", c.ID, c.remoteAddr)

		if rpkt.Props != nil {
			c.sessionExpiryInterval = rpkt.Props.SessionExpiryInterval
		}
		c.willTopic, c.willPayload = "", nil // 服务端在收到DISCONNECT报文时: 必须丢弃任何与当前连接关联的未发布的遗嘱消息 [MQTT-3.1.2-10]。
		panic(ErrAbortHandler)                // 服务端在收到DISCONNECT报文时: 应该关闭网络连接，如果客户端还没有这么做。
	case *packet.AUTH:
		return
	default:
		panic(fmt.Sprintf("unknown packet type: %T", rpkt))
	}
	if spkt == nil {
		return
	}
	if err := w.OnSend(spkt); err != nil {
		log.Printf("mqtt-onSend: err=%v", err)
	}
}

// subscriptionIdentifierOf extracts the v5 subscription identifier from a
// SUBSCRIBE's properties, if any was sent.
func subscriptionIdentifierOf(props *packet.SubscribeProperties) uint32 {
	if props == nil {
		return 0
	}
	return uint32(props.SubscriptionIdentifier)
}
