package mqtt

import (
	"net"
	"slices"
	"strconv"
	"sync"
	"testing"

	"github.com/eclipse/paho.mqtt.golang/packets"

	"github.com/nerrad567/brokerlink/internal/infrastructure/config"
)

// testBroker is an in-process MQTT 3.1.1 broker. It acknowledges CONNECT,
// SUBSCRIBE, UNSUBSCRIBE, PINGREQ and QoS 1 PUBLISH, never routes messages,
// and records the sessions and subscriptions it sees.
type testBroker struct {
	t    *testing.T
	addr string
	wg   sync.WaitGroup

	mu         sync.Mutex
	ln         net.Listener
	conns      map[net.Conn]struct{}
	sessions   int
	subscribes [][]string
	published  []string
}

func newTestBroker(t *testing.T) *testBroker {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("net.Listen() error = %v", err)
	}
	b := &testBroker{t: t, addr: ln.Addr().String(), conns: make(map[net.Conn]struct{})}
	b.serve(ln)
	t.Cleanup(func() {
		b.stop()
		b.wg.Wait()
	})
	return b
}

// config returns an MQTT configuration pointing at the broker, with the
// transport's own reconnect enabled and capped at one second.
func (b *testBroker) config() config.MQTTConfig {
	_, portStr, _ := net.SplitHostPort(b.addr)
	port, _ := strconv.Atoi(portStr)

	cfg := config.DefaultMQTTConfig()
	cfg.Broker.Host = "127.0.0.1"
	cfg.Broker.Port = port
	cfg.QoS = 1
	cfg.ConnectTimeoutSeconds = 1
	cfg.Reconnect.Automatic = true
	cfg.Reconnect.Interval = 1
	return cfg
}

func (b *testBroker) serve(ln net.Listener) {
	b.mu.Lock()
	b.ln = ln
	b.mu.Unlock()

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			b.mu.Lock()
			b.conns[conn] = struct{}{}
			b.mu.Unlock()

			b.wg.Add(1)
			go func() {
				defer b.wg.Done()
				b.handle(conn)
			}()
		}
	}()
}

func (b *testBroker) handle(conn net.Conn) {
	defer func() {
		conn.Close()
		b.mu.Lock()
		delete(b.conns, conn)
		b.mu.Unlock()
	}()

	for {
		pkt, err := packets.ReadPacket(conn)
		if err != nil {
			return
		}

		var reply packets.ControlPacket
		switch p := pkt.(type) {
		case *packets.ConnectPacket:
			b.mu.Lock()
			b.sessions++
			b.mu.Unlock()
			ack := packets.NewControlPacket(packets.Connack).(*packets.ConnackPacket)
			ack.ReturnCode = packets.Accepted
			reply = ack
		case *packets.SubscribePacket:
			b.mu.Lock()
			b.subscribes = append(b.subscribes, slices.Clone(p.Topics))
			b.mu.Unlock()
			ack := packets.NewControlPacket(packets.Suback).(*packets.SubackPacket)
			ack.MessageID = p.MessageID
			ack.ReturnCodes = slices.Clone(p.Qoss)
			reply = ack
		case *packets.UnsubscribePacket:
			ack := packets.NewControlPacket(packets.Unsuback).(*packets.UnsubackPacket)
			ack.MessageID = p.MessageID
			reply = ack
		case *packets.PublishPacket:
			b.mu.Lock()
			b.published = append(b.published, p.TopicName)
			b.mu.Unlock()
			if p.Qos == 1 {
				ack := packets.NewControlPacket(packets.Puback).(*packets.PubackPacket)
				ack.MessageID = p.MessageID
				reply = ack
			}
		case *packets.PingreqPacket:
			reply = packets.NewControlPacket(packets.Pingresp)
		case *packets.DisconnectPacket:
			return
		}

		if reply != nil {
			if err := reply.Write(conn); err != nil {
				return
			}
		}
	}
}

// dropAll closes every client connection but keeps accepting new ones.
func (b *testBroker) dropAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for conn := range b.conns {
		conn.Close()
	}
}

// stop closes the listener and every connection, taking the broker offline.
func (b *testBroker) stop() {
	b.mu.Lock()
	if b.ln != nil {
		b.ln.Close()
		b.ln = nil
	}
	b.mu.Unlock()
	b.dropAll()
}

// restart brings a stopped broker back on the same address.
func (b *testBroker) restart() {
	b.t.Helper()
	ln, err := net.Listen("tcp", b.addr)
	if err != nil {
		b.t.Fatalf("relisten on %s: %v", b.addr, err)
	}
	b.serve(ln)
}

func (b *testBroker) sessionCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sessions
}

func (b *testBroker) subscribeCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subscribes)
}

// lastSubscribe returns the filters of the most recent SUBSCRIBE.
func (b *testBroker) lastSubscribe() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.subscribes) == 0 {
		return nil
	}
	return b.subscribes[len(b.subscribes)-1]
}

func (b *testBroker) publishedTopics() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.published)
}
