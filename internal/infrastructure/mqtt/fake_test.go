package mqtt

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

// errOverlap is returned by fakeTransport.Connect when an attempt is issued
// while another one is still outstanding.
var errOverlap = errors.New("fake: connect while another attempt is in flight")

// connectResult scripts the outcome of one Connect call.
type connectResult struct {
	syncErr  error
	asyncErr error
}

type publishCall struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

// fakeTransport is a scriptable Transport. Connect results are consumed in
// order; once the script runs out every attempt succeeds.
type fakeTransport struct {
	mu sync.Mutex

	clientID      string
	connected     bool
	onConnect     func()
	script        []connectResult
	completeDelay time.Duration

	connectCalls      int
	isConnectedCalls  int
	inFlight          bool
	overlaps          int
	attemptStarts     []time.Time
	failureCompletion []time.Time

	publishErr     error
	subscribeErr   error
	unsubscribeErr error
	disconnectErr  error

	published    []publishCall
	subscribed   [][]string
	subscribedQ  [][]byte
	unsubscribed [][]string
	disconnects  int
}

func newFakeTransport(script ...connectResult) *fakeTransport {
	return &fakeTransport{clientID: "fake-client", script: script}
}

func (f *fakeTransport) Connect(onComplete func(err error)) error {
	f.mu.Lock()
	f.connectCalls++
	f.attemptStarts = append(f.attemptStarts, time.Now())
	if f.inFlight {
		f.overlaps++
		f.mu.Unlock()
		return errOverlap
	}

	var res connectResult
	if len(f.script) > 0 {
		res = f.script[0]
		f.script = f.script[1:]
	}
	if res.syncErr != nil {
		f.failureCompletion = append(f.failureCompletion, time.Now())
		f.mu.Unlock()
		return res.syncErr
	}
	f.inFlight = true
	delay := f.completeDelay
	f.mu.Unlock()

	go func() {
		if delay > 0 {
			time.Sleep(delay)
		}
		f.mu.Lock()
		f.inFlight = false
		if res.asyncErr == nil {
			f.connected = true
		} else {
			f.failureCompletion = append(f.failureCompletion, time.Now())
		}
		hook := f.onConnect
		f.mu.Unlock()
		if res.asyncErr == nil && hook != nil {
			hook()
		}
		onComplete(res.asyncErr)
	}()
	return nil
}

func (f *fakeTransport) SetOnConnect(fn func()) {
	f.mu.Lock()
	f.onConnect = fn
	f.mu.Unlock()
}

func (f *fakeTransport) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.isConnectedCalls++
	return f.connected
}

func (f *fakeTransport) Publish(topic string, payload []byte, qos byte, retained bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, publishCall{topic: topic, payload: payload, qos: qos, retained: retained})
	return f.publishErr
}

func (f *fakeTransport) Subscribe(filters []string, qos []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subscribed = append(f.subscribed, filters)
	f.subscribedQ = append(f.subscribedQ, qos)
	return f.subscribeErr
}

func (f *fakeTransport) Unsubscribe(filters ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unsubscribed = append(f.unsubscribed, filters)
	return f.unsubscribeErr
}

func (f *fakeTransport) Disconnect() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disconnects++
	if f.disconnectErr != nil {
		return f.disconnectErr
	}
	if !f.connected {
		return ErrNotConnected
	}
	f.connected = false
	return nil
}

func (f *fakeTransport) ClientID() string {
	return f.clientID
}

// drop simulates a lost connection.
func (f *fakeTransport) drop() {
	f.mu.Lock()
	f.connected = false
	f.mu.Unlock()
}

// reconnect simulates the transport restoring a connection by itself.
func (f *fakeTransport) reconnect() {
	f.mu.Lock()
	f.connected = true
	hook := f.onConnect
	f.mu.Unlock()
	if hook != nil {
		hook()
	}
}

// fakeState is a point-in-time copy of the fake's recorded calls.
type fakeState struct {
	connected         bool
	connectCalls      int
	isConnectedCalls  int
	inFlight          bool
	overlaps          int
	attemptStarts     []time.Time
	failureCompletion []time.Time
	published         []publishCall
	subscribed        [][]string
	subscribedQ       [][]byte
	unsubscribed      [][]string
	disconnects       int
}

func (f *fakeTransport) snapshot() fakeState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return fakeState{
		connected:         f.connected,
		connectCalls:      f.connectCalls,
		isConnectedCalls:  f.isConnectedCalls,
		inFlight:          f.inFlight,
		overlaps:          f.overlaps,
		attemptStarts:     append([]time.Time(nil), f.attemptStarts...),
		failureCompletion: append([]time.Time(nil), f.failureCompletion...),
		published:         append([]publishCall(nil), f.published...),
		subscribed:        append([][]string(nil), f.subscribed...),
		subscribedQ:       append([][]byte(nil), f.subscribedQ...),
		unsubscribed:      append([][]string(nil), f.unsubscribed...),
		disconnects:       f.disconnects,
	}
}

type logEntry struct {
	level string
	msg   string
	args  []any
}

// recordingLogger captures log calls for assertions.
type recordingLogger struct {
	mu      sync.Mutex
	entries []logEntry
}

func (l *recordingLogger) add(level, msg string, args []any) {
	l.mu.Lock()
	l.entries = append(l.entries, logEntry{level: level, msg: msg, args: args})
	l.mu.Unlock()
}

func (l *recordingLogger) Debug(msg string, args ...any) { l.add("debug", msg, args) }
func (l *recordingLogger) Info(msg string, args ...any)  { l.add("info", msg, args) }
func (l *recordingLogger) Warn(msg string, args ...any)  { l.add("warn", msg, args) }
func (l *recordingLogger) Error(msg string, args ...any) { l.add("error", msg, args) }

// count returns the number of entries at level whose message contains substr.
func (l *recordingLogger) count(level, substr string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, e := range l.entries {
		if e.level == level && strings.Contains(e.msg, substr) {
			n++
		}
	}
	return n
}

// waitFor polls cond until it holds or timeout elapses.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(2 * time.Millisecond)
	}
	return cond()
}
