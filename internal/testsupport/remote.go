package testsupport

import (
	"bytes"
	"context"
	"io"
	"sync"
	"time"

	"ferry/internal/remote"
	"ferry/internal/services"
)

// RemoteStore is an in-memory remote.Store. It records attempts per item and
// can fail, throttle, or block uploads on demand.
type RemoteStore struct {
	mu         sync.Mutex
	objects    map[string][]byte
	attempts   map[string]int
	failures   map[string]error
	failAll    error
	chunkSize  int
	chunkDelay time.Duration
	gate       <-chan struct{}
	inFlight   int
	peak       int
}

// NewRemoteStore returns an empty store.
func NewRemoteStore() *RemoteStore {
	return &RemoteStore{
		objects:   make(map[string][]byte),
		attempts:  make(map[string]int),
		failures:  make(map[string]error),
		chunkSize: 64 * 1024,
	}
}

func (m *RemoteStore) Name() string { return "memory" }

// FailItem makes every Put for itemID return err. A nil err clears it.
func (m *RemoteStore) FailItem(itemID string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.failures, itemID)
		return
	}
	m.failures[itemID] = err
}

// FailAll makes every Put and Ready return err. A nil err restores normal behavior.
func (m *RemoteStore) FailAll(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failAll = err
}

// SetThrottle reads bodies in chunkSize pieces sleeping delay between them.
func (m *RemoteStore) SetThrottle(chunkSize int, delay time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if chunkSize > 0 {
		m.chunkSize = chunkSize
	}
	m.chunkDelay = delay
}

// SetGate blocks every Put until gate is closed.
func (m *RemoteStore) SetGate(gate <-chan struct{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gate = gate
}

func (m *RemoteStore) Put(ctx context.Context, obj remote.Object) (string, error) {
	itemID := obj.Metadata[remote.MetadataItemID]
	if obj.Body == nil {
		obj.Body = bytes.NewReader(nil)
	}

	m.mu.Lock()
	m.attempts[itemID]++
	m.inFlight++
	if m.inFlight > m.peak {
		m.peak = m.inFlight
	}
	gate, chunk, delay := m.gate, m.chunkSize, m.chunkDelay
	m.mu.Unlock()
	defer func() {
		m.mu.Lock()
		m.inFlight--
		m.mu.Unlock()
	}()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return "", putError(obj.Key, ctx.Err())
		}
	}

	var buf bytes.Buffer
	piece := make([]byte, chunk)
	for {
		n, err := obj.Body.Read(piece)
		buf.Write(piece[:n])
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", putError(obj.Key, err)
		}
		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return "", putError(obj.Key, ctx.Err())
			}
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll != nil {
		return "", putError(obj.Key, m.failAll)
	}
	if err, ok := m.failures[itemID]; ok {
		return "", putError(obj.Key, err)
	}
	m.objects[obj.Key] = buf.Bytes()
	return "memory://" + obj.Key, nil
}

// Object returns a stored object's bytes.
func (m *RemoteStore) Object(key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	return data, ok
}

// Len returns the number of stored objects.
func (m *RemoteStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}

// Attempts returns how many times Put was called for itemID.
func (m *RemoteStore) Attempts(itemID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.attempts[itemID]
}

// PeakInFlight returns the highest number of concurrent Put calls observed.
func (m *RemoteStore) PeakInFlight() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.peak
}

// Ready reports the error set by FailAll, if any.
func (m *RemoteStore) Ready(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.failAll
}

func putError(key string, err error) error {
	return services.Wrap(services.ErrRemote, "remote", "memory put", key, err)
}
