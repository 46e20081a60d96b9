package signedhttp

import (
	"sync"
)

// ReplayDecision is the responder-side verdict for an authenticated
// (invoker id, nonce) pair.
type ReplayDecision int

const (
	// ReplayProceed marks the first sighting; execute and reserve.
	ReplayProceed ReplayDecision = iota
	// ReplayReturn marks an identical retry; return the cached response.
	ReplayReturn
	// ReplayReject marks a conflicting replay, same nonce but a different
	// request hash.
	ReplayReject
	// ReplayInFlight marks a concurrent retry while the original request
	// is still executing.
	ReplayInFlight
)

// SignedResponse is a signed HTTP response: status, body and signature
// headers.
type SignedResponse struct {
	Status  int     `json:"status"`
	Body    []byte  `json:"body"`
	Headers Headers `json:"headers"`
}

// ReplayStore tracks nonce usage so the responder can distinguish safe
// retries from replays. The in-memory store is the default; a redis
// backed store serves multi-instance responders.
type ReplayStore interface {
	// BeginOrReplay decides how to handle a nonce after authentication.
	BeginOrReplay(nonceKey string, requestHash [32]byte, expiresAtMs, nowMs uint64) (ReplayDecision, *SignedResponse)
	// Complete marks a nonce as finished and caches the signed response.
	Complete(nonceKey string, requestHash [32]byte, expiresAtMs uint64, response *SignedResponse)
	// Remove drops an in-flight reservation.
	Remove(nonceKey string)
}

type replayEntry struct {
	requestHash [32]byte
	expiresAtMs uint64
	response    *SignedResponse // nil while in flight
}

// MemoryReplayStore is the default single-process replay store. Expired
// entries are purged lazily on each BeginOrReplay.
type MemoryReplayStore struct {
	mutex   sync.Mutex
	entries map[string]*replayEntry
}

// NewMemoryReplayStore creates an empty in-memory replay store.
func NewMemoryReplayStore() *MemoryReplayStore {
	return &MemoryReplayStore{entries: map[string]*replayEntry{}}
}

func (s *MemoryReplayStore) BeginOrReplay(nonceKey string, requestHash [32]byte, expiresAtMs, nowMs uint64) (ReplayDecision, *SignedResponse) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	for key, entry := range s.entries {
		if entry.expiresAtMs < nowMs {
			delete(s.entries, key)
		}
	}

	entry, ok := s.entries[nonceKey]
	if !ok {
		s.entries[nonceKey] = &replayEntry{
			requestHash: requestHash,
			expiresAtMs: expiresAtMs,
		}
		return ReplayProceed, nil
	}
	if entry.requestHash != requestHash {
		return ReplayReject, nil
	}
	if entry.response == nil {
		return ReplayInFlight, nil
	}
	return ReplayReturn, entry.response
}

func (s *MemoryReplayStore) Complete(nonceKey string, requestHash [32]byte, expiresAtMs uint64, response *SignedResponse) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.entries[nonceKey] = &replayEntry{
		requestHash: requestHash,
		expiresAtMs: expiresAtMs,
		response:    response,
	}
}

func (s *MemoryReplayStore) Remove(nonceKey string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	delete(s.entries, nonceKey)
}
