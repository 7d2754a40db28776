package token

import "sync"

// Provider names one of the two parallel auth backends a token can come from.
type Provider string

const (
	ProviderSSO Provider = "sso" // backend auth service
	ProviderIDP Provider = "idp" // cloud identity provider
)

// Preference is the order the gateway consults providers in when attaching a
// bearer token. SSO wins over IDP when both are present.
var Preference = []Provider{ProviderSSO, ProviderIDP}

// Set is one provider's token triple. A set is usable only when all three
// fields are non-empty; anything less is treated as no token at all.
type Set struct {
	Access  string `json:"access_token"`
	ID      string `json:"id_token"`
	Refresh string `json:"refresh_token"`
}

func (s Set) Valid() bool {
	return s.Access != "" && s.ID != "" && s.Refresh != ""
}

// Store persists token sets per provider. A missing key is a valid no-token
// result, not a failure.
type Store interface {
	Get(p Provider) (Set, bool)
	Put(p Provider, s Set)
	Clear(p Provider)
	ClearAll()
}

// MemStore keeps tokens in memory for the life of the process.
type MemStore struct {
	mu   sync.RWMutex
	sets map[Provider]Set
}

func NewMemStore() *MemStore {
	return &MemStore{sets: map[Provider]Set{}}
}

func (m *MemStore) Get(p Provider) (Set, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sets[p]
	if !ok || !s.Valid() {
		return Set{}, false
	}
	return s, true
}

func (m *MemStore) Put(p Provider, s Set) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sets[p] = s
}

func (m *MemStore) Clear(p Provider) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sets, p)
}

func (m *MemStore) ClearAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sets = map[Provider]Set{}
}
