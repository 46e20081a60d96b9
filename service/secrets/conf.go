package secrets

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/viant/afs"
)

// Session is an opaque serialisable session state keyed by its id.
type Session struct {
	ID    string          `json:"id"`
	State json.RawMessage `json:"state,omitempty"`
}

// Conf holds the user's long-term identity key and the stored sessions.
type Conf struct {
	IdentityKey *Secret[[]byte]
	Sessions    map[string]Session
}

// confWire is the persisted form; both fields are secret envelopes.
type confWire struct {
	IdentityKey string `json:"identity_key,omitempty"`
	Sessions    string `json:"sessions,omitempty"`
}

// confMode keeps the persisted file readable by its owner only.
const confMode = os.FileMode(0o600)

// ConfStore persists a Conf at a URL, sealing the identity key and the
// session map through the envelope store.
type ConfStore struct {
	fs    afs.Service
	URL   string
	store *Store
}

// NewConfStore creates a conf store backed by the supplied envelope store.
func NewConfStore(URL string, store *Store) *ConfStore {
	if store == nil {
		store = New()
	}
	return &ConfStore{
		fs:    afs.New(),
		URL:   URL,
		store: store,
	}
}

// Load reads and opens the configuration. A missing file yields an empty
// configuration.
func (c *ConfStore) Load(ctx context.Context) (*Conf, error) {
	if ok, _ := c.fs.Exists(ctx, c.URL); !ok {
		return &Conf{Sessions: map[string]Session{}}, nil
	}
	data, err := c.fs.DownloadWithURL(ctx, c.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to load conf from %v: %w", c.URL, err)
	}
	wire := &confWire{}
	if err := json.Unmarshal(data, wire); err != nil {
		return nil, fmt.Errorf("failed to parse conf from %v: %w", c.URL, err)
	}

	conf := &Conf{Sessions: map[string]Session{}}
	if wire.IdentityKey != "" {
		var identityKey []byte
		if err := c.store.Open(wire.IdentityKey, &identityKey); err != nil {
			return nil, fmt.Errorf("failed to open identity key: %w", err)
		}
		secret := NewSecret(identityKey)
		conf.IdentityKey = &secret
	}
	if wire.Sessions != "" {
		if err := c.store.Open(wire.Sessions, &conf.Sessions); err != nil {
			return nil, fmt.Errorf("failed to open sessions: %w", err)
		}
		if conf.Sessions == nil {
			conf.Sessions = map[string]Session{}
		}
	}
	return conf, nil
}

// Save seals and persists the configuration.
func (c *ConfStore) Save(ctx context.Context, conf *Conf) error {
	wire := &confWire{}
	if conf.IdentityKey != nil {
		sealed, err := c.store.Seal(conf.IdentityKey.Get())
		if err != nil {
			return fmt.Errorf("failed to seal identity key: %w", err)
		}
		wire.IdentityKey = sealed
	}
	sessions := conf.Sessions
	if sessions == nil {
		sessions = map[string]Session{}
	}
	sealed, err := c.store.Seal(sessions)
	if err != nil {
		return fmt.Errorf("failed to seal sessions: %w", err)
	}
	wire.Sessions = sealed

	data, err := json.Marshal(wire)
	if err != nil {
		return fmt.Errorf("failed to encode conf: %w", err)
	}
	if err := c.fs.Upload(ctx, c.URL, confMode, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to save conf to %v: %w", c.URL, err)
	}
	return nil
}

// Truncate removes the identity key and all sessions.
func (c *ConfStore) Truncate(ctx context.Context) error {
	return c.Save(ctx, &Conf{Sessions: map[string]Session{}})
}

// SetIdentityKey updates the identity key, preserving stored sessions.
func (c *ConfStore) SetIdentityKey(ctx context.Context, identityKey []byte) error {
	conf, err := c.Load(ctx)
	if err != nil {
		return err
	}
	secret := NewSecret(identityKey)
	conf.IdentityKey = &secret
	return c.Save(ctx, conf)
}

// IdentityKey returns the stored identity key.
func (c *ConfStore) IdentityKey(ctx context.Context) ([]byte, error) {
	conf, err := c.Load(ctx)
	if err != nil {
		return nil, err
	}
	if conf.IdentityKey == nil {
		return nil, fmt.Errorf("no identity key found")
	}
	return conf.IdentityKey.Get(), nil
}

// GetActiveSession checks out an arbitrary stored session. The session is
// removed from the persisted map before it is returned, so it cannot be
// checked out twice.
func (c *ConfStore) GetActiveSession(ctx context.Context) (*Session, error) {
	conf, err := c.Load(ctx)
	if err != nil {
		return nil, err
	}
	var session *Session
	for id := range conf.Sessions {
		checked := conf.Sessions[id]
		session = &checked
		delete(conf.Sessions, id)
		break
	}
	if session == nil {
		return nil, fmt.Errorf("no active sessions found")
	}
	if err := c.Save(ctx, conf); err != nil {
		return nil, err
	}
	return session, nil
}

// ReleaseSession returns a checked out session to the store.
func (c *ConfStore) ReleaseSession(ctx context.Context, session *Session) error {
	conf, err := c.Load(ctx)
	if err != nil {
		return err
	}
	if conf.Sessions == nil {
		conf.Sessions = map[string]Session{}
	}
	conf.Sessions[session.ID] = *session
	return c.Save(ctx, conf)
}
