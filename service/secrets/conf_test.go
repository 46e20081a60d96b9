package secrets

import (
	"context"
	"encoding/json"
	"path"
	"testing"

	"github.com/stretchr/testify/assert"
)

func testConfStore(t *testing.T) *ConfStore {
	URL := path.Join(t.TempDir(), "crypto.conf.json")
	return NewConfStore(URL, staticStore())
}

func TestConfStore_IdentityKey(t *testing.T) {
	store := testConfStore(t)
	ctx := context.Background()

	_, err := store.IdentityKey(ctx)
	assert.NotNil(t, err, "missing identity key")

	assert.Nil(t, store.SetIdentityKey(ctx, []byte{1, 2, 3}))
	identityKey, err := store.IdentityKey(ctx)
	assert.Nil(t, err)
	assert.Equal(t, []byte{1, 2, 3}, identityKey)
}

func TestConfStore_SessionCheckout(t *testing.T) {
	store := testConfStore(t)
	ctx := context.Background()

	_, err := store.GetActiveSession(ctx)
	assert.NotNil(t, err, "no sessions yet")

	session := &Session{ID: "s1", State: json.RawMessage(`{"counter":1}`)}
	assert.Nil(t, store.ReleaseSession(ctx, session))

	active, err := store.GetActiveSession(ctx)
	assert.Nil(t, err)
	assert.Equal(t, "s1", active.ID)

	// The checked out session is persisted as removed.
	_, err = store.GetActiveSession(ctx)
	assert.NotNil(t, err)

	active.State = json.RawMessage(`{"counter":2}`)
	assert.Nil(t, store.ReleaseSession(ctx, active))

	again, err := store.GetActiveSession(ctx)
	assert.Nil(t, err)
	assert.Equal(t, json.RawMessage(`{"counter":2}`), again.State)
}

func TestConfStore_Truncate(t *testing.T) {
	store := testConfStore(t)
	ctx := context.Background()

	assert.Nil(t, store.SetIdentityKey(ctx, []byte{9}))
	assert.Nil(t, store.ReleaseSession(ctx, &Session{ID: "s1"}))
	assert.Nil(t, store.Truncate(ctx))

	conf, err := store.Load(ctx)
	assert.Nil(t, err)
	assert.Nil(t, conf.IdentityKey)
	assert.Equal(t, 0, len(conf.Sessions))
}

func TestConfStore_PersistedFormIsSealed(t *testing.T) {
	store := testConfStore(t)
	ctx := context.Background()
	assert.Nil(t, store.SetIdentityKey(ctx, []byte("topsecret")))

	data, err := store.fs.DownloadWithURL(ctx, store.URL)
	assert.Nil(t, err)

	wire := &confWire{}
	assert.Nil(t, json.Unmarshal(data, wire))
	assert.Contains(t, wire.IdentityKey, "enc:v1:")
	assert.Contains(t, wire.Sessions, "enc:v1:")
	assert.NotContains(t, string(data), "topsecret")
}
