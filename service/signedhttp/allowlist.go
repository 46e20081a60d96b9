package signedhttp

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/viant/afs"
)

// AllowedLeaders is the tool-side allowlist of invoker public keys,
// indexed by (leader id, key id). Provisioned out-of-band, e.g. at tool
// registration time.
type AllowedLeaders struct {
	leaders   map[string]map[uint64][32]byte
	sourceURL string
}

// AllowedLeadersFile is the allowlist wire schema, decodable from the
// on-disk JSON file or from an inline configuration block.
type AllowedLeadersFile struct {
	Version uint8                `json:"version" yaml:"version"`
	Leaders []AllowedLeaderEntry `json:"leaders" yaml:"leaders"`
}

type AllowedLeaderEntry struct {
	LeaderID string                  `json:"leader_id" yaml:"leader_id"`
	Keys     []AllowedLeaderKeyEntry `json:"keys" yaml:"keys"`
}

type AllowedLeaderKeyEntry struct {
	Kid uint64 `json:"kid" yaml:"kid"`
	// Hex-encoded 32-byte Ed25519 public key.
	PublicKey string `json:"public_key" yaml:"public_key"`
}

// NewAllowedLeaders builds an allowlist from (leader id, kid, key) triples.
func NewAllowedLeaders() *AllowedLeaders {
	return &AllowedLeaders{leaders: map[string]map[uint64][32]byte{}}
}

// Add registers a leader public key.
func (a *AllowedLeaders) Add(leaderID string, kid uint64, publicKey [32]byte) *AllowedLeaders {
	keys, ok := a.leaders[leaderID]
	if !ok {
		keys = map[uint64][32]byte{}
		a.leaders[leaderID] = keys
	}
	keys[kid] = publicKey
	return a
}

// InvokerPublicKey resolves a leader public key by (leader id, kid).
func (a *AllowedLeaders) InvokerPublicKey(leaderID string, kid uint64) ([]byte, bool) {
	keys, ok := a.leaders[leaderID]
	if !ok {
		return nil, false
	}
	key, ok := keys[kid]
	if !ok {
		return nil, false
	}
	return key[:], true
}

// SourceURL returns the URL the allowlist was loaded from, if any.
func (a *AllowedLeaders) SourceURL() string {
	return a.sourceURL
}

// LoadAllowedLeaders reads an allowlist from the supplied URL.
func LoadAllowedLeaders(ctx context.Context, URL string) (*AllowedLeaders, error) {
	fs := afs.New()
	data, err := fs.DownloadWithURL(ctx, URL)
	if err != nil {
		return nil, fmt.Errorf("failed to load allowed leaders from %v: %w", URL, err)
	}
	result, err := ParseAllowedLeaders(data)
	if err != nil {
		return nil, fmt.Errorf("invalid allowed leaders file %v: %w", URL, err)
	}
	result.sourceURL = URL
	return result, nil
}

// ParseAllowedLeaders decodes the allowlist JSON schema.
func ParseAllowedLeaders(data []byte) (*AllowedLeaders, error) {
	file := &AllowedLeadersFile{}
	if err := json.Unmarshal(data, file); err != nil {
		return nil, err
	}
	return file.Decode()
}

// Decode validates the schema and builds the allowlist.
func (f *AllowedLeadersFile) Decode() (*AllowedLeaders, error) {
	if f.Version != 1 {
		return nil, fmt.Errorf("unsupported version %d, expected 1", f.Version)
	}
	result := NewAllowedLeaders()
	for _, leader := range f.Leaders {
		for _, key := range leader.Keys {
			decoded, err := hex.DecodeString(key.PublicKey)
			if err != nil {
				return nil, fmt.Errorf("leader_id=%v kid=%d: invalid public_key hex: %w", leader.LeaderID, key.Kid, err)
			}
			if len(decoded) != 32 {
				return nil, fmt.Errorf("leader_id=%v kid=%d: public_key must be 32 bytes", leader.LeaderID, key.Kid)
			}
			var publicKey [32]byte
			copy(publicKey[:], decoded)
			result.Add(leader.LeaderID, key.Kid, publicKey)
		}
	}
	return result, nil
}
