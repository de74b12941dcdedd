package bridge

import (
	"encoding/json"
	"fmt"

	"github.com/aussiebroadwan/gqlbridge/pkg/cache"
)

// PayloadKeyPrefix prefixes the per-client cache entry in a payload.
const PayloadKeyPrefix = "_apollo:"

// Payload is the state the server render hands to the browser.
type Payload struct {
	Data map[string]any `json:"data"`
}

func NewPayload() *Payload { return &Payload{Data: map[string]any{}} }

// PayloadKey is the payload entry that carries the cache of client name.
func PayloadKey(name string) string { return PayloadKeyPrefix + name }

// Rendered stores a snapshot of every client's cache in p. Call it once
// rendering is complete.
func (r *Registry) Rendered(p *Payload) {
	if p.Data == nil {
		p.Data = map[string]any{}
	}
	for _, name := range r.order {
		p.Data[PayloadKey(name)] = r.clients[name].cache.Extract()
	}
}

// Hydrate restores each client's cache from p. Missing entries are skipped;
// malformed ones are logged and leave the cache empty.
func (r *Registry) Hydrate(p *Payload) {
	if p == nil || p.Data == nil {
		return
	}
	for _, name := range r.order {
		raw, ok := p.Data[PayloadKey(name)]
		if !ok || raw == nil {
			continue
		}

		c := r.clients[name]
		snap, err := decodeSnapshot(raw)
		if err != nil {
			r.logger.Warn("ignoring malformed cache snapshot", "gql_client", name, "err", err)
			c.cache.Reset()
			continue
		}
		c.cache.Restore(snap)
	}
}

// decodeSnapshot accepts a snapshot as produced by Extract, or any JSON
// encoding of one.
func decodeSnapshot(v any) (cache.Snapshot, error) {
	var raw []byte
	switch t := v.(type) {
	case cache.Snapshot:
		return t, nil
	case json.RawMessage:
		raw = t
	case []byte:
		raw = t
	case string:
		raw = []byte(t)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return nil, fmt.Errorf("failed to encode snapshot: %w", err)
		}
		raw = b
	}

	var snap cache.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return snap, nil
}
