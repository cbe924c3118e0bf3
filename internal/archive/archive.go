// Package archive maps legislative entities onto a key-value blob cache.
//
// The archive has no manifest: an entity is present exactly when its blob
// exists. Keys follow the historical on-disk layout
// (<kind dir>/sd-legislature-<kind>-<id>.json) so archives written by earlier
// crawls remain valid.
package archive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"

	"github.com/JakeFAU/legislature-crawler/internal/hash/sha256"
)

// ErrNotFound is returned by Cache.Get when the key has no blob.
var ErrNotFound = errors.New("archive: not found")

// Cache is the storage contract every backend implements.
type Cache interface {
	Exists(ctx context.Context, key string) (bool, error)
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, data []byte) error
}

// Kind identifies an archived entity type.
type Kind string

// Archived entity kinds.
const (
	KindSession    Kind = "session"
	KindBill       Kind = "bill"
	KindLegislator Kind = "legislator"
	KindCommittee  Kind = "committee"
	KindHistorical Kind = "historical"
)

const filePrefix = "sd-legislature"

var kindDirs = map[Kind]string{
	KindSession:    "sessions",
	KindBill:       "bills",
	KindLegislator: "legislators",
	KindCommittee:  "committees",
	KindHistorical: "legislators",
}

// Key addresses one archived entity.
type Key struct {
	Kind Kind
	ID   string
}

// EntityKey builds a key for an entity with a numeric upstream id.
func EntityKey(kind Kind, id int) Key {
	return Key{Kind: kind, ID: fmt.Sprint(id)}
}

// HistoricalKey addresses the bulk historical legislator file.
func HistoricalKey() Key {
	return Key{Kind: KindHistorical}
}

// Path returns the blob path for the key.
func (k Key) Path() string {
	if k.Kind == KindHistorical {
		return path.Join(kindDirs[KindHistorical], filePrefix+"-legislators-historical.json")
	}
	return path.Join(kindDirs[k.Kind], fmt.Sprintf("%s-%s-%s.json", filePrefix, k.Kind, k.ID))
}

func (k Key) String() string {
	return k.Path()
}

// Digester fingerprints encoded records.
type Digester interface {
	Digest(data []byte) string
}

// Archive stores entity records as JSON blobs in a Cache.
type Archive struct {
	cache    Cache
	digester Digester
}

// New wraps a Cache. Saved blobs are fingerprinted with SHA-256.
func New(cache Cache) *Archive {
	return &Archive{cache: cache, digester: sha256.New()}
}

// Has reports whether the entity has been archived.
func (a *Archive) Has(ctx context.Context, key Key) (bool, error) {
	ok, err := a.cache.Exists(ctx, key.Path())
	if err != nil {
		return false, fmt.Errorf("check %s: %w", key, err)
	}
	return ok, nil
}

// Load decodes an archived entity into v.
func (a *Archive) Load(ctx context.Context, key Key, v any) error {
	data, err := a.cache.Get(ctx, key.Path())
	if err != nil {
		return fmt.Errorf("get %s: %w", key, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

// Save encodes v and writes it under key, replacing any previous blob. It
// returns the digest of the written blob.
func (a *Archive) Save(ctx context.Context, key Key, v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode %s: %w", key, err)
	}
	if err := a.cache.Put(ctx, key.Path(), data); err != nil {
		return "", fmt.Errorf("put %s: %w", key, err)
	}
	return a.digester.Digest(data), nil
}
