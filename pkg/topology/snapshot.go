package topology

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/ecomesh/ecomesh/pkg/types"
	bolt "go.etcd.io/bbolt"
)

var (
	bucketTopology = []byte("topology")

	keyCurrent = []byte("current")
)

// SnapshotStore persists EcosystemTopology snapshots in BoltDB so a restarted
// coordinator starts from the last known ecosystem instead of an empty one.
type SnapshotStore struct {
	db *bolt.DB
}

// NewSnapshotStore opens (or creates) the snapshot database under dataDir
func NewSnapshotStore(dataDir string) (*SnapshotStore, error) {
	dbPath := filepath.Join(dataDir, "ecomesh.db")

	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketTopology)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create bucket: %w", err)
	}

	return &SnapshotStore{db: db}, nil
}

// Close closes the database
func (s *SnapshotStore) Close() error {
	return s.db.Close()
}

// Save persists the given topology as the current snapshot
func (s *SnapshotStore) Save(topo types.EcosystemTopology) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketTopology)
		data, err := json.Marshal(topo)
		if err != nil {
			return err
		}
		return b.Put(keyCurrent, data)
	})
}

// Load returns the last persisted topology, or (nil, nil) when no snapshot
// has been written yet.
func (s *SnapshotStore) Load() (*types.EcosystemTopology, error) {
	var topo *types.EcosystemTopology
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketTopology)
		data := b.Get(keyCurrent)
		if data == nil {
			return nil
		}
		topo = &types.EcosystemTopology{}
		return json.Unmarshal(data, topo)
	})
	return topo, err
}
