package healthcache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

var diskBucket = []byte("health")

// DiskStore is the on-device cache tier, a single bbolt file. It survives
// process restarts, which matters on TV hardware where the app is killed and
// relaunched constantly.
type DiskStore struct {
	db *bolt.DB
}

// OpenDiskStore opens (creating if needed) the cache file at path.
func OpenDiskStore(path string) (*DiskStore, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open disk cache %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(diskBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init disk cache bucket: %w", err)
	}
	return &DiskStore{db: db}, nil
}

func (d *DiskStore) Get(ctx context.Context, key string) (Entry, bool, error) {
	if err := ctx.Err(); err != nil {
		return Entry{}, false, err
	}
	var entry Entry
	found := false
	err := d.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(diskBucket).Get([]byte(key))
		if data == nil {
			return nil
		}
		if err := json.Unmarshal(data, &entry); err != nil {
			// A corrupt record is a miss, not an outage.
			return nil
		}
		found = true
		return nil
	})
	if err != nil {
		return Entry{}, false, err
	}
	return entry, found, nil
}

func (d *DiskStore) Set(ctx context.Context, key string, entry Entry, _ time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return d.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(diskBucket).Put([]byte(key), data)
	})
}

func (d *DiskStore) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return d.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(diskBucket).Delete([]byte(key))
	})
}

func (d *DiskStore) DeleteAll(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return d.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(diskBucket); err != nil {
			return err
		}
		_, err := tx.CreateBucket(diskBucket)
		return err
	})
}

// Prune drops entries already expired at the given instant. Run it on
// startup so the file doesn't accumulate dead scores across sessions.
func (d *DiskStore) Prune(ctx context.Context, now time.Time) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	pruned := 0
	err := d.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(diskBucket)
		cursor := bucket.Cursor()
		for key, data := cursor.First(); key != nil; key, data = cursor.Next() {
			var entry Entry
			if json.Unmarshal(data, &entry) != nil || entry.expired(now) {
				if err := cursor.Delete(); err != nil {
					return err
				}
				pruned++
			}
		}
		return nil
	})
	return pruned, err
}

func (d *DiskStore) Close() error {
	return d.db.Close()
}
