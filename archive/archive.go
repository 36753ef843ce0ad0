// Package archive keeps a local history of publish attempts in a bolt
// database. Every outcome is recorded, success or failure, so an
// operator can reconstruct what was pushed to the management server
// and when.
package archive

import (
	"fmt"
	"time"

	"github.com/boltdb/bolt"
	"github.com/groob/plist"
	"github.com/pkg/errors"
	uuid "github.com/satori/go.uuid"
)

// publishBucket is the name of the *bolt.DB bucket events live in.
const publishBucket = "publish"

// Publish outcomes.
const (
	OutcomePublished = "published"
	OutcomeFailed    = "failed"
)

// Event is one publish attempt.
type Event struct {
	ID         string
	Time       int64 // unix nanoseconds
	Name       string
	Identifier string
	Outcome    string
	Detail     string `plist:",omitempty"`
	Updated    bool
}

// NewEvent stamps a publish outcome with an ID and the current time.
func NewEvent(name, identifier, outcome, detail string, updated bool) Event {
	return Event{
		ID:         uuid.NewV4().String(),
		Time:       time.Now().UnixNano(),
		Name:       name,
		Identifier: identifier,
		Outcome:    outcome,
		Detail:     detail,
		Updated:    updated,
	}
}

// Store is a bolt backed archive of publish events.
type Store struct {
	*bolt.DB
}

// NewStore creates the publish bucket if needed.
func NewStore(db *bolt.DB) (*Store, error) {
	err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(publishBucket))
		if err != nil {
			return fmt.Errorf("create bucket: %s", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &Store{db}, nil
}

// SaveEvent archives one publish event, keyed by its timestamp.
func (db *Store) SaveEvent(ev Event) error {
	data, err := plist.Marshal(&ev)
	if err != nil {
		return errors.Wrap(err, "encode publish event")
	}
	err = db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(publishBucket))
		if bucket == nil {
			return fmt.Errorf("bucket %q not found!", publishBucket)
		}
		k := fmt.Sprintf("%d", ev.Time)
		return bucket.Put([]byte(k), data)
	})
	return err
}

// Events returns the archived publish history in time order.
func (db *Store) Events() ([]Event, error) {
	var events []Event
	err := db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(publishBucket))
		if bucket == nil {
			return fmt.Errorf("bucket %q not found!", publishBucket)
		}
		return bucket.ForEach(func(k, v []byte) error {
			var ev Event
			if err := plist.Unmarshal(v, &ev); err != nil {
				return errors.Wrapf(err, "decode publish event %s", k)
			}
			events = append(events, ev)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return events, nil
}
