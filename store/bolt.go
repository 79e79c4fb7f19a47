// Copyright 2025 PolyCrypt GmbH
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package store

import (
	"time"

	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/pkg/errors"
	"go.etcd.io/bbolt"
	"perun.network/go-perun/log"

	"perun.network/perun-nitro-engine/channel"
	"perun.network/perun-nitro-engine/protocol"
	"perun.network/perun-nitro-engine/wire"
)

const (
	dbFilePermission = 0600
	dbOpenTimeout    = time.Second
)

var (
	channelBucket   = []byte("channels")
	objectiveBucket = []byte("objectives")
)

// BoltStore persists records in a bbolt database. Channels are keyed by
// their 32 byte id, objectives by their string id.
type BoltStore struct {
	db     *bbolt.DB
	decode Decoder
	log    log.Embedding
}

var _ Store = (*BoltStore)(nil)

// OpenBoltStore opens or creates the database at path.
func OpenBoltStore(path string, decode Decoder) (*BoltStore, error) {
	db, err := bbolt.Open(path, dbFilePermission, &bbolt.Options{Timeout: dbOpenTimeout})
	if err != nil {
		return nil, errors.WithMessagef(err, "opening %s", path)
	}
	s := &BoltStore{
		db:     db,
		decode: decode,
		log:    log.MakeEmbedding(log.WithField("db", path)),
	}
	if err := s.initBuckets(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *BoltStore) initBuckets() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(channelBucket); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(objectiveBucket)
		return err
	})
}

func bucket(tx *bbolt.Tx, name []byte) (*bbolt.Bucket, error) {
	b := tx.Bucket(name)
	if b == nil {
		return nil, errors.WithMessagef(ErrCorruptStore, "missing bucket %s", name)
	}
	return b, nil
}

func (s *BoltStore) GetChannel(id channel.ID) (fn.Option[channel.Ledger], error) {
	var data []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		b, err := bucket(tx, channelBucket)
		if err != nil {
			return err
		}
		// Values are only valid inside the transaction.
		if v := b.Get(id.Bytes()); v != nil {
			data = append([]byte{}, v...)
		}
		return nil
	})
	if err != nil || data == nil {
		return fn.None[channel.Ledger](), err
	}
	l, err := wire.UnmarshalLedger(data)
	if err != nil {
		return fn.None[channel.Ledger](), err
	}
	return fn.Some(l), nil
}

func (s *BoltStore) PutChannel(l channel.Ledger) error {
	data, err := wire.MarshalLedger(l)
	if err != nil {
		return err
	}
	id := l.ID()
	return s.db.Update(func(tx *bbolt.Tx) error {
		b, err := bucket(tx, channelBucket)
		if err != nil {
			return err
		}
		return b.Put(id.Bytes(), data)
	})
}

func (s *BoltStore) Channels() ([]channel.Ledger, error) {
	var ledgers []channel.Ledger
	err := s.db.View(func(tx *bbolt.Tx) error {
		b, err := bucket(tx, channelBucket)
		if err != nil {
			return err
		}
		return b.ForEach(func(k, v []byte) error {
			l, err := wire.UnmarshalLedger(v)
			if err != nil {
				return errors.WithMessagef(err, "decoding channel %x", k)
			}
			ledgers = append(ledgers, l)
			return nil
		})
	})
	return ledgers, err
}

func (s *BoltStore) GetObjective(id protocol.ObjectiveID) (fn.Option[protocol.Objective], error) {
	var data []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		b, err := bucket(tx, objectiveBucket)
		if err != nil {
			return err
		}
		if v := b.Get([]byte(id)); v != nil {
			data = append([]byte{}, v...)
		}
		return nil
	})
	if err != nil || data == nil {
		return fn.None[protocol.Objective](), err
	}
	o, err := decodeObjective(s.decode, id, data)
	if err != nil {
		return fn.None[protocol.Objective](), err
	}
	return fn.Some(o), nil
}

func (s *BoltStore) PutObjective(o protocol.Objective) error {
	data, err := o.MarshalBinary()
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		b, err := bucket(tx, objectiveBucket)
		if err != nil {
			return err
		}
		return b.Put([]byte(o.ID()), data)
	})
}

func (s *BoltStore) Objectives() ([]protocol.Objective, error) {
	var objs []protocol.Objective
	err := s.db.View(func(tx *bbolt.Tx) error {
		b, err := bucket(tx, objectiveBucket)
		if err != nil {
			return err
		}
		return b.ForEach(func(k, v []byte) error {
			o, err := decodeObjective(s.decode, protocol.ObjectiveID(k), v)
			if err != nil {
				return err
			}
			objs = append(objs, o)
			return nil
		})
	})
	return objs, err
}

func (s *BoltStore) Close() error {
	s.log.Log().Debug("Closing store")
	return s.db.Close()
}
