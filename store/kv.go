package store

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"go.etcd.io/bbolt"

	"github.com/ambridge-relay/relayer/common"
)

var recordsBucket = []byte("records")

type kv struct {
	db *bbolt.DB
}

func openKV(filePath string) (*kv, error) {
	if err := common.CreateDirectoryIfNotExists(filepath.Dir(filePath)); err != nil {
		return nil, fmt.Errorf("could not create db directory: %w", err)
	}

	db, err := bbolt.Open(filePath, 0660, nil)
	if err != nil {
		return nil, fmt.Errorf("could not open db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(recordsBucket)
		if err != nil {
			return fmt.Errorf("could not create bucket: %s, err: %w", string(recordsBucket), err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return &kv{db: db}, nil
}

func (k *kv) close() error {
	return k.db.Close()
}

func (k *kv) get(key string, out any) (bool, error) {
	var (
		found bool
		data  []byte
	)

	err := k.db.View(func(tx *bbolt.Tx) error {
		value := tx.Bucket(recordsBucket).Get([]byte(key))
		if value == nil {
			return nil
		}

		found = true
		data = append([]byte(nil), value...)

		return nil
	})
	if err != nil {
		return false, err
	}

	if !found {
		return false, nil
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return true, fmt.Errorf("could not unmarshal %s: %w", key, err)
		}
	}

	return true, nil
}

func (k *kv) getRaw(key string) ([]byte, bool, error) {
	var data []byte

	err := k.db.View(func(tx *bbolt.Tx) error {
		value := tx.Bucket(recordsBucket).Get([]byte(key))
		if value != nil {
			data = append([]byte(nil), value...)
		}

		return nil
	})
	if err != nil {
		return nil, false, err
	}

	return data, data != nil, nil
}

func (k *kv) set(key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("could not marshal %s: %w", key, err)
	}

	return k.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(recordsBucket).Put([]byte(key), data)
	})
}

func (k *kv) del(key string) error {
	return k.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(recordsBucket).Delete([]byte(key))
	})
}

// scan iterates every record whose key has prefix, in key order, calling fn
// with the raw stored value. Iteration stops early if fn returns an error.
func (k *kv) scan(prefix string, fn func(key string, value []byte) error) error {
	return k.db.View(func(tx *bbolt.Tx) error {
		cursor := tx.Bucket(recordsBucket).Cursor()
		prefixBytes := []byte(prefix)

		for key, value := cursor.Seek(prefixBytes); key != nil && strings.HasPrefix(string(key), prefix); key, value = cursor.Next() {
			if err := fn(string(key), value); err != nil {
				return err
			}
		}

		return nil
	})
}
