package db

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"path/filepath"
	"time"

	"github.com/boltdb/bolt"
	"github.com/giwty/x360-tu-manager/settings"
	"go.uber.org/zap"
)

const (
	DB_FILENAME           = "x360tu.db"
	DB_INTERNAL_TABLENAME = "internal-metadata"
)

type PersistentDB struct {
	db *bolt.DB
}

func NewPersistentDB(baseFolder string) (*PersistentDB, error) {
	// created if it doesn't exist
	db, err := bolt.Open(filepath.Join(baseFolder, DB_FILENAME), 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	//set DB version
	err = db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(DB_INTERNAL_TABLENAME))
		if err != nil {
			return fmt.Errorf("create bucket: %s", err)
		}
		return b.Put([]byte("app_version"), []byte(settings.APP_VERSION))
	})
	if err != nil {
		zap.S().Warnf("failed to save app_version - %v", err)
	}

	return &PersistentDB{db: db}, nil
}

func (pd *PersistentDB) Close() {
	pd.db.Close()
}

func (pd *PersistentDB) ClearTable(tableName string) error {
	err := pd.db.Update(func(tx *bolt.Tx) error {
		err := tx.DeleteBucket([]byte(tableName))
		if err == bolt.ErrBucketNotFound {
			return nil
		}
		return err
	})
	return err
}

func (pd *PersistentDB) AddEntry(tableName string, key string, value interface{}) error {
	var bytesBuff bytes.Buffer
	if err := gob.NewEncoder(&bytesBuff).Encode(value); err != nil {
		return err
	}

	return pd.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(tableName))
		if err != nil {
			return fmt.Errorf("create bucket: %s", err)
		}
		return b.Put([]byte(key), bytesBuff.Bytes())
	})
}

// GetEntry decodes the stored value into value, found is false when the key is missing
func (pd *PersistentDB) GetEntry(tableName string, key string, value interface{}) (bool, error) {
	found := false
	err := pd.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(tableName))
		if b == nil {
			return nil
		}
		v := b.Get([]byte(key))
		if v == nil {
			return nil
		}
		found = true
		return gob.NewDecoder(bytes.NewReader(v)).Decode(value)
	})
	return found, err
}
