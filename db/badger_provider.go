package db

import (
	"fmt"
	"sync"

	"github.com/dgraph-io/badger/v2"
)

// BadgerProvider implements DatabaseProvider for Badger
type BadgerProvider struct {
	once sync.Once
	db   *badger.DB
}

// NewBadgerProvider opens (or creates) a Badger database in directory
func NewBadgerProvider(directory string) (DatabaseProvider, error) {
	opts := badger.DefaultOptions(directory).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open Badger: %w", err)
	}
	return &BadgerProvider{db: db}, nil
}

func (p *BadgerProvider) Get(key []byte) ([]byte, error) {
	var value []byte
	err := p.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if err == badger.ErrKeyNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return value, nil
}

func (p *BadgerProvider) Put(key, value []byte) error {
	return p.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, value)
	})
}

func (p *BadgerProvider) Delete(key []byte) error {
	return p.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key)
	})
}

func (p *BadgerProvider) Has(key []byte) (bool, error) {
	err := p.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(key)
		return err
	})
	if err == badger.ErrKeyNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (p *BadgerProvider) IteratePrefix(prefix []byte, callback func(key, value []byte) bool) error {
	return p.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			value, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			if !callback(item.Key(), value) {
				break
			}
		}
		return nil
	})
}

func (p *BadgerProvider) Close() error {
	var err error
	p.once.Do(func() {
		err = p.db.Close()
	})
	return err
}
