package txnstatus

import (
	"os"

	"github.com/coocood/badger"
	"github.com/ngaut/log"

	"github.com/mycastiel/kudu/config"
)

// BadgerStore is the production Store, backed by an embedded badger LSM
// tree: the directory is created if missing and badger manages its own
// value log underneath it.
type BadgerStore struct {
	db *badger.DB
}

// OpenBadgerStore opens (or creates) a badger database at dir.
func OpenBadgerStore(dir string) (*BadgerStore, error) {
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return nil, err
	}
	opts := badger.DefaultOptions
	opts.Dir = dir
	opts.ValueDir = dir
	opts.SyncWrites = true
	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	log.Infof("txnstatus: opened registry at %s", dir)
	return &BadgerStore{db: db}, nil
}

// OpenBadgerStoreFromConfig opens the registry's store at cfg.DBPath and
// applies cfg.LogLevel to this package's logger, the same way node's main
// wires its own -L flag into log.SetLevelByString.
func OpenBadgerStoreFromConfig(cfg *config.Config) (*BadgerStore, error) {
	log.SetLevelByString(cfg.LogLevel)
	return OpenBadgerStore(cfg.DBPath)
}

func (s *BadgerStore) PutTxn(r TxnRecord) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(encodeTxnKey(r.TxnID), encodeTxnValue(r))
	})
}

func (s *BadgerStore) PutParticipant(r ParticipantRecord) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(encodeParticipantKey(r.TxnID, r.TabletID), encodeParticipantValue(r))
	})
}

func (s *BadgerStore) LoadAll() ([]TxnRecord, []ParticipantRecord, error) {
	var txns []TxnRecord
	var participants []ParticipantRecord

	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek([]byte(txnKeyPrefix)); it.ValidForPrefix([]byte(txnKeyPrefix)); it.Next() {
			item := it.Item()
			key := item.KeyCopy(nil)
			txnID, ok := decodeTxnKey(key)
			if !ok {
				continue
			}
			val, err := item.Value()
			if err != nil {
				return err
			}
			txns = append(txns, decodeTxnValue(txnID, val))
		}

		for it.Seek([]byte(participantKeyPrefix)); it.ValidForPrefix([]byte(participantKeyPrefix)); it.Next() {
			item := it.Item()
			key := item.KeyCopy(nil)
			txnID, tabletID, ok := decodeParticipantKey(key)
			if !ok {
				continue
			}
			val, err := item.Value()
			if err != nil {
				return err
			}
			participants = append(participants, decodeParticipantValue(txnID, tabletID, val))
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return txns, participants, nil
}

func (s *BadgerStore) Close() error {
	return s.db.Close()
}
