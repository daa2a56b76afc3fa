package txnstatus

import (
	"strings"
	"sync"

	"github.com/petar/GoLLRB/llrb"
)

// memoryItem is the llrb.Item backing MemoryStore's ordered index. Keys are
// the same byte encoding BadgerStore persists, compared lexicographically,
// so both stores agree on iteration order.
type memoryItem struct {
	key   string
	value []byte
}

func (i *memoryItem) Less(than llrb.Item) bool {
	return i.key < than.(*memoryItem).key
}

// MemoryStore is the in-memory test double of Store: an ordered index
// mirroring the registry's on-disk key space, so unit tests of the
// companion state machine do not need a real badger directory. It also
// backs the read path that lists a transaction's participants in
// deterministic order without a full table scan of every transaction.
type MemoryStore struct {
	mu   sync.Mutex
	tree *llrb.LLRB
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tree: llrb.New()}
}

func (s *MemoryStore) PutTxn(r TxnRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tree.ReplaceOrInsert(&memoryItem{key: string(encodeTxnKey(r.TxnID)), value: encodeTxnValue(r)})
	return nil
}

func (s *MemoryStore) PutParticipant(r ParticipantRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tree.ReplaceOrInsert(&memoryItem{key: string(encodeParticipantKey(r.TxnID, r.TabletID)), value: encodeParticipantValue(r)})
	return nil
}

func (s *MemoryStore) LoadAll() ([]TxnRecord, []ParticipantRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var txns []TxnRecord
	var participants []ParticipantRecord
	s.tree.AscendGreaterOrEqual(&memoryItem{key: ""}, func(i llrb.Item) bool {
		item := i.(*memoryItem)
		switch {
		case strings.HasPrefix(item.key, txnKeyPrefix):
			if txnID, ok := decodeTxnKey([]byte(item.key)); ok {
				txns = append(txns, decodeTxnValue(txnID, item.value))
			}
		case strings.HasPrefix(item.key, participantKeyPrefix):
			if txnID, tabletID, ok := decodeParticipantKey([]byte(item.key)); ok {
				participants = append(participants, decodeParticipantValue(txnID, tabletID, item.value))
			}
		}
		return true
	})
	return txns, participants, nil
}

// ListParticipants returns every participant of txnID in ascending
// tablet-id order, without visiting entries belonging to other
// transactions.
func (s *MemoryStore) ListParticipants(txnID int64) []ParticipantRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	prefix := string(encodeParticipantKey(txnID, ""))
	var out []ParticipantRecord
	s.tree.AscendGreaterOrEqual(&memoryItem{key: prefix}, func(i llrb.Item) bool {
		item := i.(*memoryItem)
		if !strings.HasPrefix(item.key, prefix) {
			return false
		}
		if _, tabletID, ok := decodeParticipantKey([]byte(item.key)); ok {
			out = append(out, decodeParticipantValue(txnID, tabletID, item.value))
		}
		return true
	})
	return out
}

func (s *MemoryStore) Close() error {
	return nil
}
