package txnstatus

import "encoding/binary"

// Key layout mirrors a column-family-by-key-prefix convention: "t/" for
// TxnRecord, "p/" for ParticipantRecord.
// Values are a fixed one-byte state tag followed by the variable payload.
const (
	txnKeyPrefix         = "t/"
	participantKeyPrefix = "p/"
)

func encodeTxnKey(txnID int64) []byte {
	buf := make([]byte, len(txnKeyPrefix)+8)
	copy(buf, txnKeyPrefix)
	binary.BigEndian.PutUint64(buf[len(txnKeyPrefix):], uint64(txnID))
	return buf
}

func decodeTxnKey(key []byte) (int64, bool) {
	if len(key) != len(txnKeyPrefix)+8 || string(key[:len(txnKeyPrefix)]) != txnKeyPrefix {
		return 0, false
	}
	return int64(binary.BigEndian.Uint64(key[len(txnKeyPrefix):])), true
}

func encodeTxnValue(r TxnRecord) []byte {
	buf := make([]byte, 1+len(r.User))
	buf[0] = byte(r.State)
	copy(buf[1:], r.User)
	return buf
}

func decodeTxnValue(txnID int64, val []byte) TxnRecord {
	r := TxnRecord{TxnID: txnID}
	if len(val) == 0 {
		return r
	}
	r.State = State(val[0])
	r.User = string(val[1:])
	return r
}

func encodeParticipantKey(txnID int64, tabletID string) []byte {
	buf := make([]byte, len(participantKeyPrefix)+8+1+len(tabletID))
	off := 0
	off += copy(buf[off:], participantKeyPrefix)
	binary.BigEndian.PutUint64(buf[off:], uint64(txnID))
	off += 8
	buf[off] = '/'
	off++
	copy(buf[off:], tabletID)
	return buf
}

func decodeParticipantKey(key []byte) (int64, string, bool) {
	prefixLen := len(participantKeyPrefix)
	if len(key) < prefixLen+8+1 || string(key[:prefixLen]) != participantKeyPrefix {
		return 0, "", false
	}
	txnID := int64(binary.BigEndian.Uint64(key[prefixLen : prefixLen+8]))
	tabletID := string(key[prefixLen+8+1:])
	return txnID, tabletID, true
}

func encodeParticipantValue(r ParticipantRecord) []byte {
	return []byte{byte(r.State)}
}

func decodeParticipantValue(txnID int64, tabletID string, val []byte) ParticipantRecord {
	r := ParticipantRecord{TxnID: txnID, TabletID: tabletID}
	if len(val) > 0 {
		r.State = State(val[0])
	}
	return r
}
