package logmgr

import (
	"encoding/binary"
	"hash/crc32"
)

// encode lays the record out exactly as the teacher's WALRecord does:
// an 8-byte LSN, a 4-byte length, a 4-byte CRC, then the payload.
func (r *record) encode() []byte {
	buf := make([]byte, recordHeaderSize+len(r.payload))
	binary.BigEndian.PutUint64(buf[0:8], r.lsn)
	binary.BigEndian.PutUint32(buf[8:12], uint32(len(r.payload)))
	binary.BigEndian.PutUint32(buf[12:16], r.crc)
	copy(buf[16:], r.payload)
	return buf
}

func calculateCRC(lsn uint64, payload []byte) uint32 {
	hasher := crc32.NewIEEE()
	var lsnBytes [8]byte
	binary.BigEndian.PutUint64(lsnBytes[:], lsn)
	hasher.Write(lsnBytes[:])
	hasher.Write(payload)
	return hasher.Sum32()
}
