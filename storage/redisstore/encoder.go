package redisstore

import (
	"encoding/binary"
	"errors"

	goToken "github.com/MrEthical07/goToken"
)

const (
	entryFormatVersionCurrent = 1
	entryEncodedLen           = 1 + 8 + 8
)

// Encode serializes an entry as version byte, valid_until and purge_at, both
// big-endian int64.
func Encode(e goToken.BlacklistEntry) []byte {
	buf := make([]byte, entryEncodedLen)
	buf[0] = entryFormatVersionCurrent
	binary.BigEndian.PutUint64(buf[1:9], uint64(e.ValidUntil))
	binary.BigEndian.PutUint64(buf[9:17], uint64(e.PurgeAt))
	return buf
}

// Decode parses the output of Encode.
func Decode(data []byte) (goToken.BlacklistEntry, error) {
	if len(data) == 0 {
		return goToken.BlacklistEntry{}, errors.New("empty entry")
	}
	if data[0] != entryFormatVersionCurrent {
		return goToken.BlacklistEntry{}, errors.New("unsupported entry version")
	}
	if len(data) != entryEncodedLen {
		return goToken.BlacklistEntry{}, errors.New("invalid entry length")
	}
	return goToken.BlacklistEntry{
		ValidUntil: int64(binary.BigEndian.Uint64(data[1:9])),
		PurgeAt:    int64(binary.BigEndian.Uint64(data[9:17])),
	}, nil
}
