package cache

import (
	"bytes"
	"encoding/gob"
	"maps"
)

// FormatVersion is part of every key; bump it when Entry changes shape so
// old entries are simply never found.
const FormatVersion = 1

// KeySeparator separates the version from the path in cache keys.
const KeySeparator = '\x00'

// Entry is the cached fingerprint state of one file. It is valid only while
// the file's size and modification time are unchanged.
type Entry struct {
	Size     int64
	Mtime    int64 // UnixNano
	Digests  map[string]string
	PHash    uint64
	HasPHash bool
}

// Fresh reports whether the entry still describes a file with this size and mtime.
func (e *Entry) Fresh(size, mtime int64) bool {
	return e.Size == size && e.Mtime == mtime
}

// Merge copies fingerprints from other into e.
func (e *Entry) Merge(other *Entry) {
	if e.Digests == nil {
		e.Digests = make(map[string]string, len(other.Digests))
	}
	maps.Copy(e.Digests, other.Digests)
	if other.HasPHash {
		e.PHash, e.HasPHash = other.PHash, true
	}
}

// Encode serializes the entry using gob.
func (e *Entry) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(e); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode deserializes data into the entry.
func (e *Entry) Decode(data []byte) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(e)
}

// MakeKey builds the key for an absolute path: <version>\x00<path>.
func MakeKey(path string) []byte {
	return append(KeyPrefix(), path...)
}

// KeyPrefix returns the prefix shared by every key of the current format.
func KeyPrefix() []byte {
	return []byte{byte('0' + FormatVersion), KeySeparator}
}

// ParseKey returns the path part of a key.
func ParseKey(key []byte) string {
	idx := bytes.IndexByte(key, KeySeparator)
	if idx == -1 {
		return string(key)
	}
	return string(key[idx+1:])
}
