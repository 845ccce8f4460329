// Copyright 2025 Poiesic Systems
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

package badger

import (
	"encoding/binary"
	"time"
)

const (
	recordPrefix         = "rec:"
	recordDeadlinePrefix = "recdl:"
	recordPublishPrefix  = "recpub:"
	vectorPrefix         = "vec:"
	runPrefix            = "run:"
	runStartPrefix       = "runts:"
	dimensionKey         = "meta:dim"
	migrationKey         = "meta:migration"
)

// makeRecordKey generates a key for a record by natural id.
func makeRecordKey(id string) []byte {
	return []byte(recordPrefix + id)
}

// recordIDFromKey strips the record prefix from a primary key.
func recordIDFromKey(key []byte) string {
	return string(key[len(recordPrefix):])
}

// makeVectorKey generates a key for the vector owned by a record.
func makeVectorKey(recordID string) []byte {
	return []byte(vectorPrefix + recordID)
}

// vectorIDFromKey strips the vector prefix from a vector key.
func vectorIDFromKey(key []byte) string {
	return string(key[len(vectorPrefix):])
}

// makeTimeIndexKey generates a composite key for a time-ordered index.
// Format: prefix + timestamp + id
func makeTimeIndexKey(prefix string, ts time.Time, id string) []byte {
	prefixSize := len(prefix)
	buf := make([]byte, prefixSize+8+len(id))
	offset := copy(buf, prefix)
	// Write in BigEndian order so lexicographic sort works correctly
	binary.BigEndian.PutUint64(buf[offset:], uint64(ts.UnixMicro()))
	offset += 8
	copy(buf[offset:], id)
	return buf
}

// makePartialTimeIndexKey generates a partial key for time range scans.
// Format: prefix + timestamp
func makePartialTimeIndexKey(prefix string, ts time.Time) []byte {
	buf := make([]byte, len(prefix)+8)
	offset := copy(buf, prefix)
	binary.BigEndian.PutUint64(buf[offset:], uint64(ts.UnixMicro()))
	return buf
}

// idFromTimeIndexKey extracts the id from a time index key.
func idFromTimeIndexKey(prefix string, key []byte) string {
	return string(key[len(prefix)+8:])
}

func makeDeadlineKey(deadline time.Time, id string) []byte {
	return makeTimeIndexKey(recordDeadlinePrefix, deadline, id)
}

func makePublishKey(published time.Time, id string) []byte {
	return makeTimeIndexKey(recordPublishPrefix, published, id)
}

func makeRunKey(id string) []byte {
	return []byte(runPrefix + id)
}

func makeRunStartKey(start time.Time, id string) []byte {
	return makeTimeIndexKey(runStartPrefix, start, id)
}

// prefixUpperBound returns the smallest key greater than every key with prefix.
// Used as the seek target for reverse iteration.
func prefixUpperBound(prefix string) []byte {
	return append([]byte(prefix), 0xFF)
}
