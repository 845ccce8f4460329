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

package storage

import (
	"fmt"

	mus "github.com/mus-format/mus-go"
	"github.com/mus-format/mus-go/varint"
	"github.com/poiesic/tenderscope/core"
)

func marshal[T any](ser mus.Serializer[T], v T) []byte {
	buf := make([]byte, ser.Size(v))
	ser.Marshal(v, buf)
	return buf
}

func unmarshal[T any](ser mus.Serializer[T], data []byte) (*T, error) {
	v, _, err := ser.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return &v, nil
}

func MarshalRecord(record *core.Record) []byte {
	return marshal(core.RecordMUS, *record)
}

func UnmarshalRecord(data []byte) (*core.Record, error) {
	return unmarshal(core.RecordMUS, data)
}

func MarshalVector(vector *core.EmbeddingVector) []byte {
	return marshal(core.VectorMUS, *vector)
}

func UnmarshalVector(data []byte) (*core.EmbeddingVector, error) {
	return unmarshal(core.VectorMUS, data)
}

func MarshalRun(run *core.IngestionRun) []byte {
	return marshal(core.RunMUS, *run)
}

func UnmarshalRun(data []byte) (*core.IngestionRun, error) {
	return unmarshal(core.RunMUS, data)
}

func MarshalMigrationState(state *core.MigrationState) []byte {
	return marshal(core.MigrationStateMUS, *state)
}

func UnmarshalMigrationState(data []byte) (*core.MigrationState, error) {
	return unmarshal(core.MigrationStateMUS, data)
}

func MarshalDimension(dim int) []byte {
	return marshal[int](varint.PositiveInt, dim)
}

func UnmarshalDimension(data []byte) (int, error) {
	dim, err := unmarshal[int](varint.PositiveInt, data)
	if err != nil {
		return 0, err
	}
	return *dim, nil
}
