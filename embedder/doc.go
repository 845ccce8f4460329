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


// Package embedder derives one embedding vector per valid record.
//
// BatchEmbedder selects records that have no vector and whose submission
// deadline is open, embeds them group by group with one provider call per
// group, and stores the results. Regenerator rebuilds vectors after the text
// or model changed, and Migrator moves the vector store to a new dimension
// through persisted, resumable phases.
package embedder
