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


// Package search answers semantic and keyword queries over stored records.
//
// Engine embeds the query text and ranks stored vectors by cosine similarity,
// keeping only records whose submission deadline is open and, on request,
// records published within the last 24 hours. KeywordIndex is an in-memory
// full-text index over record titles, organizations and references used to
// filter record listings.
package search
