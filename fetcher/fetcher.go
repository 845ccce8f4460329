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


package fetcher

import (
	"context"
	"fmt"

	"github.com/poiesic/tenderscope/core"
)

// Page selects one slice of the upstream listing.
type Page struct {
	Number int // 1-based
	Size   int
	Query  string
}

func (p Page) validate() error {
	if p.Number < 1 || p.Size < 1 {
		return fmt.Errorf("%w: number %d, size %d", ErrInvalidPage, p.Number, p.Size)
	}
	return nil
}

// Fetcher returns raw records from an upstream source.
// Implementations must be safe for concurrent use.
type Fetcher interface {
	// Fetch returns the records on one page. A short page means there are no
	// further pages.
	Fetch(ctx context.Context, page Page) ([]*core.RawRecord, error)
}

// FetchAll reads pages of pageSize until a short page or maxPages pages.
// Records already returned are kept when a later page fails; the error is
// still reported.
func FetchAll(ctx context.Context, f Fetcher, pageSize, maxPages int) ([]*core.RawRecord, error) {
	if maxPages < 1 {
		maxPages = 1
	}

	var all []*core.RawRecord
	for number := 1; number <= maxPages; number++ {
		records, err := f.Fetch(ctx, Page{Number: number, Size: pageSize})
		if err != nil {
			return all, fmt.Errorf("page %d: %w", number, err)
		}
		all = append(all, records...)
		if len(records) < pageSize {
			break
		}
	}
	return all, nil
}
