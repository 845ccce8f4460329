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
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/poiesic/tenderscope/core"
)

// FileFetcher serves records from a JSON file in the provider's payload shape.
// The file is read once, on the first Fetch.
type FileFetcher struct {
	path   string
	mapper *mapper

	once    sync.Once
	records []*core.RawRecord
	err     error
}

var _ Fetcher = (*FileFetcher)(nil)

// NewFileFetcher creates a fetcher over the file at path. Source URLs missing
// from the file are built with urlTemplate against baseURL.
func NewFileFetcher(path, baseURL, urlTemplate string, logger *slog.Logger) *FileFetcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileFetcher{
		path: path,
		mapper: &mapper{
			baseURL:     baseURL,
			urlTemplate: urlTemplate,
			location:    time.UTC,
			logger:      logger.With("component", "file-fetcher"),
		},
	}
}

func (f *FileFetcher) load() {
	body, err := os.ReadFile(f.path)
	if err != nil {
		f.err = err
		return
	}
	items, err := decodeItems(body)
	if err != nil {
		f.err = err
		return
	}
	f.records = make([]*core.RawRecord, 0, len(items))
	for _, it := range items {
		f.records = append(f.records, f.mapper.toRaw(it))
	}
}

// Fetch returns the requested slice of the file's records.
func (f *FileFetcher) Fetch(ctx context.Context, page Page) ([]*core.RawRecord, error) {
	if err := page.validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.once.Do(f.load)
	if f.err != nil {
		return nil, f.err
	}

	start := (page.Number - 1) * page.Size
	if start >= len(f.records) {
		return []*core.RawRecord{}, nil
	}
	end := min(start+page.Size, len(f.records))
	return f.records[start:end], nil
}
