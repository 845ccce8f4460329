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
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/poiesic/tenderscope/core"
)

// flexString decodes JSON strings, numbers and booleans as text.
type flexString string

func (s *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*s = flexString(v)
		return nil
	}
	*s = flexString(data)
	return nil
}

func (s *flexString) ptr() *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(string(*s))
	return &v
}

func (s *flexString) text() string {
	if p := s.ptr(); p != nil {
		return *p
	}
	return ""
}

// item is one listing in the provider's payload. Pointer fields are nil when
// the key is absent or null.
type item struct {
	ID                 *flexString `json:"tenderId"`
	Title              *flexString `json:"tenderName"`
	Organization       *flexString `json:"agencyName"`
	Category           *flexString `json:"tenderTypeName"`
	Activities         *flexString `json:"mainActivity"`
	Duration           *flexString `json:"tenderDuration"`
	ReferenceNumber    *flexString `json:"tenderNumber"`
	Price              *flexString `json:"price"`
	Location           *flexString `json:"city"`
	URL                *flexString `json:"url"`
	PublishedAt        *flexString `json:"submitionDate"`
	InquiryDeadline    *flexString `json:"lastEnqueryDate"`
	SubmissionDeadline *flexString `json:"lastOfferPresentationDate"`
	OpeningAt          *flexString `json:"openingDate"`
}

// decodeItems accepts {"data":[...]} or a bare array.
func decodeItems(body []byte) ([]item, error) {
	body = bytes.TrimSpace(body)
	if len(body) > 0 && body[0] == '[' {
		var items []item
		if err := json.Unmarshal(body, &items); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrDecode, err)
		}
		return items, nil
	}

	var wrapped struct {
		Data *[]item `json:"data"`
	}
	if err := json.Unmarshal(body, &wrapped); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	if wrapped.Data == nil {
		return nil, fmt.Errorf("%w: no data field", ErrDecode)
	}
	return *wrapped.Data, nil
}

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// mapper converts provider items into raw records.
type mapper struct {
	baseURL     string
	urlTemplate string
	location    *time.Location
	logger      *slog.Logger
}

func (m *mapper) toRaw(it item) *core.RawRecord {
	id := it.ID.text()
	raw := &core.RawRecord{
		ID:                 id,
		Title:              it.Title.text(),
		Organization:       orUnknown(it.Organization.text()),
		Category:           orUnknown(it.Category.text()),
		SourceURL:          it.URL.text(),
		ReferenceNumber:    it.ReferenceNumber.ptr(),
		Activities:         it.Activities.ptr(),
		Duration:           it.Duration.ptr(),
		Price:              it.Price.ptr(),
		Location:           it.Location.ptr(),
		PublishedAt:        m.parseDate(id, "submitionDate", it.PublishedAt),
		InquiryDeadline:    m.parseDate(id, "lastEnqueryDate", it.InquiryDeadline),
		SubmissionDeadline: m.parseDate(id, "lastOfferPresentationDate", it.SubmissionDeadline),
		OpeningAt:          m.parseDate(id, "openingDate", it.OpeningAt),
	}
	if raw.SourceURL == "" && raw.ID != "" && m.urlTemplate != "" {
		raw.SourceURL = m.detailURL(raw.ID)
	}
	return raw
}

func (m *mapper) detailURL(id string) string {
	r := strings.NewReplacer("{base}", strings.TrimRight(m.baseURL, "/"), "{id}", id)
	return r.Replace(m.urlTemplate)
}

// parseDate returns nil for absent, empty or unparseable values.
func (m *mapper) parseDate(id, field string, v *flexString) *time.Time {
	s := v.text()
	if s == "" {
		return nil
	}
	loc := m.location
	if loc == nil {
		loc = time.UTC
	}
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			t = t.UTC()
			return &t
		}
	}
	m.logger.Warn("unparseable date", "record_id", id, "field", field, "value", s)
	return nil
}

func orUnknown(s string) string {
	if s == "" {
		return "Unknown"
	}
	return s
}
