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

import "time"

// Config holds settings for the HTTP fetcher.
type Config struct {
	// BaseURL is the provider origin, e.g. "https://tenders.etimad.sa".
	BaseURL string `yaml:"base_url"`

	// Path is the listing endpoint below BaseURL.
	Path string `yaml:"path"`

	// DetailURLTemplate builds a record's source URL when the payload has none.
	// "{base}" is replaced by BaseURL and "{id}" by the record id.
	DetailURLTemplate string `yaml:"detail_url_template"`

	// PageSize is the number of records requested per page.
	PageSize int `yaml:"page_size"`

	// MaxPages bounds the number of pages read per ingestion cycle.
	MaxPages int `yaml:"max_pages"`

	// Timeout bounds each request.
	Timeout time.Duration `yaml:"timeout"`

	// RequestsPerSecond and Burst configure the limiter between page requests.
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`

	// UserAgent is sent with every request.
	UserAgent string `yaml:"user_agent"`

	// TimeZone interprets provider dates that carry no offset.
	TimeZone string `yaml:"time_zone"`
}

// DefaultConfig returns settings for the public visitor endpoint.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:           "https://tenders.etimad.sa",
		Path:              "/Tender/AllSupplierTendersForVisitorAsync",
		DetailURLTemplate: "{base}/Tender/DetaielsForVisitors?StenderID={id}",
		PageSize:          300,
		MaxPages:          1,
		Timeout:           30 * time.Second,
		RequestsPerSecond: 1,
		Burst:             1,
		UserAgent:         "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/96.0.4664.110 Safari/537.36",
		TimeZone:          "UTC",
	}
}
