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


package main

import (
	"log"
	"os"

	"github.com/urfave/cli/v2"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "tenderscope",
		Usage: "Ingest public tender listings and search them semantically",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to the YAML configuration file",
				Value:   "tenderscope.yaml",
			},
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Override logging level (debug, info, warn, error)",
			},
		},
		Before: setup,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP API and the scheduled jobs",
				Action: serveCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "addr",
						Usage: "Listen address (overrides server.addr)",
					},
					&cli.BoolFlag{
						Name:  "no-scheduler",
						Usage: "Serve the API without running scheduled jobs",
					},
				},
			},
			{
				Name:   "scrape",
				Usage:  "Run one ingestion cycle against the upstream provider",
				Action: scrapeCommand,
			},
			{
				Name:   "import",
				Usage:  "Run one ingestion cycle over a JSON file of provider records",
				Action: importCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "file",
						Aliases:  []string{"f"},
						Usage:    "Path to a JSON file in the provider's payload shape",
						Required: true,
					},
				},
			},
			{
				Name:   "embed",
				Usage:  "Embed records that have no vector",
				Action: embedCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Records per group (overrides batch.batch_size)",
					},
					&cli.IntFlag{
						Name:  "max-batches",
						Usage: "Groups per run, 0 for no bound (overrides batch.max_batches)",
						Value: -1,
					},
				},
			},
			{
				Name:   "reap",
				Usage:  "Delete vectors of records whose submission deadline has passed",
				Action: reapCommand,
			},
			{
				Name:      "search",
				Usage:     "Run a semantic search",
				ArgsUsage: "QUERY",
				Action:    searchCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of results",
						Value: 10,
					},
					&cli.BoolFlag{
						Name:  "today-only",
						Usage: "Only records published in the last 24 hours",
					},
				},
			},
			{
				Name:   "regenerate",
				Usage:  "Delete vectors and embed every valid record again",
				Action: regenerateCommand,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "stale-only",
						Usage: "Only rebuild vectors whose record text changed",
					},
				},
			},
			{
				Name:   "migrate",
				Usage:  "Change the vector dimension and rebuild every vector",
				Action: migrateCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "dimension",
						Usage: "Target vector dimension",
					},
					&cli.BoolFlag{
						Name:  "resume",
						Usage: "Continue an interrupted migration",
					},
				},
			},
			{
				Name:   "runs",
				Usage:  "List recent ingestion runs",
				Action: runsCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Number of runs to show",
						Value: 20,
					},
				},
			},
			{
				Name:  "config",
				Usage: "Manage the configuration file",
				Subcommands: []*cli.Command{
					{
						Name:   "init",
						Usage:  "Write the default configuration",
						Action: configInitCommand,
						Flags: []cli.Flag{
							&cli.BoolFlag{
								Name:  "force",
								Usage: "Overwrite an existing file",
							},
						},
					},
					{
						Name:   "show",
						Usage:  "Print the effective configuration",
						Action: configShowCommand,
					},
				},
			},
		},
	}
}
