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
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/poiesic/docflow"
	"github.com/poiesic/docflow/config"
	"github.com/poiesic/docflow/ingestion"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "docflow",
		Usage: "Ingest insurance documents and extract their benefit summaries",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
			&cli.StringFlag{
				Name:  "env-file",
				Usage: "Load settings from this file instead of ./.env",
			},
			&cli.StringFlag{
				Name:    "data-dir",
				Aliases: []string{"d"},
				Usage:   "Directory holding documents, results and the index (overrides DOCFLOW_DATA_DIR)",
			},
			&cli.StringFlag{
				Name:  "embedding-host",
				Usage: "Embedding service host URL",
			},
			&cli.StringFlag{
				Name:  "embedding-model",
				Usage: "Embedding model name",
			},
			&cli.StringFlag{
				Name:  "extraction-host",
				Usage: "Chat service host URL used for extraction and backfill",
			},
			&cli.StringFlag{
				Name:  "extraction-model",
				Usage: "Chat model name used for extraction and backfill",
			},
			&cli.BoolFlag{
				Name:  "no-extraction",
				Usage: "Only parse and index documents",
			},
			&cli.BoolFlag{
				Name:  "no-rag",
				Usage: "Skip backfilling fields the extraction left empty",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:      "ingest",
				Usage:     "Ingest files and wait for their extraction",
				ArgsUsage: "FILE...",
				Action:    ingestCommand,
				Flags: []cli.Flag{
					typeFlag(),
					&cli.BoolFlag{
						Name:  "no-wait",
						Usage: "Return once the documents are searchable",
					},
				},
			},
			{
				Name:      "ingest-text",
				Usage:     "Ingest text read from stdin under a file name",
				ArgsUsage: "NAME",
				Action:    ingestTextCommand,
				Flags: []cli.Flag{
					typeFlag(),
					&cli.StringFlag{
						Name:  "company",
						Usage: "Company whose prompt config drives backfill (default: DOCFLOW_DEFAULT_COMPANY)",
					},
				},
			},
			{
				Name:      "bulk-ingest",
				Usage:     "Ingest every file in a directory",
				ArgsUsage: "DIR",
				Action:    bulkIngestCommand,
				Flags: []cli.Flag{
					typeFlag(),
					&cli.IntFlag{
						Name:  "count-workers",
						Usage: "Number of files processed at once (overrides DOCFLOW_COUNT_WORKERS)",
					},
					&cli.IntFlag{
						Name:  "report-interval",
						Usage: "Report progress every N files",
						Value: 1,
					},
				},
			},
			{
				Name:      "status",
				Usage:     "Show the phase of a document",
				ArgsUsage: "DOC_ID",
				Action:    statusCommand,
			},
			{
				Name:      "result",
				Usage:     "Print the extraction result of a document",
				ArgsUsage: "DOC_ID",
				Action:    resultCommand,
			},
			{
				Name:      "delete",
				Usage:     "Delete a document everywhere",
				ArgsUsage: "DOC_ID",
				Action:    deleteCommand,
			},
			{
				Name:      "extract-pages",
				Usage:     "Save selected pages of a stored PDF as its benefit summary",
				ArgsUsage: "FILE_NAME",
				Action:    extractPagesCommand,
				Flags: []cli.Flag{
					&cli.IntSliceFlag{
						Name:     "page",
						Aliases:  []string{"p"},
						Usage:    "Page number to keep, starting at 1 (repeatable)",
						Required: true,
					},
				},
			},
			{
				Name:   "list",
				Usage:  "List indexed documents",
				Action: listCommand,
			},
			{
				Name:   "types",
				Usage:  "List document types, or create one",
				Action: typesCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "create",
						Usage: "Create a document type with this title",
					},
				},
			},
			{
				Name:      "approve",
				Usage:     "Mark a document reviewed",
				ArgsUsage: "DOC_ID",
				Action:    approveCommand,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "revoke",
						Usage: "Clear the approval instead",
					},
				},
			},
			{
				Name:   "resume",
				Usage:  "Restart extraction for documents interrupted mid-pass",
				Action: resumeCommand,
			},
			{
				Name:      "search",
				Usage:     "Retrieve the passages most relevant to a query",
				ArgsUsage: "QUERY",
				Action:    searchCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:    "max-hits",
						Aliases: []string{"n"},
						Usage:   "Maximum number of passages",
						Value:   5,
					},
					&cli.StringSliceFlag{
						Name:  "doc",
						Usage: "Restrict the search to this document ID (repeatable)",
					},
				},
			},
			{
				Name:      "reembed",
				Usage:     "Rebuild stored embeddings with the configured embedding model",
				ArgsUsage: "[DOC_ID...]",
				Action:    reembedCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "report-interval",
						Usage: "Report progress every N nodes",
						Value: 100,
					},
				},
			},
		},
	}
}

func typeFlag() cli.Flag {
	return &cli.IntFlag{
		Name:    "type",
		Aliases: []string{"t"},
		Usage:   "Document type ID to file documents under (default: Uncategorized)",
	}
}

// loadConfig reads the environment and applies the global flag overrides.
func loadConfig(c *cli.Context) (*config.Config, error) {
	var envFiles []string
	if f := c.String("env-file"); f != "" {
		envFiles = append(envFiles, f)
	}
	cfg, err := config.Load(envFiles...)
	if err != nil {
		return nil, err
	}

	if v := c.String("data-dir"); v != "" {
		cfg.DataDir = v
	}
	if v := c.String("embedding-host"); v != "" {
		cfg.AI.EmbeddingHost = v
	}
	if v := c.String("embedding-model"); v != "" {
		cfg.AI.EmbeddingModel = v
	}
	if v := c.String("extraction-host"); v != "" {
		cfg.AI.ExtractionHost = v
	}
	if v := c.String("extraction-model"); v != "" {
		cfg.AI.ExtractionModel = v
	}
	if c.Bool("no-extraction") {
		cfg.ExtractionEnabled = false
	}
	if c.Bool("no-rag") {
		cfg.RAGEnabled = false
	}
	if n := c.Int("count-workers"); n != 0 {
		cfg.CountWorkers = n
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func openService(c *cli.Context) (*docflow.Service, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, err
	}
	svc, err := docflow.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open data dir %s: %w", cfg.DataDir, err)
	}
	return svc, nil
}

// commandContext is canceled on interrupt so background extraction stops
// cleanly and can be resumed later.
func commandContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt)
}

func requireArg(c *cli.Context, name string) (string, error) {
	arg := strings.TrimSpace(c.Args().First())
	if arg == "" {
		return "", fmt.Errorf("%s is required", name)
	}
	return arg, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func ingestCommand(c *cli.Context) error {
	if c.NArg() == 0 {
		return fmt.Errorf("at least one file is required")
	}

	svc, err := openService(c)
	if err != nil {
		return err
	}
	defer svc.Close()

	ctx, cancel := commandContext()
	defer cancel()

	var failed int
	for _, path := range c.Args().Slice() {
		res, err := svc.IngestFile(ctx, path, c.Int("type"))
		if err != nil {
			return fmt.Errorf("ingest %s: %w", path, err)
		}
		if !c.Bool("no-wait") && res.Task != nil {
			if err := res.Task.Wait(ctx); err != nil {
				res.Error = err.Error()
			}
			res.Phase, _ = svc.Status(ctx, res.DocID)
		}
		if res.Failed() {
			failed++
		}
		if err := printJSON(c.App.Writer, res); err != nil {
			return err
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d documents failed", failed, c.NArg())
	}
	return nil
}

func ingestTextCommand(c *cli.Context) error {
	name, err := requireArg(c, "file name")
	if err != nil {
		return err
	}
	body, err := io.ReadAll(c.App.Reader)
	if err != nil {
		return fmt.Errorf("read stdin: %w", err)
	}

	svc, err := openService(c)
	if err != nil {
		return err
	}
	defer svc.Close()

	ctx, cancel := commandContext()
	defer cancel()

	up := ingestion.Upload{FileName: name, TypeID: c.Int("type"), Company: c.String("company")}
	res, err := svc.IngestText(ctx, up, string(body))
	if err != nil {
		return err
	}
	if res.Task != nil {
		if err := res.Task.Wait(ctx); err != nil {
			res.Error = err.Error()
		}
		res.Phase, _ = svc.Status(ctx, res.DocID)
	}
	return printJSON(c.App.Writer, res)
}

func bulkIngestCommand(c *cli.Context) error {
	dir, err := requireArg(c, "directory")
	if err != nil {
		return err
	}
	if c.Int("report-interval") <= 0 {
		return fmt.Errorf("report-interval must be greater than 0")
	}

	paths, err := listFiles(dir)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return fmt.Errorf("no files in %s", dir)
	}

	svc, err := openService(c)
	if err != nil {
		return err
	}
	defer svc.Close()

	ctx, cancel := commandContext()
	defer cancel()

	fmt.Fprintf(c.App.ErrWriter, "Directory: %s\n", dir)
	fmt.Fprintf(c.App.ErrWriter, "Files: %d\n", len(paths))
	fmt.Fprintln(c.App.ErrWriter)

	tracker := ingestion.NewProgressTracker(c.App.ErrWriter, len(paths), c.Int("report-interval"))
	tracker.Start()
	report, err := svc.BulkIngest(ctx, paths, ingestion.BulkOptions{TypeID: c.Int("type"), Progress: tracker.Update})
	tracker.Finish()
	if err != nil {
		return fmt.Errorf("bulk ingestion failed: %w", err)
	}

	fmt.Fprintf(c.App.ErrWriter, "Completed: %d, failed: %d, elapsed: %s\n",
		len(report.Documents), len(report.Failures), tracker.Elapsed().Round(time.Millisecond))
	return printJSON(c.App.Writer, report)
}

// listFiles returns the regular, non-hidden files directly inside dir.
func listFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", dir, err)
	}
	var paths []string
	for _, e := range entries {
		if !e.Type().IsRegular() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	sort.Strings(paths)
	return paths, nil
}

func statusCommand(c *cli.Context) error {
	docID, err := requireArg(c, "document id")
	if err != nil {
		return err
	}
	svc, err := openService(c)
	if err != nil {
		return err
	}
	defer svc.Close()

	phase, err := svc.Status(c.Context, docID)
	if err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, phase)
	return nil
}

func resultCommand(c *cli.Context) error {
	docID, err := requireArg(c, "document id")
	if err != nil {
		return err
	}
	svc, err := openService(c)
	if err != nil {
		return err
	}
	defer svc.Close()

	rec, err := svc.Result(c.Context, docID)
	if errors.Is(err, ingestion.ErrStillProcessing) {
		return fmt.Errorf("%s is still processing", docID)
	}
	if err != nil {
		return err
	}
	return printJSON(c.App.Writer, rec)
}

func deleteCommand(c *cli.Context) error {
	docID, err := requireArg(c, "document id")
	if err != nil {
		return err
	}
	svc, err := openService(c)
	if err != nil {
		return err
	}
	defer svc.Close()

	report, err := svc.DeleteWithReport(c.Context, docID)
	if err != nil {
		return err
	}
	if err := printJSON(c.App.Writer, report); err != nil {
		return err
	}
	return report.Err()
}

// extractPagesResponse is what extract-pages prints.
type extractPagesResponse struct {
	OutputPath string `json:"output_path"`
	Pages      []int  `json:"pages"`
}

func extractPagesCommand(c *cli.Context) error {
	name, err := requireArg(c, "file name")
	if err != nil {
		return err
	}
	svc, err := openService(c)
	if err != nil {
		return err
	}
	defer svc.Close()

	selected := c.IntSlice("page")
	out, err := svc.ExtractPages(c.Context, name, selected)
	if err != nil {
		return err
	}
	return printJSON(c.App.Writer, extractPagesResponse{OutputPath: out, Pages: selected})
}

func listCommand(c *cli.Context) error {
	svc, err := openService(c)
	if err != nil {
		return err
	}
	defer svc.Close()

	docs, err := svc.ListIngested(c.Context)
	if err != nil {
		return err
	}
	return printJSON(c.App.Writer, docs)
}

func typesCommand(c *cli.Context) error {
	svc, err := openService(c)
	if err != nil {
		return err
	}
	defer svc.Close()

	if title := strings.TrimSpace(c.String("create")); title != "" {
		t, err := svc.CreateDocumentType(c.Context, title)
		if err != nil {
			return err
		}
		return printJSON(c.App.Writer, t)
	}

	types, err := svc.DocumentTypes(c.Context)
	if err != nil {
		return err
	}
	return printJSON(c.App.Writer, types)
}

func approveCommand(c *cli.Context) error {
	docID, err := requireArg(c, "document id")
	if err != nil {
		return err
	}
	svc, err := openService(c)
	if err != nil {
		return err
	}
	defer svc.Close()

	return svc.SetApproval(c.Context, docID, !c.Bool("revoke"))
}

func resumeCommand(c *cli.Context) error {
	svc, err := openService(c)
	if err != nil {
		return err
	}
	defer svc.Close()

	ctx, cancel := commandContext()
	defer cancel()

	tasks, err := svc.ResumePending(ctx)
	if err != nil {
		return err
	}
	var failed int
	for _, task := range tasks {
		if err := task.Wait(ctx); err != nil {
			slog.Error("extraction failed", "doc_id", task.DocID(), "err", err)
			failed++
		}
	}
	fmt.Fprintf(c.App.Writer, "resumed %d document(s), %d failed\n", len(tasks), failed)
	return nil
}

func setupLogger(c *cli.Context) error {
	levelStr := strings.ToLower(c.String("log-level"))

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}

func searchCommand(c *cli.Context) error {
	query := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
	if query == "" {
		return fmt.Errorf("query is required")
	}
	if c.Int("max-hits") <= 0 {
		return fmt.Errorf("max-hits must be greater than 0")
	}

	svc, err := openService(c)
	if err != nil {
		return err
	}
	defer svc.Close()

	passages, err := svc.Search(c.Context, query, c.StringSlice("doc"), c.Int("max-hits"))
	if err != nil {
		return err
	}
	return printJSON(c.App.Writer, passages)
}

func reembedCommand(c *cli.Context) error {
	if c.Int("report-interval") <= 0 {
		return fmt.Errorf("report-interval must be greater than 0")
	}

	svc, err := openService(c)
	if err != nil {
		return err
	}
	defer svc.Close()

	ctx, cancel := commandContext()
	defer cancel()

	var tracker *ingestion.ProgressTracker
	summary, err := svc.Reembed(ctx, func(done, total int) {
		if tracker == nil {
			tracker = ingestion.NewProgressTracker(c.App.ErrWriter, total, c.Int("report-interval"))
			tracker.Start()
		}
		tracker.Update(done, total)
	}, c.Args().Slice()...)
	if tracker != nil {
		tracker.Finish()
	}
	if err != nil {
		return fmt.Errorf("reembedding failed: %w", err)
	}
	return printJSON(c.App.Writer, summary)
}
