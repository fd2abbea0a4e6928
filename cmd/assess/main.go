// Command assess runs one-off risk assessments from the command line against
// the configured prediction service. Requests are read as JSON lines, one
// assessment request per line, in the same shape POST /api/assess accepts.
//
// Usage:
//
//	echo '{"type":"flood","fields":{...}}' | go run ./cmd/assess -format report
//	go run ./cmd/assess -in requests.jsonl -format json
//	go run ./cmd/assess -models
package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/couchcryptid/disaster-risk-service/internal/adapter/predictor"
	"github.com/couchcryptid/disaster-risk-service/internal/assess"
	"github.com/couchcryptid/disaster-risk-service/internal/config"
	"github.com/couchcryptid/disaster-risk-service/internal/domain"
	"github.com/couchcryptid/disaster-risk-service/internal/observability"
)

type options struct {
	in         string
	format     string
	model      string
	listModels bool
}

func main() {
	var opts options
	flag.StringVar(&opts.in, "in", "-", "JSON lines file of assessment requests, - for stdin")
	flag.StringVar(&opts.format, "format", "summary", "output format: summary, json, or report")
	flag.StringVar(&opts.model, "model", "", "model name for landslide requests that do not name one")
	flag.BoolVar(&opts.listModels, "models", false, "list the model catalog and exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load config: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if code := run(ctx, cfg, opts, os.Stdin, os.Stdout, os.Stderr); code != 0 {
		os.Exit(code)
	}
}

func run(ctx context.Context, cfg *config.Config, opts options, stdin io.Reader, stdout, stderr io.Writer) int {
	switch opts.format {
	case "summary", "json", "report":
	default:
		fmt.Fprintf(stderr, "FATAL: unknown format %q\n", opts.format)
		return 2
	}

	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	metrics := observability.NewUnregisteredMetrics()

	var fallback []domain.ModelDescriptor
	if cfg.CatalogFile != "" {
		var err error
		if fallback, err = config.LoadCatalogFile(cfg.CatalogFile); err != nil {
			fmt.Fprintf(stderr, "FATAL: %v\n", err)
			return 1
		}
	}
	catalog := predictor.NewCatalog(cfg.PredictorBaseURL, cfg.CatalogTimeout, fallback, metrics, logger)

	if opts.listModels {
		for _, m := range catalog.ListModels(ctx) {
			fmt.Fprintf(stdout, "%-24s %s\n", m.Name, m.Description)
		}
		return 0
	}

	client := predictor.NewClient(cfg.PredictorBaseURL, cfg.PredictorLegacyURL, cfg.PredictorTimeout, metrics, logger)
	assessor := assess.New(catalog, client, domain.NewSynthesizer(nil), metrics, logger)

	src, closeSrc, err := openInput(opts.in, stdin)
	if err != nil {
		fmt.Fprintf(stderr, "FATAL: %v\n", err)
		return 1
	}
	defer closeSrc()

	failed := 0
	line := 0
	sc := bufio.NewScanner(src)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}

		in, err := decodeInput([]byte(text))
		if err != nil {
			fmt.Fprintf(stderr, "line %d: %v\n", line, err)
			failed++
			continue
		}
		if in.ModelName == "" {
			in.ModelName = opts.model
		}

		res, err := assessor.Assess(ctx, in)
		if err != nil {
			var verr *domain.ValidationError
			if errors.As(err, &verr) {
				fmt.Fprintf(stderr, "line %d: invalid request: %v\n", line, verr)
			} else {
				fmt.Fprintf(stderr, "line %d: %v\n", line, err)
			}
			failed++
			continue
		}

		if err := write(stdout, opts.format, res); err != nil {
			fmt.Fprintf(stderr, "FATAL: write output: %v\n", err)
			return 1
		}
	}
	if err := sc.Err(); err != nil {
		fmt.Fprintf(stderr, "FATAL: read input: %v\n", err)
		return 1
	}

	if failed > 0 {
		fmt.Fprintf(stderr, "%d of %d requests failed\n", failed, line)
		return 1
	}
	return 0
}

func openInput(path string, stdin io.Reader) (io.Reader, func(), error) {
	if path == "" || path == "-" {
		return stdin, func() {}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open input: %w", err)
	}
	return f, func() { _ = f.Close() }, nil
}

func decodeInput(data []byte) (assess.Input, error) {
	var in assess.Input
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&in); err != nil {
		return assess.Input{}, fmt.Errorf("decode request: %w", err)
	}
	return in, nil
}

func write(w io.Writer, format string, res assess.Result) error {
	switch format {
	case "json":
		return json.NewEncoder(w).Encode(res)
	case "report":
		_, err := fmt.Fprintln(w, res.Report())
		return err
	default:
		simulated := ""
		if res.Prediction.Simulated {
			simulated = " (simulated)"
		}
		_, err := fmt.Fprintf(w, "%-36s %-11s %-12s %s%s\n",
			res.ID, res.Type, res.Classification.Label, res.Prediction.Message, simulated)
		return err
	}
}
