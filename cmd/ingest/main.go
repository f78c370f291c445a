// Command ingest watches a directory of career-guidance documents and
// publishes full-corpus snapshots over NATS whenever the set changes. The
// API rebuilds its corpus version from each snapshot.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/PathwiseAI/pathwise-engine/engine/corpus"
	"github.com/PathwiseAI/pathwise-engine/engine/domain"
	"github.com/PathwiseAI/pathwise-engine/pkg/natsutil"
)

func main() {
	var (
		dataDir  = flag.String("dir", "./data", "directory of .txt/.md documents")
		natsURL  = flag.String("nats", nats.DefaultURL, "NATS server URL")
		interval = flag.Duration("interval", 30*time.Second, "scan interval, 0 for one-shot")
		check    = flag.Bool("check", false, "build the corpus in-process and exit, no publish")
	)
	flag.Parse()

	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if *check {
		if err := smokeBuild(ctx, *dataDir, log); err != nil {
			log.Error("corpus check failed", "error", err)
			os.Exit(1)
		}
		return
	}

	nc, err := nats.Connect(*natsURL)
	if err != nil {
		log.Error("nats connect failed", "error", err)
		os.Exit(1)
	}
	defer nc.Close()
	log.Info("connected to NATS", "url", *natsURL)

	var lastFingerprint string

	scan := func() {
		docs, err := corpus.LoadDir(*dataDir)
		if err != nil {
			log.Error("load documents failed", "dir", *dataDir, "error", err)
			return
		}
		if len(docs) == 0 {
			log.Warn("no documents found", "dir", *dataDir)
			return
		}

		fp := fingerprint(docs)
		if fp == lastFingerprint {
			return
		}

		if err := natsutil.Publish(ctx, nc, corpus.SnapshotSubject, corpus.Snapshot{Documents: docs}); err != nil {
			log.Error("publish snapshot failed", "error", err)
			return
		}
		lastFingerprint = fp
		log.Info("corpus snapshot published", "docs", len(docs))
	}

	scan()
	if *interval <= 0 {
		return
	}

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info("shutting down")
			return
		case <-ticker.C:
			scan()
		}
	}
}

// smokeBuild chunks and indexes the documents locally, lexical-only, to
// validate a corpus directory before pointing the API at it.
func smokeBuild(ctx context.Context, dir string, log *slog.Logger) error {
	docs, err := corpus.LoadDir(dir)
	if err != nil {
		return err
	}
	builder := corpus.NewBuilder(nil, corpus.DefaultBuildOptions(), log)
	v, err := builder.Build(ctx, "check", docs)
	if err != nil {
		return err
	}
	log.Info("corpus check ok", "documents", len(docs), "chunks", v.Len())
	return nil
}

// fingerprint summarizes the document set so unchanged directories don't
// trigger republishing.
func fingerprint(docs []domain.DocumentInput) string {
	var fp string
	for _, d := range docs {
		fp += fmt.Sprintf("%s:%d;", d.SourcePath, len(d.Text))
	}
	return fp
}
