// Package daemon wires the request reader, the job queue and the worker
// pool into the resident process.
package daemon

import (
	"bufio"
	"context"
	"errors"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/muesli/cancelreader"
	"golang.org/x/sync/errgroup"

	"github.com/glottech/sayd/internal/config"
	"github.com/glottech/sayd/internal/engine"
	"github.com/glottech/sayd/internal/pipeline"
	"github.com/glottech/sayd/internal/protocol"
	"github.com/glottech/sayd/internal/queue"
)

const (
	scanBufSize = 64 * 1024
	scanMaxLine = 1024 * 1024
)

// Daemon reads newline-delimited requests from its input, fans them out to
// a fixed worker pool and shuts down gracefully on EOF or a signal.
// In-flight and already queued requests are finished before Run returns.
type Daemon struct {
	cfg      config.Config
	engine   engine.Engine
	pipe     *pipeline.Pipeline
	queue    *queue.Queue
	reporter *protocol.Reporter
	logger   *log.Logger
	input    io.Reader

	shutdown atomic.Bool
	nextID   atomic.Uint64
}

// New assembles a daemon reading requests from input.
func New(cfg config.Config, eng engine.Engine, pipe *pipeline.Pipeline, reporter *protocol.Reporter, logger *log.Logger, input io.Reader) *Daemon {
	return &Daemon{
		cfg:      cfg,
		engine:   eng,
		pipe:     pipe,
		queue:    queue.New(),
		reporter: reporter,
		logger:   logger,
		input:    input,
	}
}

// Run blocks until the input closes or SIGINT/SIGTERM arrives, then drains
// the queue and returns.
func (d *Daemon) Run(ctx context.Context) error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	reader, err := cancelreader.NewReader(d.input)
	if err != nil {
		return err
	}

	var workers sync.WaitGroup
	for i := 0; i < d.cfg.MaxConcurrency; i++ {
		workers.Add(1)
		go func() {
			defer workers.Done()
			d.work(ctx)
		}()
	}
	d.logger.Debug("worker pool started", "workers", d.cfg.MaxConcurrency)

	readerDone := make(chan struct{})
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(readerDone)
		// A broken input stream ends intake like EOF does: report it,
		// drain what was queued, and still exit cleanly.
		if rerr := d.readLoop(reader); rerr != nil {
			d.logger.Error("input read failed", "err", rerr)
			d.reporter.Report(rerr)
		}
		return nil
	})
	g.Go(func() error {
		select {
		case sig := <-sigCh:
			d.logger.Info("received signal, shutting down", "signal", sig)
		case <-readerDone:
			d.logger.Debug("input closed, shutting down")
		case <-gctx.Done():
		}
		d.beginShutdown(reader)
		return nil
	})

	err = g.Wait()
	d.beginShutdown(reader)
	workers.Wait()

	if cerr := d.engine.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}

// beginShutdown is idempotent: the first caller cancels the blocked input
// read and wakes every idle worker so they can observe the flag.
func (d *Daemon) beginShutdown(reader cancelreader.CancelReader) {
	if !d.shutdown.CompareAndSwap(false, true) {
		return
	}
	reader.Cancel()
	d.queue.Wake()
}

func (d *Daemon) readLoop(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, scanBufSize), scanMaxLine)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		req, err := protocol.ParseRequest([]byte(line))
		if err != nil {
			d.logger.Warn("rejected request", "err", err)
			d.reporter.Report(err)
			continue
		}
		if d.shutdown.Load() {
			return nil
		}
		req.ID = d.nextID.Add(1) - 1
		d.logger.Debug("queued request", "id", req.ID, "format", req.Format)
		d.queue.Push(queue.Item{Req: req})
	}

	if err := scanner.Err(); err != nil && !errors.Is(err, cancelreader.ErrCanceled) {
		return err
	}
	return nil
}

func (d *Daemon) work(ctx context.Context) {
	for {
		item, ok := d.queue.Pop(&d.shutdown)
		if !ok {
			return
		}
		d.pipe.Process(ctx, item.Req)
	}
}
