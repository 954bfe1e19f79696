package worker

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/psptunes/psptunes/internal/constants"
	"github.com/psptunes/psptunes/internal/downloader"
	"github.com/psptunes/psptunes/internal/logger"
)

// Job is a queued download request for one video identifier.
type Job struct {
	ID         string
	VideoID    string
	EnqueuedAt time.Time
}

// Pool runs downloads in the background so request handlers can return a
// placeholder page immediately. It also owns the periodic cache sweep.
type Pool struct {
	Downloader    *downloader.Downloader
	Janitor       *downloader.Janitor
	MaxConcurrent int

	log    *logger.Logger
	jobs   chan Job
	sweep  chan struct{}
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

func NewPool(dl *downloader.Downloader, jan *downloader.Janitor, log *logger.Logger) *Pool {
	if log == nil {
		log = logger.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		Downloader:    dl,
		Janitor:       jan,
		MaxConcurrent: constants.DefaultConcurrency,
		log:           log.WithComponent("worker"),
		jobs:          make(chan Job, 64),
		sweep:         make(chan struct{}, 1),
		ctx:           ctx,
		cancel:        cancel,
	}
}

func (p *Pool) Start() {
	p.log.Info("Starting worker pool", "concurrency", p.MaxConcurrent)
	p.wg.Add(1)
	go p.processJobs()
	p.wg.Add(1)
	go p.runJanitor()
}

func (p *Pool) Stop() {
	p.log.Info("Stopping worker pool")
	p.cancel()
	p.wg.Wait()
}

// Submit enqueues a background download for videoID. Returns false when a
// download for the identifier is already in flight or the queue is full.
// Duplicate submissions of a queued identifier are allowed; the extra job
// lands on the downloader's cache-hit short circuit.
func (p *Pool) Submit(videoID string) bool {
	if p.Downloader.Locks().InProgress(videoID) {
		return false
	}
	job := Job{
		ID:         uuid.New().String(),
		VideoID:    videoID,
		EnqueuedAt: time.Now(),
	}
	select {
	case p.jobs <- job:
		p.log.Info("Job enqueued", "job", job.ID, "video_id", videoID)
		return true
	default:
		p.log.Warn("Job queue full", "video_id", videoID)
		return false
	}
}

// TriggerSweep requests a cache sweep without blocking. Duplicate requests
// while one is pending are coalesced.
func (p *Pool) TriggerSweep() {
	select {
	case p.sweep <- struct{}{}:
	default:
	}
}

func (p *Pool) processJobs() {
	defer p.wg.Done()

	sem := make(chan struct{}, p.MaxConcurrent)
	for {
		select {
		case <-p.ctx.Done():
			return
		case job := <-p.jobs:
			sem <- struct{}{}
			p.wg.Add(1)
			go func(j Job) {
				defer p.wg.Done()
				defer func() { <-sem }()
				p.runJob(p.ctx, j)
			}(job)
		}
	}
}

func (p *Pool) runJob(ctx context.Context, job Job) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error("Panic in job", "job", job.ID, "video_id", job.VideoID, "panic", r)
		}
	}()

	log := p.log.WithVideo(job.VideoID)
	log.Info("Running job", "job", job.ID, "queued_for", time.Since(job.EnqueuedAt).Round(time.Millisecond))

	ctx, cancel := context.WithTimeout(ctx, constants.FetchTimeout)
	defer cancel()

	path, err := p.Downloader.Download(ctx, job.VideoID, nil)
	if err != nil {
		log.Error("Job failed", "job", job.ID, "error", err)
		return
	}
	log.Info("Job finished", "job", job.ID, "file", path)
}

func (p *Pool) runJanitor() {
	defer p.wg.Done()

	ticker := time.NewTicker(constants.JanitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			p.Janitor.Sweep()
		case <-p.sweep:
			p.Janitor.Sweep()
		}
	}
}
