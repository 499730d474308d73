package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dgallion1/booknest/internal/config"
	"github.com/dgallion1/booknest/internal/parser"
	"github.com/dgallion1/booknest/internal/transform"
)

var (
	// ErrQueueFull is returned by Submit when no queue slot is free.
	ErrQueueFull = errors.New("job queue is full")
	// ErrStopped is returned by Submit once Stop has been called.
	ErrStopped = errors.New("orchestrator is stopped")
)

// Deps are the collaborators every worker shares.
type Deps struct {
	Extractor   *parser.Extractor
	Transformer Transformer
	Renderer    Renderer
	// Results may be nil, which disables persistence and the summary cache.
	Results ResultStore
}

// Settings are the pipeline knobs.
type Settings struct {
	WorkerCount        int
	MaxQueueSize       int
	JobTTL             time.Duration
	TranslateWorkers   int
	TranslateChunkSize int
	Summarizer         SummarizerOptions
	OutputDir          string
}

// SettingsFromConfig maps the service configuration onto pipeline settings.
func SettingsFromConfig(cfg config.Config) Settings {
	return Settings{
		WorkerCount:        cfg.WorkerCount,
		MaxQueueSize:       cfg.MaxQueueSize,
		JobTTL:             cfg.JobTTL,
		TranslateWorkers:   cfg.TranslateWorkers,
		TranslateChunkSize: cfg.TranslateChunkSize,
		Summarizer: SummarizerOptions{
			Retry: transform.Retrier{
				Attempts:   cfg.RetryAttempts,
				Wait:       cfg.RetryWait,
				ShortDelay: cfg.RetryShortDelay,
			},
			Throttle: transform.Throttle{
				Every: cfg.CooldownEvery,
				Pause: cfg.CooldownPause,
			},
			Threshold:     cfg.LargeDocWords,
			WindowSize:    cfg.SummaryChunkSize,
			WindowOverlap: cfg.SummaryChunkOverlap,
		},
		OutputDir: cfg.OutputDir(),
	}
}

// Orchestrator owns the job queue and the worker goroutines draining it.
type Orchestrator struct {
	jobs     *JobStore
	queue    chan *Job
	deps     Deps
	settings Settings
	log      *slog.Logger

	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopOnce sync.Once

	mu      sync.Mutex // guards stopped and sends on queue
	stopped bool
}

func NewOrchestrator(settings Settings, deps Deps, log *slog.Logger) *Orchestrator {
	if settings.WorkerCount <= 0 {
		settings.WorkerCount = 1
	}
	if settings.MaxQueueSize <= 0 {
		settings.MaxQueueSize = 1
	}
	if settings.JobTTL <= 0 {
		settings.JobTTL = time.Hour
	}
	return &Orchestrator{
		jobs:     NewJobStore(settings.JobTTL),
		queue:    make(chan *Job, settings.MaxQueueSize),
		deps:     deps,
		settings: settings,
		log:      log,
	}
}

// Start launches worker goroutines.
func (o *Orchestrator) Start(ctx context.Context) {
	workerCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel

	for range o.settings.WorkerCount {
		o.wg.Add(1)
		go func() {
			defer o.wg.Done()
			w := NewWorker(o.deps, o.settings, o.log)
			for {
				select {
				case <-workerCtx.Done():
					return
				case job, ok := <-o.queue:
					if !ok {
						return
					}
					w.Process(workerCtx, job)
				}
			}
		}()
	}

	// Start job store cleanup.
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-workerCtx.Done():
				return
			case <-ticker.C:
				o.jobs.Cleanup()
			}
		}
	}()
}

// Stop cancels running jobs and waits for the workers to exit.
func (o *Orchestrator) Stop() {
	o.stopOnce.Do(func() {
		if o.cancel != nil {
			o.cancel()
		}
		o.mu.Lock()
		o.stopped = true
		close(o.queue)
		o.mu.Unlock()
		o.wg.Wait()
	})
}

// Submit queues a new job for processing.
func (o *Orchestrator) Submit(job *Job) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.stopped {
		return ErrStopped
	}

	o.jobs.Put(job)
	select {
	case o.queue <- job:
		return nil
	default:
		job.AddError("queue full")
		job.SetStatus(StatusFailed, "queue_full")
		return fmt.Errorf("%w (%d)", ErrQueueFull, o.settings.MaxQueueSize)
	}
}

// GetJob returns a job by ID.
func (o *Orchestrator) GetJob(id string) *Job {
	return o.jobs.Get(id)
}

// Jobs returns snapshots of the jobs still held in memory.
func (o *Orchestrator) Jobs() []JobSnapshot {
	return o.jobs.Snapshots()
}

// ForgetJob drops a job from memory. Running jobs keep running.
func (o *Orchestrator) ForgetJob(id string) {
	o.jobs.Delete(id)
}

// QueueDepth returns current queue depth.
func (o *Orchestrator) QueueDepth() int {
	return len(o.queue)
}
