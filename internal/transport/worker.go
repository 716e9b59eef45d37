package transport

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/mediavault/mediavault-backend/internal/platform/apperr"
	"github.com/mediavault/mediavault-backend/internal/platform/logger"
)

const (
	popTimeout  = 2 * time.Second
	maxAttempts = 5
)

// Worker drains transition queues and hands each request to the executor.
// One goroutine per queue; handler panics are isolated per message so a
// poisoned request never takes down the loop.
type Worker struct {
	log        *logger.Logger
	rdb        *redis.Client
	dispatcher Dispatcher
	exec       Executor
	queues     []string
}

func NewWorker(log *logger.Logger, rdb *redis.Client, dispatcher Dispatcher, exec Executor, queues []string) *Worker {
	return &Worker{
		log:        log.With("component", "TransitionWorker"),
		rdb:        rdb,
		dispatcher: dispatcher,
		exec:       exec,
		queues:     queues,
	}
}

// Start runs the drain loops until ctx is cancelled.
func (w *Worker) Start(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, queue := range w.queues {
		g.Go(func() error {
			w.drain(ctx, queue)
			return nil
		})
	}
	return g.Wait()
}

func (w *Worker) drain(ctx context.Context, queue string) {
	log := w.log.With("queue", queue)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		res, err := w.rdb.BRPop(ctx, popTimeout, queue).Result()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Warn("brpop failed", "error", err)
			time.Sleep(time.Second)
			continue
		}
		if len(res) != 2 {
			continue
		}

		var req TransitionRequest
		if err := json.Unmarshal([]byte(res[1]), &req); err != nil {
			log.Error("unparsable transition envelope dropped", "error", err)
			continue
		}
		w.handle(ctx, queue, req)
	}
}

func (w *Worker) handle(ctx context.Context, queue string, req TransitionRequest) {
	log := w.log.With(
		"workflow", req.Workflow,
		"subject_id", req.SubjectID,
		"transition", req.Transition,
		"attempt", req.Attempt,
	)

	var err error
	func() {
		defer func() {
			if r := recover(); r != nil {
				log.Error("transition handler panic", "panic", r)
			}
		}()
		err = w.exec.Execute(ctx, req)
	}()
	if err == nil {
		return
	}

	if apperr.IsRetriable(err) && req.Attempt < maxAttempts {
		delay := backoff(req.Attempt)
		log.Warn("retriable transition failure, redelivering", "error", err, "delay", delay)
		req.Attempt++
		req.MessageID = ""
		time.AfterFunc(delay, func() {
			if derr := w.dispatcher.Dispatch(context.Background(), req, queue); derr != nil {
				log.Error("redelivery dispatch failed", "error", derr)
			}
		})
		return
	}

	log.Error("transition failed", "error", err)
}

func backoff(attempt int) time.Duration {
	d := time.Duration(1<<uint(attempt)) * time.Second
	if d > 2*time.Minute {
		d = 2 * time.Minute
	}
	return d
}
