package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dd32/crawl-a-million-miles/pkg/classifier"
	"github.com/dd32/crawl-a-million-miles/pkg/domain/entity"
	"github.com/dd32/crawl-a-million-miles/pkg/domain/repository"
	"github.com/dd32/crawl-a-million-miles/pkg/domain/service"
	"github.com/dd32/crawl-a-million-miles/pkg/stats"
)

var (
	errDispatchCanceled = errors.New("canceled before dispatch (ECANCELED)")
	errStreamUnfinished = errors.New("stream ended without a terminal event (EOF)")
)

// worker fetches and classifies a single domain. Failures never escape a
// task; they are classified and counted like any other outcome.
type worker struct {
	scheme     string
	streaming  bool
	transport  service.Transport
	classifier *classifier.Classifier
	aggregator *stats.Aggregator
	writer     repository.ResultWriter
	logger     *slog.Logger
}

func (w *worker) process(ctx context.Context, task entity.FetchTask) {
	url := fmt.Sprintf("%s://%s/", w.scheme, task.Domain)

	var (
		result *entity.ClassificationResult
		err    error
	)
	if w.streaming {
		result, err = w.stream(ctx, url)
	} else {
		result, err = w.buffered(ctx, url)
	}

	if err != nil {
		w.fail(task, task.DispatchedAt, err.Error())
		return
	}
	w.succeed(task, result)
}

func (w *worker) buffered(ctx context.Context, url string) (*entity.ClassificationResult, error) {
	resp, err := w.transport.Get(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	result := w.classifier.Classify(resp.StatusCode, resp.Header, resp.Body, resp.ContentLength, resp.Truncated)
	return &result, nil
}

func (w *worker) stream(ctx context.Context, url string) (*entity.ClassificationResult, error) {
	resp, err := w.transport.Stream(ctx, url, nil)
	if err != nil {
		return nil, err
	}

	state := w.classifier.NewStream(resp.StatusCode, resp.Header, resp.ContentLength)
	resp.Pipe(state)
	if err := state.Err(); err != nil {
		return nil, err
	}
	if state.Result() == nil {
		return nil, errStreamUnfinished
	}
	return state.Result(), nil
}

func (w *worker) succeed(task entity.FetchTask, result *entity.ClassificationResult) {
	w.aggregator.RecordResult(result)
	w.logger.Info("fetched",
		slog.String("domain", task.Domain),
		slog.Int("status", result.StatusCode),
		slog.String("verdict", string(result.Verdict)),
		slog.String("generator", result.Generator),
		slog.Int64("bytes", result.Bytes),
		slog.Bool("truncated", result.Truncated),
	)
	w.write(&entity.Outcome{
		Domain:    task.Domain,
		Result:    result,
		Duration:  time.Since(task.DispatchedAt).Milliseconds(),
		Timestamp: time.Now(),
	})
}

func (w *worker) fail(task entity.FetchTask, started time.Time, message string) {
	record := classifier.ClassifyFailure(task.Domain, message)
	w.aggregator.RecordFailure(&record)
	w.logger.Info("fetch failed",
		slog.String("domain", task.Domain),
		slog.String("error", record.Message),
		slog.String("reason", record.Reason),
	)
	w.write(&entity.Outcome{
		Domain:    task.Domain,
		Failure:   &record,
		Duration:  time.Since(started).Milliseconds(),
		Timestamp: time.Now(),
	})
}

func (w *worker) write(outcome *entity.Outcome) {
	if w.writer == nil {
		return
	}
	if err := w.writer.Write(outcome); err != nil {
		w.logger.Warn("failed to write result",
			slog.String("domain", outcome.Domain),
			slog.Any("error", err),
		)
	}
}
