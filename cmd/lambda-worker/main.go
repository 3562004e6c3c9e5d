package main

// Build the Lambda handler binary:
//   GOOS=linux GOARCH=arm64 CGO_ENABLED=0 go build -o bootstrap ./cmd/lambda-worker

import (
	"context"
	"log"
	"sync"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"hojaruta-backend/internal/bootstrap"
	"hojaruta-backend/internal/shared/config"
	"hojaruta-backend/internal/shared/metrics"
	"hojaruta-backend/internal/shared/telemetry"
	"hojaruta-backend/internal/workerproc"
)

var (
	initOnce sync.Once
	initErr  error
	app      *bootstrap.App
)

func initApp() {
	cfg := config.Load()
	if _, err := telemetry.Init(cfg.Env); err != nil {
		log.Printf("telemetry init: %v", err)
	}
	built, err := bootstrap.Build(cfg)
	if err != nil {
		initErr = err
		return
	}
	app = built
}

func handler(ctx context.Context, event events.SQSEvent) (events.SQSEventResponse, error) {
	initOnce.Do(initApp)
	if initErr != nil {
		telemetry.Error("lambda.bootstrap_failed", map[string]any{"error": initErr})
		failures := make([]events.SQSBatchItemFailure, 0, len(event.Records))
		for _, record := range event.Records {
			failures = append(failures, events.SQSBatchItemFailure{ItemIdentifier: record.MessageId})
		}
		return events.SQSEventResponse{BatchItemFailures: failures}, initErr
	}
	return processBatch(ctx, app.Processor, event), nil
}

// processBatch reports only retryable failures. Payloads that can never be
// processed are logged and dropped.
func processBatch(ctx context.Context, p *workerproc.Processor, event events.SQSEvent) events.SQSEventResponse {
	failures := make([]events.SQSBatchItemFailure, 0)
	for _, record := range event.Records {
		metrics.IncWorkerJobsReceived()
		msg, meta, err := workerproc.ParseMessage(record.Body)
		if err != nil {
			telemetry.Error("lambda.worker.unprocessable", map[string]any{
				"sqs_message_id": record.MessageId,
				"body_len":       meta.BodyLen,
				"error":          err.Error(),
			})
			metrics.IncWorkerJobsDeletedUnrecoverable()
			continue
		}
		if err := workerproc.HandleMessage(workerproc.WithParsedMessage(ctx, msg), p, record.Body); err != nil {
			telemetry.Error("lambda.worker.failed", map[string]any{
				"sqs_message_id": record.MessageId,
				"event":          msg.Event,
				"request_id":     msg.RequestID,
				"error":          err.Error(),
			})
			metrics.IncWorkerJobsFailed()
			failures = append(failures, events.SQSBatchItemFailure{ItemIdentifier: record.MessageId})
			continue
		}
		metrics.IncWorkerJobsCompleted()
	}
	return events.SQSEventResponse{BatchItemFailures: failures}
}

func main() {
	lambda.Start(handler)
}
