// Package sqsgath streams status events to an SQS result queue.
package sqsgath

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/johnliu0/codematic-executor/api"
)

type sqsSink struct {
	sqsClient *sqs.Client
	queueUrl  string
}

// New loads the default AWS config and returns a sink bound to the given
// queue url.
func New(ctx context.Context, queueUrl string) (*sqsSink, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("unable to load AWS SDK config: %w", err)
	}

	return &sqsSink{
		sqsClient: sqs.NewFromConfig(cfg),
		queueUrl:  queueUrl,
	}, nil
}

func (s *sqsSink) Publish(ev api.StatusEvent) {
	b, err := json.Marshal(ev)
	if err != nil {
		slog.Warn("failed to marshal status event", "error", err)
		return
	}

	_, err = s.sqsClient.SendMessage(context.Background(), &sqs.SendMessageInput{
		QueueUrl:    aws.String(s.queueUrl),
		MessageBody: aws.String(string(b)),
	})
	if err != nil {
		slog.Warn("failed to send status event to SQS", "error", err)
	}
}
