package services

import (
	"context"
	"fmt"
	"time"
)

// PollPolicy bounds how long a document may stay in PROCESSING.
type PollPolicy struct {
	Interval    time.Duration
	MaxAttempts int
}

func DefaultPollPolicy() PollPolicy {
	return PollPolicy{Interval: 2 * time.Second, MaxAttempts: 150}
}

// awaitReady polls while doc is PROCESSING. A FAILED document is an
// EvaluationError; running out of attempts is ErrPollTimeout.
func awaitReady(ctx context.Context, client EvaluatorClient, doc RemoteDocument, p PollPolicy) (RemoteDocument, error) {
	attempts := max(p.MaxAttempts, 1)

	for i := 0; doc.State == DocumentProcessing; i++ {
		if i >= attempts {
			return doc, fmt.Errorf("%w: %s still processing after %d polls", ErrPollTimeout, doc.Name, attempts)
		}
		if err := waitFor(ctx, p.Interval); err != nil {
			return doc, fmt.Errorf("context cancelled: %w", err)
		}

		next, err := client.GetDocument(ctx, doc.Name)
		if err != nil {
			return doc, err
		}
		doc = next
	}

	if doc.State == DocumentFailed {
		return doc, &EvaluationError{Op: "process document", Err: fmt.Errorf("document %s is in FAILED state", doc.Name)}
	}
	return doc, nil
}
