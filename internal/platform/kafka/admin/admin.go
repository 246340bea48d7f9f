// Package admin creates the topics the worker consumes and produces.
package admin

import (
	"context"
	"errors"
	"fmt"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
)

type TopicSpec struct {
	Partitions        int32
	ReplicationFactor int16
}

// EnsureTopics creates every missing topic. Topics that already exist are
// left as they are.
func EnsureTopics(ctx context.Context, client *kgo.Client, spec TopicSpec, topics ...string) error {
	if len(topics) == 0 {
		return nil
	}
	if spec.Partitions <= 0 {
		spec.Partitions = 1
	}
	if spec.ReplicationFactor <= 0 {
		spec.ReplicationFactor = 1
	}
	adm := kadm.NewClient(client)
	resps, err := adm.CreateTopics(ctx, spec.Partitions, spec.ReplicationFactor, nil, topics...)
	if err != nil {
		return fmt.Errorf("create topics: %w", err)
	}
	var errs []error
	for _, r := range resps.Sorted() {
		if r.Err == nil || errors.Is(r.Err, kerr.TopicAlreadyExists) {
			continue
		}
		errs = append(errs, fmt.Errorf("topic %s: %w", r.Topic, r.Err))
	}
	return errors.Join(errs...)
}
