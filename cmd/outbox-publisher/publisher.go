package main

import (
	"context"
	"errors"

	gcppubsub "cloud.google.com/go/pubsub/v2"
)

type publisherFactory func(topic string) publisher

type publisher interface {
	Publish(context.Context, *gcppubsub.Message) publishResult
}

type publishResult interface {
	Get(context.Context) error
}

// gcpPublishers adapts the client's per-topic publishers, which the client
// shares across calls.
func gcpPublishers(client pubSubClient) publisherFactory {
	return func(topic string) publisher {
		p := client.Publisher(topic)
		if p == nil {
			return nil
		}
		return &orderedPublisher{p: p}
	}
}

type orderedPublisher struct {
	p *gcppubsub.Publisher
}

func (o *orderedPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	return &orderedResult{
		res:         o.p.Publish(ctx, msg),
		resume:      o.p.ResumePublish,
		orderingKey: msg.OrderingKey,
	}
}

type orderedResult struct {
	res         *gcppubsub.PublishResult
	resume      func(key string)
	orderingKey string
}

// Get waits for the server ack. A failed ordered publish pauses its key, so
// the key is resumed to let the next attempt through.
func (r *orderedResult) Get(ctx context.Context) error {
	if r.res == nil {
		return errors.New("publish result is nil")
	}
	_, err := r.res.Get(ctx)
	if err != nil && r.orderingKey != "" {
		r.resume(r.orderingKey)
	}
	return err
}
