// Copyright 2024 Google, LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package cloud provides components for interacting with Google Cloud services.
// This file connects Pub/Sub to the workflow commands: a listener that feeds
// every received message into a command, and a publisher for outbound
// announcements.
//
// Logic Flow:
//  1. A PubSubListener is created per configured subscription.
//  2. A command, usually a chain, is attached with SetCommand.
//  3. Listen starts a goroutine that receives messages until ctx is done.
//  4. Each message runs the command in a fresh cor context carrying the
//     message data as input, inside a "receive-message" span.
//  5. The message is acked when the command succeeds and nacked otherwise,
//     so Pub/Sub redelivers it according to the subscription's retry policy.
//
// Structs:
//   - PubSubListener: Receives from one subscription.
//   - TopicPublisher: Publishes to one topic.
package cloud

import (
	"context"
	"log/slog"

	"cloud.google.com/go/pubsub"
	"github.com/jaycherian/broll-scout/internal/core/cor"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// PubSubListener runs a command for each message of a subscription.
type PubSubListener struct {
	client       *pubsub.Client
	subscription *pubsub.Subscription
	command      cor.Command
}

// NewPubSubListener creates a listener. command may be nil and attached later.
func NewPubSubListener(pubsubClient *pubsub.Client, subscriptionID string, command cor.Command) (*PubSubListener, error) {
	return &PubSubListener{
		client:       pubsubClient,
		subscription: pubsubClient.Subscription(subscriptionID),
		command:      command,
	}, nil
}

// SetCommand attaches a command unless one is already set.
func (m *PubSubListener) SetCommand(command cor.Command) {
	if m.command == nil {
		m.command = command
	}
}

// Listen starts receiving in the background. It returns immediately.
func (m *PubSubListener) Listen(ctx context.Context) {
	slog.Info("listening", "subscription", m.subscription.String())
	go func() {
		err := m.subscription.Receive(ctx, func(msgCtx context.Context, msg *pubsub.Message) {
			if HandleMessage(msgCtx, m.command, msg.ID, msg.Data) {
				msg.Ack()
			} else {
				msg.Nack()
			}
		})
		if err != nil {
			slog.Error("error receiving messages", "subscription", m.subscription.String(), "error", err)
		}
	}()
}

// HandleMessage runs command over one message and reports whether it succeeded.
func HandleMessage(ctx context.Context, command cor.Command, id string, data []byte) bool {
	tracer := otel.Tracer("message-listener")
	spanCtx, span := tracer.Start(ctx, "receive-message")
	defer span.End()
	span.SetAttributes(attribute.String("msg.id", id), attribute.Int("msg.size", len(data)))

	if command == nil {
		span.SetStatus(codes.Error, "no command attached")
		slog.ErrorContext(spanCtx, "message received before a command was attached", "id", id)
		return false
	}

	chainCtx := cor.NewBaseContext(spanCtx)
	defer chainCtx.Close()
	chainCtx.Add(cor.CtxIn, string(data))
	command.Execute(chainCtx)

	if err := chainCtx.Err(); err != nil {
		span.SetStatus(codes.Error, "failed")
		slog.ErrorContext(spanCtx, "error executing chain", "id", id, "error", err)
		return false
	}
	span.SetStatus(codes.Ok, "success")
	return true
}

// TopicPublisher publishes raw payloads to one topic.
type TopicPublisher struct {
	topic *pubsub.Topic
}

// NewTopicPublisher returns a publisher for topicID.
func NewTopicPublisher(client *pubsub.Client, topicID string) *TopicPublisher {
	return &TopicPublisher{topic: client.Topic(topicID)}
}

// Publish sends data and waits for the server-assigned message ID.
func (p *TopicPublisher) Publish(ctx context.Context, data []byte) (string, error) {
	return p.topic.Publish(ctx, &pubsub.Message{Data: data}).Get(ctx)
}

// Stop flushes pending messages.
func (p *TopicPublisher) Stop() {
	p.topic.Stop()
}
