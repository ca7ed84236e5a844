// Package pubsub publishes outbox events to Cloud Pub/Sub topics.
package pubsub

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/angelmondragon/hydrofarm-backend/pkg/config"
	"github.com/angelmondragon/hydrofarm-backend/pkg/logger"
)

// Client only routes to the topics named in PubSubConfig. Publishers are
// created lazily and reused so their batching survives across messages.
type Client struct {
	client  *pubsub.Client
	project string
	topics  map[string]string

	mu         sync.Mutex
	publishers map[string]*pubsub.Publisher
}

func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.PubSubConfig, logg *logger.Logger) (*Client, error) {
	project := strings.TrimSpace(gcp.ProjectID)
	if project == "" {
		return nil, errors.New("gcp project id is required")
	}
	topics := topicRoutes(project, cfg)
	if len(topics) == 0 {
		return nil, errors.New("at least one pubsub topic is required")
	}

	ps, err := pubsub.NewClient(ctx, project)
	if err != nil {
		return nil, fmt.Errorf("pubsub client: %w", err)
	}
	c := &Client{
		client:     ps,
		project:    project,
		topics:     topics,
		publishers: map[string]*pubsub.Publisher{},
	}
	if err := c.Ping(ctx); err != nil {
		_ = ps.Close()
		return nil, err
	}

	if logg != nil {
		logg.Info(logg.WithField(ctx, "topics", len(topics)), "pubsub.client.ready")
	}
	return c, nil
}

// topicRoutes maps each configured name, short or fully qualified, to its
// resource name.
func topicRoutes(project string, cfg config.PubSubConfig) map[string]string {
	routes := map[string]string{}
	for _, name := range []string{cfg.PaymentsTopic, cfg.StockTopic} {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		routes[name] = resourceName(project, name)
	}
	return routes
}

func resourceName(project, name string) string {
	if strings.HasPrefix(name, "projects/") && strings.Contains(name, "/topics/") {
		return name
	}
	return "projects/" + project + "/topics/" + name
}

// Publisher returns the shared publisher for a configured topic, or nil when
// the topic is not routed.
func (c *Client) Publisher(name string) *pubsub.Publisher {
	if c == nil || c.client == nil {
		return nil
	}
	full, ok := c.topics[strings.TrimSpace(name)]
	if !ok {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if p, ok := c.publishers[full]; ok {
		return p
	}
	p := c.client.Publisher(full)
	c.publishers[full] = p
	return p
}

// Ping checks every routed topic exists.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.client == nil {
		return errors.New("pubsub client not initialized")
	}
	for short, full := range c.topics {
		_, err := c.client.TopicAdminClient.GetTopic(ctx, &pubsubpb.GetTopicRequest{Topic: full})
		switch {
		case status.Code(err) == codes.NotFound:
			return fmt.Errorf("pubsub topic %s does not exist", short)
		case err != nil:
			return fmt.Errorf("pubsub topic %s: %w", short, err)
		}
	}
	return nil
}

// Close flushes pending messages on every publisher, then closes the client.
func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	c.mu.Lock()
	for _, p := range c.publishers {
		p.Stop()
	}
	c.publishers = map[string]*pubsub.Publisher{}
	c.mu.Unlock()
	return c.client.Close()
}
