package pubsub

import (
	"context"
	"testing"

	"github.com/kitea/hunt-backend/pkg/config"
)

func TestResourceNames(t *testing.T) {
	c := &Client{projectID: "kitea-dev"}

	if got := c.subscriptionResourceName("mint-sub"); got != "projects/kitea-dev/subscriptions/mint-sub" {
		t.Fatalf("unexpected subscription name %q", got)
	}
	if got := c.subscriptionResourceName("projects/other/subscriptions/x"); got != "projects/other/subscriptions/x" {
		t.Fatalf("full names should pass through, got %q", got)
	}
	if got := c.topicResourceName(" mint-topic "); got != "projects/kitea-dev/topics/mint-topic" {
		t.Fatalf("unexpected topic name %q", got)
	}
	if got := c.topicResourceName(""); got != "" {
		t.Fatalf("empty topic should resolve to empty, got %q", got)
	}
}

func TestSubscriptionNamesSkipsBlank(t *testing.T) {
	names := subscriptionNames(config.PubSubConfig{MintSubscription: "  "})
	if len(names) != 0 {
		t.Fatalf("expected no names, got %v", names)
	}
	names = subscriptionNames(config.PubSubConfig{MintSubscription: "mint-sub"})
	if len(names) != 1 || names[0] != "mint-sub" {
		t.Fatalf("unexpected names %v", names)
	}
}

func TestClientOptionsAddsCredentialsOnlyWhenSet(t *testing.T) {
	if opts := clientOptions(config.GCPConfig{ProjectID: "p"}); len(opts) != 0 {
		t.Fatalf("expected no options, got %d", len(opts))
	}
	if opts := clientOptions(config.GCPConfig{ProjectID: "p", CredentialsJSON: `{"type":"service_account"}`}); len(opts) != 1 {
		t.Fatalf("expected credentials option, got %d", len(opts))
	}
}

func TestNewClientRequiresProject(t *testing.T) {
	if _, err := NewClient(context.Background(), config.GCPConfig{}, config.PubSubConfig{}, nil); err != errProjectIDRequired {
		t.Fatalf("expected project id error, got %v", err)
	}
}

func TestNilClientHandles(t *testing.T) {
	var c *Client
	if c.Publisher("kitea-mints") != nil || c.MintSubscription() != nil {
		t.Fatalf("nil client should return nil handles")
	}
	if err := c.Close(); err != nil {
		t.Fatalf("close nil client: %v", err)
	}
}
