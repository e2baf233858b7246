//go:build integration

package client

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/Sternrassler/cratesio-client/internal/testutil"
	"github.com/Sternrassler/cratesio-client/pkg/ratelimit"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupRedisContainer creates a Redis container for integration testing.
func setupRedisContainer(t *testing.T) (*redis.Client, func()) {
	t.Helper()

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	redisContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}

	host, err := redisContainer.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := redisContainer.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	client := redis.NewClient(&redis.Options{
		Addr: host + ":" + port.Port(),
	})

	cleanup := func() {
		client.Close()
		redisContainer.Terminate(ctx)
	}

	return client, cleanup
}

func TestIntegration_RedisSlotSharedAcrossClients(t *testing.T) {
	redisClient, cleanup := setupRedisContainer(t)
	defer cleanup()

	mock := testutil.NewMockRegistry()
	defer mock.Close()
	mock.SetResponse("/summary", testutil.MockResponse{
		StatusCode: http.StatusOK,
		Body:       `{"num_crates":1}`,
		Delay:      5 * time.Millisecond,
	})

	interval := 50 * time.Millisecond
	logger := zerolog.Nop()
	newClient := func() *Client {
		c, err := New(Config{
			UserAgent:      testUserAgent,
			RateLimit:      interval,
			BaseURL:        mock.URL(),
			Redis:          redisClient,
			RedisKeyPrefix: "integration:",
			Logger:         &logger,
		})
		if err != nil {
			t.Fatalf("New() error = %v", err)
		}
		return c
	}

	// Two independent clients stand in for two processes.
	clients := []*Client{newClient(), newClient()}

	var wg sync.WaitGroup
	for i := range 6 {
		wg.Add(1)
		go func(c *Client) {
			defer wg.Done()
			if _, err := c.Summary(context.Background()); err != nil {
				t.Errorf("Summary() error = %v", err)
			}
		}(clients[i%2])
	}
	wg.Wait()

	if mock.Overlapped() {
		t.Error("requests of clients sharing a Redis slot overlapped")
	}

	reqs := mock.Requests()
	for i := 1; i < len(reqs); i++ {
		if gap := reqs[i].Received.Sub(reqs[i-1].Finished); gap < interval-10*time.Millisecond {
			t.Errorf("request %d started %v after previous completion, want about %v", i, gap, interval)
		}
	}

	key := "integration:" + ratelimit.RedisKeyLastCompletion
	if exists := redisClient.Exists(context.Background(), key).Val(); exists != 1 {
		t.Error("last completion should be stored in Redis")
	}
}

func TestIntegration_FullCrateAgainstMock(t *testing.T) {
	mock := testutil.NewMockRegistry()
	defer mock.Close()
	setupCrate(mock, "0.2.0", "0.1.0")

	c := newTestClient(t, mock, func(cfg *Config) { cfg.RateLimit = 10 * time.Millisecond })

	full, err := c.FullCrate(context.Background(), "demo", true)
	if err != nil {
		t.Fatalf("FullCrate() error = %v", err)
	}
	if len(full.Versions) != 2 {
		t.Errorf("Versions = %d, want 2", len(full.Versions))
	}
	if mock.Overlapped() {
		t.Error("requests overlapped")
	}
}
