package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

// setupTestRedis creates a test Redis client for testing.
// Integration tests use testcontainers-go; unit tests skip without a local Redis.
func setupTestRedis(t *testing.T) *redis.Client {
	t.Helper()

	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   15, // Use a separate DB for tests
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available for testing: %v", err)
	}

	if err := client.FlushDB(ctx).Err(); err != nil {
		t.Fatalf("Failed to flush test DB: %v", err)
	}

	t.Cleanup(func() {
		client.FlushDB(context.Background())
		client.Close()
	})

	return client
}

func testKey(code string) ChartKey {
	return ChartKey{
		Kind:      KindConstellation,
		Date:      "2024-03-01",
		Latitude:  51.5072,
		Longitude: -0.1276,
		Params:    map[string]string{"constellation": code},
	}
}

func TestNewManager(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	defer client.Close()

	manager := NewManager(client)
	if manager == nil {
		t.Fatal("NewManager returned nil")
	}
	if manager.redis != client {
		t.Error("Manager redis client not set correctly")
	}
}

func TestNewManager_Panic(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("NewManager should panic with nil redis client")
		}
	}()
	NewManager(nil)
}

func TestManager_SetAndGet(t *testing.T) {
	manager := NewManager(setupTestRedis(t))
	ctx := context.Background()

	key := testKey("ori")
	entry := NewChartEntry("https://example.test/ori.png", 5*time.Minute)

	if err := manager.Set(ctx, key, entry); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	retrieved, err := manager.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	if retrieved.ImageURL != entry.ImageURL {
		t.Errorf("ImageURL mismatch: got %s, want %s", retrieved.ImageURL, entry.ImageURL)
	}
}

func TestManager_Get_CacheMiss(t *testing.T) {
	manager := NewManager(setupTestRedis(t))

	_, err := manager.Get(context.Background(), testKey("nonexistent"))
	if !errors.Is(err, ErrCacheMiss) {
		t.Errorf("Expected ErrCacheMiss, got %v", err)
	}
}

func TestManager_Set_ExpiredEntry(t *testing.T) {
	manager := NewManager(setupTestRedis(t))
	ctx := context.Background()
	key := testKey("cma")

	entry := &ChartEntry{
		ImageURL: "https://example.test/cma.png",
		Expires:  time.Now().Add(-1 * time.Hour),
	}

	// Set should not cache expired entries
	if err := manager.Set(ctx, key, entry); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	_, err := manager.Get(ctx, key)
	if !errors.Is(err, ErrCacheMiss) {
		t.Errorf("Expected ErrCacheMiss for expired entry, got %v", err)
	}
}

func TestManager_Get_CorruptEntry(t *testing.T) {
	client := setupTestRedis(t)
	manager := NewManager(client)
	ctx := context.Background()
	key := testKey("uma")

	if err := client.Set(ctx, key.String(), "not json", time.Minute).Err(); err != nil {
		t.Fatalf("seed corrupt entry: %v", err)
	}

	_, err := manager.Get(ctx, key)
	if !errors.Is(err, ErrInvalidEntry) {
		t.Errorf("Expected ErrInvalidEntry, got %v", err)
	}
}

func TestManager_Delete(t *testing.T) {
	manager := NewManager(setupTestRedis(t))
	ctx := context.Background()
	key := testKey("cyg")

	if err := manager.Set(ctx, key, NewChartEntry("https://example.test/cyg.png", 5*time.Minute)); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	if _, err := manager.Get(ctx, key); err != nil {
		t.Fatalf("Get after Set failed: %v", err)
	}

	if err := manager.Delete(ctx, key); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	_, err := manager.Get(ctx, key)
	if !errors.Is(err, ErrCacheMiss) {
		t.Errorf("Expected ErrCacheMiss after Delete, got %v", err)
	}
}

func TestManager_Set_InvalidEntry(t *testing.T) {
	manager := NewManager(setupTestRedis(t))
	ctx := context.Background()

	if err := manager.Set(ctx, testKey("lyr"), nil); err == nil {
		t.Error("Set with nil entry should return error")
	}

	err := manager.Set(ctx, testKey("lyr"), &ChartEntry{Expires: time.Now().Add(time.Minute)})
	if !errors.Is(err, ErrInvalidEntry) {
		t.Errorf("Set with empty url: got %v, want ErrInvalidEntry", err)
	}
}

func TestDecodeEntry(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		wantErr bool
	}{
		{"valid", `{"image_url":"https://example.test/ori.png","expires":"2030-01-01T00:00:00Z"}`, false},
		{"not json", `not json`, true},
		{"empty url", `{"image_url":"","expires":"2030-01-01T00:00:00Z"}`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry, err := decodeEntry([]byte(tt.data))
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidEntry) {
					t.Errorf("decodeEntry() error = %v, want ErrInvalidEntry", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("decodeEntry() error = %v", err)
			}
			if entry.ImageURL != "https://example.test/ori.png" {
				t.Errorf("ImageURL = %s", entry.ImageURL)
			}
		})
	}
}
