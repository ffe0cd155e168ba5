package cache

import (
	"strings"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func TestIPBucketKey(t *testing.T) {
	t.Parallel()

	key := ipBucketKey("auth", "192.168.1.100")
	if !strings.HasPrefix(key, "ratelimit:ip:auth:") {
		t.Fatalf("unexpected key prefix: %s", key)
	}
	if strings.Contains(key, "192.168") {
		t.Errorf("key leaks the raw address: %s", key)
	}
	if got := len(strings.TrimPrefix(key, "ratelimit:ip:auth:")); got != 16 {
		t.Errorf("hash length = %d, want 16", got)
	}
	if key != ipBucketKey("auth", "192.168.1.100") {
		t.Error("same bucket and ip should produce the same key")
	}
}

func TestIPBucketKey_Distinct(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		bucketA, ipA string
		bucketB, ipB string
	}{
		{"different ip", "auth", "10.0.0.1", "auth", "10.0.0.2"},
		{"different bucket", "auth", "10.0.0.1", "contact", "10.0.0.1"},
		{"v4 vs v6", "auth", "127.0.0.1", "auth", "::1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if ipBucketKey(tt.bucketA, tt.ipA) == ipBucketKey(tt.bucketB, tt.ipB) {
				t.Errorf("keys collide for %s/%s and %s/%s", tt.bucketA, tt.ipA, tt.bucketB, tt.ipB)
			}
		})
	}
}

func TestUnlimited(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	res := unlimited(now, 7)
	if !res.Allowed || res.Remaining != 7 || res.RetryAfter != 0 {
		t.Errorf("unexpected result %+v", res)
	}
	if !res.ResetAt.Equal(now.Add(time.Minute)) {
		t.Errorf("ResetAt = %s, want one minute after now", res.ResetAt)
	}
}

func TestOptionsApply(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		opts     Options
		wantPool int
		wantIdle int
	}{
		{"defaults", Options{}, 10, 2},
		{"custom", Options{PoolSize: 25, MinIdleConns: 5}, 25, 5},
		{"idle capped by pool", Options{PoolSize: 1}, 1, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			opt := &redis.Options{}
			tt.opts.apply(opt)
			if opt.PoolSize != tt.wantPool || opt.MinIdleConns != tt.wantIdle {
				t.Errorf("pool = %d idle = %d, want %d and %d", opt.PoolSize, opt.MinIdleConns, tt.wantPool, tt.wantIdle)
			}
			if opt.PoolTimeout != 4*time.Second {
				t.Errorf("PoolTimeout = %s", opt.PoolTimeout)
			}
		})
	}
}
