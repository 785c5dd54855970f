package alerts

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
)

func newTestRedisCooldown(t *testing.T, window time.Duration) *RedisCooldown {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	c, err := NewRedisCooldown(client, window)
	if err != nil {
		t.Fatalf("failed to create redis cooldown: %v", err)
	}
	t.Cleanup(func() { c.Close() })

	return c
}

func TestRedisCooldownSuppressWithinWindow(t *testing.T) {
	c := newTestRedisCooldown(t, time.Minute)
	now := time.Now()

	if !c.Allow("COW1", ConditionAbnormalHeartRate, now) {
		t.Fatal("first send should be allowed")
	}
	if c.Allow("COW1", ConditionAbnormalHeartRate, now) {
		t.Error("second send within window should be suppressed")
	}
	if !c.Allow("COW2", ConditionAbnormalHeartRate, now) {
		t.Error("different device should be independent")
	}
}

func TestRedisCooldownAllowsAfterExpiry(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	c, err := NewRedisCooldown(client, time.Minute)
	if err != nil {
		t.Fatalf("failed to create redis cooldown: %v", err)
	}
	defer c.Close()

	now := time.Now()
	if !c.Allow("COW1", ConditionLowSpO2, now) {
		t.Fatal("first send should be allowed")
	}

	mr.FastForward(time.Minute + time.Second)

	if !c.Allow("COW1", ConditionLowSpO2, now.Add(time.Minute+time.Second)) {
		t.Error("send after key expiry should be allowed")
	}
}
