package utils

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/cppla/aiblog/config"
)

const (
	formGuardTimeout = 500 * time.Millisecond
	formSweepEvery   = time.Minute
)

// In-process counters used when Redis is disabled.
var (
	formMu        sync.Mutex
	formCooldowns = map[string]time.Time{}
	formDaily     = map[string]int{}
	formLastSweep time.Time
)

// sweepFormGuardsLocked drops finished cooldowns and counters of past days.
func sweepFormGuardsLocked(now time.Time) {
	if now.Sub(formLastSweep) < formSweepEvery {
		return
	}
	formLastSweep = now
	for key, until := range formCooldowns {
		if !now.Before(until) {
			delete(formCooldowns, key)
		}
	}
	today := now.UTC().Format("20060102")
	for key := range formDaily {
		if !strings.HasSuffix(key, ":"+today) {
			delete(formDaily, key)
		}
	}
}

func formKey(parts ...string) string {
	return "aiblog:form:" + strings.Join(parts, ":")
}

// FormCooldownTry enforces a short cooldown between submissions of one form
// per IP. It reports false while the cooldown is running. Redis errors fail open.
func FormCooldownTry(ctx context.Context, form, ip string) bool {
	sec := config.Get().FormCooldownSec
	if sec <= 0 {
		return true
	}
	ttl := time.Duration(sec) * time.Second
	key := formKey("cooldown", form, ip)

	if cli := GetRedis(); cli != nil {
		ctx, cancel := context.WithTimeout(ctx, formGuardTimeout)
		defer cancel()
		ok, err := cli.SetNX(ctx, key, "1", ttl).Result()
		if err != nil {
			return true
		}
		return ok
	}

	now := time.Now()
	formMu.Lock()
	defer formMu.Unlock()
	sweepFormGuardsLocked(now)
	if until, ok := formCooldowns[key]; ok && now.Before(until) {
		return false
	}
	formCooldowns[key] = now.Add(ttl)
	return true
}

// FormDailyLimitCheck allows up to the configured number of accepted
// submissions per IP and UTC day, across all forms.
func FormDailyLimitCheck(ctx context.Context, ip string) bool {
	limit := config.Get().FormMaxPerIPPerDay
	if limit <= 0 {
		return true
	}
	key := formKey("day", ip, time.Now().UTC().Format("20060102"))

	if cli := GetRedis(); cli != nil {
		ctx, cancel := context.WithTimeout(ctx, formGuardTimeout)
		defer cancel()
		n, err := cli.Get(ctx, key).Int()
		if errors.Is(err, redis.Nil) {
			n = 0
		} else if err != nil {
			return true
		}
		return n < limit
	}

	formMu.Lock()
	defer formMu.Unlock()
	return formDaily[key] < limit
}

// FormDailyIncrement counts an accepted submission for today.
func FormDailyIncrement(ctx context.Context, ip string) {
	now := time.Now().UTC()
	key := formKey("day", ip, now.Format("20060102"))

	if cli := GetRedis(); cli != nil {
		ctx, cancel := context.WithTimeout(ctx, formGuardTimeout)
		defer cancel()
		if err := cli.Incr(ctx, key).Err(); err == nil {
			ttl := time.Until(now.Truncate(24 * time.Hour).Add(24 * time.Hour))
			_ = cli.Expire(ctx, key, ttl).Err()
		}
		return
	}

	formMu.Lock()
	sweepFormGuardsLocked(now)
	formDaily[key]++
	formMu.Unlock()
}

// ResetFormGuards clears the in-process counters.
func ResetFormGuards() {
	formMu.Lock()
	formCooldowns = map[string]time.Time{}
	formDaily = map[string]int{}
	formLastSweep = time.Time{}
	formMu.Unlock()
}
