package jobs

import (
	"testing"
	"time"

	"github.com/Togather-Foundation/tablon/internal/config"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRetryPolicy(t *testing.T) {
	policy := NewRetryPolicy(0)
	require.NotNil(t, policy)

	assert.Equal(t, NotificationEmailMaxAttempts, policy.Default.MaxAttempts)
	assert.Equal(t, 30*time.Second, policy.Default.BaseDelay)
	assert.Equal(t, 30*time.Minute, policy.Default.MaxDelay)

	tests := []struct {
		kind        string
		maxAttempts int
		baseDelay   time.Duration
		maxDelay    time.Duration
	}{
		{JobKindNotificationEmail, NotificationEmailMaxAttempts, time.Minute, time.Hour},
		{JobKindNotificationCleanup, NotificationCleanupMaxAttempts, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.kind, func(t *testing.T) {
			cfg, ok := policy.ByKind[tt.kind]
			require.True(t, ok)
			assert.Equal(t, tt.maxAttempts, cfg.MaxAttempts)
			assert.Equal(t, tt.baseDelay, cfg.BaseDelay)
			assert.Equal(t, tt.maxDelay, cfg.MaxDelay)
		})
	}
}

func TestNewRetryPolicy_EmailOverride(t *testing.T) {
	policy := NewRetryPolicy(8)
	assert.Equal(t, 8, policy.ByKind[JobKindNotificationEmail].MaxAttempts)
	assert.Equal(t, 8, policy.InsertOpts(JobKindNotificationEmail).MaxAttempts)
	assert.Equal(t, NotificationEmailMaxAttempts, policy.InsertOpts("unknown-kind").MaxAttempts)
}

func TestRetryPolicy_NextRetry(t *testing.T) {
	policy := NewRetryPolicy(0)
	now := time.Now()

	tests := []struct {
		name    string
		kind    string
		attempt int
		delay   time.Duration
	}{
		{"cleanup retries immediately", JobKindNotificationCleanup, 1, 0},
		{"email first attempt", JobKindNotificationEmail, 1, time.Minute},
		{"email second attempt", JobKindNotificationEmail, 2, 2 * time.Minute},
		{"email third attempt", JobKindNotificationEmail, 3, 4 * time.Minute},
		{"email capped", JobKindNotificationEmail, 10, time.Hour},
		{"zero attempt treated as first", JobKindNotificationEmail, 0, time.Minute},
		{"unknown kind uses default", "other", 2, time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job := &rivertype.JobRow{Kind: tt.kind, Attempt: tt.attempt, AttemptedAt: &now}
			next := policy.NextRetry(job)
			if tt.delay == 0 {
				assert.WithinDuration(t, time.Now(), next, time.Second)
				return
			}
			assert.Equal(t, tt.delay, next.Sub(now))
		})
	}
}

func TestRetryPolicy_NilUsesFallback(t *testing.T) {
	var policy *RetryPolicy
	assert.Equal(t, NotificationEmailMaxAttempts, policy.InsertOpts(JobKindNotificationEmail).MaxAttempts)
}

func TestNewClientConfig(t *testing.T) {
	workers := river.NewWorkers()
	cfg := NewClientConfig(config.JobsConfig{NotificationEmailQueue: "mail", NotificationEmailWorker: 4}, workers, nil, nil, nil)

	assert.Same(t, workers, cfg.Workers)
	assert.Equal(t, 4, cfg.Queues["mail"].MaxWorkers)
	assert.Contains(t, cfg.Queues, river.QueueDefault)
	assert.Nil(t, cfg.ErrorHandler)

	defaults := NewClientConfig(config.JobsConfig{}, workers, nil, nil, nil)
	assert.Equal(t, DefaultEmailWorkers, defaults.Queues[DefaultEmailQueue].MaxWorkers)
}

func TestNewPeriodicJobs(t *testing.T) {
	assert.Empty(t, NewPeriodicJobs(0))

	jobs := NewPeriodicJobs(90 * 24 * time.Hour)
	require.Len(t, jobs, 1)
	assert.NotNil(t, jobs[0])
}

func TestJobKindConstants(t *testing.T) {
	assert.NotEqual(t, JobKindNotificationEmail, JobKindNotificationCleanup)
	assert.Equal(t, JobKindNotificationEmail, NotificationEmailArgs{}.Kind())
	assert.Equal(t, JobKindNotificationCleanup, NotificationCleanupArgs{}.Kind())
}
