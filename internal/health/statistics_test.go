package health

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/helixir/paper-acquisition-service/internal/domain"
)

func event(op domain.OperationKind, outcome domain.Outcome, kind domain.ErrorKind, age time.Duration) domain.HealthEvent {
	return domain.HealthEvent{
		SourceID:  1,
		Operation: op,
		Outcome:   outcome,
		ErrorKind: kind,
		Timestamp: fixedNow.Add(-age),
	}
}

func TestCompute(t *testing.T) {
	src := domain.Source{ID: 1, Name: "LibGen"}
	cfg := DefaultConfig()

	t.Run("no events is healthy with zero rate", func(t *testing.T) {
		stats := Compute(src, nil, fixedNow, cfg)

		assert.Equal(t, "LibGen", stats.SourceName)
		assert.Zero(t, stats.TotalFailures)
		assert.Zero(t, stats.FailureRate)
		assert.True(t, stats.IsHealthy)
		assert.Nil(t, stats.LastFailure)
		assert.NotNil(t, stats.FailuresByErrorKind)
	})

	t.Run("windows are applied separately", func(t *testing.T) {
		events := []domain.HealthEvent{
			event(domain.OperationSearch, domain.OutcomeFailure, domain.ErrorKindHTTP, 40*24*time.Hour),
			event(domain.OperationSearch, domain.OutcomeFailure, domain.ErrorKindHTTP, 10*24*time.Hour),
			event(domain.OperationSearch, domain.OutcomeFailure, domain.ErrorKindTimeout, 3*24*time.Hour),
			event(domain.OperationSearch, domain.OutcomeSuccess, "", 3*24*time.Hour),
			event(domain.OperationSearch, domain.OutcomeFailure, domain.ErrorKindTimeout, time.Hour),
			event(domain.OperationSearch, domain.OutcomeSuccess, "", time.Hour),
		}

		stats := Compute(src, events, fixedNow, cfg)

		assert.Equal(t, 3, stats.TotalFailures, "events past retention are ignored")
		assert.Equal(t, 1, stats.RecentFailures)
		assert.InDelta(t, 50.0, stats.FailureRate, 0.001)
		assert.False(t, stats.IsHealthy)
		assert.Equal(t, 2, stats.FailuresByErrorKind[domain.ErrorKindTimeout])
		assert.Equal(t, 1, stats.FailuresByErrorKind[domain.ErrorKindHTTP])
	})

	t.Run("recent challenge makes source unhealthy", func(t *testing.T) {
		events := []domain.HealthEvent{
			event(domain.OperationSearch, domain.OutcomeFailure, domain.ErrorKindProviderChallenge, time.Hour),
		}
		for range 99 {
			events = append(events, event(domain.OperationSearch, domain.OutcomeSuccess, "", time.Hour))
		}

		stats := Compute(src, events, fixedNow, cfg)

		assert.InDelta(t, 1.0, stats.FailureRate, 0.001)
		assert.False(t, stats.IsHealthy)
	})

	t.Run("old challenge does not count", func(t *testing.T) {
		events := []domain.HealthEvent{
			event(domain.OperationSearch, domain.OutcomeFailure, domain.ErrorKindProviderChallenge, 48*time.Hour),
		}
		for range 99 {
			events = append(events, event(domain.OperationSearch, domain.OutcomeSuccess, "", time.Hour))
		}

		stats := Compute(src, events, fixedNow, cfg)
		assert.True(t, stats.IsHealthy)
	})

	t.Run("per operation rates", func(t *testing.T) {
		events := []domain.HealthEvent{
			event(domain.OperationDownload, domain.OutcomeFailure, domain.ErrorKindConnection, time.Hour),
			event(domain.OperationDownload, domain.OutcomeSuccess, "", time.Hour),
			event(domain.OperationSearch, domain.OutcomeSuccess, "", time.Hour),
		}

		stats := Compute(src, events, fixedNow, cfg)

		assert.InDelta(t, 50.0, stats.Operations[domain.OperationDownload].FailureRate, 0.001)
		assert.Zero(t, stats.Operations[domain.OperationSearch].FailureRate)
		assert.Equal(t, fixedNow.Add(-time.Hour), *stats.LastSuccess)
	})
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{}.withDefaults()

	assert.Equal(t, 720*time.Hour, cfg.Retention)
	assert.Equal(t, 24*time.Hour, cfg.RecentWindow)
	assert.Equal(t, 168*time.Hour, cfg.RateWindow)
	assert.Equal(t, 20.0, cfg.FailureRateThreshold)
}
