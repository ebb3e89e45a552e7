package startup

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/mongo"

	config "gitlab.com/maplesense1/mpt.telemetry_server/src/production/MQT.Config"
	logger "gitlab.com/maplesense1/mpt.telemetry_server/src/production/MQT.Logger"
)

func testBootstrap(attempts int) *Bootstrap {
	cfg := &config.Config{
		Startup: config.StartupConfig{Attempts: attempts, RetryDelay: time.Millisecond},
	}
	return NewBootstrap(nil, nil, cfg, logger.NewNop())
}

func TestRetry_SucceedsAfterTransientFailures(t *testing.T) {
	b := testBootstrap(5)

	calls := 0
	err := b.retry(context.Background(), "step", func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestRetry_ExhaustsAttempts(t *testing.T) {
	b := testBootstrap(3)

	calls := 0
	wantErr := errors.New("down")
	err := b.retry(context.Background(), "step", func(context.Context) error {
		calls++
		return wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("retry error = %v, want the last failure", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want exactly the attempt budget", calls)
	}
}

func TestRetry_StopsOnContextCancel(t *testing.T) {
	b := testBootstrap(100)
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	err := b.retry(ctx, "step", func(context.Context) error {
		calls++
		cancel()
		return errors.New("down")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("retry error = %v, want context.Canceled", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestIsNamespaceExists(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"command error 48", mongo.CommandError{Code: 48, Message: "Collection already exists"}, true},
		{"string match", errors.New("collection iot.sensor_points already exists"), true},
		{"unrelated command error", mongo.CommandError{Code: 13, Message: "Unauthorized"}, false},
		{"unrelated error", errors.New("connection refused"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isNamespaceExists(tt.err); got != tt.want {
				t.Errorf("isNamespaceExists(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
