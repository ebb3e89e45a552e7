package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	logger "gitlab.com/maplesense1/mpt.telemetry_server/src/production/MQT.Logger"
	mqtmodels "gitlab.com/maplesense1/mpt.telemetry_server/src/production/MQT.Models"
	"gitlab.com/maplesense1/mpt.telemetry_server/src/production/MQT.Realtime"
	interfaces "gitlab.com/maplesense1/mpt.telemetry_server/src/production/MQT.Repository/Interfaces"
)

type fakeReadingRepo struct {
	params *interfaces.ReadingQueryParams
}

func (f *fakeReadingRepo) InsertReading(context.Context, mqtmodels.NormalizedReading) error {
	return nil
}

func (f *fakeReadingRepo) GetReadings(_ context.Context, params interfaces.ReadingQueryParams) ([]mqtmodels.ReadingRecord, error) {
	f.params = &params
	return nil, nil
}

type fakePointRepo struct {
	called bool
}

func (f *fakePointRepo) InsertPoint(context.Context, mqtmodels.NormalizedReading) error {
	return nil
}

func (f *fakePointRepo) AggregateWindow(context.Context, string, string, time.Time, time.Time, time.Duration) ([]interfaces.WindowStats, error) {
	f.called = true
	return nil, nil
}

func getContext(target string) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	ctx, _ := gin.CreateTestContext(w)
	ctx.Request = httptest.NewRequest(http.MethodGet, target, nil)
	ctx.Params = gin.Params{{Key: "sensor_id", Value: "s1"}}
	return ctx, w
}

func postContext(target, body string) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	ctx, _ := gin.CreateTestContext(w)
	ctx.Request = httptest.NewRequest(http.MethodPost, target, strings.NewReader(body))
	ctx.Request.Header.Set("Content-Type", "application/json")
	return ctx, w
}

func TestGetSensorReadings_InvalidTimeRange(t *testing.T) {
	tests := []struct {
		name  string
		query string
	}{
		{"bad from", "?from=yesterday"},
		{"bad to", "?to=eventually"},
		{"epoch seconds instead of RFC3339", "?from=1700000000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			readings := &fakeReadingRepo{}
			c := NewControllers(nil, nil, nil, nil, readings, nil)

			ctx, w := getContext("/api/sensors/s1/readings" + tt.query)
			c.GetSensorReadings(ctx)

			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", w.Code)
			}
			if readings.params != nil {
				t.Error("query reached the repository despite invalid range")
			}
		})
	}
}

func TestGetSensorReadings_PassesRange(t *testing.T) {
	readings := &fakeReadingRepo{}
	c := NewControllers(nil, nil, nil, nil, readings, nil)

	ctx, w := getContext("/api/sensors/s1/readings?from=2026-08-30T00:00:00Z&to=2026-08-31T00:00:00Z&limit=10")
	c.GetSensorReadings(ctx)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if readings.params == nil {
		t.Fatal("repository was not queried")
	}
	if readings.params.SensorID != "s1" || readings.params.Limit != 10 {
		t.Errorf("params = %+v", readings.params)
	}
	if readings.params.From == nil || readings.params.To == nil {
		t.Fatal("range bounds not passed through")
	}
	if readings.params.To.Sub(*readings.params.From) != 24*time.Hour {
		t.Errorf("range = %v to %v", readings.params.From, readings.params.To)
	}
}

func TestGetSensorAggregate_Validation(t *testing.T) {
	tests := []struct {
		name  string
		query string
	}{
		{"missing field", ""},
		{"bad window", "?field=temperature&window=fortnight"},
		{"zero window", "?field=temperature&window=0s"},
		{"bad from", "?field=temperature&from=yesterday"},
		{"bad to", "?field=temperature&to=eventually"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			points := &fakePointRepo{}
			c := NewControllers(nil, nil, nil, nil, nil, points)

			ctx, w := getContext("/api/sensors/s1/aggregate" + tt.query)
			c.GetSensorAggregate(ctx)

			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", w.Code)
			}
			if points.called {
				t.Error("aggregation ran despite invalid parameters")
			}
		})
	}
}

func TestGetSensorAggregate_Valid(t *testing.T) {
	points := &fakePointRepo{}
	c := NewControllers(nil, nil, nil, nil, nil, points)

	ctx, w := getContext("/api/sensors/s1/aggregate?field=temperature&window=15m")
	c.GetSensorAggregate(ctx)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if !points.called {
		t.Error("aggregation did not run")
	}
}

func TestSendNotification(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		startHub bool
		wantCode int
	}{
		{
			name:     "hub not running",
			body:     `{"targetType":"all","notificationType":"info","message":"m"}`,
			startHub: false,
			wantCode: http.StatusServiceUnavailable,
		},
		{
			name:     "unknown target",
			body:     `{"targetType":"planet","notificationType":"info","message":"m"}`,
			startHub: true,
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "missing message",
			body:     `{"targetType":"all","notificationType":"info"}`,
			startHub: true,
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "broadcast to all",
			body:     `{"targetType":"all","notificationType":"info","message":"m"}`,
			startHub: true,
			wantCode: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hub := realtime.NewHub(logger.NewNop())
			if tt.startHub {
				hub.Start()
			}
			c := NewControllers(nil, hub, nil, nil, nil, nil)

			ctx, w := postContext("/api/notifications", tt.body)
			c.SendNotification(ctx)

			if w.Code != tt.wantCode {
				t.Errorf("status = %d, want %d", w.Code, tt.wantCode)
			}
		})
	}
}
