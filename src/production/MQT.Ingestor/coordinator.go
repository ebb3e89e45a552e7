package mqtingestor

import (
	"context"
	"fmt"

	logger "gitlab.com/maplesense1/mpt.telemetry_server/src/production/MQT.Logger"
	mqtmodels "gitlab.com/maplesense1/mpt.telemetry_server/src/production/MQT.Models"
	interfaces "gitlab.com/maplesense1/mpt.telemetry_server/src/production/MQT.Repository/Interfaces"
)

// Broadcaster is the fan-out handle injected at wiring time. Its methods
// report whether the realtime gateway was running, not whether any viewer
// received the event.
type Broadcaster interface {
	BroadcastReading(reading mqtmodels.NormalizedReading, companyID *int) bool
	BroadcastStatus(status mqtmodels.SensorStatus) bool
}

// Coordinator validates inbound payloads and persists accepted readings to
// both stores with asymmetric durability: the relational write is
// authoritative, the time-series write is best-effort.
type Coordinator struct {
	registry interfaces.SensorRegistry
	readings interfaces.ReadingRepository
	points   interfaces.TimeSeriesRepository
	audit    interfaces.AuditRepository
	hub      Broadcaster
	logger   *logger.Logger
}

func NewCoordinator(
	registry interfaces.SensorRegistry,
	readings interfaces.ReadingRepository,
	points interfaces.TimeSeriesRepository,
	audit interfaces.AuditRepository,
	hub Broadcaster,
	log *logger.Logger,
) *Coordinator {
	return &Coordinator{
		registry: registry,
		readings: readings,
		points:   points,
		audit:    audit,
		hub:      hub,
		logger:   log.WithComponent("coordinator"),
	}
}

// HandleData processes one raw data-topic message. Rejections are audited
// and dropped, never retried; only an authoritative-store failure
// propagates to the caller.
func (c *Coordinator) HandleData(ctx context.Context, topic string, payload []byte) error {
	reading, rejection := ParseReading(topic, payload)
	if rejection != nil {
		c.recordRejection(ctx, topic, payload, rejection)
		return nil
	}
	return c.persist(ctx, *reading)
}

// HandleStatus processes one raw status-topic message: parse-or-reject,
// then straight to fan-out without persistence.
func (c *Coordinator) HandleStatus(ctx context.Context, topic, topicSensorID string, payload []byte) error {
	status, rejection := ParseStatus(topic, topicSensorID, payload)
	if rejection != nil {
		c.recordRejection(ctx, topic, payload, rejection)
		return nil
	}
	c.hub.BroadcastStatus(*status)
	return nil
}

func (c *Coordinator) persist(ctx context.Context, reading mqtmodels.NormalizedReading) error {
	sensor, err := c.registry.LookupBySensorID(ctx, reading.SensorID)
	if err != nil {
		// A lookup failure is indistinguishable from a transient store
		// outage, so it is logged rather than audited as unknown_device.
		c.logger.Logger.Warn().Err(err).Str("sensor_id", reading.SensorID).Msg("Registry lookup failed, dropping reading")
		return nil
	}
	if sensor == nil {
		c.recordRejection(ctx, reading.Topic, reading.Raw, &Rejection{
			Reason: mqtmodels.ReasonUnknownDevice,
			Detail: fmt.Sprintf("sensor %s is not registered", reading.SensorID),
		})
		return nil
	}

	// Authoritative write: on failure the reading is lost and the error
	// propagates to the message handler.
	if err := c.readings.InsertReading(ctx, reading); err != nil {
		return fmt.Errorf("failed to insert reading for %s: %w", reading.SensorID, err)
	}

	// Best-effort write: a time-series outage must not block relational
	// persistence or fan-out.
	if err := c.points.InsertPoint(ctx, reading); err != nil {
		c.logger.Logger.Error().Err(err).Str("sensor_id", reading.SensorID).Msg("Time-series write failed, continuing")
	}

	companyID := sensor.CompanyID
	c.hub.BroadcastReading(reading, &companyID)

	return nil
}

func (c *Coordinator) recordRejection(ctx context.Context, topic string, payload []byte, rejection *Rejection) {
	c.logger.Logger.Warn().Str("topic", topic).Str("reason", rejection.Reason).Str("detail", rejection.Detail).Msg("Rejected payload")
	if err := c.audit.RecordInvalidPayload(ctx, topic, payload, rejection.Reason, rejection.Detail); err != nil {
		c.logger.Logger.Error().Err(err).Str("topic", topic).Msg("Failed to record invalid payload")
	}
}
