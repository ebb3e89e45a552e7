package implementation

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	interfaces "gitlab.com/maplesense1/mpt.telemetry_server/src/production/MQT.Repository/Interfaces"
	mqtmodels "gitlab.com/maplesense1/mpt.telemetry_server/src/production/MQT.Models"
)

// MongoTimeSeriesRepository writes one tagged point per reading into a
// time-series collection: tag (metaField) is the sensor identifier, the
// numeric measurements are the fields.
type MongoTimeSeriesRepository struct {
	coll *mongo.Collection
}

func NewMongoTimeSeriesRepository(coll *mongo.Collection) *MongoTimeSeriesRepository {
	return &MongoTimeSeriesRepository{coll: coll}
}

func (r *MongoTimeSeriesRepository) InsertPoint(ctx context.Context, reading mqtmodels.NormalizedReading) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	doc := bson.M{
		"ts":     reading.EventTime(),
		"meta":   bson.M{"sensor_id": reading.SensorID},
		"fields": reading.Readings,
	}

	_, err := r.coll.InsertOne(ctx, doc)
	return err
}

func (r *MongoTimeSeriesRepository) AggregateWindow(ctx context.Context, sensorID, field string, from, to time.Time, window time.Duration) ([]interfaces.WindowStats, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	fieldPath := "$fields." + field
	windowMillis := window.Milliseconds()

	// Bucket ts into fixed windows by truncating the epoch-millis value
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{
			"meta.sensor_id": sensorID,
			"ts":             bson.M{"$gte": from, "$lt": to},
			"fields." + field: bson.M{"$exists": true},
		}}},
		{{Key: "$group", Value: bson.M{
			"_id": bson.M{"$toDate": bson.M{"$subtract": bson.A{
				bson.M{"$toLong": "$ts"},
				bson.M{"$mod": bson.A{bson.M{"$toLong": "$ts"}, windowMillis}},
			}}},
			"count": bson.M{"$sum": 1},
			"mean":  bson.M{"$avg": fieldPath},
			"min":   bson.M{"$min": fieldPath},
			"max":   bson.M{"$max": fieldPath},
		}}},
		{{Key: "$sort", Value: bson.M{"_id": 1}}},
	}

	cursor, err := r.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var stats []interfaces.WindowStats
	for cursor.Next(ctx) {
		var row struct {
			WindowStart time.Time `bson:"_id"`
			Count       int64     `bson:"count"`
			Mean        float64   `bson:"mean"`
			Min         float64   `bson:"min"`
			Max         float64   `bson:"max"`
		}
		if err := cursor.Decode(&row); err != nil {
			return nil, err
		}
		stats = append(stats, interfaces.WindowStats{
			WindowStart: row.WindowStart,
			Count:       row.Count,
			Mean:        row.Mean,
			Min:         row.Min,
			Max:         row.Max,
		})
	}

	return stats, cursor.Err()
}
