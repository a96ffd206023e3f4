// Package mongo persists weather observations in MongoDB.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/couchcryptid/weather-observation-etl/internal/domain"
	"github.com/jonboulle/clockwork"
	"go.mongodb.org/mongo-driver/bson"
	mongodriver "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ErrNoData is returned by LoadHistory when both the history and the primary
// collections are empty.
var ErrNoData = errors.New("no observations stored")

// Collections names the collections used by a Store.
type Collections struct {
	Primary string // latest batch, replaced on every run
	History string // append-only batch history
	Monitor string // monitor observations
}

// Store reads and writes observations.
type Store struct {
	client  *mongodriver.Client
	primary *mongodriver.Collection
	history *mongodriver.Collection
	monitor *mongodriver.Collection
	clock   clockwork.Clock
}

// Connect opens a client, verifies it with a ping and ensures indexes.
func Connect(ctx context.Context, uri, database string, cols Collections, timeout time.Duration) (*Store, error) {
	opts := options.Client().ApplyURI(uri).SetServerSelectionTimeout(timeout)
	client, err := mongodriver.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}

	s := New(client, database, cols)
	if err := s.EnsureIndexes(pingCtx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return s, nil
}

// New wraps an existing client.
func New(client *mongodriver.Client, database string, cols Collections) *Store {
	db := client.Database(database)
	return &Store{
		client:  client,
		primary: db.Collection(cols.Primary),
		history: db.Collection(cols.History),
		monitor: db.Collection(cols.Monitor),
		clock:   clockwork.NewRealClock(),
	}
}

// Close disconnects the client.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// CheckReadiness pings the server.
func (s *Store) CheckReadiness(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

// EnsureIndexes creates the query indexes. It is idempotent.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	byCity := mongodriver.IndexModel{Keys: bson.D{{Key: "city", Value: 1}, {Key: "observed_at_utc", Value: 1}}}
	for _, coll := range []*mongodriver.Collection{s.primary, s.history} {
		if _, err := coll.Indexes().CreateOne(ctx, byCity); err != nil {
			return fmt.Errorf("create index on %s: %w", coll.Name(), err)
		}
	}
	byIngest := mongodriver.IndexModel{Keys: bson.D{{Key: "ingested_at_utc", Value: 1}}}
	if _, err := s.monitor.Indexes().CreateOne(ctx, byIngest); err != nil {
		return fmt.Errorf("create index on %s: %w", s.monitor.Name(), err)
	}
	return nil
}

// LoadBatch replaces the primary collection with obs and appends them to the
// history collection.
func (s *Store) LoadBatch(ctx context.Context, obs []domain.Observation) error {
	if _, err := s.ReplaceAll(ctx, obs); err != nil {
		return err
	}
	_, err := s.AppendHistory(ctx, obs)
	return err
}

// ReplaceAll deletes every document of the primary collection, then inserts obs.
func (s *Store) ReplaceAll(ctx context.Context, obs []domain.Observation) (int, error) {
	if _, err := s.primary.DeleteMany(ctx, bson.D{}); err != nil {
		return 0, fmt.Errorf("clear %s: %w", s.primary.Name(), err)
	}
	if len(obs) == 0 {
		return 0, nil
	}
	res, err := s.primary.InsertMany(ctx, observationDocs(obs, time.Time{}))
	if err != nil {
		return 0, fmt.Errorf("insert into %s: %w", s.primary.Name(), err)
	}
	return len(res.InsertedIDs), nil
}

// AppendHistory inserts obs into the history collection stamped with inserted_at.
func (s *Store) AppendHistory(ctx context.Context, obs []domain.Observation) (int, error) {
	if len(obs) == 0 {
		return 0, nil
	}
	res, err := s.history.InsertMany(ctx, observationDocs(obs, s.clock.Now()))
	if err != nil {
		return 0, fmt.Errorf("insert into %s: %w", s.history.Name(), err)
	}
	return len(res.InsertedIDs), nil
}

// Append inserts one monitor observation.
func (s *Store) Append(ctx context.Context, rec domain.WeatherRecord) error {
	if _, err := s.monitor.InsertOne(ctx, fromRecord(rec)); err != nil {
		return fmt.Errorf("insert into %s: %w", s.monitor.Name(), err)
	}
	return nil
}

// TopByTemperature returns the n hottest observations of the latest batch.
func (s *Store) TopByTemperature(ctx context.Context, n int) ([]domain.Observation, error) {
	opts := options.Find().SetSort(bson.D{{Key: "temperature", Value: -1}}).SetLimit(int64(n))
	return s.find(ctx, s.primary, bson.D{}, opts)
}

// ByCity returns the latest batch observations of city.
func (s *Store) ByCity(ctx context.Context, city string) ([]domain.Observation, error) {
	return s.find(ctx, s.primary, bson.D{{Key: "city", Value: city}}, nil)
}

// HumidityAbove returns the latest batch observations with humidity strictly above threshold.
func (s *Store) HumidityAbove(ctx context.Context, threshold int) ([]domain.Observation, error) {
	filter := bson.D{{Key: "humidity", Value: bson.D{{Key: "$gt", Value: threshold}}}}
	return s.find(ctx, s.primary, filter, nil)
}

// Annotate sets note on every latest batch observation of city and returns
// the number of documents modified.
func (s *Store) Annotate(ctx context.Context, city, note string) (int64, error) {
	res, err := s.primary.UpdateMany(ctx,
		bson.D{{Key: "city", Value: city}},
		bson.D{{Key: "$set", Value: bson.D{{Key: "note", Value: note}}}},
	)
	if err != nil {
		return 0, fmt.Errorf("annotate %s: %w", city, err)
	}
	return res.ModifiedCount, nil
}

// LoadHistory returns the history collection ordered by observation time.
// An empty history is first seeded from the primary collection.
func (s *Store) LoadHistory(ctx context.Context) ([]domain.Observation, error) {
	n, err := s.history.CountDocuments(ctx, bson.D{})
	if err != nil {
		return nil, fmt.Errorf("count %s: %w", s.history.Name(), err)
	}
	if n == 0 {
		latest, err := s.find(ctx, s.primary, bson.D{}, nil)
		if err != nil {
			return nil, err
		}
		if len(latest) == 0 {
			return nil, ErrNoData
		}
		if _, err := s.AppendHistory(ctx, latest); err != nil {
			return nil, err
		}
	}

	opts := options.Find().SetSort(bson.D{{Key: "observed_at_utc", Value: 1}})
	return s.find(ctx, s.history, bson.D{}, opts)
}

// MonitorRecords returns every monitor observation in ingestion order.
func (s *Store) MonitorRecords(ctx context.Context) ([]domain.WeatherRecord, error) {
	opts := options.Find().SetSort(bson.D{{Key: "ingested_at_utc", Value: 1}})
	cur, err := s.monitor.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, fmt.Errorf("find in %s: %w", s.monitor.Name(), err)
	}
	var docs []document
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode %s: %w", s.monitor.Name(), err)
	}
	out := make([]domain.WeatherRecord, len(docs))
	for i, d := range docs {
		out[i] = d.record()
	}
	return out, nil
}

// HourlyAverages aggregates the monitor collection by UTC hour.
func (s *Store) HourlyAverages(ctx context.Context) ([]domain.HourlyAverage, error) {
	cur, err := s.monitor.Aggregate(ctx, hourlyPipeline())
	if err != nil {
		return nil, fmt.Errorf("aggregate %s: %w", s.monitor.Name(), err)
	}
	var rows []hourlyRow
	if err := cur.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("decode hourly averages: %w", err)
	}

	out := make([]domain.HourlyAverage, len(rows))
	for i, r := range rows {
		out[i] = domain.HourlyAverage{
			Hour:           r.Hour,
			AvgTemperature: round2(r.AvgTemperature),
			AvgHumidity:    round2(r.AvgHumidity),
			AvgWindSpeed:   round2(r.AvgWindSpeed),
			Count:          r.Count,
		}
	}
	return out, nil
}

func (s *Store) find(ctx context.Context, coll *mongodriver.Collection, filter bson.D, opts *options.FindOptions) ([]domain.Observation, error) {
	var findOpts []*options.FindOptions
	if opts != nil {
		findOpts = append(findOpts, opts)
	}
	cur, err := coll.Find(ctx, filter, findOpts...)
	if err != nil {
		return nil, fmt.Errorf("find in %s: %w", coll.Name(), err)
	}
	var docs []document
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode %s: %w", coll.Name(), err)
	}
	out := make([]domain.Observation, len(docs))
	for i, d := range docs {
		out[i] = d.observation()
	}
	return out, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
