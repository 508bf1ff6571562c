// Package mongo persists readings in a MongoDB collection and serves the
// history window used by adaptive classification.
package mongo

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	mongodrv "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/soundwatch/noise-monitor-service/internal/domain"
)

// Store reads and writes readings in a single collection.
// It implements pipeline.BatchLoader, pipeline.HistoryStore and
// pipeline.LabelStore.
type Store struct {
	client *mongodrv.Client
	coll   *mongodrv.Collection
	logger *slog.Logger
}

// Connect dials MongoDB and verifies the connection with a ping.
func Connect(ctx context.Context, uri, database, collection string, logger *slog.Logger) (*Store, error) {
	client, err := mongodrv.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongodb: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}
	logger.Info("connected to mongodb", "database", database, "collection", collection)
	return &Store{
		client: client,
		coll:   client.Database(database).Collection(collection),
		logger: logger,
	}, nil
}

// Close disconnects the client.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// EnsureIndexes creates the indexes the history and relabel queries rely on.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateMany(ctx, []mongodrv.IndexModel{
		{Keys: bson.D{{Key: "source", Value: 1}, {Key: "timestamp", Value: -1}}},
		{Keys: bson.D{{Key: "label", Value: 1}, {Key: "timestamp", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("create indexes: %w", err)
	}
	return nil
}

// CheckReadiness pings the primary.
func (s *Store) CheckReadiness(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

// LoadBatch inserts readings that are not already stored. Replaying a reading
// with a known ID leaves the stored document, including any label, untouched.
func (s *Store) LoadBatch(ctx context.Context, readings []domain.Reading) error {
	if len(readings) == 0 {
		return nil
	}
	models := make([]mongodrv.WriteModel, len(readings))
	for i, r := range readings {
		models[i] = mongodrv.NewUpdateOneModel().
			SetFilter(bson.D{{Key: "_id", Value: r.ID}}).
			SetUpdate(bson.D{{Key: "$setOnInsert", Value: insertFields(r)}}).
			SetUpsert(true)
	}
	res, err := s.coll.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(false))
	if err != nil {
		return fmt.Errorf("store readings: %w", err)
	}
	s.logger.Debug("stored readings", "inserted", res.UpsertedCount, "duplicates", int64(len(readings))-res.UpsertedCount)
	return nil
}

// insertFields is the document body of r without its _id, which the upsert
// filter supplies.
func insertFields(r domain.Reading) bson.D {
	var label any
	if r.Label != nil {
		label = string(*r.Label)
	}
	return bson.D{
		{Key: "timestamp", Value: r.Timestamp},
		{Key: "level_db", Value: r.LevelDB},
		{Key: "label", Value: label},
		{Key: "location", Value: r.Location},
		{Key: "source", Value: string(r.Source)},
	}
}

// RecentRealLevels returns up to limit levels of real readings with a
// non-null level, newest first. Levels stored as strings are parsed; values
// that are not numbers are skipped.
func (s *Store) RecentRealLevels(ctx context.Context, limit int) ([]float64, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: -1}}).
		SetLimit(int64(limit)).
		SetProjection(bson.D{{Key: "level_db", Value: 1}, {Key: "_id", Value: 0}})

	filter := bson.D{
		{Key: "source", Value: string(domain.SourceReal)},
		{Key: "level_db", Value: bson.D{{Key: "$ne", Value: nil}}},
	}
	cur, err := s.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find recent levels: %w", err)
	}
	defer cur.Close(ctx)

	levels := make([]float64, 0, limit)
	for cur.Next(ctx) {
		if v, ok := levelFromRaw(cur.Current.Lookup("level_db")); ok {
			levels = append(levels, v)
		}
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("read recent levels: %w", err)
	}
	return levels, nil
}

// levelFromRaw coerces a stored level to a finite float.
func levelFromRaw(v bson.RawValue) (float64, bool) {
	var f float64
	switch v.Type {
	case bson.TypeDouble:
		f = v.Double()
	case bson.TypeInt32:
		f = float64(v.Int32())
	case bson.TypeInt64:
		f = float64(v.Int64())
	case bson.TypeString:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v.StringValue()), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// Unlabeled returns up to limit unlabeled real readings with a numeric
// level, oldest first.
func (s *Store) Unlabeled(ctx context.Context, limit int) ([]domain.Reading, error) {
	filter := bson.D{
		{Key: "source", Value: string(domain.SourceReal)},
		{Key: "label", Value: nil},
		{Key: "level_db", Value: bson.D{{Key: "$type", Value: "number"}}},
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: 1}}).
		SetLimit(int64(limit))
	return s.find(ctx, filter, opts)
}

// SetLabel labels the reading if it is still unlabeled and reports whether it did.
func (s *Store) SetLabel(ctx context.Context, id string, label domain.Label) (bool, error) {
	filter := bson.D{{Key: "_id", Value: id}, {Key: "label", Value: nil}}
	update := bson.D{{Key: "$set", Value: bson.D{{Key: "label", Value: string(label)}}}}
	res, err := s.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, fmt.Errorf("set label: %w", err)
	}
	return res.ModifiedCount == 1, nil
}

// Latest returns the newest limit readings of any source.
func (s *Store) Latest(ctx context.Context, limit int) ([]domain.Reading, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: -1}}).
		SetLimit(int64(limit))
	return s.find(ctx, bson.D{}, opts)
}

func (s *Store) find(ctx context.Context, filter bson.D, opts *options.FindOptions) ([]domain.Reading, error) {
	cur, err := s.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find readings: %w", err)
	}
	defer cur.Close(ctx)

	readings := []domain.Reading{}
	for cur.Next(ctx) {
		r, err := decodeReading(cur.Current)
		if err != nil {
			s.logger.Warn("skipping unreadable reading", "id", cur.Current.Lookup("_id").String(), "error", err)
			continue
		}
		readings = append(readings, r)
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("read readings: %w", err)
	}
	return readings, nil
}

// storedReading mirrors domain.Reading with the level left undecoded.
type storedReading struct {
	ID        string        `bson:"_id"`
	Timestamp float64       `bson:"timestamp"`
	LevelDB   bson.RawValue `bson:"level_db"`
	Label     *domain.Label `bson:"label"`
	Location  string        `bson:"location"`
	Source    domain.Source `bson:"source"`
}

// decodeReading converts a stored document to a reading. Documents whose
// level is missing, null or not a finite number are rejected.
func decodeReading(doc bson.Raw) (domain.Reading, error) {
	var sr storedReading
	if err := bson.Unmarshal(doc, &sr); err != nil {
		return domain.Reading{}, fmt.Errorf("decode reading: %w", err)
	}
	level, ok := levelFromRaw(sr.LevelDB)
	if !ok {
		return domain.Reading{}, fmt.Errorf("reading %q has no numeric level_db", sr.ID)
	}
	return domain.Reading{
		ID:        sr.ID,
		Timestamp: sr.Timestamp,
		LevelDB:   level,
		Label:     sr.Label,
		Location:  sr.Location,
		Source:    sr.Source,
	}, nil
}

// bandRow is one $group result of the summary aggregation.
type bandRow struct {
	Label *domain.Label `bson:"_id"`
	Count int64         `bson:"count"`
	Avg   float64       `bson:"avg"`
}

// Summary counts readings per label since the given time.
func (s *Store) Summary(ctx context.Context, since time.Time) (domain.Summary, error) {
	sinceSec := domain.EpochSeconds(since)
	pipeline := mongodrv.Pipeline{
		{{Key: "$match", Value: bson.D{{Key: "timestamp", Value: bson.D{{Key: "$gte", Value: sinceSec}}}}}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$label"},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
			{Key: "avg", Value: bson.D{{Key: "$avg", Value: "$level_db"}}},
		}}},
	}
	cur, err := s.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return domain.Summary{}, fmt.Errorf("aggregate summary: %w", err)
	}
	var rows []bandRow
	if err := cur.All(ctx, &rows); err != nil {
		return domain.Summary{}, fmt.Errorf("decode summary: %w", err)
	}
	return buildSummary(sinceSec, rows), nil
}

// buildSummary orders bands from quietest to loudest. Non-standard labels
// follow in name order and unlabeled readings come last.
func buildSummary(since float64, rows []bandRow) domain.Summary {
	sum := domain.Summary{Since: since, Bands: make([]domain.BandSummary, 0, len(rows))}
	for _, row := range rows {
		var label domain.Label
		if row.Label != nil {
			label = *row.Label
		}
		sum.Total += row.Count
		sum.Bands = append(sum.Bands, domain.BandSummary{
			Label:      label,
			Count:      row.Count,
			AvgLevelDB: math.Round(row.Avg*10) / 10,
		})
	}
	slices.SortFunc(sum.Bands, func(a, b domain.BandSummary) int {
		if ka, kb := bandOrder(a.Label), bandOrder(b.Label); ka != kb {
			return ka - kb
		}
		return strings.Compare(string(a.Label), string(b.Label))
	})
	return sum
}

func bandOrder(l domain.Label) int {
	switch {
	case l == "":
		return domain.NumBands + 1
	case l.Rank() < 0:
		return domain.NumBands
	default:
		return l.Rank()
	}
}
