package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/okian/diarisk/internal/domain/model"
	"github.com/okian/diarisk/pkg/metrics"
)

// MongoStore keeps assessments in a MongoDB collection.
type MongoStore struct {
	client *mongo.Client
	coll   *mongo.Collection
	now    func() time.Time
}

// NewMongoStore connects to uri, pings the server and ensures the history index.
func NewMongoStore(ctx context.Context, uri, database string, opts ...Option) (*MongoStore, error) {
	c := newConfig(opts)
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	coll := client.Database(database).Collection(c.mongoCollection)
	_, err = coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "userId", Value: 1}, {Key: "createdAt", Value: -1}},
	})
	if err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("create history index: %w", err)
	}
	return &MongoStore{client: client, coll: coll, now: c.now}, nil
}

func (s *MongoStore) Save(ctx context.Context, a model.Assessment) error {
	defer observe(opSave, time.Now())
	if err := validate(a); err != nil {
		return err
	}
	if _, err := s.coll.InsertOne(ctx, a); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicateID
		}
		metrics.RecordErrorByComponent("repository", "mongo_insert")
		return fmt.Errorf("insert assessment: %w", err)
	}
	return nil
}

func (s *MongoStore) Get(ctx context.Context, id string) (model.Assessment, error) {
	defer observe(opGet, time.Now())
	var a model.Assessment
	err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&a)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return model.Assessment{}, ErrNotFound
	}
	if err != nil {
		return model.Assessment{}, fmt.Errorf("find assessment: %w", err)
	}
	return a, nil
}

func (s *MongoStore) History(ctx context.Context, userID string, limit int) ([]model.Assessment, error) {
	defer observe(opHistory, time.Now())
	if err := validateLimit(limit); err != nil {
		return nil, err
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(int64(limit))
	cur, err := s.coll.Find(ctx, bson.M{"userId": userID}, opts)
	if err != nil {
		return nil, fmt.Errorf("find history: %w", err)
	}
	out := make([]model.Assessment, 0)
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode history: %w", err)
	}
	return out, nil
}

func (s *MongoStore) AttachReport(ctx context.Context, id, report string) error {
	return s.update(ctx, id, model.ReportReady, report, "")
}

func (s *MongoStore) MarkReportFailed(ctx context.Context, id, reason string) error {
	return s.update(ctx, id, model.ReportFailed, "", reason)
}

func (s *MongoStore) update(ctx context.Context, id string, status model.ReportStatus, report, reason string) error {
	defer observe(opUpdate, time.Now())
	res, err := s.coll.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{
		"reportStatus": status,
		"report":       report,
		"reportError":  reason,
		"updatedAt":    s.now(),
	}})
	if err != nil {
		return fmt.Errorf("update report: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) Count(ctx context.Context) int {
	n, err := s.coll.CountDocuments(ctx, bson.M{})
	if err != nil {
		metrics.RecordErrorByComponent("repository", "mongo_count")
		return 0
	}
	return int(n)
}

// Close disconnects the client.
func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}
