package lifecycle

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	driver "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/dmitrymomot/contractflow/pkg/audit"
	"github.com/dmitrymomot/contractflow/pkg/fsm"
	"github.com/dmitrymomot/contractflow/pkg/mongo"
)

const (
	mongoEntities = "fsm_entities"
	mongoEvents   = "audit_events"
	mongoCounters = "counters"
)

// MongoStore persists entities and the audit trail in MongoDB. Commit uses a
// multi-document transaction, so the deployment must be a replica set.
type MongoStore struct {
	client   *driver.Client
	entities *driver.Collection
	events   *driver.Collection
	counters *driver.Collection
}

type mongoEntity struct {
	ID         string    `bson:"_id"`
	EntityType string    `bson:"entity_type"`
	EntityID   string    `bson:"entity_id"`
	State      string    `bson:"state"`
	Version    int64     `bson:"version"`
	CreatedAt  time.Time `bson:"created_at"`
	UpdatedAt  time.Time `bson:"updated_at"`
}

type mongoEvent struct {
	Seq        int64          `bson:"seq"`
	ID         string         `bson:"id"`
	UserID     string         `bson:"user_id"`
	Action     string         `bson:"action"`
	Resource   string         `bson:"resource"`
	ResourceID string         `bson:"resource_id"`
	Result     string         `bson:"result"`
	Error      string         `bson:"error,omitempty"`
	RequestID  string         `bson:"request_id,omitempty"`
	Metadata   map[string]any `bson:"metadata,omitempty"`
	Hash       string         `bson:"hash,omitempty"`
	CreatedAt  time.Time      `bson:"created_at"`
}

// NewMongoStore binds to db and ensures indexes exist.
func NewMongoStore(ctx context.Context, db *driver.Database) (*MongoStore, error) {
	s := &MongoStore{
		client:   db.Client(),
		entities: db.Collection(mongoEntities),
		events:   db.Collection(mongoEvents),
		counters: db.Collection(mongoCounters),
	}

	_, err := s.events.Indexes().CreateMany(ctx, []driver.IndexModel{
		{Keys: bson.D{{Key: "id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "seq", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "resource", Value: 1}, {Key: "resource_id", Value: 1}, {Key: "seq", Value: 1}}},
	})
	if err != nil {
		return nil, fmt.Errorf("create audit indexes: %w", err)
	}
	return s, nil
}

func (s *MongoStore) Create(ctx context.Context, entityType fsm.EntityType, entityID, state string) error {
	now := time.Now().UTC()
	_, err := s.entities.InsertOne(ctx, mongoEntity{
		ID:         entityKey(entityType, entityID),
		EntityType: string(entityType),
		EntityID:   entityID,
		State:      state,
		Version:    1,
		CreatedAt:  now,
		UpdatedAt:  now,
	})
	if mongo.IsDuplicateKeyError(err) {
		return ErrEntityExists
	}
	return err
}

func (s *MongoStore) Load(ctx context.Context, entityType fsm.EntityType, entityID string) (Snapshot, error) {
	var doc mongoEntity
	err := s.entities.FindOne(ctx, bson.D{{Key: "_id", Value: entityKey(entityType, entityID)}}).Decode(&doc)
	if mongo.IsNotFoundError(err) {
		return Snapshot{}, ErrEntityNotFound
	}
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{State: doc.State, Version: doc.Version}, nil
}

func (s *MongoStore) Commit(ctx context.Context, c Commit) error {
	if err := c.Event.Validate(); err != nil {
		return err
	}

	return mongo.WithTransaction(ctx, s.client, func(ctx context.Context) error {
		key := entityKey(c.EntityType, c.EntityID)
		res, err := s.entities.UpdateOne(ctx,
			bson.D{{Key: "_id", Value: key}, {Key: "version", Value: c.ExpectedVersion}},
			bson.D{
				{Key: "$set", Value: bson.D{{Key: "state", Value: c.State}, {Key: "updated_at", Value: time.Now().UTC()}}},
				{Key: "$inc", Value: bson.D{{Key: "version", Value: 1}}},
			},
		)
		if err != nil {
			return err
		}
		if res.MatchedCount == 0 {
			n, err := s.entities.CountDocuments(ctx, bson.D{{Key: "_id", Value: key}})
			if err != nil {
				return err
			}
			if n == 0 {
				return ErrEntityNotFound
			}
			return ErrVersionConflict
		}
		return s.insertEvent(ctx, c.Event, true)
	})
}

// Store appends an audit event. A repeated event ID is a no-op.
func (s *MongoStore) Store(ctx context.Context, event audit.Event) error {
	if err := event.Validate(); err != nil {
		return err
	}
	return s.insertEvent(ctx, event, false)
}

// insertEvent skips events whose ID is already stored. A duplicate key
// error aborts a session transaction, so inside one the lookup is the only
// guard; outside, a racing insert of the same ID is also treated as a no-op.
func (s *MongoStore) insertEvent(ctx context.Context, e audit.Event, inTxn bool) error {
	n, err := s.events.CountDocuments(ctx, bson.D{{Key: "id", Value: e.ID}}, options.Count().SetLimit(1))
	if err != nil {
		return fmt.Errorf("lookup audit event: %w", err)
	}
	if n > 0 {
		return nil
	}

	seq, err := s.nextSeq(ctx)
	if err != nil {
		return err
	}
	_, err = s.events.InsertOne(ctx, mongoEvent{
		Seq:        seq,
		ID:         e.ID,
		UserID:     e.UserID,
		Action:     e.Action,
		Resource:   e.Resource,
		ResourceID: e.ResourceID,
		Result:     string(e.Result),
		Error:      e.Error,
		RequestID:  e.RequestID,
		Metadata:   e.Metadata,
		Hash:       e.Hash,
		CreatedAt:  e.CreatedAt.UTC(),
	})
	if !inTxn && mongo.IsDuplicateKeyError(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

// nextSeq increments the audit counter document and returns the new value.
func (s *MongoStore) nextSeq(ctx context.Context) (int64, error) {
	var doc struct {
		Seq int64 `bson:"seq"`
	}
	err := s.counters.FindOneAndUpdate(ctx,
		bson.D{{Key: "_id", Value: mongoEvents}},
		bson.D{{Key: "$inc", Value: bson.D{{Key: "seq", Value: int64(1)}}}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		return 0, fmt.Errorf("next audit sequence: %w", err)
	}
	return doc.Seq, nil
}

func (s *MongoStore) Query(ctx context.Context, c audit.Criteria) ([]audit.Event, error) {
	opts := options.Find().SetSort(bson.D{{Key: "seq", Value: 1}})
	if c.Limit > 0 {
		opts.SetLimit(int64(c.Limit))
	}

	cur, err := s.events.Find(ctx, mongoFilter(c), opts)
	if err != nil {
		return nil, err
	}
	var docs []mongoEvent
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}

	events := make([]audit.Event, len(docs))
	for i, d := range docs {
		events[i] = audit.Event{
			ID:         d.ID,
			Seq:        d.Seq,
			UserID:     d.UserID,
			Action:     d.Action,
			Resource:   d.Resource,
			ResourceID: d.ResourceID,
			Result:     audit.Result(d.Result),
			Error:      d.Error,
			RequestID:  d.RequestID,
			Metadata:   d.Metadata,
			Hash:       d.Hash,
			CreatedAt:  d.CreatedAt.UTC(),
		}
	}
	return events, nil
}

// Count implements audit.StorageCounter.
func (s *MongoStore) Count(ctx context.Context, c audit.Criteria) (int64, error) {
	return s.events.CountDocuments(ctx, mongoFilter(c))
}

func mongoFilter(c audit.Criteria) bson.D {
	f := bson.D{}
	if c.Action != "" {
		f = append(f, bson.E{Key: "action", Value: c.Action})
	}
	if c.Resource != "" {
		f = append(f, bson.E{Key: "resource", Value: c.Resource})
	}
	if c.ResourceID != "" {
		f = append(f, bson.E{Key: "resource_id", Value: c.ResourceID})
	}
	if c.UserID != "" {
		f = append(f, bson.E{Key: "user_id", Value: c.UserID})
	}
	if c.Result != "" {
		f = append(f, bson.E{Key: "result", Value: string(c.Result)})
	}
	if c.AfterSeq > 0 {
		f = append(f, bson.E{Key: "seq", Value: bson.D{{Key: "$gt", Value: c.AfterSeq}}})
	}
	return f
}
