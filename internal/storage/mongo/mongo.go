// Package mongo provides a MongoDB-backed implementation of the
// storage.Storage interface using the official v2 driver.
//
// A Store owns one *mongo.Client. It is created by Open, which connects and
// pings once; reconnection policy lives in the connection package, which
// calls Open again when a Store goes bad.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/x/mongo/driver/connstring"

	"github.com/aanand-mishra/students-api/internal/storage"
	"github.com/aanand-mishra/students-api/internal/types"
)

const (
	appName           = "students-api"
	defaultDatabase   = "students"
	defaultCollection = "students"
)

// Config holds the settings Open needs.
type Config struct {
	URI                    string
	Database               string // falls back to the database in the URI, then "students"
	Collection             string
	ConnectTimeout         time.Duration
	ServerSelectionTimeout time.Duration
	OperationTimeout       time.Duration
}

// Store is the MongoDB implementation of storage.Storage.
type Store struct {
	client   *mongo.Client
	coll     *mongo.Collection
	database string
	host     string
}

// studentDocument is the BSON shape of a student. The zero ObjectID is
// omitted so replacements never touch _id.
type studentDocument struct {
	ID      bson.ObjectID `bson:"_id,omitempty"`
	Name    string        `bson:"name"`
	Age     float64       `bson:"age"` // int32 and int64 values decode too
	Email   string        `bson:"email"`
	Phone   string        `bson:"phone"`
	Address string        `bson:"address"`
}

func toDocument(s types.Student) studentDocument {
	return studentDocument{
		Name:    s.Name,
		Age:     s.Age,
		Email:   s.Email,
		Phone:   s.Phone,
		Address: s.Address,
	}
}

func (d studentDocument) student() types.Student {
	return types.Student{
		ID:      d.ID.Hex(),
		Name:    d.Name,
		Age:     d.Age,
		Email:   d.Email,
		Phone:   d.Phone,
		Address: d.Address,
	}
}

// Open connects to MongoDB and verifies the connection with a ping.
// ctx bounds the ping; the caller sets the per-attempt deadline.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.URI == "" {
		return nil, ErrMissingURI
	}

	cs, err := connstring.ParseAndValidate(cfg.URI)
	if err != nil {
		return nil, fmt.Errorf("mongo.Open: parse connection string: %w", err)
	}

	database := cfg.Database
	if database == "" {
		database = cs.Database
	}
	if database == "" {
		database = defaultDatabase
	}
	collection := cfg.Collection
	if collection == "" {
		collection = defaultCollection
	}

	var host string
	if len(cs.Hosts) > 0 {
		host = cs.Hosts[0]
	}

	opts := options.Client().
		ApplyURI(cfg.URI).
		SetAppName(appName)
	if cfg.ConnectTimeout > 0 {
		opts.SetConnectTimeout(cfg.ConnectTimeout)
	}
	if cfg.ServerSelectionTimeout > 0 {
		opts.SetServerSelectionTimeout(cfg.ServerSelectionTimeout)
	}
	if cfg.OperationTimeout > 0 {
		opts.SetTimeout(cfg.OperationTimeout)
	}

	client, err := mongo.Connect(opts)
	if err != nil {
		return nil, errors.Join(ErrFailedToConnectToMongo, err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.WithoutCancel(ctx))
		return nil, errors.Join(ErrFailedToConnectToMongo, err)
	}

	return &Store{
		client:   client,
		coll:     client.Database(database).Collection(collection),
		database: database,
		host:     host,
	}, nil
}

// Ping checks that the server is still reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

// Close disconnects the underlying client.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// Database returns the name of the database in use.
func (s *Store) Database() string { return s.database }

// Host returns the first host of the connection string.
func (s *Store) Host() string { return s.host }

func (s *Store) CreateStudent(ctx context.Context, student types.Student) (types.Student, error) {
	doc := toDocument(student)
	doc.ID = bson.NewObjectID()

	if _, err := s.coll.InsertOne(ctx, doc); err != nil {
		return types.Student{}, fmt.Errorf("CreateStudent: insert: %w", err)
	}

	return doc.student(), nil
}

func (s *Store) GetStudentByID(ctx context.Context, id string) (types.Student, error) {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return types.Student{}, fmt.Errorf("GetStudentByID %s: %w", id, storage.ErrNotFound)
	}

	var doc studentDocument
	err = s.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return types.Student{}, fmt.Errorf("GetStudentByID %s: %w", id, storage.ErrNotFound)
	}
	if err != nil {
		return types.Student{}, fmt.Errorf("GetStudentByID: find: %w", err)
	}

	return doc.student(), nil
}

func (s *Store) GetStudents(ctx context.Context) ([]types.Student, error) {
	cursor, err := s.coll.Find(ctx, bson.D{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("GetStudents: find: %w", err)
	}

	var docs []studentDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("GetStudents: decode: %w", err)
	}

	students := make([]types.Student, 0, len(docs))
	for _, doc := range docs {
		students = append(students, doc.student())
	}

	return students, nil
}

func (s *Store) UpdateStudentByID(ctx context.Context, id string, student types.Student) (types.Student, error) {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return types.Student{}, fmt.Errorf("UpdateStudentByID %s: %w", id, storage.ErrNotFound)
	}

	var doc studentDocument
	err = s.coll.FindOneAndReplace(
		ctx,
		bson.M{"_id": oid},
		toDocument(student),
		options.FindOneAndReplace().SetReturnDocument(options.After),
	).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return types.Student{}, fmt.Errorf("UpdateStudentByID %s: %w", id, storage.ErrNotFound)
	}
	if err != nil {
		return types.Student{}, fmt.Errorf("UpdateStudentByID: replace: %w", err)
	}

	return doc.student(), nil
}

func (s *Store) DeleteStudentByID(ctx context.Context, id string) error {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("DeleteStudentByID %s: %w", id, storage.ErrNotFound)
	}

	res, err := s.coll.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return fmt.Errorf("DeleteStudentByID: delete: %w", err)
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("DeleteStudentByID %s: %w", id, storage.ErrNotFound)
	}

	return nil
}
