package publish

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"restaurants/internal/config"
	"restaurants/internal/domain"
)

// mongoSink writes one document per record into a collection.
type mongoSink struct {
	client     *mongo.Client
	dbName     string
	collection string
}

func newMongoSink(cfg config.Publish, collection string) (*mongoSink, error) {
	dbName := cfg.Database
	if dbName == "" {
		dbName = "restaurants"
	}
	client, err := mongo.Connect(options.Client().ApplyURI(buildMongoURI(cfg)))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	return &mongoSink{client: client, dbName: dbName, collection: collection}, nil
}

// buildMongoURI accepts a full connection string in Host or builds one
// from host and port.
func buildMongoURI(cfg config.Publish) string {
	if strings.HasPrefix(cfg.Host, "mongodb+srv://") || strings.HasPrefix(cfg.Host, "mongodb://") {
		uri := cfg.Host
		if cfg.Password != "" {
			uri = strings.ReplaceAll(uri, "<password>", cfg.Password)
			uri = strings.ReplaceAll(uri, "<db_password>", cfg.Password)
		}
		return uri
	}
	port := cfg.Port
	if port == 0 {
		port = 27017
	}
	if cfg.Username != "" {
		return fmt.Sprintf("mongodb://%s:%s@%s:%d", cfg.Username, cfg.Password, cfg.Host, port)
	}
	return fmt.Sprintf("mongodb://%s:%d", cfg.Host, port)
}

// Publish empties the collection and inserts every record. Absent fields
// are omitted from the document.
func (m *mongoSink) Publish(ctx context.Context, ds *domain.Dataset, cols domain.ColumnNames) (int, error) {
	coll := m.client.Database(m.dbName).Collection(m.collection)
	if _, err := coll.DeleteMany(ctx, bson.D{}); err != nil {
		return 0, fmt.Errorf("clear collection: %w", err)
	}
	if ds.Len() == 0 {
		return 0, nil
	}

	docs := make([]any, 0, ds.Len())
	for i := range ds.Records {
		doc := bson.D{}
		for _, name := range ds.Columns {
			if v := value(&ds.Records[i], name, cols); v != nil {
				doc = append(doc, bson.E{Key: name, Value: v})
			}
		}
		docs = append(docs, doc)
	}
	res, err := coll.InsertMany(ctx, docs)
	if err != nil {
		return 0, fmt.Errorf("insert documents: %w", err)
	}
	return len(res.InsertedIDs), nil
}

func (m *mongoSink) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return m.client.Disconnect(ctx)
}
