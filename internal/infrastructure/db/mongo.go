package db

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.opentelemetry.io/contrib/instrumentation/go.mongodb.org/mongo-driver/mongo/otelmongo"
	"go.uber.org/zap"

	"github.com/relaypath/edge/internal/infrastructure/logger"
)

// Mongo wraps the client and the service database. Links, click
// records, conversion failures and custom domains all live in the
// same database as separate collections.
type Mongo struct {
	Client   *mongo.Client
	Database *mongo.Database
}

// ConnectMongo connects, verifies with a ping, and instruments every
// command with OpenTelemetry so resolver fallback reads show up on
// redirect traces.
func ConnectMongo(uri, dbName string) (*Mongo, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	clientOptions := options.Client().
		ApplyURI(uri).
		SetMonitor(otelmongo.NewMonitor())

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, err
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, err
	}

	// The URI carries credentials, so only the database name is logged.
	logger.Info("mongodb connected", zap.String("database", dbName))
	return &Mongo{
		Client:   client,
		Database: client.Database(dbName),
	}, nil
}

// Disconnect closes the MongoDB connection.
func (m *Mongo) Disconnect() error {
	if m.Client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return m.Client.Disconnect(ctx)
}

// Collection returns the named collection of the service database.
func (m *Mongo) Collection(name string) *mongo.Collection {
	return m.Database.Collection(name)
}
