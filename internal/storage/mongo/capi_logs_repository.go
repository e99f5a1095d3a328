package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/relaypath/edge/internal/infrastructure/db"
	"github.com/relaypath/edge/internal/processing/capi"
)

type CapiLogsRepository struct {
	coll *mongo.Collection
}

func NewCapiLogsRepository(m *db.Mongo) (*CapiLogsRepository, error) {
	repo := &CapiLogsRepository{coll: m.Collection("capi_dispatch_logs")}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := repo.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "eventId", Value: 1}, {Key: "platform", Value: 1}},
			Options: options.Index().SetName("eventId_platform"),
		},
		{
			Keys:    bson.D{{Key: "createdAt", Value: -1}},
			Options: options.Index().SetName("createdAt_desc"),
		},
	})
	if err != nil {
		return nil, err
	}

	return repo, nil
}

func (r *CapiLogsRepository) InsertDispatchLog(ctx context.Context, log capi.DispatchLog) error {
	_, err := r.coll.InsertOne(ctx, log)
	return err
}
