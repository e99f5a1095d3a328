package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/relaypath/edge/internal/infrastructure/db"
	"github.com/relaypath/edge/internal/processing/clicks"
)

type ClicksRepository struct {
	coll *mongo.Collection
}

func NewClicksRepository(m *db.Mongo) (*ClicksRepository, error) {
	repo := &ClicksRepository{coll: m.Collection("clicks")}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := repo.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "domain", Value: 1}, {Key: "slug", Value: 1}, {Key: "createdAt", Value: -1}},
			Options: options.Index().SetName("domain_slug_createdAt"),
		},
		{
			// The relay is at-least-once; a unique ray index makes the
			// insert idempotent on redelivery.
			Keys:    bson.D{{Key: "rayId", Value: 1}},
			Options: options.Index().SetUnique(true).SetSparse(true).SetName("uniq_rayId"),
		},
	})
	if err != nil {
		return nil, err
	}

	return repo, nil
}

// InsertClick persists one ClickEvent. Duplicate ray ids (relay
// redelivery) are treated as success.
func (r *ClicksRepository) InsertClick(ctx context.Context, click clicks.ClickEvent) error {
	_, err := r.coll.InsertOne(ctx, click)
	if err != nil && mongo.IsDuplicateKeyError(err) {
		return nil
	}
	return err
}
