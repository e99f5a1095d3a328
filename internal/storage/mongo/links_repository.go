package mongo

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/relaypath/edge/internal/infrastructure/db"
	"github.com/relaypath/edge/internal/processing/links"
)

// LinksRepository reads link records authored by the management layer.
// This service never writes links; edits arrive via explicit cache
// invalidation instead.
type LinksRepository struct {
	coll *mongo.Collection
}

func NewLinksRepository(m *db.Mongo) (*LinksRepository, error) {
	repo := &LinksRepository{coll: m.Collection("links")}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := repo.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "domain", Value: 1}, {Key: "slug", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_domain_slug"),
		},
	})
	if err != nil {
		return nil, err
	}

	return repo, nil
}

func (r *LinksRepository) FindByDomainSlug(ctx context.Context, domain, slug string) (*links.Link, error) {
	filter := bson.M{
		"slug":   slug,
		"domain": strings.ToLower(domain),
	}

	var link links.Link
	err := r.coll.FindOne(ctx, filter).Decode(&link)
	if err == nil {
		return &link, nil
	}
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, links.ErrNotFound
	}
	return nil, err
}
