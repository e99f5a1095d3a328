package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/relaypath/edge/internal/infrastructure/db"
	"github.com/relaypath/edge/internal/processing/domains"
)

type DomainsRepository struct {
	coll *mongo.Collection
}

func NewDomainsRepository(m *db.Mongo) (*DomainsRepository, error) {
	repo := &DomainsRepository{coll: m.Collection("custom_domains")}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := repo.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "domain", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_domain"),
		},
		{
			Keys:    bson.D{{Key: "provisioningIds", Value: 1}},
			Options: options.Index().SetName("provisioningIds"),
		},
	})
	if err != nil {
		return nil, err
	}

	return repo, nil
}

// UpsertDomain writes the reconciliation state keyed by domain, so
// repeated Reconcile calls converge on one record.
func (r *DomainsRepository) UpsertDomain(ctx context.Context, rec *domains.CustomDomainRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	update := bson.M{
		"$set": bson.M{
			"hostnames":       rec.Hostnames,
			"provisioningIds": rec.ProvisioningIDs,
			"records":         rec.Records,
			"status":          rec.Status,
			"rootRedirect":    rec.RootRedirect,
			"updatedAt":       rec.UpdatedAt,
		},
		"$setOnInsert": bson.M{
			"domain":    rec.Domain,
			"createdAt": rec.CreatedAt,
		},
	}

	_, err := r.coll.UpdateOne(ctx,
		bson.M{"domain": rec.Domain},
		update,
		options.Update().SetUpsert(true),
	)
	return err
}

func (r *DomainsRepository) FindDomain(ctx context.Context, domain string) (*domains.CustomDomainRecord, error) {
	var rec domains.CustomDomainRecord
	err := r.coll.FindOne(ctx, bson.M{"domain": domain}).Decode(&rec)
	if err == nil {
		return &rec, nil
	}
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	return nil, err
}
