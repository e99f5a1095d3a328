package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/mongo"

	"github.com/relaypath/edge/internal/infrastructure/db"
)

// AbuseReport is a visitor-submitted report against a short link.
type AbuseReport struct {
	Domain    string    `bson:"domain"`
	Slug      string    `bson:"slug"`
	Reason    string    `bson:"reason"`
	Details   string    `bson:"details,omitempty"`
	ReporterEmail string `bson:"reporterEmail,omitempty"`
	IP        string    `bson:"ip,omitempty"`
	CreatedAt time.Time `bson:"createdAt"`
}

type AbuseRepository struct {
	coll *mongo.Collection
}

func NewAbuseRepository(m *db.Mongo) *AbuseRepository {
	return &AbuseRepository{coll: m.Collection("abuse_reports")}
}

func (r *AbuseRepository) InsertReport(ctx context.Context, report AbuseReport) error {
	if report.CreatedAt.IsZero() {
		report.CreatedAt = time.Now().UTC()
	}
	_, err := r.coll.InsertOne(ctx, report)
	return err
}
