package mongodb

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	issueDomain "github.com/davicafu/civicreport/internal/issue/domain"
	sharedDomain "github.com/davicafu/civicreport/internal/shared/domain"
	sharedMongo "github.com/davicafu/civicreport/internal/shared/infra/platform/db/mongodb"
	sharedQuery "github.com/davicafu/civicreport/internal/shared/infra/platform/query"
)

const IssuesCollection = "issues"

// IssueRepoMongoDB implementa IssueRepository. Cada escritura y su evento de
// outbox van en la misma transacción.
type IssueRepoMongoDB struct {
	db     *sharedMongo.Database
	coll   *mongo.Collection
	outbox *sharedMongo.OutboxRepo
}

func NewIssueRepoMongoDB(db *sharedMongo.Database, outbox *sharedMongo.OutboxRepo) *IssueRepoMongoDB {
	return &IssueRepoMongoDB{
		db:     db,
		coll:   db.Collection(IssuesCollection),
		outbox: outbox,
	}
}

// --- Structs de BSON para el mapeo ---
// Se definen localmente para no "contaminar" el dominio con tags de BSON.

type mongoIssue struct {
	ID          primitive.ObjectID `bson:"_id"`
	Title       string             `bson:"title"`
	Description string             `bson:"description"`
	Category    string             `bson:"category"`
	Division    string             `bson:"division"`
	Location    string             `bson:"location,omitempty"`
	Images      []string           `bson:"images,omitempty"`
	Status      string             `bson:"status"`
	AdminNote   string             `bson:"adminNote,omitempty"`
	ReporterID  string             `bson:"reporterId"`
	ReadBy      []string           `bson:"readBy"`
	CreatedAt   time.Time          `bson:"createdAt"`
	UpdatedAt   time.Time          `bson:"updatedAt"`
}

// EnsureIndexes crea los índices de los listados paginados.
func (r *IssueRepoMongoDB) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}},
		{Keys: bson.D{{Key: "updatedAt", Value: -1}, {Key: "_id", Value: -1}}},
		{Keys: bson.D{{Key: "reporterId", Value: 1}, {Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "category", Value: 1}, {Key: "status", Value: 1}, {Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "division", Value: 1}, {Key: "createdAt", Value: -1}}},
	})
	return err
}

// --- CRUD Transaccional ---

func (r *IssueRepoMongoDB) Create(ctx context.Context, i *issueDomain.Issue, evt sharedDomain.OutboxEvent) error {
	doc, err := toMongoIssue(i)
	if err != nil {
		return err
	}
	return r.db.WithTx(ctx, func(ctx context.Context) error {
		if _, err := r.coll.InsertOne(ctx, doc); err != nil {
			if mongo.IsDuplicateKeyError(err) {
				return issueDomain.ErrIssueAlreadyExists
			}
			return err
		}
		return r.outbox.Insert(ctx, evt)
	})
}

// Update solo toca los campos editables: readBy lo gestiona MarkRead.
func (r *IssueRepoMongoDB) Update(ctx context.Context, i *issueDomain.Issue, evt sharedDomain.OutboxEvent) error {
	oid, err := sharedMongo.OID(i.ID, issueDomain.ErrIssueNotFound)
	if err != nil {
		return err
	}
	set := bson.M{
		"title":       i.Title,
		"description": i.Description,
		"division":    i.Division,
		"location":    i.Location,
		"images":      i.Images,
		"status":      i.Status,
		"adminNote":   i.AdminNote,
		"updatedAt":   i.UpdatedAt,
	}

	return r.db.WithTx(ctx, func(ctx context.Context) error {
		res, err := r.coll.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": set})
		if err != nil {
			return err
		}
		if res.MatchedCount == 0 {
			return issueDomain.ErrIssueNotFound
		}
		return r.outbox.Insert(ctx, evt)
	})
}

func (r *IssueRepoMongoDB) DeleteByID(ctx context.Context, id string, evt sharedDomain.OutboxEvent) error {
	oid, err := sharedMongo.OID(id, issueDomain.ErrIssueNotFound)
	if err != nil {
		return err
	}
	return r.db.WithTx(ctx, func(ctx context.Context) error {
		res, err := r.coll.DeleteOne(ctx, bson.M{"_id": oid})
		if err != nil {
			return err
		}
		if res.DeletedCount == 0 {
			return issueDomain.ErrIssueNotFound
		}
		return r.outbox.Insert(ctx, evt)
	})
}

func (r *IssueRepoMongoDB) MarkRead(ctx context.Context, id, userID string) error {
	oid, err := sharedMongo.OID(id, issueDomain.ErrIssueNotFound)
	if err != nil {
		return err
	}
	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$addToSet": bson.M{"readBy": userID}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return issueDomain.ErrIssueNotFound
	}
	return nil
}

// --- Lecturas ---

func (r *IssueRepoMongoDB) GetByID(ctx context.Context, id string) (*issueDomain.Issue, error) {
	doc, err := sharedMongo.FindByID[mongoIssue](ctx, r.coll, id, issueDomain.ErrIssueNotFound)
	if err != nil {
		return nil, err
	}
	return toDomainIssue(doc), nil
}

func (r *IssueRepoMongoDB) ListPage(ctx context.Context, criteria sharedDomain.Criteria, f sharedQuery.PaginationFilter) ([]*issueDomain.Issue, error) {
	return sharedMongo.FindPage(ctx, r.coll, criteria, f, toDomainIssue)
}

func (r *IssueRepoMongoDB) Count(ctx context.Context, criteria sharedDomain.Criteria) (int64, error) {
	return sharedMongo.Count(ctx, r.coll, criteria)
}

// CountBy agrupa con una agregación $match + $group.
func (r *IssueRepoMongoDB) CountBy(ctx context.Context, criteria sharedDomain.Criteria, field string) (map[string]int64, error) {
	filter, err := sharedMongo.CriteriaToFilter(criteria)
	if err != nil {
		return nil, err
	}
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: filter}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$" + field},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
	}

	cursor, err := r.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("aggregate issues by %s: %w", field, err)
	}
	defer cursor.Close(ctx)

	out := make(map[string]int64)
	for cursor.Next(ctx) {
		var row struct {
			Key   string `bson:"_id"`
			Count int64  `bson:"count"`
		}
		if err := cursor.Decode(&row); err != nil {
			return nil, err
		}
		out[row.Key] = row.Count
	}
	return out, cursor.Err()
}

// --- Mapeo ---

func toMongoIssue(i *issueDomain.Issue) (mongoIssue, error) {
	oid, err := primitive.ObjectIDFromHex(i.ID)
	if err != nil {
		return mongoIssue{}, fmt.Errorf("%w: %s", sharedDomain.ErrInvalidID, i.ID)
	}
	readBy := i.ReadBy
	if readBy == nil {
		readBy = []string{}
	}
	return mongoIssue{
		ID:          oid,
		Title:       i.Title,
		Description: i.Description,
		Category:    i.Category,
		Division:    i.Division,
		Location:    i.Location,
		Images:      i.Images,
		Status:      i.Status,
		AdminNote:   i.AdminNote,
		ReporterID:  i.ReporterID,
		ReadBy:      readBy,
		CreatedAt:   i.CreatedAt,
		UpdatedAt:   i.UpdatedAt,
	}, nil
}

func toDomainIssue(m *mongoIssue) *issueDomain.Issue {
	return &issueDomain.Issue{
		ID:          m.ID.Hex(),
		Title:       m.Title,
		Description: m.Description,
		Category:    m.Category,
		Division:    m.Division,
		Location:    m.Location,
		Images:      m.Images,
		Status:      m.Status,
		AdminNote:   m.AdminNote,
		ReporterID:  m.ReporterID,
		ReadBy:      m.ReadBy,
		CreatedAt:   m.CreatedAt.UTC(),
		UpdatedAt:   m.UpdatedAt.UTC(),
	}
}

// Verificación estática de la interfaz.
var _ issueDomain.IssueRepository = (*IssueRepoMongoDB)(nil)
