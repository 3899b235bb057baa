package mongodb

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	commentDomain "github.com/davicafu/civicreport/internal/comment/domain"
	sharedDomain "github.com/davicafu/civicreport/internal/shared/domain"
	sharedMongo "github.com/davicafu/civicreport/internal/shared/infra/platform/db/mongodb"
	sharedQuery "github.com/davicafu/civicreport/internal/shared/infra/platform/query"
)

const CommentsCollection = "comments"

type CommentRepoMongoDB struct {
	db     *sharedMongo.Database
	coll   *mongo.Collection
	outbox *sharedMongo.OutboxRepo
}

func NewCommentRepoMongoDB(db *sharedMongo.Database, outbox *sharedMongo.OutboxRepo) *CommentRepoMongoDB {
	return &CommentRepoMongoDB{
		db:     db,
		coll:   db.Collection(CommentsCollection),
		outbox: outbox,
	}
}

type mongoComment struct {
	ID            primitive.ObjectID `bson:"_id"`
	IssueID       string             `bson:"issueId"`
	IssueCategory string             `bson:"issueCategory"`
	AuthorID      string             `bson:"authorId"`
	AuthorRole    string             `bson:"authorRole"`
	Text          string             `bson:"text"`
	Rating        int                `bson:"rating,omitempty"`
	CreatedAt     time.Time          `bson:"createdAt"`
	UpdatedAt     time.Time          `bson:"updatedAt"`
}

func (r *CommentRepoMongoDB) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "issueId", Value: 1}, {Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}},
		{Keys: bson.D{{Key: "authorId", Value: 1}, {Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "issueCategory", Value: 1}, {Key: "createdAt", Value: -1}}},
	})
	return err
}

func (r *CommentRepoMongoDB) Create(ctx context.Context, c *commentDomain.Comment, evt sharedDomain.OutboxEvent) error {
	oid, err := primitive.ObjectIDFromHex(c.ID)
	if err != nil {
		return fmt.Errorf("%w: %s", sharedDomain.ErrInvalidID, c.ID)
	}
	doc := mongoComment{
		ID:            oid,
		IssueID:       c.IssueID,
		IssueCategory: c.IssueCategory,
		AuthorID:      c.AuthorID,
		AuthorRole:    c.AuthorRole,
		Text:          c.Text,
		Rating:        c.Rating,
		CreatedAt:     c.CreatedAt,
		UpdatedAt:     c.UpdatedAt,
	}
	return r.db.WithTx(ctx, func(ctx context.Context) error {
		if _, err := r.coll.InsertOne(ctx, doc); err != nil {
			if mongo.IsDuplicateKeyError(err) {
				return commentDomain.ErrCommentAlreadyExists
			}
			return err
		}
		return r.outbox.Insert(ctx, evt)
	})
}

func (r *CommentRepoMongoDB) Update(ctx context.Context, c *commentDomain.Comment, evt sharedDomain.OutboxEvent) error {
	oid, err := sharedMongo.OID(c.ID, commentDomain.ErrCommentNotFound)
	if err != nil {
		return err
	}
	set := bson.M{"text": c.Text, "rating": c.Rating, "updatedAt": c.UpdatedAt}

	return r.db.WithTx(ctx, func(ctx context.Context) error {
		res, err := r.coll.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": set})
		if err != nil {
			return err
		}
		if res.MatchedCount == 0 {
			return commentDomain.ErrCommentNotFound
		}
		return r.outbox.Insert(ctx, evt)
	})
}

func (r *CommentRepoMongoDB) DeleteByID(ctx context.Context, id string, evt sharedDomain.OutboxEvent) error {
	oid, err := sharedMongo.OID(id, commentDomain.ErrCommentNotFound)
	if err != nil {
		return err
	}
	return r.db.WithTx(ctx, func(ctx context.Context) error {
		res, err := r.coll.DeleteOne(ctx, bson.M{"_id": oid})
		if err != nil {
			return err
		}
		if res.DeletedCount == 0 {
			return commentDomain.ErrCommentNotFound
		}
		return r.outbox.Insert(ctx, evt)
	})
}

func (r *CommentRepoMongoDB) GetByID(ctx context.Context, id string) (*commentDomain.Comment, error) {
	doc, err := sharedMongo.FindByID[mongoComment](ctx, r.coll, id, commentDomain.ErrCommentNotFound)
	if err != nil {
		return nil, err
	}
	return toDomainComment(doc), nil
}

func (r *CommentRepoMongoDB) ListPage(ctx context.Context, criteria sharedDomain.Criteria, f sharedQuery.PaginationFilter) ([]*commentDomain.Comment, error) {
	return sharedMongo.FindPage(ctx, r.coll, criteria, f, toDomainComment)
}

func toDomainComment(m *mongoComment) *commentDomain.Comment {
	return &commentDomain.Comment{
		ID:            m.ID.Hex(),
		IssueID:       m.IssueID,
		IssueCategory: m.IssueCategory,
		AuthorID:      m.AuthorID,
		AuthorRole:    m.AuthorRole,
		Text:          m.Text,
		Rating:        m.Rating,
		CreatedAt:     m.CreatedAt.UTC(),
		UpdatedAt:     m.UpdatedAt.UTC(),
	}
}

var _ commentDomain.CommentRepository = (*CommentRepoMongoDB)(nil)
