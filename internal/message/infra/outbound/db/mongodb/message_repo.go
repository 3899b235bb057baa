package mongodb

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	messageDomain "github.com/davicafu/civicreport/internal/message/domain"
	sharedDomain "github.com/davicafu/civicreport/internal/shared/domain"
	sharedMongo "github.com/davicafu/civicreport/internal/shared/infra/platform/db/mongodb"
	sharedQuery "github.com/davicafu/civicreport/internal/shared/infra/platform/query"
)

const MessagesCollection = "messages"

type MessageRepoMongoDB struct {
	db     *sharedMongo.Database
	coll   *mongo.Collection
	outbox *sharedMongo.OutboxRepo
}

func NewMessageRepoMongoDB(db *sharedMongo.Database, outbox *sharedMongo.OutboxRepo) *MessageRepoMongoDB {
	return &MessageRepoMongoDB{
		db:     db,
		coll:   db.Collection(MessagesCollection),
		outbox: outbox,
	}
}

type mongoMessage struct {
	ID          primitive.ObjectID `bson:"_id"`
	IssueID     string             `bson:"issueId,omitempty"`
	SenderID    string             `bson:"senderId"`
	SenderRole  string             `bson:"senderRole"`
	RecipientID string             `bson:"recipientId"`
	Body        string             `bson:"body"`
	ReadAt      *time.Time         `bson:"readAt,omitempty"`
	CreatedAt   time.Time          `bson:"createdAt"`
}

func (r *MessageRepoMongoDB) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "recipientId", Value: 1}, {Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "senderId", Value: 1}, {Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "issueId", Value: 1}, {Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}},
	})
	return err
}

func (r *MessageRepoMongoDB) Create(ctx context.Context, m *messageDomain.Message, evts ...sharedDomain.OutboxEvent) error {
	oid, err := primitive.ObjectIDFromHex(m.ID)
	if err != nil {
		return fmt.Errorf("%w: %s", sharedDomain.ErrInvalidID, m.ID)
	}
	doc := mongoMessage{
		ID:          oid,
		IssueID:     m.IssueID,
		SenderID:    m.SenderID,
		SenderRole:  m.SenderRole,
		RecipientID: m.RecipientID,
		Body:        m.Body,
		ReadAt:      m.ReadAt,
		CreatedAt:   m.CreatedAt,
	}
	return r.db.WithTx(ctx, func(ctx context.Context) error {
		if _, err := r.coll.InsertOne(ctx, doc); err != nil {
			if mongo.IsDuplicateKeyError(err) {
				return messageDomain.ErrMessageAlreadyExists
			}
			return err
		}
		return r.insertEvents(ctx, evts)
	})
}

func (r *MessageRepoMongoDB) MarkRead(ctx context.Context, m *messageDomain.Message, evts ...sharedDomain.OutboxEvent) error {
	oid, err := sharedMongo.OID(m.ID, messageDomain.ErrMessageNotFound)
	if err != nil {
		return err
	}
	return r.db.WithTx(ctx, func(ctx context.Context) error {
		res, err := r.coll.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": bson.M{"readAt": m.ReadAt}})
		if err != nil {
			return err
		}
		if res.MatchedCount == 0 {
			return messageDomain.ErrMessageNotFound
		}
		return r.insertEvents(ctx, evts)
	})
}

func (r *MessageRepoMongoDB) insertEvents(ctx context.Context, evts []sharedDomain.OutboxEvent) error {
	for _, evt := range evts {
		if err := r.outbox.Insert(ctx, evt); err != nil {
			return err
		}
	}
	return nil
}

func (r *MessageRepoMongoDB) GetByID(ctx context.Context, id string) (*messageDomain.Message, error) {
	doc, err := sharedMongo.FindByID[mongoMessage](ctx, r.coll, id, messageDomain.ErrMessageNotFound)
	if err != nil {
		return nil, err
	}
	return toDomainMessage(doc), nil
}

func (r *MessageRepoMongoDB) ListPage(ctx context.Context, criteria sharedDomain.Criteria, f sharedQuery.PaginationFilter) ([]*messageDomain.Message, error) {
	return sharedMongo.FindPage(ctx, r.coll, criteria, f, toDomainMessage)
}

func toDomainMessage(m *mongoMessage) *messageDomain.Message {
	msg := &messageDomain.Message{
		ID:          m.ID.Hex(),
		IssueID:     m.IssueID,
		SenderID:    m.SenderID,
		SenderRole:  m.SenderRole,
		RecipientID: m.RecipientID,
		Body:        m.Body,
		CreatedAt:   m.CreatedAt.UTC(),
	}
	if m.ReadAt != nil {
		at := m.ReadAt.UTC()
		msg.ReadAt = &at
	}
	return msg
}

var _ messageDomain.MessageRepository = (*MessageRepoMongoDB)(nil)
