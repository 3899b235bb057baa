package mongodb

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	sharedDomain "github.com/davicafu/civicreport/internal/shared/domain"
	sharedMongo "github.com/davicafu/civicreport/internal/shared/infra/platform/db/mongodb"
	sharedQuery "github.com/davicafu/civicreport/internal/shared/infra/platform/query"
	userDomain "github.com/davicafu/civicreport/internal/user/domain"
)

const UsersCollection = "users"

type UserRepoMongoDB struct {
	db     *sharedMongo.Database
	coll   *mongo.Collection
	outbox *sharedMongo.OutboxRepo
}

func NewUserRepoMongoDB(db *sharedMongo.Database, outbox *sharedMongo.OutboxRepo) *UserRepoMongoDB {
	return &UserRepoMongoDB{
		db:     db,
		coll:   db.Collection(UsersCollection),
		outbox: outbox,
	}
}

// --- Structs de BSON para el mapeo ---

type mongoUser struct {
	ID        primitive.ObjectID `bson:"_id"`
	Name      string             `bson:"name"`
	Email     string             `bson:"email"`
	Role      string             `bson:"role"`
	Category  string             `bson:"category,omitempty"`
	Division  string             `bson:"division,omitempty"`
	CreatedAt time.Time          `bson:"createdAt"`
	UpdatedAt time.Time          `bson:"updatedAt"`
}

// EnsureIndexes crea el índice único de email y el de listados por rol.
func (r *UserRepoMongoDB) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "role", Value: 1}, {Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}},
	})
	return err
}

func (r *UserRepoMongoDB) Create(ctx context.Context, u *userDomain.User, evt sharedDomain.OutboxEvent) error {
	oid, err := primitive.ObjectIDFromHex(u.ID)
	if err != nil {
		return fmt.Errorf("%w: %s", sharedDomain.ErrInvalidID, u.ID)
	}
	doc := mongoUser{
		ID:        oid,
		Name:      u.Name,
		Email:     u.Email,
		Role:      u.Role,
		Category:  u.Category,
		Division:  u.Division,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
	return r.db.WithTx(ctx, func(ctx context.Context) error {
		if _, err := r.coll.InsertOne(ctx, doc); err != nil {
			if mongo.IsDuplicateKeyError(err) {
				return userDomain.ErrUserAlreadyExists
			}
			return err
		}
		return r.outbox.Insert(ctx, evt)
	})
}

func (r *UserRepoMongoDB) Update(ctx context.Context, u *userDomain.User, evt sharedDomain.OutboxEvent) error {
	oid, err := sharedMongo.OID(u.ID, userDomain.ErrUserNotFound)
	if err != nil {
		return err
	}
	set := bson.M{
		"name":      u.Name,
		"role":      u.Role,
		"category":  u.Category,
		"division":  u.Division,
		"updatedAt": u.UpdatedAt,
	}
	return r.db.WithTx(ctx, func(ctx context.Context) error {
		res, err := r.coll.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": set})
		if err != nil {
			return err
		}
		if res.MatchedCount == 0 {
			return userDomain.ErrUserNotFound
		}
		return r.outbox.Insert(ctx, evt)
	})
}

func (r *UserRepoMongoDB) DeleteByID(ctx context.Context, id string, evt sharedDomain.OutboxEvent) error {
	oid, err := sharedMongo.OID(id, userDomain.ErrUserNotFound)
	if err != nil {
		return err
	}
	return r.db.WithTx(ctx, func(ctx context.Context) error {
		res, err := r.coll.DeleteOne(ctx, bson.M{"_id": oid})
		if err != nil {
			return err
		}
		if res.DeletedCount == 0 {
			return userDomain.ErrUserNotFound
		}
		return r.outbox.Insert(ctx, evt)
	})
}

func (r *UserRepoMongoDB) GetByID(ctx context.Context, id string) (*userDomain.User, error) {
	doc, err := sharedMongo.FindByID[mongoUser](ctx, r.coll, id, userDomain.ErrUserNotFound)
	if err != nil {
		return nil, err
	}
	return toDomainUser(doc), nil
}

func (r *UserRepoMongoDB) ListPage(ctx context.Context, criteria sharedDomain.Criteria, f sharedQuery.PaginationFilter) ([]*userDomain.User, error) {
	return sharedMongo.FindPage(ctx, r.coll, criteria, f, toDomainUser)
}

func toDomainUser(m *mongoUser) *userDomain.User {
	return &userDomain.User{
		ID:        m.ID.Hex(),
		Name:      m.Name,
		Email:     m.Email,
		Role:      m.Role,
		Category:  m.Category,
		Division:  m.Division,
		CreatedAt: m.CreatedAt.UTC(),
		UpdatedAt: m.UpdatedAt.UTC(),
	}
}

// Verificación estática de la interfaz.
var _ userDomain.UserRepository = (*UserRepoMongoDB)(nil)
