package mongodb

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	sharedDomain "github.com/davicafu/civicreport/internal/shared/domain"
	sharedQuery "github.com/davicafu/civicreport/internal/shared/infra/platform/query"
)

// FindPage ejecuta la consulta de una página: filtros del listado más el
// predicado del cursor, orden total (sortBy, _id) y limit+1 filas.
func FindPage[D any, T any](ctx context.Context, coll *mongo.Collection, criteria sharedDomain.Criteria, f sharedQuery.PaginationFilter, conv func(*D) T) ([]T, error) {
	return Find(ctx, coll, f.Merge(criteria), f.Sorts(), int64(f.FetchLimit()), conv)
}

// Find ejecuta una consulta genérica; limit <= 0 significa sin límite.
func Find[D any, T any](ctx context.Context, coll *mongo.Collection, criteria sharedDomain.Criteria, sorts []sharedQuery.Sort, limit int64, conv func(*D) T) ([]T, error) {
	filter, err := CriteriaToFilter(criteria)
	if err != nil {
		return nil, err
	}

	opts := options.Find()
	if len(sorts) > 0 {
		opts.SetSort(SortToBson(sorts))
	}
	if limit > 0 {
		opts.SetLimit(limit)
	}

	cursor, err := coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	out := make([]T, 0)
	for cursor.Next(ctx) {
		var doc D
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		out = append(out, conv(&doc))
	}
	return out, cursor.Err()
}

// FindByID decodifica el documento con ese identificador hexadecimal.
// Devuelve notFound si el id no es válido o no existe.
func FindByID[D any](ctx context.Context, coll *mongo.Collection, id string, notFound error) (*D, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, notFound
	}
	var doc D
	if err := coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, notFound
		}
		return nil, err
	}
	return &doc, nil
}

// Count cuenta los documentos que cumplen los criterios.
func Count(ctx context.Context, coll *mongo.Collection, criteria sharedDomain.Criteria) (int64, error) {
	filter, err := CriteriaToFilter(criteria)
	if err != nil {
		return 0, err
	}
	return coll.CountDocuments(ctx, filter)
}

// OID convierte un id hexadecimal; los ids inválidos producen notFound.
func OID(id string, notFound error) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, notFound
	}
	return oid, nil
}
