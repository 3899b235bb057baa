package mongodb

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// Database agrupa el cliente y la base de datos de la aplicación.
// Transactions indica si el despliegue admite transacciones (replica set).
type Database struct {
	Client       *mongo.Client
	DB           *mongo.Database
	Transactions bool
}

// Connect abre la conexión y comprueba el primario.
func Connect(ctx context.Context, uri, dbName string, timeout time.Duration, transactions bool) (*Database, error) {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("could not connect to mongoDB: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("could not ping mongoDB: %w", err)
	}

	return &Database{Client: client, DB: client.Database(dbName), Transactions: transactions}, nil
}

// Collection es un atajo.
func (d *Database) Collection(name string) *mongo.Collection {
	return d.DB.Collection(name)
}

// WithTx ejecuta fn dentro de una transacción cuando están habilitadas; si no,
// la ejecuta directamente. fn recibe el contexto de sesión.
func (d *Database) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if !d.Transactions {
		return fn(ctx)
	}

	session, err := d.Client.StartSession()
	if err != nil {
		return err
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sessCtx mongo.SessionContext) (interface{}, error) {
		return nil, fn(sessCtx)
	})
	return err
}

// Close desconecta el cliente.
func (d *Database) Close(ctx context.Context) error {
	return d.Client.Disconnect(ctx)
}
