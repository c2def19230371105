package feeder

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	defaultMongoPort       = 27017
	defaultMongoDB         = "test"
	defaultMongoCollection = "my_collection"
	defaultMongoSleep      = 1 * time.Second
	defaultMongoTimeout    = 10 * time.Second
)

// collection is the subset of *mongo.Collection the transport uses.
type collection interface {
	CountDocuments(ctx context.Context, filter any, opts ...*options.CountOptions) (int64, error)
	InsertOne(ctx context.Context, document any, opts ...*options.InsertOneOptions) (*mongo.InsertOneResult, error)
	ReplaceOne(ctx context.Context, filter any, replacement any, opts ...*options.ReplaceOptions) (*mongo.UpdateResult, error)
}

type mongoTransport struct {
	uri        string
	timeout    time.Duration
	db         string
	collection string
	sleep      time.Duration

	// dial connects and binds the collection; disconnect releases it.
	dial       func(ctx context.Context) (coll collection, disconnect func(context.Context) error, err error)
	disconnect func(context.Context) error
	coll       collection
	before     int64
	log        logrus.FieldLogger
}

func newMongoDBTransport(cfg Config) (Transport, error) {
	host, err := cfg.RequireString("host")
	if err != nil {
		return nil, err
	}
	port, err := cfg.Int("port", defaultMongoPort)
	if err != nil {
		return nil, err
	}
	t := &mongoTransport{
		uri: fmt.Sprintf("mongodb://%s", net.JoinHostPort(host, fmt.Sprint(port))),
	}
	t.dial = t.dialMongo
	if t.db, err = cfg.String("db", defaultMongoDB); err != nil {
		return nil, err
	}
	if t.collection, err = cfg.String("collection", defaultMongoCollection); err != nil {
		return nil, err
	}
	if t.sleep, err = cfg.Seconds("sleep", defaultMongoSleep); err != nil {
		return nil, err
	}
	if t.timeout, err = cfg.Seconds("timeout", defaultMongoTimeout); err != nil {
		return nil, err
	}
	t.log = transportLog("mongodb").WithFields(logrus.Fields{
		"host":       host,
		"db":         t.db,
		"collection": t.collection,
	})
	return t, nil
}

func (m *mongoTransport) dialMongo(ctx context.Context) (collection, func(context.Context) error, error) {
	client, err := mongo.Connect(ctx, options.Client().
		ApplyURI(m.uri).
		SetConnectTimeout(m.timeout).
		SetServerSelectionTimeout(m.timeout))
	if err != nil {
		return nil, nil, err
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		return nil, client.Disconnect, err
	}
	return client.Database(m.db).Collection(m.collection), client.Disconnect, nil
}

func (m *mongoTransport) Configure(ctx context.Context) (Client, error) {
	coll, disconnect, err := m.dial(ctx)
	m.disconnect = disconnect
	if err != nil {
		return nil, connectionFailed(err, "could not connect to host")
	}

	before, err := coll.CountDocuments(ctx, bson.D{})
	if err != nil {
		return nil, connectionFailed(err, "could not count documents")
	}
	m.coll = coll
	m.before = before
	m.log.WithField("docs", before).Debug("baseline taken")
	return coll, nil
}

// Send saves one document: documents carrying an _id replace any stored
// document with that id, all others are inserted.
func (m *mongoTransport) Send(ctx context.Context, c Client, r Record) error {
	coll, ok := c.(collection)
	if !ok {
		return foreignClient("mongodb", c)
	}
	doc, err := encodeDocument(r)
	if err != nil {
		return deliveryFailed(err, "could not encode record")
	}
	if id, ok := doc["_id"]; ok {
		_, err = coll.ReplaceOne(ctx, bson.M{"_id": id}, doc, options.Replace().SetUpsert(true))
	} else {
		_, err = coll.InsertOne(ctx, doc)
	}
	if err != nil {
		return deliveryFailed(err, "save failed")
	}
	return nil
}

func (m *mongoTransport) Close() {
	m.coll = nil
	if m.disconnect == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()
	if err := m.disconnect(ctx); err != nil {
		m.log.WithError(err).Warn("disconnect failed")
	}
	m.disconnect = nil
}

func (m *mongoTransport) Verify(ctx context.Context) (*Report, error) {
	if m.coll == nil {
		return nil, errors.Wrap(ErrVerify, "transport is not configured")
	}
	if err := settle(ctx, m.sleep); err != nil {
		return nil, errors.Wrap(ErrVerify, err.Error())
	}
	after, err := m.coll.CountDocuments(ctx, bson.D{})
	if err != nil {
		return nil, errors.Wrap(ErrVerify, err.Error())
	}
	return countReport("docs", m.before, after), nil
}
