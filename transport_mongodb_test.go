package feeder

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type fakeCollection struct {
	docs       map[any]map[string]any
	anonymous  int
	inserts    int
	replaces   int
	insertErr  error
	disconnect int
}

func (f *fakeCollection) CountDocuments(context.Context, any, ...*options.CountOptions) (int64, error) {
	return int64(len(f.docs) + f.anonymous), nil
}

func (f *fakeCollection) InsertOne(_ context.Context, doc any, _ ...*options.InsertOneOptions) (*mongo.InsertOneResult, error) {
	if f.insertErr != nil {
		return nil, f.insertErr
	}
	f.inserts++
	f.anonymous++
	return &mongo.InsertOneResult{}, nil
}

func (f *fakeCollection) ReplaceOne(_ context.Context, filter any, doc any, opts ...*options.ReplaceOptions) (*mongo.UpdateResult, error) {
	f.replaces++
	if len(opts) == 0 || opts[0].Upsert == nil || !*opts[0].Upsert {
		return nil, errors.New("replace without upsert")
	}
	id := filter.(bson.M)["_id"]
	f.docs[id] = doc.(map[string]any)
	return &mongo.UpdateResult{}, nil
}

func newFakeMongo(t *testing.T, fake *fakeCollection) *mongoTransport {
	t.Helper()
	tr, err := newMongoDBTransport(Config{"host": "127.0.0.1", "sleep": 0})
	require.NoError(t, err)
	m := tr.(*mongoTransport)
	m.dial = func(context.Context) (collection, func(context.Context) error, error) {
		return fake, func(context.Context) error {
			fake.disconnect++
			return nil
		}, nil
	}
	return m
}

func TestMongoDBTransport_InsertAndUpsert(t *testing.T) {
	fake := &fakeCollection{docs: map[any]map[string]any{"old": {"_id": "old"}}}
	tr := newFakeMongo(t, fake)

	records := Records(
		map[string]any{"_id": "a", "v": 1},
		map[string]any{"_id": "a", "v": 2},
		"no id",
		[]byte(`{"_id":"b"}`),
	)
	res, err := Deliver(context.Background(), tr, records)
	require.NoError(t, err)
	assert.Equal(t, 4, res.Sent)
	assert.Equal(t, 1, fake.inserts)
	assert.Equal(t, 3, fake.replaces)
	assert.Equal(t, 2, fake.docs["a"]["v"])
	assert.Equal(t, 1, fake.disconnect)

	// the repeated id replaced its predecessor
	assert.Equal(t, []Row{
		{Label: "docs before", Value: 1},
		{Label: "docs after", Value: 4},
		{Label: "docs written", Value: 3},
	}, res.Report.Rows)
}

func TestMongoDBTransport_DialFailureStillDisconnects(t *testing.T) {
	tr, err := newMongoDBTransport(Config{"host": "127.0.0.1"})
	require.NoError(t, err)
	m := tr.(*mongoTransport)

	var disconnected bool
	m.dial = func(context.Context) (collection, func(context.Context) error, error) {
		return nil, func(context.Context) error {
			disconnected = true
			return nil
		}, errors.New("no primary")
	}
	_, err = Deliver(context.Background(), m, Records("a"))
	assert.True(t, errors.Is(err, ErrConnection))
	assert.True(t, disconnected)
}

func TestMongoDBTransport_InsertFailure(t *testing.T) {
	tr := newFakeMongo(t, &fakeCollection{insertErr: errors.New("duplicate key")})
	res, err := Deliver(context.Background(), tr, Records("a"))
	assert.True(t, errors.Is(err, ErrDelivery))
	assert.Zero(t, res.Sent)
}

func TestMongoDBTransport_Defaults(t *testing.T) {
	tr, err := newMongoDBTransport(Config{"host": "db"})
	require.NoError(t, err)
	m := tr.(*mongoTransport)
	assert.Equal(t, "mongodb://db:27017", m.uri)
	assert.Equal(t, "test", m.db)
	assert.Equal(t, "my_collection", m.collection)
}
