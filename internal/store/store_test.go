package store

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

type widget struct {
	ID         string    `json:"id"`
	CategoryID string    `json:"category_id"`
	Name       string    `json:"name"`
	Price      int64     `json:"price"`
	Tags       []string  `json:"tags,omitempty"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type line struct {
	OwnerID  string `json:"owner_id"`
	ItemID   string `json:"item_id"`
	Quantity int    `json:"quantity"`
}

var (
	widgetSchema = Schema{
		Name:         "widgets",
		PartitionKey: "id",
		Indexes:      map[string]string{"category-index": "category_id"},
	}
	lineSchema = Schema{
		Name:         "lines",
		PartitionKey: "owner_id",
		SortKey:      "item_id",
	}
)

type backendFactory func(t *testing.T) Backend

var dbSeq atomic.Int64

func backends() map[string]backendFactory {
	return map[string]backendFactory{
		"memory": func(t *testing.T) Backend {
			return NewMemoryBackend(zaptest.NewLogger(t))
		},
		"sqlite": func(t *testing.T) Backend {
			dsn := fmt.Sprintf("file:store%d?mode=memory&cache=shared", dbSeq.Add(1))
			b, err := OpenGORM("sqlite", dsn, zap.NewNop())
			require.NoError(t, err)
			t.Cleanup(func() { _ = b.Close() })
			return b
		},
	}
}

// runContract exercises the Table semantics every backend must share.
func runContract(t *testing.T, name string, factory backendFactory) {
	ctx := context.Background()

	t.Run(name+"/put get round trip", func(t *testing.T) {
		widgets, err := factory(t).Table(widgetSchema)
		require.NoError(t, err)

		now := time.Date(2024, 5, 1, 12, 0, 0, 123456789, time.UTC)
		in := widget{ID: "w1", CategoryID: "c1", Name: "Gear", Price: 1299, Tags: []string{"a"}, UpdatedAt: now}
		require.NoError(t, widgets.Put(ctx, in))

		var out widget
		found, err := widgets.Get(ctx, Key{Partition: "w1"}, &out)
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, in.Name, out.Name)
		assert.Equal(t, in.Price, out.Price)
		assert.True(t, now.Equal(out.UpdatedAt))

		found, err = widgets.Get(ctx, Key{Partition: "missing"}, &out)
		require.NoError(t, err)
		assert.False(t, found)
	})

	t.Run(name+"/put overwrites", func(t *testing.T) {
		widgets, err := factory(t).Table(widgetSchema)
		require.NoError(t, err)

		require.NoError(t, widgets.Put(ctx, widget{ID: "w1", Name: "old"}))
		require.NoError(t, widgets.Put(ctx, widget{ID: "w1", Name: "new"}))

		var all []widget
		require.NoError(t, widgets.Scan(ctx, &all))
		require.Len(t, all, 1)
		assert.Equal(t, "new", all[0].Name)
	})

	t.Run(name+"/put requires keys", func(t *testing.T) {
		lines, err := factory(t).Table(lineSchema)
		require.NoError(t, err)
		assert.Error(t, lines.Put(ctx, line{OwnerID: "u1"}))
	})

	t.Run(name+"/update merges and returns record", func(t *testing.T) {
		widgets, err := factory(t).Table(widgetSchema)
		require.NoError(t, err)
		require.NoError(t, widgets.Put(ctx, widget{ID: "w1", CategoryID: "c1", Name: "Gear", Price: 100}))

		var out widget
		err = widgets.Update(ctx, Key{Partition: "w1"}, []Assignment{Set("price", int64(250))}, &out)
		require.NoError(t, err)
		assert.Equal(t, int64(250), out.Price)
		assert.Equal(t, "Gear", out.Name)
		assert.Equal(t, "c1", out.CategoryID)
	})

	t.Run(name+"/update on missing key", func(t *testing.T) {
		widgets, err := factory(t).Table(widgetSchema)
		require.NoError(t, err)

		err = widgets.Update(ctx, Key{Partition: "nope"}, []Assignment{Set("name", "x")}, nil)
		assert.ErrorIs(t, err, ErrNotFound)

		var all []widget
		require.NoError(t, widgets.Scan(ctx, &all))
		assert.Empty(t, all)
	})

	t.Run(name+"/update rejects key attributes", func(t *testing.T) {
		widgets, err := factory(t).Table(widgetSchema)
		require.NoError(t, err)
		require.NoError(t, widgets.Put(ctx, widget{ID: "w1"}))
		assert.Error(t, widgets.Update(ctx, Key{Partition: "w1"}, []Assignment{Set("id", "w2")}, nil))
	})

	t.Run(name+"/delete is idempotent", func(t *testing.T) {
		widgets, err := factory(t).Table(widgetSchema)
		require.NoError(t, err)
		require.NoError(t, widgets.Put(ctx, widget{ID: "w1"}))

		require.NoError(t, widgets.Delete(ctx, Key{Partition: "w1"}))
		require.NoError(t, widgets.Delete(ctx, Key{Partition: "w1"}))

		found, err := widgets.Get(ctx, Key{Partition: "w1"}, &widget{})
		require.NoError(t, err)
		assert.False(t, found)
	})

	t.Run(name+"/query by index", func(t *testing.T) {
		widgets, err := factory(t).Table(widgetSchema)
		require.NoError(t, err)
		require.NoError(t, widgets.Put(ctx, widget{ID: "w1", CategoryID: "c1", Name: "a"}))
		require.NoError(t, widgets.Put(ctx, widget{ID: "w2", CategoryID: "c2", Name: "b"}))
		require.NoError(t, widgets.Put(ctx, widget{ID: "w3", CategoryID: "c1", Name: "c"}))

		var got []widget
		require.NoError(t, widgets.Query(ctx, Query{Index: "category-index", Value: "c1"}, &got))
		assert.ElementsMatch(t, []string{"w1", "w3"}, ids(got))

		got = nil
		require.NoError(t, widgets.Query(ctx, Query{Index: "category-index", Value: "c1", Field: "name", FieldValue: "c"}, &got))
		assert.Equal(t, []string{"w3"}, ids(got))

		err = widgets.Query(ctx, Query{Index: "bogus-index", Value: "c1"}, &got)
		assert.Error(t, err)
	})

	t.Run(name+"/query by partition and sort", func(t *testing.T) {
		lines, err := factory(t).Table(lineSchema)
		require.NoError(t, err)
		require.NoError(t, lines.Put(ctx, line{OwnerID: "u1", ItemID: "p1", Quantity: 1}))
		require.NoError(t, lines.Put(ctx, line{OwnerID: "u1", ItemID: "p2", Quantity: 2}))
		require.NoError(t, lines.Put(ctx, line{OwnerID: "u2", ItemID: "p1", Quantity: 3}))

		var got []line
		require.NoError(t, lines.Query(ctx, Query{Value: "u1"}, &got))
		assert.Len(t, got, 2)

		got = nil
		require.NoError(t, lines.Query(ctx, Query{Value: "u1", Field: "item_id", FieldValue: "p2"}, &got))
		require.Len(t, got, 1)
		assert.Equal(t, 2, got[0].Quantity)
	})

	t.Run(name+"/batch write and batch get", func(t *testing.T) {
		lines, err := factory(t).Table(lineSchema)
		require.NoError(t, err)

		items := make([]any, 0, 60)
		for i := 0; i < 60; i++ {
			items = append(items, line{OwnerID: "o1", ItemID: fmt.Sprintf("p%02d", i), Quantity: i})
		}
		// duplicate key: last write wins
		items = append(items, line{OwnerID: "o1", ItemID: "p00", Quantity: 99})
		require.NoError(t, lines.BatchWrite(ctx, items))

		var all []line
		require.NoError(t, lines.Query(ctx, Query{Value: "o1"}, &all))
		assert.Len(t, all, 60)

		var some []line
		keys := []Key{{"o1", "p00"}, {"o1", "p10"}, {"o1", "p10"}, {"o1", "missing"}}
		require.NoError(t, lines.BatchGet(ctx, keys, &some))
		require.Len(t, some, 2)
		byItem := map[string]int{}
		for _, l := range some {
			byItem[l.ItemID] = l.Quantity
		}
		assert.Equal(t, 99, byItem["p00"])
		assert.Equal(t, 10, byItem["p10"])
	})

	t.Run(name+"/tables are isolated", func(t *testing.T) {
		b := factory(t)
		a, err := b.Table(Schema{Name: "a", PartitionKey: "id"})
		require.NoError(t, err)
		other, err := b.Table(Schema{Name: "b", PartitionKey: "id"})
		require.NoError(t, err)
		require.NoError(t, a.Put(ctx, widget{ID: "w1"}))

		var got []widget
		require.NoError(t, other.Scan(ctx, &got))
		assert.Empty(t, got)
		require.NoError(t, b.Ping(ctx))
	})
}

func TestTableContract(t *testing.T) {
	for name, factory := range backends() {
		runContract(t, name, factory)
	}
}

func TestSchemaValidation(t *testing.T) {
	b := NewMemoryBackend(zap.NewNop())
	_, err := b.Table(Schema{PartitionKey: "id"})
	assert.Error(t, err)
	_, err = b.Table(Schema{Name: "x"})
	assert.Error(t, err)
}

func TestSchemasUseConfiguredNames(t *testing.T) {
	schemas := Schemas(testTableNames())
	assert.Equal(t, "t-users", schemas["users"].Name)
	assert.Equal(t, "email", schemas["users"].Indexes["email-index"])
	assert.Equal(t, "product_id", schemas["cart_items"].SortKey)
	assert.Equal(t, "user_id", schemas["orders"].Indexes["user-index"])
}

func ids(ws []widget) []string {
	out := make([]string, 0, len(ws))
	for _, w := range ws {
		out = append(out, w.ID)
	}
	return out
}
