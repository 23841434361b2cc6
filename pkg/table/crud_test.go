package table

import (
	"context"
	"testing"

	"sheetsdb/pkg/grid"
	"sheetsdb/pkg/schema"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInsertGeneratesPK(t *testing.T) {
	ctx := context.Background()
	tbl, store := newPeople(t)

	rec, err := tbl.Insert(ctx, schema.Row{"Name", "Surname"}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, rec.PK())
	assert.Equal(t, 1, rec.Index)
	assert.Equal(t, [][]any{{"1", "Name", "Surname"}}, sheetValues(t, store, "People"))

	rec, err = tbl.Insert(ctx, nil, schema.NamedRow{"last_name": "Only"})
	require.NoError(t, err)
	assert.Equal(t, 2, rec.PK())
	assert.Equal(t, 2, rec.Index)
	assert.Equal(t, [][]any{
		{"1", "Name", "Surname"},
		{"2", "", "Only"},
	}, sheetValues(t, store, "People"))

	got, err := tbl.WithPK(ctx, rec.PK())
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.Equal(rec))
}

func TestInsertFillsGaps(t *testing.T) {
	ctx := context.Background()
	tbl, store := newPeople(t)
	require.NoError(t, store.Write(ctx, "People", grid.Rows(1, 2, 1), [][]any{{"1"}, {"3"}}))

	rec, err := tbl.Insert(ctx, schema.Row{"a", "b"}, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, rec.PK())
	assert.Equal(t, 3, rec.Index)
}

func TestInsertPositionalKey(t *testing.T) {
	ctx := context.Background()
	tbl, store := newPeople(t)

	// A full positional row supplies its own key.
	rec, err := tbl.Insert(ctx, schema.Row{7, "a", "b"}, nil)
	require.NoError(t, err)
	assert.Equal(t, 7, rec.PK())

	// A blank key slot is filled even with generation off.
	rec, err = tbl.Insert(ctx, schema.Row{"", "c", "d"}, nil, GeneratePK(false))
	require.NoError(t, err)
	assert.Equal(t, 1, rec.PK())

	assert.Equal(t, [][]any{{"7", "a", "b"}, {"1", "c", "d"}}, sheetValues(t, store, "People"))
}

func TestInsertDuplicatePK(t *testing.T) {
	ctx := context.Background()
	tbl, store := newPeople(t)
	_, err := tbl.Insert(ctx, schema.Row{"a", "b"}, nil)
	require.NoError(t, err)

	_, err = tbl.Insert(ctx, nil, schema.NamedRow{"id": 1, "first_name": "x"}, GeneratePK(false))
	assert.ErrorIs(t, err, ErrDuplicatePrimaryKey)
	assert.Contains(t, err.Error(), "first_name")

	// Text and native keys collide too.
	_, err = tbl.Insert(ctx, nil, schema.NamedRow{"id": "1"}, GeneratePK(false))
	assert.ErrorIs(t, err, ErrDuplicatePrimaryKey)

	rec, err := tbl.Insert(ctx, nil, schema.NamedRow{"id": 5}, GeneratePK(false))
	require.NoError(t, err)
	assert.Equal(t, 5, rec.PK())
	assert.Len(t, sheetValues(t, store, "People"), 2)
}

func TestInsertErrors(t *testing.T) {
	ctx := context.Background()
	tbl, store := newPeople(t)

	_, err := tbl.Insert(ctx, schema.Row{1, "a", "b", "c"}, nil)
	assert.ErrorIs(t, err, schema.ErrRowTooLong)
	_, err = tbl.Insert(ctx, nil, schema.NamedRow{"age": 3})
	assert.ErrorIs(t, err, schema.ErrUnknownField)
	assert.Empty(t, sheetValues(t, store, "People"))
}

func TestInsertWithoutPK(t *testing.T) {
	ctx := context.Background()
	s, err := schema.Resolve("Log", []schema.Field{
		schema.Column("msg", schema.TypeText),
		schema.Column("level", schema.TypeInt),
	})
	require.NoError(t, err)
	store := grid.NewMemory("Log")
	tbl := New(s, store, Options{})

	key, err := tbl.GeneratePK(ctx)
	require.NoError(t, err)
	assert.Nil(t, key)

	rec, err := tbl.Insert(ctx, schema.Row{"hello"}, nil)
	require.NoError(t, err)
	assert.Nil(t, rec.PK())
	assert.Equal(t, [][]any{{"hello", "0"}}, sheetValues(t, store, "Log"))

	_, err = tbl.WithPK(ctx, 1)
	assert.ErrorIs(t, err, schema.ErrMissingPrimaryKey)
	_, err = tbl.UpdateOrInsert(ctx, schema.NamedRow{"msg": "hello"}, nil, false)
	assert.ErrorIs(t, err, schema.ErrMissingPrimaryKey)
}

func TestInsertMany(t *testing.T) {
	ctx := context.Background()
	tbl, store := newPeople(t)
	_, err := tbl.Insert(ctx, schema.Row{"a", "b"}, nil)
	require.NoError(t, err)

	next, err := tbl.InsertMany(ctx, []schema.Row{
		{"2", "c", "d"},
		{"3", "e"},
	})
	require.NoError(t, err)
	assert.Equal(t, 4, next)
	assert.Equal(t, [][]any{
		{"1", "a", "b"},
		{"2", "c", "d"},
		{"3", "e"},
	}, sheetValues(t, store, "People"))

	_, err = tbl.InsertMany(ctx, []schema.Row{{"4"}, {"5", "a", "b", "extra"}})
	assert.ErrorIs(t, err, schema.ErrRowTooLong)
	assert.Contains(t, err.Error(), "extra")
	assert.Len(t, sheetValues(t, store, "People"), 3)

	next, err = tbl.InsertMany(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 4, next)
}

func TestWithPK(t *testing.T) {
	ctx := context.Background()
	tbl, _ := newPeople(t)
	_, err := tbl.Insert(ctx, schema.Row{"Name", "Surname"}, nil)
	require.NoError(t, err)

	for _, key := range []any{1, "1", int64(1), 1.0} {
		rec, err := tbl.WithPK(ctx, key)
		require.NoError(t, err)
		require.NotNil(t, rec, "%#v", key)
		assert.Equal(t, 1, rec.Index)
		assert.Equal(t, "People(1)", rec.String())
		want, err := tbl.NewRecord(schema.Row{"1", "Name", "Surname"}, nil)
		require.NoError(t, err)
		assert.True(t, rec.Equal(want))
	}

	rec, err := tbl.WithPK(ctx, 42)
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestUpdateWithPK(t *testing.T) {
	ctx := context.Background()
	tbl, store := newPeople(t)
	_, err := tbl.Insert(ctx, schema.Row{"Name", "Surname"}, nil)
	require.NoError(t, err)
	_, err = tbl.Insert(ctx, schema.Row{"Other", "Person"}, nil)
	require.NoError(t, err)

	rec, err := tbl.UpdateWithPK(ctx, 1, schema.Row{"New", "Surname2"}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, rec.Index)
	assert.Equal(t, [][]any{
		{"1", "New", "Surname2"},
		{"2", "Other", "Person"},
	}, sheetValues(t, store, "People"))

	// Untouched columns keep their values.
	_, err = tbl.UpdateWithPK(ctx, "2", nil, schema.NamedRow{"last_name": "Changed"})
	require.NoError(t, err)
	got, err := tbl.WithPK(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, schema.NamedRow{"id": "2", "first_name": "Other", "last_name": "Changed"}, got.Named())

	_, err = tbl.UpdateWithPK(ctx, 9, schema.Row{"x"}, nil)
	assert.ErrorIs(t, err, ErrRecordNotFound)
	assert.Contains(t, err.Error(), "9")

	_, err = tbl.UpdateWithPK(ctx, 1, nil, schema.NamedRow{"nope": 1})
	assert.ErrorIs(t, err, schema.ErrUnknownField)
}

func TestUpdatePadsShortRow(t *testing.T) {
	ctx := context.Background()
	tbl, store := newPeople(t)
	require.NoError(t, store.Write(ctx, "People", grid.Cell(1, 1), [][]any{{"1"}}))

	rec, err := tbl.UpdateWithPK(ctx, 1, nil, schema.NamedRow{"last_name": "X"})
	require.NoError(t, err)
	assert.Equal(t, schema.Row{1, "", "X"}, rec.Row())
	assert.Equal(t, [][]any{{"1", "", "X"}}, sheetValues(t, store, "People"))
}

// blankRowReads serves whole-table and column reads from Memory but answers
// every single-row read with nothing, like a store whose cached view of the
// sheet is behind.
type blankRowReads struct {
	*grid.Memory
}

func (b blankRowReads) Values(ctx context.Context, sheet string, r grid.Range) ([][]any, error) {
	if r.ToRow > 0 && r.FromRow == r.ToRow {
		return nil, nil
	}
	return b.Memory.Values(ctx, sheet, r)
}

func TestUpdateNeverWritesOverEmptyRead(t *testing.T) {
	ctx := context.Background()
	store := grid.NewMemory("People")
	require.NoError(t, store.Write(ctx, "People", grid.Rows(1, 1, 1), [][]any{{"1", "Ann", "Lee"}}))
	tbl := New(peopleSchema(t), blankRowReads{store}, Options{})

	_, err := tbl.UpdateWithPK(ctx, 1, nil, schema.NamedRow{"last_name": "Changed"})
	assert.ErrorIs(t, err, ErrRecordNotFound)
	_, err = tbl.UpdateWithIndex(ctx, 1, nil, schema.NamedRow{"last_name": "Changed"})
	assert.ErrorIs(t, err, ErrRecordNotFound)
	assert.Equal(t, [][]any{{"1", "Ann", "Lee"}}, sheetValues(t, store, "People"))

	rec, err := tbl.WithPK(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestUpdateWithIndex(t *testing.T) {
	ctx := context.Background()
	tbl, store := newPeople(t)
	_, err := tbl.InsertMany(ctx, []schema.Row{{"1", "a", "b"}, {"2", "c", "d"}})
	require.NoError(t, err)

	rec, err := tbl.UpdateWithIndex(ctx, 2, nil, schema.NamedRow{"first_name": "z"})
	require.NoError(t, err)
	assert.Equal(t, "2", rec.PK())
	assert.Equal(t, [][]any{{"1", "a", "b"}, {"2", "z", "d"}}, sheetValues(t, store, "People"))

	_, err = tbl.UpdateWithIndex(ctx, 0, nil, nil)
	assert.ErrorIs(t, err, ErrRecordNotFound)
	_, err = tbl.UpdateWithIndex(ctx, 5, nil, schema.NamedRow{"first_name": "z"})
	assert.ErrorIs(t, err, ErrRecordNotFound)
	assert.Len(t, sheetValues(t, store, "People"), 2)
}

func TestUpdateOrInsert(t *testing.T) {
	ctx := context.Background()
	tbl, store := newPeople(t)
	_, err := tbl.InsertMany(ctx, []schema.Row{
		{"1", "Ann", "Lee"},
		{"2", "Bob", "Lee"},
		{"3", "Cid", "Ray"},
	})
	require.NoError(t, err)

	t.Run("updates every match", func(t *testing.T) {
		recs, err := tbl.UpdateOrInsert(ctx, schema.NamedRow{"last_name": "Lee"}, schema.NamedRow{"first_name": "X"}, false)
		require.NoError(t, err)
		require.Len(t, recs, 2)
		assert.Equal(t, 1, recs[0].Index)
		assert.Equal(t, 2, recs[1].Index)
		assert.Equal(t, [][]any{
			{"1", "X", "Lee"},
			{"2", "X", "Lee"},
			{"3", "Cid", "Ray"},
		}, sheetValues(t, store, "People"))
	})

	t.Run("first only", func(t *testing.T) {
		recs, err := tbl.UpdateOrInsert(ctx, schema.NamedRow{"last_name": "Lee"}, schema.NamedRow{"first_name": "Y"}, true)
		require.NoError(t, err)
		require.Len(t, recs, 1)
		assert.Equal(t, [][]any{
			{"1", "Y", "Lee"},
			{"2", "X", "Lee"},
			{"3", "Cid", "Ray"},
		}, sheetValues(t, store, "People"))
	})

	t.Run("pk alias", func(t *testing.T) {
		recs, err := tbl.UpdateOrInsert(ctx, schema.NamedRow{"pk": 3}, schema.NamedRow{"last_name": "Ray2"}, false)
		require.NoError(t, err)
		require.Len(t, recs, 1)
		assert.Equal(t, 3, recs[0].Index)
		assert.Equal(t, "Ray2", recs[0].Named()["last_name"])
	})

	t.Run("inserts when nothing matches", func(t *testing.T) {
		recs, err := tbl.UpdateOrInsert(ctx, schema.NamedRow{"pk": 5}, schema.NamedRow{"first_name": "X"}, false)
		require.NoError(t, err)
		require.Len(t, recs, 1)
		assert.Equal(t, 4, recs[0].Index)
		assert.Equal(t, schema.NamedRow{"id": 5, "first_name": "X", "last_name": ""}, recs[0].Named())
		values := sheetValues(t, store, "People")
		assert.Equal(t, []any{"5", "X"}, values[3])
	})

	t.Run("multiple filters", func(t *testing.T) {
		recs, err := tbl.UpdateOrInsert(ctx, schema.NamedRow{"first_name": "X", "last_name": "Lee"}, schema.NamedRow{"last_name": "Kim"}, false)
		require.NoError(t, err)
		require.Len(t, recs, 1)
		assert.Equal(t, "2", recs[0].PK())
	})

	t.Run("unknown filter field", func(t *testing.T) {
		_, err := tbl.UpdateOrInsert(ctx, schema.NamedRow{"age": 1}, nil, false)
		assert.ErrorIs(t, err, schema.ErrUnknownField)
	})
}

func TestSave(t *testing.T) {
	ctx := context.Background()
	tbl, store := newPeople(t)

	rec, err := tbl.NewRecord(nil, schema.NamedRow{"first_name": "Name", "last_name": "Surname"})
	require.NoError(t, err)
	assert.Nil(t, rec.PK())
	assert.Zero(t, rec.Index)

	require.NoError(t, tbl.Save(ctx, rec))
	assert.Equal(t, 1, rec.PK())
	assert.Equal(t, 1, rec.Index)

	require.NoError(t, rec.Set("last_name", "Changed"))
	require.NoError(t, tbl.Save(ctx, rec))
	assert.Equal(t, [][]any{{"1", "Name", "Changed"}}, sheetValues(t, store, "People"))

	got, err := tbl.WithPK(ctx, rec.PK())
	require.NoError(t, err)
	assert.True(t, got.Equal(rec))
}
