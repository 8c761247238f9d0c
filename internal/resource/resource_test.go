package resource

import (
	"encoding/json"
	"math"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loykin/curator/internal/apperr"
)

func TestBuiltinsAreValid(t *testing.T) {
	for _, k := range Builtins() {
		require.NoError(t, k.Validate(), k.Name)
	}
}

func TestDecodeBook(t *testing.T) {
	rec, err := Book().DecodeJSON([]byte(`{"id": 42, "title": "  Algorithms ", "author": "Cormen", "price": 89.5, "year": 2009, "extra": true}`))
	require.NoError(t, err)

	assert.Nil(t, rec.ID, "id from the body must be ignored")
	assert.Equal(t, []string{"title", "author", "price", "year"}, names(rec))
	title, _ := rec.Get("title")
	assert.Equal(t, "Algorithms", title)
	price, _ := rec.Get("price")
	assert.Equal(t, 89.5, price)
	year, _ := rec.Get("year")
	assert.Equal(t, int64(2009), year)
}

func TestDecodeCollectsEveryViolation(t *testing.T) {
	_, err := Book().Decode(map[string]any{"title": "   ", "price": float64(-1)})
	require.Error(t, err)

	ae := apperr.From(err)
	assert.Equal(t, apperr.KindValidation, ae.Kind)
	assert.Equal(t, []string{
		"title is required",
		"author is required",
		"price must be greater than 0",
		"year is required",
	}, ae.Messages)
}

func TestDecodeCustomMessages(t *testing.T) {
	_, err := Employee().Decode(map[string]any{"name": "A", "department": ""})
	require.Error(t, err)
	assert.Equal(t, []string{
		"Name must have at least 2 characters",
		"Department is mandatory and cannot be empty",
	}, apperr.From(err).Messages)

	_, err = Employee().Decode(map[string]any{})
	require.Error(t, err)
	assert.Equal(t, "Name is mandatory and cannot be empty", apperr.From(err).Messages[0])
}

func TestDecodeTypeMismatch(t *testing.T) {
	_, err := Book().Decode(map[string]any{"title": 5, "author": "x", "price": "cheap", "year": 1.5})
	require.Error(t, err)
	assert.Equal(t, []string{
		"title must be a string",
		"price must be a number",
		"year must be an integer",
	}, apperr.From(err).Messages)
}

func TestDecodeJSONMalformed(t *testing.T) {
	for _, body := range []string{
		"", "  ", "{", "[1,2]", "null", `"text"`,
		`{"title":"T","author":"A","price":1,"year":1} junk`,
		`{"title":"T","author":"A","price":1,"year":1}{}`,
		`{"title":"T","author":"A","price":1,"year":1}]`,
	} {
		_, err := Book().DecodeJSON([]byte(body))
		require.Error(t, err, "body %q", body)
		assert.Equal(t, apperr.KindInvalidArgument, apperr.KindOf(err), "body %q", body)
	}
}

func TestAssignKeepsIdentity(t *testing.T) {
	existing := Record{Fields: []FieldValue{{"title", "Old"}, {"author", "A"}}}.WithID(7)
	incoming := Record{Fields: []FieldValue{{"title", "New"}, {"author", "B"}}}.WithID(99)

	out := existing.Assign(incoming)
	require.NotNil(t, out.ID)
	assert.Equal(t, int64(7), *out.ID)
	v, _ := out.Get("title")
	assert.Equal(t, "New", v)

	old, _ := existing.Get("title")
	assert.Equal(t, "Old", old, "Assign must not mutate the receiver")
}

func TestRecordJSONOrder(t *testing.T) {
	rec := Record{Fields: []FieldValue{{"title", "Algorithms"}, {"author", "Cormen"}, {"price", 89.5}, {"year", int64(2009)}}}
	b, err := json.Marshal(rec)
	require.NoError(t, err)
	assert.Equal(t, `{"id":null,"title":"Algorithms","author":"Cormen","price":89.5,"year":2009}`, string(b))

	b, err = json.Marshal(rec.WithID(3))
	require.NoError(t, err)
	assert.Equal(t, `{"id":3,"title":"Algorithms","author":"Cormen","price":89.5,"year":2009}`, string(b))

	var back Record
	require.NoError(t, json.Unmarshal(b, &back))
	require.NotNil(t, back.ID)
	assert.Equal(t, int64(3), *back.ID)
	assert.Equal(t, names(rec), names(back))
	y, _ := back.Get("year")
	assert.Equal(t, int64(2009), y)
}

func TestRestore(t *testing.T) {
	id := int64(4)
	rec, err := Book().Restore(&id, map[string]any{"title": "T", "author": "A", "price": float64(10), "year": float64(1999)})
	require.NoError(t, err)
	assert.Equal(t, int64(4), *rec.ID)
	y, _ := rec.Get("year")
	assert.Equal(t, int64(1999), y)

	_, err = Book().Restore(nil, map[string]any{"year": "soon"})
	assert.Error(t, err)
}

func TestRestoreLargeIntegers(t *testing.T) {
	for _, n := range []int64{9007199254740993, math.MaxInt64, math.MinInt64} {
		rec, err := Book().Restore(nil, map[string]any{"year": json.Number(strconv.FormatInt(n, 10))})
		require.NoError(t, err)
		y, _ := rec.Get("year")
		assert.Equal(t, n, y)
	}

	// 2^63 does not fit in an int64.
	_, err := Book().Restore(nil, map[string]any{"year": float64(1 << 63)})
	assert.Error(t, err)
}

func TestDecodeJSONTrailingWhitespace(t *testing.T) {
	rec, err := Book().DecodeJSON([]byte("{\"title\":\"T\",\"author\":\"A\",\"price\":1,\"year\":1}\n\t "))
	require.NoError(t, err)
	v, _ := rec.Get("title")
	assert.Equal(t, "T", v)
}

func TestKindValidateRejects(t *testing.T) {
	cases := map[string]*Kind{
		"no name":      {Route: "x", Table: "x", Fields: []Field{{Name: "a", Type: TypeString}}},
		"bad route":    {Name: "X", Route: "X Y", Table: "x", Fields: []Field{{Name: "a", Type: TypeString}}},
		"bad table":    {Name: "X", Route: "x", Table: "x;drop", Fields: []Field{{Name: "a", Type: TypeString}}},
		"no fields":    {Name: "X", Route: "x", Table: "x"},
		"id field":     {Name: "X", Route: "x", Table: "x", Fields: []Field{{Name: "id", Type: TypeInt}}},
		"dup field":    {Name: "X", Route: "x", Table: "x", Fields: []Field{{Name: "a", Type: TypeString}, {Name: "a", Type: TypeString}}},
		"unknown type": {Name: "X", Route: "x", Table: "x", Fields: []Field{{Name: "a", Type: "date"}}},
		"unknown rule": {Name: "X", Route: "x", Table: "x", Fields: []Field{{Name: "a", Type: TypeString, Rules: "nonsense_rule"}}},
	}
	for name, k := range cases {
		t.Run(name, func(t *testing.T) {
			assert.ErrorIs(t, k.Validate(), ErrInvalidKind)
		})
	}
}

func TestRegistry(t *testing.T) {
	reg, err := NewRegistry(Builtins()...)
	require.NoError(t, err)

	k, ok := reg.Lookup("books")
	require.True(t, ok)
	assert.Equal(t, "Book", k.Name)
	_, ok = reg.Lookup("authors")
	assert.False(t, ok)
	assert.Len(t, reg.Kinds(), 2)

	_, err = NewRegistry(Book(), Book())
	assert.ErrorIs(t, err, ErrInvalidKind)
}

func TestMessages(t *testing.T) {
	assert.Equal(t, "Book with ID 7 not found", Book().NotFoundMessage(7))
	assert.Equal(t, "Employee with ID 1 deleted successfully", Employee().DeletedMessage(1))
	assert.Equal(t, "book", Book().Noun())
}

func names(r Record) []string {
	out := make([]string, len(r.Fields))
	for i, f := range r.Fields {
		out[i] = f.Name
	}
	return out
}
