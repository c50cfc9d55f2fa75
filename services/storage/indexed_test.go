package storage_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/anjihan3601K/suraksha/services/storage"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type object struct {
	ID    string
	Value string
	Date  time.Time
}

func (o object) ObjectID() string {
	return o.ID
}

func (o object) MarshalBinary() ([]byte, error) {
	return json.Marshal(o)
}

func (o *object) UnmarshalBinary(data []byte) error {
	return json.Unmarshal(data, o)
}

func newIndexedStore(t *testing.T, s storage.Interface) *storage.IndexedStore {
	c := storage.DefaultIndexedStoreConfig("objects", func() storage.BinaryObject {
		return new(object)
	})
	c.Indexes = append(c.Indexes, storage.Index{
		Name: "date",
		ValueFunc: func(o storage.BinaryObject) (string, error) {
			obj, ok := o.(*object)
			if !ok {
				return "", storage.ImpossibleTypeErr(obj, o)
			}
			return obj.Date.UTC().Format(time.RFC3339), nil
		},
	})
	is, err := storage.NewIndexedStore(s, c)
	require.NoError(t, err)
	return is
}

func ids(objects []storage.BinaryObject) []string {
	out := make([]string, len(objects))
	for i, o := range objects {
		out[i] = o.ObjectID()
	}
	return out
}

func TestIndexedStore_CRUD(t *testing.T) {
	for name, newStore := range stores {
		t.Run(name, func(t *testing.T) {
			is := newIndexedStore(t, newStore(t, "crud"))
			day := time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)

			o1 := &object{ID: "1", Value: "obj1", Date: day}
			require.NoError(t, is.Create(o1))
			assert.Equal(t, storage.ErrObjectExists, is.Create(o1))

			got, err := is.Get("1")
			require.NoError(t, err)
			if !cmp.Equal(o1, got) {
				t.Errorf("unexpected object -want/+got:\n%s", cmp.Diff(o1, got))
			}

			assert.Equal(t, storage.ErrNoObjectExists, is.Replace(&object{ID: "2"}))
			o1.Value = "updated"
			o1.Date = day.Add(time.Hour)
			require.NoError(t, is.Replace(o1))
			got, err = is.Get("1")
			require.NoError(t, err)
			assert.Equal(t, "updated", got.(*object).Value)

			// The old date index entry must be gone.
			list, err := is.List("date", "", 0, -1)
			require.NoError(t, err)
			assert.Equal(t, []string{"1"}, ids(list))

			require.NoError(t, is.Put(&object{ID: "2", Date: day}))
			require.NoError(t, is.Delete("1"))
			require.NoError(t, is.Delete("1"))
			_, err = is.Get("1")
			assert.Equal(t, storage.ErrNoObjectExists, err)

			list, err = is.List(storage.DefaultIDIndex, "", 0, -1)
			require.NoError(t, err)
			assert.Equal(t, []string{"2"}, ids(list))
		})
	}
}

func TestIndexedStore_List(t *testing.T) {
	for name, newStore := range stores {
		t.Run(name, func(t *testing.T) {
			is := newIndexedStore(t, newStore(t, "list"))
			start := time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)
			// Insert out of date order, with a shared date.
			for i, id := range []string{"c", "a", "d", "b"} {
				d := start.Add(time.Duration(i) * time.Hour)
				if id == "b" {
					d = start
				}
				require.NoError(t, is.Create(&object{ID: id, Date: d}))
			}

			testCases := []struct {
				name          string
				index         string
				pattern       string
				offset, limit int
				reverse       bool
				want          []string
			}{
				{name: "by id", index: "id", limit: -1, want: []string{"a", "b", "c", "d"}},
				{name: "by date", index: "date", limit: -1, want: []string{"b", "c", "a", "d"}},
				{name: "reverse date", index: "date", limit: -1, reverse: true, want: []string{"d", "a", "c", "b"}},
				{name: "offset limit", index: "id", offset: 1, limit: 2, want: []string{"b", "c"}},
				{name: "pattern", index: "id", pattern: "[bd]", limit: -1, want: []string{"b", "d"}},
				{name: "past end", index: "id", offset: 10, limit: -1, want: nil},
			}
			for _, tc := range testCases {
				var list []storage.BinaryObject
				var err error
				if tc.reverse {
					list, err = is.ReverseList(tc.index, tc.pattern, tc.offset, tc.limit)
				} else {
					list, err = is.List(tc.index, tc.pattern, tc.offset, tc.limit)
				}
				require.NoError(t, err, tc.name)
				assert.Equal(t, len(tc.want), len(list), tc.name)
				if len(tc.want) > 0 {
					assert.Equal(t, tc.want, ids(list), tc.name)
				}
			}
		})
	}
}

func TestIndexedStoreConfig_Validate(t *testing.T) {
	newObject := func() storage.BinaryObject { return new(object) }
	assert.NoError(t, storage.DefaultIndexedStoreConfig("ok", newObject).Validate())
	assert.Error(t, storage.DefaultIndexedStoreConfig("a/b", newObject).Validate())
	assert.Error(t, storage.DefaultIndexedStoreConfig("ok", nil).Validate())

	c := storage.DefaultIndexedStoreConfig("ok", newObject)
	c.Indexes = append(c.Indexes, storage.Index{Name: "nofunc"})
	assert.Error(t, c.Validate())
}

func TestVersionJSON(t *testing.T) {
	data, err := storage.VersionJSONEncode(2, object{ID: "x"})
	require.NoError(t, err)

	var version int
	var o object
	require.NoError(t, storage.VersionJSONDecode(data, func(v int, dec *json.Decoder) error {
		version = v
		return dec.Decode(&o)
	}))
	assert.Equal(t, 2, version)
	assert.Equal(t, "x", o.ID)
}
