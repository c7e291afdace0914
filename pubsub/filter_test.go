package pubsub

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

func TestCompileFilter_NilOnEmpty(t *testing.T) {
	f, err := compileFilter(nil)
	require.NoError(t, err)
	assert.Nil(t, f)

	f, err = compileFilter(bson.Raw{})
	require.NoError(t, err)
	assert.Nil(t, f)
}

func TestEqualityFilter_Match(t *testing.T) {
	filter, err := bson.Marshal(bson.M{"status": "open"})
	require.NoError(t, err)
	f, err := compileFilter(filter)
	require.NoError(t, err)
	require.NotNil(t, f)

	matching, err := bson.Marshal(bson.M{"status": "open", "x": 1})
	require.NoError(t, err)
	assert.True(t, f.Match(matching))

	nonMatching, err := bson.Marshal(bson.M{"status": "closed"})
	require.NoError(t, err)
	assert.False(t, f.Match(nonMatching))

	missingField, err := bson.Marshal(bson.M{"other": 1})
	require.NoError(t, err)
	assert.False(t, f.Match(missingField))
}

func TestEqualityFilter_NumericTypesNormalize(t *testing.T) {
	filter, err := bson.Marshal(bson.M{"count": int64(3)})
	require.NoError(t, err)
	f, err := compileFilter(filter)
	require.NoError(t, err)

	payload, err := bson.Marshal(bson.M{"count": int32(3)})
	require.NoError(t, err)
	assert.True(t, f.Match(payload))
}

func TestEqualityFilter_NilReceiverMatchesEverything(t *testing.T) {
	var f *equalityFilter
	assert.True(t, f.Match([]byte("anything")))
}

func TestCompileProjection_NilOnEmpty(t *testing.T) {
	p, err := compileProjection(nil)
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestFieldProjection_KeepsOnlyNamedFields(t *testing.T) {
	projection, err := bson.Marshal(bson.M{"x": 1, "y": 1})
	require.NoError(t, err)
	p, err := compileProjection(projection)
	require.NoError(t, err)
	require.NotNil(t, p)

	payload, err := bson.Marshal(bson.M{"x": 1, "y": 2, "z": 3})
	require.NoError(t, err)

	out := p.Project(payload)
	var doc bson.M
	require.NoError(t, bson.Unmarshal(out, &doc))
	assert.ElementsMatch(t, []string{"x", "y"}, keysOf(doc))
}

func TestFieldProjection_FalseyFieldsExcluded(t *testing.T) {
	projection, err := bson.Marshal(bson.M{"x": 1, "y": 0})
	require.NoError(t, err)
	p, err := compileProjection(projection)
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, []string{"x"}, p.fields)
}

func TestFieldProjection_NilReceiverPassesThrough(t *testing.T) {
	var p *fieldProjection
	payload := []byte("anything")
	assert.Equal(t, payload, p.Project(payload))
}

func keysOf(m bson.M) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
