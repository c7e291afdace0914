package pubsub

import (
	"reflect"

	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
)

// equalityFilter matches a payload document against a flat set of
// equality constraints compiled from the subscribe call's filter
// argument, e.g. {"status": "open"} matches only payloads whose status
// field is exactly "open". Nested documents compare by deep equality of
// their decoded form.
type equalityFilter struct {
	want bson.M
}

// compileFilter decodes a filter document given at subscribe time. A nil
// or empty filter matches everything.
func compileFilter(filter bson.Raw) (*equalityFilter, error) {
	if len(filter) == 0 {
		return nil, nil
	}
	var want bson.M
	if err := bson.Unmarshal(filter, &want); err != nil {
		return nil, err
	}
	if len(want) == 0 {
		return nil, nil
	}
	return &equalityFilter{want: want}, nil
}

// Match implements registry.Matcher.
func (f *equalityFilter) Match(payload []byte) bool {
	if f == nil {
		return true
	}
	var doc bson.M
	if err := bson.Unmarshal(payload, &doc); err != nil {
		log.WithError(err).Warn("pubsub: dropping message with undecodable payload during filtering")
		return false
	}
	for key, want := range f.want {
		got, ok := doc[key]
		if !ok || !reflect.DeepEqual(normalize(got), normalize(want)) {
			return false
		}
	}
	return true
}

// fieldProjection keeps only the named top-level fields of a payload
// document, compiled from the subscribe call's projection argument, e.g.
// {"x": 1, "y": 1}.
type fieldProjection struct {
	fields []string
}

// compileProjection decodes a projection document. A nil or empty
// projection passes payloads through unchanged.
func compileProjection(projection bson.Raw) (*fieldProjection, error) {
	if len(projection) == 0 {
		return nil, nil
	}
	var spec bson.M
	if err := bson.Unmarshal(projection, &spec); err != nil {
		return nil, err
	}
	if len(spec) == 0 {
		return nil, nil
	}
	fields := make([]string, 0, len(spec))
	for key, include := range spec {
		if truthy(include) {
			fields = append(fields, key)
		}
	}
	if len(fields) == 0 {
		return nil, nil
	}
	return &fieldProjection{fields: fields}, nil
}

// Project implements registry.Projector.
func (p *fieldProjection) Project(payload []byte) []byte {
	if p == nil {
		return payload
	}
	var doc bson.M
	if err := bson.Unmarshal(payload, &doc); err != nil {
		log.WithError(err).Warn("pubsub: passing through message with undecodable payload during projection")
		return payload
	}
	projected := make(bson.M, len(p.fields))
	for _, field := range p.fields {
		if v, ok := doc[field]; ok {
			projected[field] = v
		}
	}
	out, err := bson.Marshal(projected)
	if err != nil {
		log.WithError(err).Warn("pubsub: failed to re-encode projected message, passing through unprojected")
		return payload
	}
	return out
}

func truthy(v interface{}) bool {
	switch t := v.(type) {
	case bool:
		return t
	case int32:
		return t != 0
	case int64:
		return t != 0
	case float64:
		return t != 0
	default:
		return true
	}
}

// normalize collapses the handful of numeric types BSON round-trips
// through so equality comparisons aren't tripped up by, say, an int32
// filter value compared against a float64 decoded field.
func normalize(v interface{}) interface{} {
	switch t := v.(type) {
	case int32:
		return float64(t)
	case int64:
		return float64(t)
	case int:
		return float64(t)
	default:
		return v
	}
}
