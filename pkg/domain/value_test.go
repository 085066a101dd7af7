package domain_test

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/aretw0/coachflow/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValue_JSONRoundTripKeepsIntAndFloatApart(t *testing.T) {
	in := domain.Map{
		"count": domain.Int(3),
		"ratio": domain.Float(2),
		"name":  domain.String("Ana"),
		"tags":  domain.List{domain.String("a"), domain.Int(1)},
		"none":  domain.Null{},
		"ok":    domain.Bool(true),
	}

	data, err := domain.MarshalValue(in)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"ratio":2.0`)

	out, err := domain.UnmarshalValue(data)
	require.NoError(t, err)
	assert.True(t, domain.Equal(in, out), "round trip changed value: %s", data)
}

func TestFromAny(t *testing.T) {
	var decoded any
	require.NoError(t, json.Unmarshal([]byte(`{"a":1,"b":1.5,"c":[true,null,"x"]}`), &decoded))

	v := domain.FromAny(decoded)
	m, ok := v.(domain.Map)
	require.True(t, ok)
	assert.Equal(t, domain.Int(1), m["a"])
	assert.Equal(t, domain.Float(1.5), m["b"])
	assert.Equal(t, domain.List{domain.Bool(true), domain.Null{}, domain.String("x")}, m["c"])

	assert.Equal(t, domain.Int(7), domain.FromAny(json.Number("7")))
	assert.Equal(t, domain.Null{}, domain.FromAny(nil))
}

func TestFromAny_Unsigned(t *testing.T) {
	assert.Equal(t, domain.Int(42), domain.FromAny(uint64(42)))
	assert.Equal(t, domain.Int(math.MaxInt64), domain.FromAny(uint64(math.MaxInt64)))
	assert.Equal(t, domain.String("18446744073709551615"), domain.FromAny(uint64(math.MaxUint64)))
	assert.Equal(t, domain.String("9223372036854775808"), domain.FromAny(uint64(math.MaxInt64)+1))
	assert.Equal(t, domain.Int(3), domain.FromAny(uint(3)))
}

func TestTruthy(t *testing.T) {
	falsy := []domain.Value{nil, domain.Null{}, domain.Bool(false), domain.Int(0), domain.Float(0),
		domain.String(""), domain.List{}, domain.Map{}}
	for _, v := range falsy {
		assert.False(t, domain.Truthy(v), "%#v should be falsy", v)
	}

	truthy := []domain.Value{domain.Bool(true), domain.Int(-1), domain.Float(0.1),
		domain.String("0"), domain.List{domain.Null{}}, domain.Map{"a": domain.Null{}}}
	for _, v := range truthy {
		assert.True(t, domain.Truthy(v), "%#v should be truthy", v)
	}
}

func TestParseLiteral(t *testing.T) {
	tests := []struct {
		in   string
		want domain.Value
	}{
		{"null", domain.Null{}},
		{"true", domain.Bool(true)},
		{"false", domain.Bool(false)},
		{"'a>b'", domain.String("a>b")},
		{`"quoted"`, domain.String("quoted")},
		{"42", domain.Int(42)},
		{"-3", domain.Int(-3)},
		{"2.5", domain.Float(2.5)},
		{"hello", domain.String("hello")},
		{"  7 ", domain.Int(7)},
		{"'", domain.String("'")},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, domain.ParseLiteral(tt.in))
		})
	}
}

func TestLooseEqual(t *testing.T) {
	assert.True(t, domain.LooseEqual(domain.Int(1), domain.Float(1)))
	assert.True(t, domain.LooseEqual(domain.String("5"), domain.Int(5)))
	assert.True(t, domain.LooseEqual(domain.Null{}, domain.Null{}))
	assert.True(t, domain.LooseEqual(domain.Bool(true), domain.String("true")))
	assert.False(t, domain.LooseEqual(domain.Null{}, domain.String("")))
	assert.False(t, domain.LooseEqual(domain.String("a"), domain.String("b")))
}

func TestAsList(t *testing.T) {
	tests := []struct {
		name string
		in   domain.Value
		want domain.List
		ok   bool
	}{
		{"native", domain.List{domain.Int(1)}, domain.List{domain.Int(1)}, true},
		{"json array", domain.String(`[1, "two"]`), domain.List{domain.Int(1), domain.String("two")}, true},
		{"comma separated", domain.String("mon, wed,fri"), domain.List{domain.String("mon"), domain.String("wed"), domain.String("fri")}, true},
		{"empty string", domain.String(""), domain.List{}, true},
		{"broken json", domain.String("[1,"), nil, false},
		{"json object", domain.String(`{"a":1}`), domain.List{domain.String(`{"a":1}`)}, true},
		{"int", domain.Int(3), nil, false},
		{"null", domain.Null{}, nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := domain.AsList(tt.in)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestCoerceLikeAndIndexOf(t *testing.T) {
	assert.Equal(t, domain.Int(3), domain.CoerceLike(domain.String("3"), domain.Int(1)))
	assert.Equal(t, domain.Float(3.5), domain.CoerceLike(domain.String("3.5"), domain.Int(1)))
	assert.Equal(t, domain.String("3"), domain.CoerceLike(domain.Int(3), domain.String("x")))
	assert.Equal(t, domain.Float(2), domain.CoerceLike(domain.Int(2), domain.Float(1)))
	assert.Equal(t, domain.String("abc"), domain.CoerceLike(domain.String("abc"), domain.Int(1)))

	list := domain.List{domain.Int(1), domain.Int(2)}
	assert.Equal(t, 1, domain.IndexOf(list, domain.String("2")))
	assert.Equal(t, -1, domain.IndexOf(list, domain.String("x")))
}

func TestSequence_Index(t *testing.T) {
	seq, err := domain.NewSequence("onboarding", []domain.MessageNode{
		{ID: "1", Kind: domain.KindBot},
		{ID: "2", Kind: domain.KindBot},
	}, "")
	require.NoError(t, err)
	assert.Equal(t, "1", seq.EntryID())
	assert.True(t, seq.Has("2"))
	assert.False(t, seq.Has("3"))

	_, err = domain.NewSequence("dup", []domain.MessageNode{{ID: "1"}, {ID: "1"}}, "")
	assert.ErrorContains(t, err, "duplicate message id")

	_, err = domain.NewSequence("entry", []domain.MessageNode{{ID: "1"}}, "9")
	assert.ErrorContains(t, err, "entry message")
}
