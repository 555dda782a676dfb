package wire

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/kart-rules/internal/checkout"
	"github.com/xenking/kart-rules/internal/domain/cart"
	"github.com/xenking/kart-rules/internal/domain/shipping"
)

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func TestDecodeOrder(t *testing.T) {
	input := `{
		"id": "o-1",
		"customer": {"prime": true, "name": "Alice"},
		"items": [
			{"name": "Laptop", "price": 1500},
			{"name": "Bananas", "price": "5.00", "grocery": true},
			{"name": "Shampoo", "price": 8, "subscribeAndSave": true, "sku": "SH-1"}
		],
		"note": {"nested": [1, 2, 3]}
	}`

	o, err := DecodeOrder(jx.DecodeStr(input))
	require.NoError(t, err)

	assert.Equal(t, "o-1", o.ID())
	assert.True(t, o.IsPrime())
	require.Len(t, o.Items(), 3)

	assert.Equal(t, "Laptop", o.Items()[0].Name())
	assert.True(t, d("1500").Equal(o.Items()[0].Price()))
	assert.True(t, o.Items()[1].IsGrocery())
	assert.True(t, d("5").Equal(o.Items()[1].Price()))
	assert.True(t, o.Items()[2].IsSubscribeAndSave())
	assert.False(t, o.Items()[2].IsGrocery())
	assert.True(t, o.ContainsGroceries())
}

func TestDecodeOrder_Defaults(t *testing.T) {
	o, err := DecodeOrder(jx.DecodeStr(`{"customer": null, "items": null}`))
	require.NoError(t, err)

	assert.NotEmpty(t, o.ID())
	assert.False(t, o.IsPrime())
	assert.Empty(t, o.Items())
	assert.True(t, o.Total().IsZero())
}

func TestDecodeOrder_Errors(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		wantSyntax bool
		wantErr    error
	}{
		{name: "not json", input: `{"items": [`, wantSyntax: true},
		{name: "wrong type for prime", input: `{"customer": {"prime": "yes"}}`, wantSyntax: true},
		{name: "array instead of object", input: `[]`, wantSyntax: true},
		{name: "missing name", input: `{"items": [{"price": 1}]}`, wantErr: ErrInvalidRequest},
		{name: "missing price", input: `{"items": [{"name": "x"}]}`, wantErr: ErrInvalidRequest},
		{name: "price not numeric", input: `{"items": [{"name": "x", "price": "abc"}]}`, wantErr: ErrInvalidRequest},
		{name: "price is bool", input: `{"items": [{"name": "x", "price": true}]}`, wantErr: ErrInvalidRequest},
		{name: "negative price", input: `{"items": [{"name": "x", "price": -1}]}`, wantErr: cart.ErrNegativePrice},
		{name: "huge exponent", input: `{"items": [{"name": "x", "price": 1e9000000}]}`, wantErr: ErrInvalidRequest},
		{name: "tiny exponent", input: `{"items": [{"name": "x", "price": 1e-9000000}]}`, wantErr: ErrInvalidRequest},
		{name: "above max price", input: `{"items": [{"name": "x", "price": 1000000000000.01}]}`, wantErr: ErrInvalidRequest},
		{name: "too many decimals", input: `{"items": [{"name": "x", "price": "0.000000001"}]}`, wantErr: ErrInvalidRequest},
		{name: "long literal", input: `{"items": [{"name": "x", "price": ` + strings.Repeat("1", 40) + `}]}`, wantErr: ErrInvalidRequest},
		{name: "trailing data", input: `{"items": []} {"garbage"`, wantSyntax: true},
		{name: "trailing value", input: `{} {}`, wantSyntax: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeOrder(jx.DecodeStr(tt.input))
			require.Error(t, err)

			if tt.wantSyntax {
				var se *SyntaxError
				require.ErrorAs(t, err, &se)
				assert.False(t, IsInvalidArgument(err))
				return
			}
			require.ErrorIs(t, err, tt.wantErr)
			assert.True(t, IsInvalidArgument(err))
		})
	}
}

func TestDecodeOrder_PriceBounds(t *testing.T) {
	tests := []struct {
		price string
		want  string
	}{
		{price: `1000000000000`, want: "1000000000000"},
		{price: `"0.00000001"`, want: "0.00000001"},
		{price: `"1.000000000000"`, want: "1"},
		{price: `0e999999`, want: "0"},
		{price: `1.5e3`, want: "1500"},
	}

	for _, tt := range tests {
		t.Run(tt.price, func(t *testing.T) {
			o, err := DecodeOrder(jx.DecodeStr(`{"items": [{"name": "x", "price": ` + tt.price + `}]}`))
			require.NoError(t, err)
			assert.True(t, d(tt.want).Equal(o.Items()[0].Price()), "got %s", o.Items()[0].Price())
		})
	}
}

func TestDecodeOrder_RepeatedItemsKey(t *testing.T) {
	o, err := DecodeOrder(jx.DecodeStr(`{
		"items": [{"name": "a", "price": 1}],
		"items": [{"name": "b", "price": 2}]
	}`))
	require.NoError(t, err)
	require.Len(t, o.Items(), 1)
	assert.Equal(t, "b", o.Items()[0].Name())
	assert.True(t, d("2").Equal(o.Total()))
}

func TestDecodeOrders(t *testing.T) {
	orders, err := DecodeOrders(jx.DecodeStr(`[
		{"id": "a", "items": [{"name": "x", "price": 1}]},
		{"id": "b", "customer": {"prime": true}}
	]`))
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, "a", orders[0].ID())
	assert.True(t, orders[1].IsPrime())

	_, err = DecodeOrders(jx.DecodeStr(`[{"items": [{"name": "x", "price": -5}]}]`))
	require.ErrorIs(t, err, cart.ErrNegativePrice)
	assert.Contains(t, err.Error(), "order 0")

	_, err = DecodeOrders(jx.DecodeStr(`[] x`))
	var se *SyntaxError
	require.ErrorAs(t, err, &se)
}

func sampleResult() *checkout.Result {
	return &checkout.Result{
		OrderID: "o-1",
		Prime:   true,
		Items: []checkout.LineResult{
			{Name: "Laptop", Price: d("1500")},
			{Name: "Shampoo", Price: d("7.2"), SubscribeAndSave: true},
		},
		Total: d("1507.2"),
		Offer: shipping.FreeTwoDay,
	}
}

func TestEncodeResult(t *testing.T) {
	var e jx.Encoder
	EncodeResult(&e, sampleResult())

	want := `{"orderId":"o-1","prime":true,"items":[` +
		`{"name":"Laptop","price":1500.00,"subscribeAndSave":false,"grocery":false},` +
		`{"name":"Shampoo","price":7.20,"subscribeAndSave":true,"grocery":false}],` +
		`"total":1507.20,"shipping":"Free 2-Day Shipping"}`
	assert.JSONEq(t, want, e.String())
	assert.Contains(t, e.String(), `"total":1507.20`)
}

func TestEncodeResults(t *testing.T) {
	var e jx.Encoder
	EncodeResults(&e, []*checkout.Result{sampleResult(), sampleResult()})

	var got []map[string]any
	require.NoError(t, json.Unmarshal(e.Bytes(), &got))
	require.Len(t, got, 2)
	assert.Equal(t, "Free 2-Day Shipping", got[1]["shipping"])
}

func TestEncodeError(t *testing.T) {
	var e jx.Encoder
	EncodeError(&e, 422, "price must not be negative")
	assert.JSONEq(t, `{"code":422,"message":"price must not be negative"}`, e.String())
}

func TestReadOrders(t *testing.T) {
	input := strings.Join([]string{
		`{"id": "a", "items": [{"name": "x", "price": 10}]}`,
		``,
		`{"id": "b", "customer": {"prime": true}, "items": []}`,
	}, "\n")

	orders, err := ReadOrders(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, "a", orders[0].ID())
	assert.Equal(t, "b", orders[1].ID())
}

func TestReadOrders_ReportsLine(t *testing.T) {
	input := "{\"id\": \"a\"}\n{\"items\": [{\"name\": \"x\"}]}\n"

	_, err := ReadOrders(strings.NewReader(input))
	require.ErrorIs(t, err, ErrInvalidRequest)
	assert.Contains(t, err.Error(), "line 2")
}

func TestWriteResults(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteResults(&buf, []*checkout.Result{sampleResult(), sampleResult()}))

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	require.Len(t, lines, 2)
	for _, line := range lines {
		var got map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &got))
		assert.Equal(t, "o-1", got["orderId"])
	}
}
