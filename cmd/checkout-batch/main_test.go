package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/kart-rules/internal/domain/cart"
)

const ordersJSONL = `{"id": "a", "customer": {"prime": true}, "items": [{"name": "Laptop", "price": 1500}, {"name": "Shampoo", "price": 8, "subscribeAndSave": true}]}

{"id": "b", "items": [{"name": "Socks", "price": "12.50"}]}
{"id": "c", "items": [{"name": "TV", "price": 300}]}
`

type result struct {
	OrderID  string  `json:"orderId"`
	Total    float64 `json:"total"`
	Shipping string  `json:"shipping"`
}

func decodeResults(t *testing.T, data []byte) []result {
	t.Helper()
	var out []result
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		var r result
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &r))
		out = append(out, r)
	}
	require.NoError(t, scanner.Err())
	return out
}

func TestProcess(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, process(context.Background(), strings.NewReader(ordersJSONL), &out, 2))

	res := decodeResults(t, out.Bytes())
	require.Len(t, res, 3)

	assert.Equal(t, "a", res[0].OrderID)
	assert.InDelta(t, 1507.20, res[0].Total, 1e-9)
	assert.Equal(t, "Free 2-Day Shipping", res[0].Shipping)

	assert.Equal(t, "b", res[1].OrderID)
	assert.Equal(t, "Standard Shipping", res[1].Shipping)

	assert.Equal(t, "c", res[2].OrderID)
	assert.Equal(t, "Free 2-Day Shipping", res[2].Shipping, "non-prime two-day outranks one-day")
}

func TestProcess_InvalidLine(t *testing.T) {
	in := `{"items": [{"name": "x", "price": 1}]}` + "\n" + `{"items": [`
	err := process(context.Background(), strings.NewReader(in), &bytes.Buffer{}, 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")
}

func TestProcess_Empty(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, process(context.Background(), strings.NewReader("\n\n"), &out, 1))
	assert.Zero(t, out.Len())
}

func TestRun_Gzip(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "orders.jsonl.gz")
	out := filepath.Join(dir, "results.jsonl.gz")

	f, err := os.Create(in)
	require.NoError(t, err)
	gz := pgzip.NewWriter(f)
	_, err = gz.Write([]byte(ordersJSONL))
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	require.NoError(t, f.Close())

	require.NoError(t, run(context.Background(), in, out, 4))

	rf, err := os.Open(out)
	require.NoError(t, err)
	defer func() { _ = rf.Close() }()
	gr, err := pgzip.NewReader(rf)
	require.NoError(t, err)
	defer func() { _ = gr.Close() }()

	var buf bytes.Buffer
	_, err = buf.ReadFrom(gr)
	require.NoError(t, err)
	assert.Len(t, decodeResults(t, buf.Bytes()), 3)
}

func TestRun_PlainFiles(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "orders.jsonl")
	out := filepath.Join(dir, "results.jsonl")
	require.NoError(t, os.WriteFile(in, []byte(ordersJSONL), 0o600))

	require.NoError(t, run(context.Background(), in, out, 1))

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Len(t, decodeResults(t, data), 3)
}

func TestRun_MissingInput(t *testing.T) {
	err := run(context.Background(), filepath.Join(t.TempDir(), "nope.jsonl"), "", 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open")
}

func TestCountDuplicateIDs(t *testing.T) {
	newOrder := func(id string) *cart.Order {
		item, err := cart.NewItem("x", decimal.NewFromInt(1))
		require.NoError(t, err)
		return cart.NewOrderWithID(id, nil, []*cart.Item{item})
	}

	assert.Zero(t, countDuplicateIDs([]*cart.Order{newOrder("a"), newOrder("b")}))
	assert.Equal(t, 2, countDuplicateIDs([]*cart.Order{newOrder("a"), newOrder("a"), newOrder("b"), newOrder("a")}))
}
