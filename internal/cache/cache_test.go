package cache

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MikeSquared-Agency/PriceEngine/internal/pricing"
)

func sampleResult() *pricing.Result {
	return &pricing.Result{
		RecommendedPrice: 189.5,
		Confidence:       0.7,
		ModelVersion:     "formula-v2",
		Branch:           pricing.BranchCompetitor,
		CeilingHit:       true,
	}
}

func TestKeyIsOrderIndependent(t *testing.T) {
	a := map[string]any{"competitor_avg": json.Number("200"), "min_price": 150.0}
	b := map[string]any{"min_price": 150.0, "competitor_avg": json.Number("200")}

	ka, err := Key("fp1", a, false)
	require.NoError(t, err)
	kb, err := Key("fp1", b, false)
	require.NoError(t, err)
	assert.Equal(t, ka, kb)
	assert.True(t, strings.HasPrefix(ka, "priceengine:rec:fp1:"))

	kOther, err := Key("fp2", a, false)
	require.NoError(t, err)
	assert.NotEqual(t, ka, kOther)

	kExplain, err := Key("fp1", a, true)
	require.NoError(t, err)
	assert.NotEqual(t, ka, kExplain)
}

func TestGetMiss(t *testing.T) {
	db, mock := redismock.NewClientMock()
	c := NewRedisCacheWithClient(db, time.Minute)

	mock.ExpectGet("k").RedisNil()

	res, ok, err := c.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, res)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSetThenGetRestoresHiddenFields(t *testing.T) {
	db, mock := redismock.NewClientMock()
	c := NewRedisCacheWithClient(db, 5*time.Minute)

	res := sampleResult()
	payload, err := encode(res)
	require.NoError(t, err)

	mock.ExpectSet("k", payload, 5*time.Minute).SetVal("OK")
	mock.ExpectGet("k").SetVal(string(payload))

	require.NoError(t, c.Set(context.Background(), "k", res))

	got, ok, err := c.Get(context.Background(), "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, res, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetErrors(t *testing.T) {
	db, mock := redismock.NewClientMock()
	c := NewRedisCacheWithClient(db, time.Minute)

	mock.ExpectGet("down").SetErr(errors.New("connection refused"))
	mock.ExpectGet("garbage").SetVal("not json")
	mock.ExpectGet("empty").SetVal(`{"branch":"competitor"}`)

	_, _, err := c.Get(context.Background(), "down")
	assert.EqualError(t, err, "connection refused")

	_, ok, err := c.Get(context.Background(), "garbage")
	assert.False(t, ok)
	assert.ErrorContains(t, err, "decode cache entry")

	_, ok, err = c.Get(context.Background(), "empty")
	assert.False(t, ok)
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
