package database

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JhonAQ/te-toca-web-sub000/internal/config"
	"github.com/JhonAQ/te-toca-web-sub000/internal/logger"
)

func TestConnectRedis(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := ConnectRedis(context.Background(), config.RedisConfig{Addr: mr.Addr()}, logger.Discard())
	require.NoError(t, err)
	defer client.Close()
	assert.NoError(t, client.Set(context.Background(), "k", "v", 0).Err())

	mr.Close()
	_, err = ConnectRedis(context.Background(), config.RedisConfig{Addr: mr.Addr()}, logger.Discard())
	assert.Error(t, err)
}

func TestConnectRequiresAddresses(t *testing.T) {
	_, err := ConnectRedis(context.Background(), config.RedisConfig{}, logger.Discard())
	assert.EqualError(t, err, "REDIS_ADDR not set")

	_, err = ConnectPostgres(context.Background(), config.DatabaseConfig{}, logger.Discard())
	assert.EqualError(t, err, "POSTGRES_DSN not set")
}
