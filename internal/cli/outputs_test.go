package cli

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/iaqflow/internal/adapters/file"
	"github.com/aretw0/iaqflow/internal/adapters/kafka"
	"github.com/aretw0/iaqflow/internal/adapters/redis"
	"github.com/aretw0/iaqflow/internal/logging"
	"github.com/aretw0/iaqflow/pkg/adapters/csv"
	"github.com/aretw0/iaqflow/pkg/adapters/jsonl"
	"github.com/aretw0/iaqflow/pkg/adapters/memory"
	"github.com/aretw0/iaqflow/pkg/adapters/pdf"
	"github.com/aretw0/iaqflow/pkg/adapters/xlsx"
	"github.com/aretw0/iaqflow/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildWriters(t *testing.T) {
	ctx := context.Background()
	log := logging.NewNop()

	t.Run("formats", func(t *testing.T) {
		writers, cl, err := BuildWriters(ctx, config.OutputSettings{
			Directory: t.TempDir(),
			Formats:   []string{"csv", " JSON", "xlsx", "pdf"},
		}, log)
		require.NoError(t, err)
		defer cl.Close()

		require.Len(t, writers, 4)
		assert.IsType(t, &csv.Writer{}, writers[0])
		assert.IsType(t, &jsonl.Writer{}, writers[1])
		assert.IsType(t, &xlsx.Writer{}, writers[2])
		assert.IsType(t, &pdf.Writer{}, writers[3])
	})

	t.Run("unknown format", func(t *testing.T) {
		_, _, err := BuildWriters(ctx, config.OutputSettings{Formats: []string{"docx"}}, log)
		assert.ErrorContains(t, err, `unknown output format "docx"`)
	})

	t.Run("kafka", func(t *testing.T) {
		writers, cl, err := BuildWriters(ctx, config.OutputSettings{
			Kafka: &config.KafkaSettings{Brokers: []string{"localhost:9092"}, Topic: "iaq.events"},
		}, log)
		require.NoError(t, err)
		require.Len(t, writers, 1)
		assert.IsType(t, &kafka.Publisher{}, writers[0])
		assert.NoError(t, cl.Close())
	})

	t.Run("kafka without topic", func(t *testing.T) {
		_, _, err := BuildWriters(ctx, config.OutputSettings{
			Kafka: &config.KafkaSettings{Brokers: []string{"localhost:9092"}},
		}, log)
		assert.ErrorIs(t, err, kafka.ErrNoTopic)
	})
}

func TestBuildStore(t *testing.T) {
	ctx := context.Background()

	store, cl, err := BuildStore(ctx, config.StoreSettings{}, "")
	require.NoError(t, err)
	assert.IsType(t, &memory.Store{}, store)
	assert.NoError(t, cl.Close())

	store, _, err = BuildStore(ctx, config.StoreSettings{}, t.TempDir())
	require.NoError(t, err)
	assert.IsType(t, &file.Store{}, store)

	mr := miniredis.RunT(t)
	store, cl, err = BuildStore(ctx, config.StoreSettings{Redis: &config.RedisSettings{Addr: mr.Addr()}}, t.TempDir())
	require.NoError(t, err)
	assert.IsType(t, &redis.Store{}, store)
	assert.NoError(t, cl.Close())

	addr := mr.Addr()
	mr.Close()
	_, _, err = BuildStore(ctx, config.StoreSettings{Redis: &config.RedisSettings{Addr: addr}}, "")
	assert.Error(t, err)
}
