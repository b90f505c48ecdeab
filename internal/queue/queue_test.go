package queue

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/streadway/amqp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryQueue_DeliversJSON(t *testing.T) {
	q := NewInMemoryQueue(0)
	got := make(chan CampaignJob, 1)

	require.NoError(t, q.Subscribe(TopicCampaignProcess, func(ctx context.Context, payload []byte) error {
		var job CampaignJob
		if err := json.Unmarshal(payload, &job); err != nil {
			return err
		}
		got <- job
		return nil
	}))

	require.NoError(t, q.Publish(context.Background(), TopicCampaignProcess, CampaignJob{CampaignID: 7, Reason: "created"}))

	select {
	case job := <-got:
		assert.Equal(t, 7, job.CampaignID)
		assert.Equal(t, "created", job.Reason)
	case <-time.After(time.Second):
		t.Fatal("job not delivered")
	}
	require.NoError(t, q.Close())
}

func TestInMemoryQueue_RetriesUntilSuccess(t *testing.T) {
	q := NewInMemoryQueue(3)
	q.Backoff = time.Millisecond
	var calls int32

	require.NoError(t, q.Subscribe("t", func(ctx context.Context, payload []byte) error {
		if atomic.AddInt32(&calls, 1) < 3 {
			return errors.New("busy")
		}
		return nil
	}))
	require.NoError(t, q.Publish(context.Background(), "t", 1))

	assert.Eventually(t, func() bool { return atomic.LoadInt32(&calls) == 3 }, time.Second, 5*time.Millisecond)
	require.NoError(t, q.Close())
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestInMemoryQueue_GivesUpAfterMaxRetries(t *testing.T) {
	q := NewInMemoryQueue(2)
	q.Backoff = time.Millisecond
	var calls int32

	require.NoError(t, q.Subscribe("t", func(ctx context.Context, payload []byte) error {
		atomic.AddInt32(&calls, 1)
		return errors.New("always")
	}))
	require.NoError(t, q.Publish(context.Background(), "t", 1))

	assert.Eventually(t, func() bool { return atomic.LoadInt32(&calls) == 3 }, time.Second, 5*time.Millisecond)
	require.NoError(t, q.Close())
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestInMemoryQueue_RetryLaterSkipsBudget(t *testing.T) {
	q := NewInMemoryQueue(1)
	q.Backoff = time.Millisecond
	q.DeferDelay = time.Millisecond
	var calls int32

	require.NoError(t, q.Subscribe("t", func(ctx context.Context, payload []byte) error {
		if atomic.AddInt32(&calls, 1) <= 5 {
			return RetryLater(errors.New("locked"))
		}
		return nil
	}))
	require.NoError(t, q.Publish(context.Background(), "t", 1))

	assert.Eventually(t, func() bool { return atomic.LoadInt32(&calls) == 6 }, time.Second, 5*time.Millisecond)
	require.NoError(t, q.Close())
	assert.Equal(t, int32(6), atomic.LoadInt32(&calls))
}

func TestRetryLater(t *testing.T) {
	base := errors.New("locked")
	err := RetryLater(base)
	assert.True(t, IsRetryLater(err))
	assert.ErrorIs(t, err, base)
	assert.False(t, IsRetryLater(base))
	assert.NoError(t, RetryLater(nil))
}

func TestInMemoryQueue_NoSubscribers(t *testing.T) {
	q := NewInMemoryQueue(0)
	defer q.Close()
	assert.Error(t, q.Publish(context.Background(), "nobody", 1))
}

func TestInMemoryQueue_PublishAfterClose(t *testing.T) {
	q := NewInMemoryQueue(0)
	require.NoError(t, q.Subscribe("t", func(ctx context.Context, payload []byte) error { return nil }))
	require.NoError(t, q.Close())
	assert.Error(t, q.Publish(context.Background(), "t", 1))
}

func TestRetryCount(t *testing.T) {
	assert.Equal(t, 0, RetryCount(nil))
	assert.Equal(t, 2, RetryCount(amqp.Table{retryHeader: int32(2)}))
	assert.Equal(t, 4, RetryCount(amqp.Table{retryHeader: int64(4)}))
	assert.Equal(t, 0, RetryCount(amqp.Table{retryHeader: "x"}))
}
