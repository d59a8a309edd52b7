package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordLotClosed(t *testing.T) {
	full := testutil.ToFloat64(LotsClosed.WithLabelValues("full"))
	partial := testutil.ToFloat64(LotsClosed.WithLabelValues("partial"))
	shares := testutil.ToFloat64(SharesMatched)

	RecordLotClosed(true, 10)
	RecordLotClosed(false, 5)

	assert.Equal(t, full+1, testutil.ToFloat64(LotsClosed.WithLabelValues("full")))
	assert.Equal(t, partial+1, testutil.ToFloat64(LotsClosed.WithLabelValues("partial")))
	assert.Equal(t, shares+15, testutil.ToFloat64(SharesMatched))
}

func TestRecordPublish(t *testing.T) {
	ok := testutil.ToFloat64(StreamPublished.WithLabelValues("success"))
	failed := testutil.ToFloat64(StreamPublished.WithLabelValues("error"))

	RecordPublish(nil)
	RecordPublish(errors.New("falha"))

	assert.Equal(t, ok+1, testutil.ToFloat64(StreamPublished.WithLabelValues("success")))
	assert.Equal(t, failed+1, testutil.ToFloat64(StreamPublished.WithLabelValues("error")))
}

func TestTimer(t *testing.T) {
	timer := NewTimer()
	time.Sleep(5 * time.Millisecond)
	assert.GreaterOrEqual(t, timer.Elapsed(), 5*time.Millisecond)
}
