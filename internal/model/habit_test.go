package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDailyActivity_At(t *testing.T) {
	ts := time.Date(2025, 2, 3, 14, 30, 0, 0, time.UTC)

	assert.Equal(t, ts, DailyActivity{Date: "2025-02-01", Timestamp: ts}.At(time.UTC))
	assert.Equal(t, time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC), DailyActivity{Date: "2025-02-01"}.At(time.UTC))
	assert.True(t, DailyActivity{Date: "garbage"}.At(time.UTC).IsZero())
	assert.False(t, DailyActivity{Date: "2025-02-01"}.HasTime())
	assert.Equal(t, "2025-02-03", DailyActivity{Timestamp: ts}.Day())
}
