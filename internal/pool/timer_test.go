package pool

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTimerPool(t *testing.T) {
	assert := assert.New(t)

	t.Run("Fires", func(t *testing.T) {
		begin := time.Now()
		timer := GetTimer(20 * time.Millisecond)
		<-timer.C
		assert.GreaterOrEqual(time.Since(begin), 20*time.Millisecond)
		PutTimer(timer)
	})

	t.Run("Put Active Timer", func(t *testing.T) {
		timer1 := GetTimer(10 * time.Millisecond)
		PutTimer(timer1)

		begin := time.Now()
		timer2 := GetTimer(100 * time.Millisecond)
		select {
		case <-timer2.C:
			assert.GreaterOrEqual(time.Since(begin), 100*time.Millisecond)
		case <-time.After(time.Second):
			t.Error("timer2 should fire")
		}
		PutTimer(timer2)
	})

	t.Run("Put Expired Timer", func(t *testing.T) {
		timer1 := GetTimer(time.Millisecond)
		time.Sleep(20 * time.Millisecond) // expired, value never received
		PutTimer(timer1)

		timer2 := GetTimer(200 * time.Millisecond)
		select {
		case <-timer2.C:
			t.Error("timer2 fired with a stale value")
		case <-time.After(50 * time.Millisecond):
		}
		PutTimer(timer2)
	})
}
