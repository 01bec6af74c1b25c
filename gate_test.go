package babz

import (
	"testing"
	"time"
)

func TestGate(t *testing.T) {
	t.Run("parkHere blocks while held", func(t *testing.T) {
		var g gate
		g.holdForParking()

		done := make(chan struct{})
		go func() {
			g.parkHere()
			close(done)
		}()

		select {
		case <-done:
			t.Fatal("parkHere returned while gate was held")
		case <-time.After(20 * time.Millisecond):
		}

		g.release()

		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("parkHere did not return after release")
		}
	})

	t.Run("parkHere does not block once already released", func(t *testing.T) {
		var g gate
		g.holdForParking()
		g.release()

		done := make(chan struct{})
		go func() {
			g.parkHere()
			close(done)
		}()

		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("parkHere blocked on an already-released gate")
		}
	})

	t.Run("many parked workers all release together", func(t *testing.T) {
		var g gate
		g.holdForParking()

		const n = 16
		done := make(chan struct{}, n)
		for i := 0; i < n; i++ {
			go func() {
				g.parkHere()
				done <- struct{}{}
			}()
		}

		time.Sleep(20 * time.Millisecond)
		g.release()

		for i := 0; i < n; i++ {
			select {
			case <-done:
			case <-time.After(time.Second):
				t.Fatalf("only %d/%d workers released", i, n)
			}
		}
	})
}
