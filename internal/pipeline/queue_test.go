package pipeline

import (
	"sync"
	"testing"
	"time"

	"github.com/appgrab/appgrab/pkg/capture"
)

func buf(seq uint64) capture.Buffer {
	return capture.Buffer{Data: make([]byte, 4), SampleRate: 48000, Channels: 2, Seq: seq}
}

func TestQueue_FIFOOrder(t *testing.T) {
	t.Parallel()
	q := NewQueue(16)

	for seq := uint64(1); seq <= 10; seq++ {
		if !q.Enqueue(buf(seq)) {
			t.Fatalf("Enqueue(%d) rejected", seq)
		}
	}
	q.Close()

	var got []uint64
	for {
		b, ok := q.Dequeue()
		if !ok {
			break
		}
		got = append(got, b.Seq)
	}
	if len(got) != 10 {
		t.Fatalf("dequeued %d buffers, want 10", len(got))
	}
	for i, seq := range got {
		if seq != uint64(i+1) {
			t.Fatalf("position %d has seq %d, want %d", i, seq, i+1)
		}
	}
}

func TestQueue_DropOldestOnOverflow(t *testing.T) {
	t.Parallel()
	q := NewQueue(4)

	for seq := uint64(1); seq <= 7; seq++ {
		q.Enqueue(buf(seq))
	}
	if q.Dropped() != 3 {
		t.Errorf("Dropped = %d, want 3", q.Dropped())
	}
	q.Close()

	var got []uint64
	for {
		b, ok := q.Dequeue()
		if !ok {
			break
		}
		got = append(got, b.Seq)
	}
	// Oldest three (1..3) evicted; newest four survive in order.
	want := []uint64{4, 5, 6, 7}
	if len(got) != len(want) {
		t.Fatalf("dequeued %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("dequeued %v, want %v", got, want)
		}
	}
}

func TestQueue_DroppedFramesAccounting(t *testing.T) {
	t.Parallel()
	q := NewQueue(1)

	b1 := capture.Buffer{Data: make([]byte, 960*4), Channels: 2, Seq: 1}
	b2 := capture.Buffer{Data: make([]byte, 960*4), Channels: 2, Seq: 2}
	q.Enqueue(b1)
	q.Enqueue(b2) // evicts b1

	if q.DroppedFrames() != 960 {
		t.Errorf("DroppedFrames = %d, want 960", q.DroppedFrames())
	}
}

func TestQueue_EnqueueAfterCloseRejected(t *testing.T) {
	t.Parallel()
	q := NewQueue(4)
	q.Close()
	if q.Enqueue(buf(1)) {
		t.Error("Enqueue after Close should return false")
	}
	if q.Len() != 0 {
		t.Errorf("Len = %d, want 0", q.Len())
	}
}

func TestQueue_CloseIdempotent(t *testing.T) {
	t.Parallel()
	q := NewQueue(4)
	q.Enqueue(buf(1))
	q.Close()
	q.Close()

	if b, ok := q.Dequeue(); !ok || b.Seq != 1 {
		t.Fatalf("Dequeue after Close should drain remaining buffer, got (%v, %v)", b.Seq, ok)
	}
	if _, ok := q.Dequeue(); ok {
		t.Error("drained closed queue should report end-of-stream")
	}
}

func TestQueue_DequeueBlocksUntilEnqueue(t *testing.T) {
	t.Parallel()
	q := NewQueue(4)

	done := make(chan uint64, 1)
	go func() {
		b, ok := q.Dequeue()
		if !ok {
			done <- 0
			return
		}
		done <- b.Seq
	}()

	select {
	case <-done:
		t.Fatal("Dequeue returned before anything was enqueued")
	case <-time.After(20 * time.Millisecond):
	}

	q.Enqueue(buf(42))
	select {
	case seq := <-done:
		if seq != 42 {
			t.Errorf("Dequeue returned seq %d, want 42", seq)
		}
	case <-time.After(time.Second):
		t.Fatal("Dequeue did not wake after Enqueue")
	}
}

func TestQueue_DequeueWokenByClose(t *testing.T) {
	t.Parallel()
	q := NewQueue(4)

	done := make(chan bool, 1)
	go func() {
		_, ok := q.Dequeue()
		done <- ok
	}()

	time.Sleep(10 * time.Millisecond)
	q.Close()

	select {
	case ok := <-done:
		if ok {
			t.Error("Dequeue on empty closed queue should report end-of-stream")
		}
	case <-time.After(time.Second):
		t.Fatal("Dequeue did not wake after Close")
	}
}

func TestQueue_ConcurrentProducerConsumerPreservesOrder(t *testing.T) {
	t.Parallel()
	const n = 1000
	q := NewQueue(n) // large enough that nothing is dropped

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for seq := uint64(1); seq <= n; seq++ {
			q.Enqueue(buf(seq))
		}
		q.Close()
	}()

	var last uint64
	var received int
	for {
		b, ok := q.Dequeue()
		if !ok {
			break
		}
		if b.Seq <= last {
			t.Fatalf("out-of-order delivery: seq %d after %d", b.Seq, last)
		}
		last = b.Seq
		received++
	}
	wg.Wait()

	if received != n {
		t.Errorf("received %d buffers, want %d (no drops expected)", received, n)
	}
	if q.Dropped() != 0 {
		t.Errorf("Dropped = %d, want 0", q.Dropped())
	}
}
