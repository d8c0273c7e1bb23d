package cache

import (
	"fmt"
	"math/rand"
	"runtime"
	"strconv"
	"sync"
	"testing"
	"time"

	"golang.org/x/sync/errgroup"
)

// Concurrent Register calls for one name agree on exactly one value.
func TestRace_SingleWriterWins(t *testing.T) {
	c := New[string, int](Options[string, int]{Capacity: 1024})

	const writers = 64
	results := make([]int, writers)
	start := make(chan struct{})

	var g errgroup.Group
	for i := 0; i < writers; i++ {
		g.Go(func() error {
			<-start
			v, _ := c.Register("java.util.Map", i)
			results[i] = v
			return nil
		})
	}
	close(start)
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}

	winner := results[0]
	for i, v := range results {
		if v != winner {
			t.Fatalf("writer %d observed %d, writer 0 observed %d", i, v, winner)
		}
	}
	if got, ok := c.Find("java.util.Map"); !ok || got != winner {
		t.Fatalf("Find returned %d ok=%v, want %d", got, ok, winner)
	}
}

// A mixed workload of Find/Register/Remove/Maintain/Clear on random names.
// Should pass under -race; Len never exceeds capacity.
func TestRace_MixedWithMaintenance(t *testing.T) {
	const capacity = 4_096
	c := New[string, []byte](Options[string, []byte]{
		Capacity:          capacity,
		Shards:            32,
		ExpireAfterAccess: 20 * time.Millisecond,
	})

	workers := 4 * runtime.GOMAXPROCS(0)
	keyspace := 20_000
	deadline := time.Now().Add(time.Second)

	var g errgroup.Group
	for w := 0; w < workers; w++ {
		g.Go(func() error {
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(w)*9973))
			for time.Now().Before(deadline) {
				k := "k:" + strconv.Itoa(r.Intn(keyspace))
				switch n := r.Intn(1000); {
				case n == 0:
					c.Clear()
				case n < 50:
					c.Remove(k)
				case n < 250:
					c.Register(k, []byte("x"))
				default:
					c.Find(k)
				}
			}
			return nil
		})
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for time.Now().Before(deadline) {
			c.Maintain()
			if n := c.Len(); n > capacity {
				t.Errorf("Len()=%d exceeds capacity", n)
				return
			}
			time.Sleep(5 * time.Millisecond)
		}
	}()

	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}
	wg.Wait()
}

// Registration racing a sweep must never lose the fresh entry.
func TestRace_RegisterDuringMaintain(t *testing.T) {
	c := New[string, int](Options[string, int]{
		Capacity:          1 << 16,
		ExpireAfterAccess: 5 * time.Millisecond,
	})

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
				c.Maintain()
			}
		}
	}()

	var g errgroup.Group
	for w := 0; w < 8; w++ {
		g.Go(func() error {
			for i := 0; i < 2_000; i++ {
				k := fmt.Sprintf("w%d:%d", w, i)
				registeredAt := time.Now()
				c.Register(k, i)
				// The entry's access time is at least registeredAt, so it
				// cannot be expired if the read-back finished within the TTL.
				if _, ok := c.Find(k); !ok && time.Since(registeredAt) < 5*time.Millisecond {
					return fmt.Errorf("fresh entry %s lost", k)
				}
			}
			return nil
		})
	}
	err := g.Wait()
	close(stop)
	wg.Wait()
	if err != nil {
		t.Fatal(err)
	}
}
