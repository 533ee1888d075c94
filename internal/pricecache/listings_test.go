package pricecache

import (
	"math/rand"
	"reflect"
	"sort"
	"sync"
	"testing"
	"time"
)

func TestListingsCacheKeepsKSmallest(t *testing.T) {
	c := NewListingsCache(time.Minute)

	prices := []int64{500, 100, 900, 300, 700, 200, 800, 400, 600, 50}
	for _, p := range prices {
		c.AddPrice(5057, 80, p, false)
	}

	snap, ok := c.Get(5057, 80)
	if !ok {
		t.Fatal("entry missing after AddPrice")
	}

	want := []int64{50, 100, 200, 300, 400}
	if !reflect.DeepEqual(snap.NQ, want) {
		t.Errorf("NQ = %v, want %v", snap.NQ, want)
	}
	if len(snap.HQ) != 0 {
		t.Errorf("HQ = %v, want empty", snap.HQ)
	}
}

func TestListingsCacheKeepsKSmallestRandomized(t *testing.T) {
	c := NewListingsCache(time.Minute)

	submitted := make([]int64, 200)
	for i := range submitted {
		p := rand.Int63n(1000000) + 1
		submitted[i] = p
		c.AddPrice(1, 1, p, true)
	}

	sort.Slice(submitted, func(i, j int) bool { return submitted[i] < submitted[j] })

	snap, _ := c.Get(1, 1)
	if !reflect.DeepEqual(snap.HQ, submitted[:K]) {
		t.Errorf("HQ = %v, want K smallest %v", snap.HQ, submitted[:K])
	}
}

func TestListingsCacheAddPriceReportsChange(t *testing.T) {
	c := NewListingsCache(time.Minute)

	for _, p := range []int64{10, 20, 30, 40, 50} {
		if !c.AddPrice(1, 1, p, false) {
			t.Errorf("AddPrice(%d) = false, want true while filling", p)
		}
	}

	if c.AddPrice(1, 1, 60, false) {
		t.Error("AddPrice(60) = true, want false when above current max")
	}
	if !c.AddPrice(1, 1, 25, false) {
		t.Error("AddPrice(25) = true, want true when beating current max")
	}

	snap, _ := c.Get(1, 1)
	want := []int64{10, 20, 25, 30, 40}
	if !reflect.DeepEqual(snap.NQ, want) {
		t.Errorf("NQ = %v, want %v", snap.NQ, want)
	}
}

func TestListingsCacheSetPrices(t *testing.T) {
	c := NewListingsCache(time.Minute)
	c.AddPrice(1, 1, 999, false)

	c.SetPrices(1, 1, []int64{70, 10, 50, 30, 90, 20, 40}, false)

	snap, _ := c.Get(1, 1)
	want := []int64{10, 20, 30, 40, 50}
	if !reflect.DeepEqual(snap.NQ, want) {
		t.Errorf("NQ = %v, want %v", snap.NQ, want)
	}
}

func TestListingsCacheQualitiesAreIndependent(t *testing.T) {
	c := NewListingsCache(time.Minute)

	c.AddPrice(1, 1, 100, false)
	c.AddPrice(1, 1, 200, true)

	snap, _ := c.Get(1, 1)
	if !reflect.DeepEqual(snap.NQ, []int64{100}) {
		t.Errorf("NQ = %v, want [100]", snap.NQ)
	}
	if !reflect.DeepEqual(snap.HQ, []int64{200}) {
		t.Errorf("HQ = %v, want [200]", snap.HQ)
	}
}

func TestListingsCacheStaleness(t *testing.T) {
	c := NewListingsCache(time.Minute)

	if !c.IsStale(9, 9) {
		t.Error("IsStale = false for unknown entry, want true")
	}

	c.AddPrice(9, 9, 100, false)
	if c.IsStale(9, 9) {
		t.Error("IsStale = true right after update, want false")
	}

	// Stale entries still serve their data.
	snap, ok := c.Get(9, 9)
	if !ok || len(snap.NQ) != 1 {
		t.Errorf("Get = %v, %v, want cached data regardless of staleness", snap, ok)
	}
}

func TestListingsCacheConcurrentWriters(t *testing.T) {
	c := NewListingsCache(time.Minute)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				c.AddPrice(1, 1, seed*1000+int64(i), false)
			}
		}(int64(g + 1))
	}
	wg.Wait()

	snap, _ := c.Get(1, 1)
	if len(snap.NQ) != K {
		t.Fatalf("len(NQ) = %d, want %d", len(snap.NQ), K)
	}
	for i := 1; i < len(snap.NQ); i++ {
		if snap.NQ[i-1] > snap.NQ[i] {
			t.Fatalf("NQ not sorted ascending: %v", snap.NQ)
		}
	}
	// The global minimum must have survived every interleaving.
	if snap.NQ[0] != 1000 {
		t.Errorf("NQ[0] = %d, want 1000", snap.NQ[0])
	}
}
