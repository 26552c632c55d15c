package memory

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/sweetshop/apiserver/internal/store"
	"github.com/sweetshop/apiserver/types"
)

func TestUserRepositoryDuplicateEmail(t *testing.T) {
	repo := NewUserRepository()
	ctx := context.Background()

	first, err := repo.Create(ctx, types.User{Email: "a@example.com", Name: "A", Role: types.RoleUser})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := repo.Create(ctx, types.User{Email: "a@example.com", Name: "B"}); !errors.Is(err, store.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
	// Emails are compared exactly as stored.
	if _, err := repo.Create(ctx, types.User{Email: "A@example.com", Name: "C"}); err != nil {
		t.Fatalf("expected different-case email to be accepted: %v", err)
	}

	got, err := repo.GetByEmail(ctx, "a@example.com")
	if err != nil {
		t.Fatalf("get by email: %v", err)
	}
	if got.ID != first.ID || got.Name != "A" {
		t.Fatalf("first user was modified: %+v", got)
	}
}

func TestSweetRepositoryDecrementIsAtomic(t *testing.T) {
	repo := NewSweetRepository()
	ctx := context.Background()

	sweet, err := repo.Create(ctx, types.Sweet{Name: "Fudge", Category: "Chewy", Price: 150, Quantity: 50})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := repo.DecrementStock(ctx, sweet.ID, 1); err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if successes != 50 {
		t.Fatalf("expected 50 successful decrements, got %d", successes)
	}
	got, _ := repo.Get(ctx, sweet.ID)
	if got.Quantity != 0 {
		t.Fatalf("expected quantity 0, got %d", got.Quantity)
	}
}

func TestSweetRepositorySearchOrdersNewestFirst(t *testing.T) {
	repo := NewSweetRepository()
	ctx := context.Background()

	for _, name := range []string{"Gummy Bears", "Sour Worms", "Gummy Worms"} {
		if _, err := repo.Create(ctx, types.Sweet{Name: name, Category: "Gummy", Price: 199}); err != nil {
			t.Fatalf("create %s: %v", name, err)
		}
	}

	got, err := repo.Search(ctx, types.SweetFilter{Name: "gummy"})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(got) != 2 || got[0].Name != "Gummy Worms" || got[1].Name != "Gummy Bears" {
		t.Fatalf("unexpected search result: %+v", got)
	}
}

func TestSweetRepositoryIncrementStopsAtMaxQuantity(t *testing.T) {
	repo := NewSweetRepository()
	ctx := context.Background()

	sweet, err := repo.Create(ctx, types.Sweet{Name: "Toffee", Category: "Candy", Price: 150, Quantity: 10})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := repo.IncrementStock(ctx, sweet.ID, types.MaxQuantity); !errors.Is(err, store.ErrQuantityOverflow) {
		t.Fatalf("expected ErrQuantityOverflow, got %v", err)
	}
	got, err := repo.Get(ctx, sweet.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Quantity != 10 {
		t.Fatalf("expected stock to stay at 10, got %d", got.Quantity)
	}

	full, err := repo.IncrementStock(ctx, sweet.ID, types.MaxQuantity-10)
	if err != nil {
		t.Fatalf("increment to the limit: %v", err)
	}
	if full.Quantity != types.MaxQuantity {
		t.Fatalf("expected quantity %d, got %d", types.MaxQuantity, full.Quantity)
	}
}
