package seed

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/sweetshop/apiserver/internal/store/memory"
	"github.com/sweetshop/apiserver/types"
	"golang.org/x/crypto/bcrypt"
)

func TestSeedIsIdempotent(t *testing.T) {
	users := memory.NewUserRepository()
	sweets := memory.NewSweetRepository()
	seeder := New(users, sweets, zerolog.Nop())
	seeder.hashCost = bcrypt.MinCost
	ctx := context.Background()

	first, err := seeder.Run(ctx)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	if first.Users != 2 || first.Sweets != 8 {
		t.Fatalf("unexpected first run result: %+v", first)
	}

	second, err := seeder.Run(ctx)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if second.Users != 0 || second.Sweets != 0 {
		t.Fatalf("expected nothing inserted on second run, got %+v", second)
	}

	admin, err := users.GetByEmail(ctx, "admin@sweetshop.com")
	if err != nil {
		t.Fatalf("get admin: %v", err)
	}
	if admin.Role != types.RoleAdmin {
		t.Fatalf("expected admin role, got %s", admin.Role)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte("admin123")); err != nil {
		t.Fatalf("admin password does not verify: %v", err)
	}

	all, err := sweets.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 8 {
		t.Fatalf("expected 8 sweets, got %d", len(all))
	}
	for _, s := range all {
		if s.Name == "Lollipops" && s.Price != 99 {
			t.Fatalf("expected Lollipops at 99 minor units, got %d", s.Price)
		}
	}
}

func TestSeedKeepsExistingSweet(t *testing.T) {
	sweets := memory.NewSweetRepository()
	ctx := context.Background()
	if _, err := sweets.Create(ctx, types.Sweet{Name: "Gummy Bears", Category: "Gummy", Price: 500, Quantity: 1}); err != nil {
		t.Fatalf("create: %v", err)
	}

	seeder := New(memory.NewUserRepository(), sweets, zerolog.Nop())
	seeder.hashCost = bcrypt.MinCost
	result, err := seeder.Run(ctx)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.Sweets != 7 {
		t.Fatalf("expected 7 sweets inserted, got %d", result.Sweets)
	}

	found, _ := sweets.Search(ctx, types.SweetFilter{Name: "Gummy Bears"})
	if len(found) != 1 || found[0].Price != 500 {
		t.Fatalf("expected existing sweet untouched, got %+v", found)
	}
}
