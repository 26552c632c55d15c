// Package seed loads demo accounts and catalog data.
package seed

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/sweetshop/apiserver/internal/services"
	"github.com/sweetshop/apiserver/internal/store"
	"github.com/sweetshop/apiserver/types"
	"golang.org/x/crypto/bcrypt"
)

type account struct {
	Email    string
	Password string
	Name     string
	Role     string
}

var accounts = []account{
	{Email: "admin@sweetshop.com", Password: "admin123", Name: "Admin User", Role: types.RoleAdmin},
	{Email: "user@sweetshop.com", Password: "user123", Name: "Regular User", Role: types.RoleUser},
}

type sweet struct {
	Name        string
	Category    string
	Price       string
	Quantity    int
	Description string
}

var catalog = []sweet{
	{"Milk Chocolate Bar", "Chocolate", "2.99", 100, "Creamy milk chocolate"},
	{"Dark Chocolate Bar", "Chocolate", "3.49", 80, "Rich dark chocolate"},
	{"Gummy Bears", "Gummy", "1.99", 150, "Assorted fruit flavors"},
	{"Lollipops", "Hard Candy", "0.99", 200, "Classic lollipops"},
	{"Sour Worms", "Gummy", "2.49", 120, "Tangy sour gummy worms"},
	{"Peppermint Candy", "Hard Candy", "1.49", 90, "Refreshing peppermint"},
	{"Caramel Chews", "Chewy", "2.99", 75, "Soft caramel candies"},
	{"Jelly Beans", "Jelly", "3.99", 110, "Assorted jelly beans"},
}

// Result counts what a run inserted.
type Result struct {
	Users  int
	Sweets int
}

// Seeder inserts demo data that is not already present. Existing users are
// matched by email and existing sweets by exact name; neither is modified.
type Seeder struct {
	users    services.UserRepository
	sweets   services.SweetRepository
	log      zerolog.Logger
	hashCost int
}

func New(users services.UserRepository, sweets services.SweetRepository, log zerolog.Logger) *Seeder {
	return &Seeder{
		users:    users,
		sweets:   sweets,
		log:      log,
		hashCost: bcrypt.DefaultCost,
	}
}

func (s *Seeder) Run(ctx context.Context) (Result, error) {
	var result Result

	for _, a := range accounts {
		created, err := s.ensureUser(ctx, a)
		if err != nil {
			return result, err
		}
		if created {
			result.Users++
		}
	}

	for _, item := range catalog {
		created, err := s.ensureSweet(ctx, item)
		if err != nil {
			return result, err
		}
		if created {
			result.Sweets++
		}
	}

	return result, nil
}

func (s *Seeder) ensureUser(ctx context.Context, a account) (bool, error) {
	if _, err := s.users.GetByEmail(ctx, a.Email); err == nil {
		s.log.Debug().Str("email", a.Email).Msg("user exists; skipping")
		return false, nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return false, fmt.Errorf("check user %s: %w", a.Email, err)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(a.Password), s.hashCost)
	if err != nil {
		return false, fmt.Errorf("hash password: %w", err)
	}
	_, err = s.users.Create(ctx, types.User{
		Email:        a.Email,
		Name:         a.Name,
		Role:         a.Role,
		PasswordHash: string(hashed),
	})
	if errors.Is(err, store.ErrDuplicate) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("create user %s: %w", a.Email, err)
	}
	s.log.Info().Str("email", a.Email).Str("role", a.Role).Msg("seeded user")
	return true, nil
}

func (s *Seeder) ensureSweet(ctx context.Context, item sweet) (bool, error) {
	existing, err := s.sweets.Search(ctx, types.SweetFilter{Name: item.Name})
	if err != nil {
		return false, fmt.Errorf("check sweet %s: %w", item.Name, err)
	}
	for _, e := range existing {
		if e.Name == item.Name {
			s.log.Debug().Str("name", item.Name).Msg("sweet exists; skipping")
			return false, nil
		}
	}

	_, err = s.sweets.Create(ctx, types.Sweet{
		Name:        item.Name,
		Category:    item.Category,
		Price:       types.PriceFromMajor(decimal.RequireFromString(item.Price)),
		Quantity:    item.Quantity,
		Description: item.Description,
	})
	if err != nil {
		return false, fmt.Errorf("create sweet %s: %w", item.Name, err)
	}
	s.log.Info().Str("name", item.Name).Msg("seeded sweet")
	return true, nil
}
