package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/sweetshop/apiserver/internal/store"
	"github.com/sweetshop/apiserver/types"
)

// SweetRepository defines persistence operations for sweets. DecrementStock
// must check and apply the decrement atomically.
type SweetRepository interface {
	List(ctx context.Context) ([]types.Sweet, error)
	Search(ctx context.Context, filter types.SweetFilter) ([]types.Sweet, error)
	Get(ctx context.Context, id string) (types.Sweet, error)
	Create(ctx context.Context, sweet types.Sweet) (types.Sweet, error)
	Update(ctx context.Context, id string, changes types.SweetChanges) (types.Sweet, error)
	Delete(ctx context.Context, id string) error
	DecrementStock(ctx context.Context, id string, n int) (types.Sweet, error)
	IncrementStock(ctx context.Context, id string, n int) (types.Sweet, error)
}

// ListCache holds the full catalog listing per generation. Invalidate
// starts a new generation, so a listing read before a mutation can only be
// stored under a generation nobody reads again.
type ListCache interface {
	Generation(ctx context.Context) (int64, error)
	GetList(ctx context.Context, gen int64) ([]types.Sweet, bool, error)
	SetList(ctx context.Context, gen int64, sweets []types.Sweet) error
	Invalidate(ctx context.Context) error
}

// EventPublisher delivers inventory events to a channel.
type EventPublisher interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
}

// SweetOption configures optional SweetService collaborators.
type SweetOption func(*SweetService)

func WithListCache(cache ListCache) SweetOption {
	return func(s *SweetService) { s.cache = cache }
}

func WithEvents(publisher EventPublisher, channel string) SweetOption {
	return func(s *SweetService) {
		s.events = publisher
		s.channel = channel
	}
}

func WithLogger(log zerolog.Logger) SweetOption {
	return func(s *SweetService) { s.log = log }
}

// SweetService encapsulates catalog use-cases.
type SweetService struct {
	repo    SweetRepository
	cache   ListCache
	events  EventPublisher
	channel string
	log     zerolog.Logger
	now     func() time.Time
}

func NewSweetService(repo SweetRepository, opts ...SweetOption) *SweetService {
	s := &SweetService{
		repo: repo,
		log:  zerolog.Nop(),
		now:  func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *SweetService) Create(ctx context.Context, in types.SweetInput) (types.Sweet, error) {
	name := strings.TrimSpace(in.Name)
	category := strings.TrimSpace(in.Category)
	if name == "" || category == "" || in.Price == nil || in.Quantity == nil {
		return types.Sweet{}, validationError(msgSweetRequired)
	}
	if in.Price.IsNegative() || *in.Quantity < 0 {
		return types.Sweet{}, validationError(msgNegativeValues)
	}
	if in.Price.GreaterThan(types.MaxPrice) {
		return types.Sweet{}, validationError(msgPriceTooLarge)
	}
	if *in.Quantity > types.MaxQuantity {
		return types.Sweet{}, validationError(msgQuantityTooLarge)
	}

	created, err := s.repo.Create(ctx, types.Sweet{
		Name:        name,
		Category:    category,
		Price:       types.PriceFromMajor(*in.Price),
		Quantity:    *in.Quantity,
		Description: in.Description,
	})
	if err != nil {
		return types.Sweet{}, fmt.Errorf("create sweet: %w", err)
	}

	s.afterMutation(ctx, types.EventSweetCreated, created, created.Quantity)
	return created, nil
}

// List returns every sweet, newest first. The cache generation is read
// before the repository so the listing is stored under the generation it
// was read in.
func (s *SweetService) List(ctx context.Context) ([]types.Sweet, error) {
	useCache := s.cache != nil
	var gen int64
	if useCache {
		var err error
		if gen, err = s.cache.Generation(ctx); err != nil {
			s.log.Warn().Err(err).Msg("read catalog cache generation")
			useCache = false
		}
	}

	if useCache {
		sweets, ok, err := s.cache.GetList(ctx, gen)
		if err != nil {
			s.log.Warn().Err(err).Msg("read catalog cache")
		} else if ok {
			return sweets, nil
		}
	}

	sweets, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list sweets: %w", err)
	}

	if useCache {
		if err := s.cache.SetList(ctx, gen, sweets); err != nil {
			s.log.Warn().Err(err).Msg("write catalog cache")
		}
	}
	return sweets, nil
}

func (s *SweetService) Get(ctx context.Context, id string) (types.Sweet, error) {
	sweet, err := s.repo.Get(ctx, id)
	if err != nil {
		return types.Sweet{}, s.mapStoreError(err, "get sweet")
	}
	return sweet, nil
}

// ParseSweetQuery builds a query from raw request parameters. Blank values
// are treated as absent.
func ParseSweetQuery(name, category, minPrice, maxPrice string) (types.SweetQuery, error) {
	query := types.SweetQuery{
		Name:     strings.TrimSpace(name),
		Category: strings.TrimSpace(category),
	}

	var err error
	if query.MinPrice, err = parseBound(minPrice); err != nil {
		return types.SweetQuery{}, err
	}
	if query.MaxPrice, err = parseBound(maxPrice); err != nil {
		return types.SweetQuery{}, err
	}
	return query, nil
}

func parseBound(raw string) (*decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	value, err := decimal.NewFromString(raw)
	if err != nil {
		return nil, validationError(fmt.Sprintf("Invalid price filter: %q", raw))
	}
	return &value, nil
}

// priceBound converts a search bound to minor units. Bounds outside the
// storable price range are pinned one unit past it, so a bound above
// types.MaxPrice still admits every price and a negative one admits none
// below zero.
func priceBound(major decimal.Decimal) types.Price {
	switch {
	case major.IsNegative():
		return -1
	case major.GreaterThan(types.MaxPrice):
		return types.PriceFromMajor(types.MaxPrice) + 1
	default:
		return types.PriceFromMajor(major)
	}
}

// Search returns sweets matching every provided filter, newest first.
func (s *SweetService) Search(ctx context.Context, query types.SweetQuery) ([]types.Sweet, error) {
	filter := types.SweetFilter{
		Name:     query.Name,
		Category: query.Category,
	}
	if query.MinPrice != nil {
		p := priceBound(*query.MinPrice)
		filter.MinPrice = &p
	}
	if query.MaxPrice != nil {
		p := priceBound(*query.MaxPrice)
		filter.MaxPrice = &p
	}
	if filter.Empty() {
		return s.List(ctx)
	}

	sweets, err := s.repo.Search(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("search sweets: %w", err)
	}
	return sweets, nil
}

// Update applies the provided fields only. Blank name or category values
// are ignored.
func (s *SweetService) Update(ctx context.Context, id string, patch types.SweetPatch) (types.Sweet, error) {
	var changes types.SweetChanges
	if patch.Name != nil {
		if name := strings.TrimSpace(*patch.Name); name != "" {
			changes.Name = &name
		}
	}
	if patch.Category != nil {
		if category := strings.TrimSpace(*patch.Category); category != "" {
			changes.Category = &category
		}
	}
	if patch.Price != nil {
		if patch.Price.IsNegative() {
			return types.Sweet{}, validationError(msgNegativeValues)
		}
		if patch.Price.GreaterThan(types.MaxPrice) {
			return types.Sweet{}, validationError(msgPriceTooLarge)
		}
		p := types.PriceFromMajor(*patch.Price)
		changes.Price = &p
	}
	if patch.Quantity != nil {
		if *patch.Quantity < 0 {
			return types.Sweet{}, validationError(msgNegativeValues)
		}
		if *patch.Quantity > types.MaxQuantity {
			return types.Sweet{}, validationError(msgQuantityTooLarge)
		}
		changes.Quantity = patch.Quantity
	}
	changes.Description = patch.Description

	updated, err := s.repo.Update(ctx, id, changes)
	if err != nil {
		return types.Sweet{}, s.mapStoreError(err, "update sweet")
	}

	s.afterMutation(ctx, types.EventSweetUpdated, updated, 0)
	return updated, nil
}

func (s *SweetService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return s.mapStoreError(err, "delete sweet")
	}

	s.afterMutation(ctx, types.EventSweetDeleted, types.Sweet{ID: id}, 0)
	return nil
}

// Purchase removes quantity units from stock. Stock is left untouched when
// it cannot cover the request.
func (s *SweetService) Purchase(ctx context.Context, id string, quantity int) (types.Sweet, error) {
	if quantity <= 0 {
		return types.Sweet{}, validationError(msgPurchasePositive)
	}
	if quantity > types.MaxQuantity {
		return types.Sweet{}, validationError(msgQuantityTooLarge)
	}

	sweet, err := s.repo.DecrementStock(ctx, id, quantity)
	if err != nil {
		return types.Sweet{}, s.mapStoreError(err, "purchase sweet")
	}

	s.afterMutation(ctx, types.EventSweetPurchased, sweet, -quantity)
	return sweet, nil
}

func (s *SweetService) Restock(ctx context.Context, id string, quantity int) (types.Sweet, error) {
	if quantity <= 0 {
		return types.Sweet{}, validationError(msgRestockPositive)
	}
	if quantity > types.MaxQuantity {
		return types.Sweet{}, validationError(msgQuantityTooLarge)
	}

	sweet, err := s.repo.IncrementStock(ctx, id, quantity)
	if err != nil {
		return types.Sweet{}, s.mapStoreError(err, "restock sweet")
	}

	s.afterMutation(ctx, types.EventSweetRestocked, sweet, quantity)
	return sweet, nil
}

func (s *SweetService) mapStoreError(err error, op string) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return notFoundError(msgSweetNotFound)
	case errors.Is(err, store.ErrInsufficientStock):
		return &Error{Kind: KindInsufficientStock, Message: msgInsufficientStock}
	case errors.Is(err, store.ErrQuantityOverflow):
		return validationError(msgStockLimit)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}

// afterMutation invalidates the listing cache and publishes an inventory
// event. Failures are logged and never reach the caller.
func (s *SweetService) afterMutation(ctx context.Context, eventType types.EventType, sweet types.Sweet, delta int) {
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx); err != nil {
			s.log.Warn().Err(err).Str("sweet_id", sweet.ID).Msg("invalidate catalog cache")
		}
	}

	if s.events == nil || s.channel == "" {
		return
	}

	event := types.InventoryEvent{
		Type:       eventType,
		SweetID:    sweet.ID,
		Name:       sweet.Name,
		Quantity:   sweet.Quantity,
		Delta:      delta,
		OccurredAt: s.now(),
	}
	data, err := json.Marshal(event)
	if err != nil {
		s.log.Warn().Err(err).Str("sweet_id", sweet.ID).Msg("encode inventory event")
		return
	}
	// "key" keeps one sweet's events ordered on partitioned brokers.
	attrs := map[string]string{"type": string(eventType), "key": sweet.ID}
	if _, err := s.events.Publish(ctx, s.channel, data, attrs); err != nil {
		s.log.Warn().Err(err).
			Str("sweet_id", sweet.ID).
			Str("event", string(eventType)).
			Msg("publish inventory event")
	}
}
