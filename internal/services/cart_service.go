package services

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"marketplace-api/internal/apperr"
	"marketplace-api/internal/metrics"
	"marketplace-api/internal/models"
	"marketplace-api/internal/repository"
)

type ProductChecker interface {
	ProductExists(ctx context.Context, id int64) (bool, error)
}

// CartReconciler computes the next state of a cart. It never writes; callers
// persist the result in the same transaction they loaded the cart in.
type CartReconciler struct {
	products ProductChecker
}

func NewCartReconciler(products ProductChecker) *CartReconciler {
	return &CartReconciler{products: products}
}

// ApplyChange replaces every line of cart with lines. A missing product
// aborts the whole change. The input cart is left untouched.
func (r *CartReconciler) ApplyChange(ctx context.Context, cart *models.Cart, lines []models.CartLineInput) (*models.Cart, error) {
	checked := make(map[int64]struct{}, len(lines))
	items := make([]models.CartLine, 0, len(lines))

	for _, in := range lines {
		if in.Quantity < 1 {
			return nil, apperr.InvalidArgument("Quantity for product %d must be at least 1", in.ProductID)
		}
		if !models.ValidPrice(in.Price) {
			return nil, apperr.InvalidArgument("Price for product %d must be non-negative with at most %d decimal places", in.ProductID, models.MoneyScale)
		}

		if _, ok := checked[in.ProductID]; !ok {
			exists, err := r.products.ProductExists(ctx, in.ProductID)
			if err != nil {
				return nil, err
			}
			if !exists {
				return nil, apperr.NotFound("Product %d not found", in.ProductID)
			}
			checked[in.ProductID] = struct{}{}
		}

		items = append(items, models.CartLine{ProductID: in.ProductID, Quantity: in.Quantity, Price: in.Price})
	}

	return &models.Cart{ID: cart.ID, UserID: cart.UserID, Items: items, Total: cartTotal(items)}, nil
}

// RemoveOne takes one unit of productID out of cart, dropping the line when
// its quantity reaches zero.
func (r *CartReconciler) RemoveOne(cart *models.Cart, productID int64) (*models.Cart, error) {
	items := make([]models.CartLine, 0, len(cart.Items))
	found := false

	for _, line := range cart.Items {
		if !found && line.ProductID == productID {
			found = true
			line.Quantity--
			if line.Quantity <= 0 {
				continue
			}
		}
		items = append(items, line)
	}
	if !found {
		return nil, apperr.InvalidArgument("Product %d is not in the cart", productID)
	}

	return &models.Cart{ID: cart.ID, UserID: cart.UserID, Items: items, Total: cartTotal(items)}, nil
}

func cartTotal(lines []models.CartLine) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.Subtotal())
	}
	return total
}

// CartService runs each cart read-modify-write in one transaction. Concurrent
// writers to the same cart are not serialized; the last commit wins.
type CartService struct {
	store   *repository.Store
	metrics *metrics.Metrics
	logger  zerolog.Logger
}

func NewCartService(store *repository.Store, m *metrics.Metrics, logger zerolog.Logger) *CartService {
	return &CartService{store: store, metrics: m, logger: logger}
}

func (s *CartService) resolverFor(tx *repository.Store) *IdentityResolver {
	return NewIdentityResolver(tx, tx, tx, s.logger)
}

// UpdateCart replaces the caller's cart contents. A client-supplied total is
// ignored; the stored total is always recomputed from the lines.
func (s *CartService) UpdateCart(ctx context.Context, claimed models.ClaimedIdentity, req models.CartUpdateRequest) (*models.Cart, error) {
	var result *models.Cart
	err := s.store.InTx(ctx, func(tx *repository.Store) error {
		cart, err := s.resolverFor(tx).ResolveCart(ctx, claimed)
		if err != nil {
			return err
		}

		updated, err := NewCartReconciler(tx).ApplyChange(ctx, cart, req.Items)
		if err != nil {
			return err
		}
		if req.Total != nil && !req.Total.Equal(updated.Total) {
			s.logger.Debug().Int64("cart_id", cart.ID).Str("client_total", req.Total.String()).
				Str("total", updated.Total.String()).Msg("Ignoring client cart total")
		}

		if err := tx.SaveCart(ctx, updated); err != nil {
			return err
		}
		result = updated
		return nil
	})
	if err != nil {
		s.logFailure(err, claimed, "Error updating cart")
		return nil, err
	}

	s.metrics.RecordCartMutation("update")
	s.logger.Info().Int64("cart_id", result.ID).Int("lines", len(result.Items)).Str("total", result.Total.String()).Msg("Cart updated")
	return result, nil
}

func (s *CartService) RemoveItem(ctx context.Context, claimed models.ClaimedIdentity, productID int64) (*models.Cart, error) {
	var result *models.Cart
	err := s.store.InTx(ctx, func(tx *repository.Store) error {
		cart, err := s.resolverFor(tx).ResolveCart(ctx, claimed)
		if err != nil {
			return err
		}

		updated, err := NewCartReconciler(tx).RemoveOne(cart, productID)
		if err != nil {
			return err
		}
		if err := tx.SaveCart(ctx, updated); err != nil {
			return err
		}
		result = updated
		return nil
	})
	if err != nil {
		s.logFailure(err, claimed, "Error removing cart item")
		return nil, err
	}

	s.metrics.RecordCartMutation("remove_one")
	s.logger.Info().Int64("cart_id", result.ID).Int64("product_id", productID).Msg("Cart item removed")
	return result, nil
}

func (s *CartService) GetCart(ctx context.Context, claimed models.ClaimedIdentity) (*models.Cart, error) {
	return s.resolverFor(s.store).ResolveCart(ctx, claimed)
}

// GetCartByUserID returns userID's cart. Callers without ADMIN may only read
// their own.
func (s *CartService) GetCartByUserID(ctx context.Context, caller models.Identity, userID int64) (*models.Cart, error) {
	if caller.UserID != userID && !caller.Roles.Has(models.RoleAdmin) {
		return nil, apperr.Forbidden("Cannot read another user's cart")
	}

	cart, err := s.store.GetCartByUserID(ctx, userID)
	if err != nil {
		return nil, notFoundOr(err, "Cart not found", "failed to fetch cart")
	}
	return cart, nil
}

func (s *CartService) logFailure(err error, claimed models.ClaimedIdentity, msg string) {
	if apperr.KindOf(err) == apperr.KindInternal {
		s.logger.Error().Err(err).Str("email", claimed.Email).Msg(msg)
		return
	}
	s.logger.Debug().Err(err).Str("email", claimed.Email).Msg(msg)
}
