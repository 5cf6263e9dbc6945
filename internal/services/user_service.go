package services

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"marketplace-api/internal/apperr"
	"marketplace-api/internal/models"
	"marketplace-api/internal/repository"
)

type UserService struct {
	store      *repository.Store
	cache      repository.StoreListCache
	bcryptCost int
	logger     zerolog.Logger
}

func NewUserService(store *repository.Store, cache repository.StoreListCache, bcryptCost int, logger zerolog.Logger) *UserService {
	return &UserService{
		store:      store,
		cache:      cache,
		bcryptCost: bcryptCost,
		logger:     logger,
	}
}

// Signup registers a CLIENT with an empty cart.
func (s *UserService) Signup(ctx context.Context, req *models.SignupRequest) (*models.User, error) {
	return s.create(ctx, req, models.NewRoleSet(models.RoleClient))
}

// Insert is the administrative create; roles default to CLIENT.
func (s *UserService) Insert(ctx context.Context, req *models.UserInsertRequest) (*models.User, error) {
	roles := models.NewRoleSet(req.Roles...)
	if len(roles) == 0 {
		roles = models.NewRoleSet(models.RoleClient)
	}
	return s.create(ctx, &req.SignupRequest, roles)
}

func (s *UserService) create(ctx context.Context, req *models.SignupRequest, roles models.RoleSet) (*models.User, error) {
	email, err := normalizeEmail(req.Email)
	if err != nil {
		return nil, err
	}
	if req.Password == "" {
		return nil, apperr.InvalidArgument("Password is required")
	}
	for _, r := range roles.Slice() {
		if !r.Valid() {
			return nil, apperr.InvalidArgument("Invalid role")
		}
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.bcryptCost)
	if err != nil {
		s.logger.Error().Err(err).Msg("Error hashing password")
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		FirstName:    strings.TrimSpace(req.FirstName),
		LastName:     strings.TrimSpace(req.LastName),
		Email:        email,
		Phone:        req.Phone,
		PasswordHash: string(hashedPassword),
		Roles:        roles,
		Addresses:    req.Addresses,
	}
	if user.Addresses == nil {
		user.Addresses = []models.Address{}
	}

	err = s.store.InTx(ctx, func(tx *repository.Store) error {
		if err := ensureEmailFree(ctx, tx, email, 0); err != nil {
			return err
		}
		if err := tx.CreateUser(ctx, user); err != nil {
			return err
		}
		_, err := tx.CreateCart(ctx, user.ID)
		return err
	})
	if err != nil {
		if apperr.KindOf(err) == apperr.KindInternal {
			s.logger.Error().Err(err).Str("email", email).Msg("Error creating user")
		}
		return nil, err
	}

	s.logger.Info().Int64("user_id", user.ID).Str("email", user.Email).Strs("roles", roles.Authorities()).Msg("User registered successfully")
	return user, nil
}

// Authenticate checks email and password. Unknown email and wrong password
// fail the same way.
func (s *UserService) Authenticate(ctx context.Context, req *models.LoginRequest) (*models.User, error) {
	if req.Email == "" || req.Password == "" {
		return nil, apperr.InvalidArgument("Email and password are required")
	}

	user, err := s.store.GetUserByEmail(ctx, strings.TrimSpace(req.Email))
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.Unauthenticated("Invalid email or password")
	}
	if err != nil {
		s.logger.Error().Err(err).Msg("Error querying user")
		return nil, fmt.Errorf("database error: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		s.logger.Warn().Str("email", req.Email).Msg("Failed authentication attempt")
		return nil, apperr.Unauthenticated("Invalid email or password")
	}

	s.logger.Info().Int64("user_id", user.ID).Str("email", user.Email).Msg("User authenticated successfully")
	return user, nil
}

func (s *UserService) List(ctx context.Context, limit, offset int) ([]*models.User, error) {
	users, err := s.store.ListUsers(ctx, limit, offset)
	if err != nil {
		s.logger.Error().Err(err).Msg("Error listing users")
		return nil, err
	}
	if users == nil {
		users = []*models.User{}
	}
	return users, nil
}

func (s *UserService) Get(ctx context.Context, id int64) (*models.User, error) {
	user, err := s.store.GetUserByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "User not found", "failed to fetch user")
	}
	return user, nil
}

// Update overwrites profile fields. Roles and addresses are replaced only when
// the request carries them.
func (s *UserService) Update(ctx context.Context, id int64, req *models.UserUpdateRequest) (*models.User, error) {
	var user *models.User
	emailChanged := false
	err := s.store.InTx(ctx, func(tx *repository.Store) error {
		var err error
		user, err = tx.GetUserByID(ctx, id)
		if err != nil {
			return notFoundOr(err, "User not found", "failed to fetch user")
		}

		if req.Email != "" {
			email, err := normalizeEmail(req.Email)
			if err != nil {
				return err
			}
			if email != user.Email {
				if err := ensureEmailFree(ctx, tx, email, user.ID); err != nil {
					return err
				}
				emailChanged = true
			}
			user.Email = email
		}
		if req.FirstName != "" {
			user.FirstName = strings.TrimSpace(req.FirstName)
		}
		if req.LastName != "" {
			user.LastName = strings.TrimSpace(req.LastName)
		}
		if req.Phone != "" {
			user.Phone = req.Phone
		}
		if err := tx.UpdateUser(ctx, user); err != nil {
			return err
		}

		if len(req.Roles) > 0 {
			user.Roles = models.NewRoleSet(req.Roles...)
			if err := tx.ReplaceUserRoles(ctx, user.ID, user.Roles); err != nil {
				return err
			}
		}
		if req.Addresses != nil {
			user.Addresses = req.Addresses
			if err := tx.ReplaceUserAddresses(ctx, user.ID, user.Addresses); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if apperr.KindOf(err) == apperr.KindInternal {
			s.logger.Error().Err(err).Int64("user_id", id).Msg("Error updating user")
		}
		return nil, err
	}

	// Cached store listings carry the owner's email.
	if emailChanged {
		s.invalidateStores(ctx)
	}
	s.logger.Info().Int64("user_id", user.ID).Msg("User updated")
	return user, nil
}

// Delete removes the user and everything it owns: cart, store, the store's
// products, roles and addresses.
func (s *UserService) Delete(ctx context.Context, id int64) error {
	removedStore := false
	err := s.store.InTx(ctx, func(tx *repository.Store) error {
		if _, err := tx.GetUserByID(ctx, id); err != nil {
			return notFoundOr(err, "User not found", "failed to fetch user")
		}
		if err := tx.DeleteCartByUser(ctx, id); err != nil {
			return err
		}

		store, err := tx.GetStoreByOwnerID(ctx, id)
		switch {
		case errors.Is(err, repository.ErrNotFound):
		case err != nil:
			return err
		default:
			if _, err := tx.DeleteProductsByStore(ctx, store.ID); err != nil {
				return err
			}
			if err := tx.DeleteStore(ctx, store.ID); err != nil {
				return err
			}
			removedStore = true
		}

		return tx.DeleteUser(ctx, id)
	})
	if err != nil {
		if apperr.KindOf(err) == apperr.KindInternal {
			s.logger.Error().Err(err).Int64("user_id", id).Msg("Error deleting user")
		}
		return err
	}

	if removedStore {
		s.invalidateStores(ctx)
	}
	s.logger.Info().Int64("user_id", id).Bool("store_removed", removedStore).Msg("User deleted")
	return nil
}

func (s *UserService) invalidateStores(ctx context.Context) {
	if err := s.cache.Invalidate(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to invalidate store cache")
	}
}

func normalizeEmail(raw string) (string, error) {
	email := strings.TrimSpace(raw)
	if email == "" {
		return "", apperr.InvalidArgument("Email is required")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", apperr.InvalidArgument("Invalid email address")
	}
	return email, nil
}

func ensureEmailFree(ctx context.Context, tx *repository.Store, email string, selfID int64) error {
	existing, err := tx.GetUserByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to check email: %w", err)
	}
	if existing.ID != selfID {
		return apperr.InvalidArgument("Email already registered")
	}
	return nil
}
