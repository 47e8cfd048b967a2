package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sakib404-hub/zap-shit-server/internal/domain"
	"github.com/sakib404-hub/zap-shit-server/pkg/mylogger"
	"go.uber.org/zap"
)

type cachedUserService struct {
	next        UserService
	redisClient *redis.Client
	cacheTTL    time.Duration
	logger      *zap.Logger
}

func NewCachedUserService(next UserService, redisClient *redis.Client, cacheTTL time.Duration, logger *zap.Logger) UserService {
	if cacheTTL <= 0 {
		cacheTTL = 10 * time.Minute
	}

	return &cachedUserService{
		next:        next,
		redisClient: redisClient,
		cacheTTL:    cacheTTL,
		logger:      logger,
	}
}

func userKey(email string) string {
	return "user:" + email
}

func (s *cachedUserService) Register(ctx context.Context, user *domain.User) (*domain.User, bool, error) {
	stored, created, err := s.next.Register(ctx, user)
	if err != nil {
		return nil, false, err
	}

	s.invalidate(ctx, stored.Email)

	return stored, created, nil
}

func (s *cachedUserService) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	key := userKey(email)

	val, err := s.redisClient.Get(ctx, key).Bytes()
	if err == nil {
		var user domain.User
		if err := json.Unmarshal(val, &user); err == nil {
			return &user, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		mylogger.Warn(ctx, s.logger, "Redis get failed, falling back to store", zap.String("key", key), zap.Error(err))
	}

	user, err := s.next.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(user); err == nil {
		if err := s.redisClient.Set(ctx, key, data, s.cacheTTL).Err(); err != nil {
			mylogger.Warn(ctx, s.logger, "Redis set failed", zap.String("key", key), zap.Error(err))
		}
	}

	return user, nil
}

func (s *cachedUserService) Search(ctx context.Context, search string) ([]domain.User, error) {
	return s.next.Search(ctx, search)
}

func (s *cachedUserService) UpdateRole(ctx context.Context, email string, role domain.Role) (*domain.User, error) {
	user, err := s.next.UpdateRole(ctx, email, role)
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, email)

	return user, nil
}

func (s *cachedUserService) invalidate(ctx context.Context, email string) {
	if err := s.redisClient.Del(ctx, userKey(email)).Err(); err != nil {
		mylogger.Warn(ctx, s.logger, "Redis del failed", zap.String("email", email), zap.Error(err))
	}
}
