// Package auth は匿名サインインとセッション管理を提供する。
package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Syuney-mls/life-log/internal/model"
	"github.com/Syuney-mls/life-log/internal/repository"
)

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	SessionMaxAge int // セッション有効期間（秒）
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	userRepo    repository.UserRepository
	sessionRepo repository.SessionRepository
	config      ServiceConfig
	now         func() time.Time
}

// NewService はServiceを生成する。
func NewService(
	userRepo repository.UserRepository,
	sessionRepo repository.SessionRepository,
	config ServiceConfig,
) *Service {
	return &Service{
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
		config:      config,
		now:         time.Now,
	}
}

// SignInAnonymously は匿名ユーザーとしてサインインする。
// sessionIDが有効なセッションを指す場合は同じユーザーのセッションをそのまま返し、
// それ以外は新しい匿名ユーザーとセッションを作成する。
// 失敗した場合はAUTH_FAILEDのAPIErrorを返す。呼び出し側は再試行で回復できる。
func (s *Service) SignInAnonymously(ctx context.Context, sessionID string) (*model.Session, error) {
	if sessionID != "" {
		session, err := s.sessionRepo.FindByID(ctx, sessionID)
		if err != nil {
			slog.Error("anonymous sign-in failed",
				slog.String("stage", "find_session"),
				slog.String("error", err.Error()),
			)
			return nil, model.NewAuthFailedError()
		}
		if session != nil {
			return session, nil
		}
	}

	user := &model.User{ID: uuid.New().String()}
	if err := s.userRepo.Create(ctx, user); err != nil {
		slog.Error("anonymous sign-in failed",
			slog.String("stage", "create_user"),
			slog.String("error", err.Error()),
		)
		return nil, model.NewAuthFailedError()
	}

	session, err := s.createSession(ctx, user.ID)
	if err != nil {
		slog.Error("anonymous sign-in failed",
			slog.String("stage", "create_session"),
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
		// セッションを持たないユーザーは二度と参照されないため削除する
		if delErr := s.userRepo.DeleteByID(ctx, user.ID); delErr != nil {
			slog.Warn("failed to delete orphan user",
				slog.String("user_id", user.ID),
				slog.String("error", delErr.Error()),
			)
		}
		return nil, model.NewAuthFailedError()
	}

	slog.Info("anonymous user created", slog.String("user_id", user.ID))
	return session, nil
}

// SignOut はセッションを破棄する。
func (s *Service) SignOut(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("session ID is required")
	}

	if err := s.sessionRepo.DeleteByID(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	slog.Info("user signed out", slog.String("session", sessionFingerprint(sessionID)))
	return nil
}

// sessionFingerprint はログ用にセッションIDのSHA-256先頭12桁を返す。
// セッションIDはCookieの値そのものなのでログには残さない。
func sessionFingerprint(sessionID string) string {
	sum := sha256.Sum256([]byte(sessionID))
	return hex.EncodeToString(sum[:])[:12]
}

// CurrentUser はセッションから現在のユーザーを取得する。
// セッションが無効な場合はUNAUTHORIZEDを返す。
func (s *Service) CurrentUser(ctx context.Context, sessionID string) (*model.User, error) {
	if sessionID == "" {
		return nil, model.NewUnauthorizedError()
	}

	session, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	if session == nil {
		return nil, model.NewUnauthorizedError()
	}

	user, err := s.userRepo.FindByID(ctx, session.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}

	return user, nil
}

// createSession はセッションを作成し永続化する。
func (s *Service) createSession(ctx context.Context, userID string) (*model.Session, error) {
	sessionID, err := generateSessionID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session ID: %w", err)
	}

	now := s.now()
	session := &model.Session{
		ID:        sessionID,
		UserID:    userID,
		ExpiresAt: now.Add(time.Duration(s.config.SessionMaxAge) * time.Second),
		CreatedAt: now,
	}

	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	return session, nil
}

// generateSessionID は暗号的に安全なセッションIDを生成する。
func generateSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
