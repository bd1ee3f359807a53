package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"FileVault/internal/dto"
	"FileVault/internal/repo"
	"FileVault/model"
	"FileVault/utils"

	"go.uber.org/zap"
)

// Locker serializes registrations across processes.
type Locker interface {
	Lock(ctx context.Context) error
	Unlock(ctx context.Context) error
}

type UserDeps struct {
	Users     *repo.UserStore
	JWTSecret string
	TokenTTL  time.Duration
	// UserLimit caps the number of accounts. Zero means unlimited.
	UserLimit int
	// NewLock returns the registration lock. Nil serializes within this process only.
	NewLock  func() Locker
	SMTP     utils.SMTPConfig
	SendMail func(cfg utils.SMTPConfig, to, username string) error
	Log      *zap.Logger
}

type UserService struct {
	UserDeps
	localMu  sync.Mutex
	lockWait time.Duration
	mailWG   sync.WaitGroup
}

func NewUserService(deps UserDeps) *UserService {
	if deps.TokenTTL <= 0 {
		deps.TokenTTL = 24 * time.Hour
	}
	if deps.SendMail == nil {
		deps.SendMail = utils.SendWelcomeMail
	}
	if deps.Log == nil {
		deps.Log = zap.NewNop()
	}
	return &UserService{UserDeps: deps, lockWait: 5 * time.Second}
}

// acquire takes the registration lock, polling while another holder has it.
func (s *UserService) acquire(ctx context.Context) (func(), error) {
	if s.NewLock == nil {
		s.localMu.Lock()
		return s.localMu.Unlock, nil
	}
	lock := s.NewLock()
	deadline := time.Now().Add(s.lockWait)
	for {
		err := lock.Lock(ctx)
		if err == nil {
			return func() {
				if err := lock.Unlock(context.Background()); err != nil {
					s.Log.Warn("registration unlock failed", zap.Error(err))
				}
			}, nil
		}
		if !errors.Is(err, repo.ErrLockBusy) {
			return nil, fmt.Errorf("registration lock: %w", err)
		}
		if time.Now().After(deadline) {
			return nil, ErrBusy
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(50 * time.Millisecond):
		}
	}
}

// Register creates an account while holding the registration lock so the user
// limit cannot be overshot by concurrent requests.
func (s *UserService) Register(ctx context.Context, req dto.RegisterRequest) (*model.User, error) {
	username := strings.TrimSpace(req.Username)
	if username == "" {
		return nil, invalid("username is required")
	}
	hashed, err := utils.GetPwd(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	release, err := s.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	if s.UserLimit > 0 {
		count, err := s.Users.CountUsers(ctx)
		if err != nil {
			return nil, err
		}
		if count >= int64(s.UserLimit) {
			return nil, ErrUserLimitReached
		}
	}
	user := &model.User{
		UserName: username,
		Password: hashed,
		Email:    strings.TrimSpace(req.Email),
		FullName: strings.TrimSpace(req.FullName),
	}
	if err := s.Users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			return nil, ErrUserExists
		}
		return nil, err
	}
	s.Log.Info("user registered", zap.Uint64("user_id", user.ID), zap.String("username", user.UserName))
	s.welcome(user)
	return user, nil
}

// welcome mails the new user in the background when SMTP is configured.
func (s *UserService) welcome(user *model.User) {
	if user.Email == "" || !s.SMTP.Enabled() {
		return
	}
	s.mailWG.Add(1)
	go func() {
		defer s.mailWG.Done()
		if err := s.SendMail(s.SMTP, user.Email, user.UserName); err != nil {
			s.Log.Warn("welcome mail failed", zap.String("username", user.UserName), zap.Error(err))
		}
	}()
}

// Wait blocks until pending welcome mails finished.
func (s *UserService) Wait() {
	s.mailWG.Wait()
}

// Login checks the password and issues a bearer token.
func (s *UserService) Login(ctx context.Context, username, password string) (string, error) {
	user, err := s.Users.GetUserByName(ctx, username)
	if errors.Is(err, repo.ErrRecordNotFound) {
		return "", ErrInvalidCredentials
	}
	if err != nil {
		return "", err
	}
	if !utils.CheckPwd(password, user.Password) {
		return "", ErrInvalidCredentials
	}
	return utils.GenerateToken(s.JWTSecret, s.TokenTTL, user.ID, user.UserName)
}
