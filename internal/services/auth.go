package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"net/mail"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/urbanwatch/urbanwatch-backend/internal/clients/gcp"
	"github.com/urbanwatch/urbanwatch-backend/internal/clients/twilio"
	"github.com/urbanwatch/urbanwatch-backend/internal/data/repos"
	types "github.com/urbanwatch/urbanwatch-backend/internal/domain"
	pkgerrors "github.com/urbanwatch/urbanwatch-backend/internal/pkg/errors"
	"github.com/urbanwatch/urbanwatch-backend/internal/platform/apierr"
	"github.com/urbanwatch/urbanwatch-backend/internal/platform/config"
	"github.com/urbanwatch/urbanwatch-backend/internal/platform/ctxutil"
	"github.com/urbanwatch/urbanwatch-backend/internal/platform/logger"
)

const otpPurposePhoneVerify = "phone_verify"

type JWTClaims struct {
	jwt.RegisteredClaims
	Role      string   `json:"role"`
	Abilities []string `json:"abilities"`
}

func (c *JWTClaims) HasAbility(ability string) bool {
	for _, a := range c.Abilities {
		if a == ability {
			return true
		}
	}
	return false
}

type RegisterInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
	Phone     string
	Purok     string
}

type TokenPair struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

type AuthService interface {
	Register(ctx context.Context, in RegisterInput) (*types.User, *TokenPair, error)
	Login(ctx context.Context, email, password string) (*types.User, *TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (*TokenPair, error)
	Logout(ctx context.Context) error
	// SetContextFromToken validates an access token and stamps the request
	// data into the context for downstream services.
	SetContextFromToken(ctx context.Context, tokenString string) (context.Context, error)
	SendPhoneOTP(ctx context.Context, userID uuid.UUID) error
	VerifyPhoneOTP(ctx context.Context, userID uuid.UUID, code string) error
	VerifyID(ctx context.Context, userID uuid.UUID, idImage []byte, mimeType string) error
	AccessTTL() time.Duration
}

type authService struct {
	db            *gorm.DB
	log           *logger.Logger
	cfg           *config.Config
	userRepo      repos.UserRepo
	userTokenRepo repos.UserTokenRepo
	userOTPRepo   repos.UserOTPRepo
	avatarService AvatarService
	vision        gcp.Vision
	sms           twilio.Client
	jwtSecretKey  string
}

func NewAuthService(
	db *gorm.DB,
	log *logger.Logger,
	cfg *config.Config,
	userRepo repos.UserRepo,
	userTokenRepo repos.UserTokenRepo,
	userOTPRepo repos.UserOTPRepo,
	avatarService AvatarService,
	vision gcp.Vision,
	sms twilio.Client,
	jwtSecretKey string,
) (AuthService, error) {
	if strings.TrimSpace(jwtSecretKey) == "" {
		return nil, fmt.Errorf("jwt secret key is empty")
	}
	return &authService{
		db:            db,
		log:           log.With("service", "AuthService"),
		cfg:           cfg,
		userRepo:      userRepo,
		userTokenRepo: userTokenRepo,
		userOTPRepo:   userOTPRepo,
		avatarService: avatarService,
		vision:        vision,
		sms:           sms,
		jwtSecretKey:  jwtSecretKey,
	}, nil
}

func (as *authService) Register(ctx context.Context, in RegisterInput) (*types.User, *TokenPair, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, nil, apierr.Validation(fmt.Errorf("invalid email address"))
	}
	if len(in.Password) < 8 {
		return nil, nil, apierr.Validation(fmt.Errorf("password must be at least 8 characters"))
	}
	firstName := strings.TrimSpace(in.FirstName)
	lastName := strings.TrimSpace(in.LastName)
	if firstName == "" || lastName == "" {
		return nil, nil, apierr.Validation(fmt.Errorf("first and last name are required"))
	}

	exists, err := as.userRepo.EmailExists(ctx, nil, email)
	if err != nil {
		return nil, nil, err
	}
	if exists {
		return nil, nil, apierr.DomainState("An account with this email already exists.")
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, nil, fmt.Errorf("hash password: %w", err)
	}

	user := &types.User{
		ID:        uuid.New(),
		Email:     email,
		Password:  string(hashed),
		FirstName: firstName,
		LastName:  lastName,
		Phone:     strings.TrimSpace(in.Phone),
		Role:      types.RoleCitizen,
		Purok:     strings.TrimSpace(in.Purok),
	}

	var pair *TokenPair
	err = as.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if as.avatarService != nil {
			if err := as.avatarService.CreateAndUploadUserAvatar(ctx, user); err != nil {
				return fmt.Errorf("create user avatar: %w", err)
			}
		}
		if _, err := as.userRepo.Create(ctx, tx, []*types.User{user}); err != nil {
			return fmt.Errorf("create user: %w", err)
		}
		pair, err = as.issueTokens(ctx, tx, user)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return user, pair, nil
}

func (as *authService) Login(ctx context.Context, email, password string) (*types.User, *TokenPair, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	user, err := as.userRepo.GetByEmail(ctx, nil, email)
	if errors.Is(err, pkgerrors.ErrNotFound) {
		return nil, nil, apierr.Unauthorized("Invalid email or password.")
	}
	if err != nil {
		return nil, nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)) != nil {
		return nil, nil, apierr.Unauthorized("Invalid email or password.")
	}

	var pair *TokenPair
	err = as.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := as.userTokenRepo.DeleteExpired(ctx, tx, time.Now()); err != nil {
			as.log.Warn("Failed to sweep expired tokens", "error", err)
		}
		pair, err = as.issueTokens(ctx, tx, user)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return user, pair, nil
}

func (as *authService) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	claims, err := as.parseToken(refreshToken)
	if err != nil || !claims.HasAbility(types.AbilityRefreshToken) {
		return nil, apierr.Unauthorized("Invalid refresh token.")
	}

	stored, err := as.userTokenRepo.GetByRefreshToken(ctx, nil, refreshToken)
	if errors.Is(err, pkgerrors.ErrNotFound) {
		return nil, apierr.Unauthorized("Invalid refresh token.")
	}
	if err != nil {
		return nil, err
	}
	if stored.ExpiresAt.Before(time.Now()) {
		if dErr := as.userTokenRepo.DeleteByID(ctx, nil, stored.ID); dErr != nil {
			as.log.Warn("Failed to delete expired refresh token", "error", dErr)
		}
		return nil, apierr.Unauthorized("Refresh token expired.")
	}

	user, err := as.userRepo.GetByID(ctx, nil, stored.UserID)
	if err != nil {
		return nil, apierr.Unauthorized("Invalid refresh token.")
	}

	// Rotation: the presented refresh token dies with the exchange.
	var pair *TokenPair
	err = as.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := as.userTokenRepo.DeleteByID(ctx, tx, stored.ID); err != nil {
			return err
		}
		pair, err = as.issueTokens(ctx, tx, user)
		return err
	})
	if err != nil {
		return nil, err
	}
	return pair, nil
}

func (as *authService) Logout(ctx context.Context) error {
	rd := ctxutil.GetRequestData(ctx)
	if rd == nil || rd.TokenString == "" {
		return apierr.Unauthorized("Not authenticated.")
	}
	stored, err := as.userTokenRepo.GetByAccessToken(ctx, nil, rd.TokenString)
	if errors.Is(err, pkgerrors.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	return as.userTokenRepo.DeleteByID(ctx, nil, stored.ID)
}

func (as *authService) SetContextFromToken(ctx context.Context, tokenString string) (context.Context, error) {
	claims, err := as.parseToken(tokenString)
	if err != nil {
		return ctx, apierr.Unauthorized("Invalid or expired token.")
	}
	if !claims.HasAbility(types.AbilityAccessAPI) {
		return ctx, apierr.Unauthorized("This token cannot access the API.")
	}
	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return ctx, apierr.Unauthorized("Invalid or expired token.")
	}
	return ctxutil.WithRequestData(ctx, &ctxutil.RequestData{
		TokenString: tokenString,
		UserID:      userID,
		Role:        claims.Role,
	}), nil
}

func (as *authService) SendPhoneOTP(ctx context.Context, userID uuid.UUID) error {
	user, err := as.userRepo.GetByID(ctx, nil, userID)
	if errors.Is(err, pkgerrors.ErrNotFound) {
		return apierr.NotFound("User not found.")
	}
	if err != nil {
		return err
	}
	if strings.TrimSpace(user.Phone) == "" {
		return apierr.DomainState("Add a phone number to your profile before requesting a verification code.")
	}
	if as.sms == nil {
		return apierr.Upstream(fmt.Errorf("sms provider not configured"))
	}

	code, err := generateOTPCode(6)
	if err != nil {
		return fmt.Errorf("generate otp: %w", err)
	}
	codeHash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash otp: %w", err)
	}

	now := time.Now()
	err = as.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := as.userOTPRepo.InvalidateForPurpose(ctx, tx, user.ID, otpPurposePhoneVerify, now); err != nil {
			return err
		}
		_, err := as.userOTPRepo.Create(ctx, tx, &types.UserOTP{
			ID:        uuid.New(),
			UserID:    user.ID,
			CodeHash:  string(codeHash),
			Purpose:   otpPurposePhoneVerify,
			ExpiresAt: now.Add(as.cfg.Auth.OTPTTL),
		})
		return err
	})
	if err != nil {
		return err
	}

	body := fmt.Sprintf("Your UrbanWatch verification code is %s. It expires in %d minutes.",
		code, int(as.cfg.Auth.OTPTTL.Minutes()))
	if _, err := as.sms.SendSMS(ctx, user.Phone, body); err != nil {
		return apierr.Upstream(fmt.Errorf("send otp sms: %w", err))
	}
	return nil
}

func (as *authService) VerifyPhoneOTP(ctx context.Context, userID uuid.UUID, code string) error {
	now := time.Now()
	otp, err := as.userOTPRepo.GetActive(ctx, nil, userID, otpPurposePhoneVerify, now)
	if errors.Is(err, pkgerrors.ErrNotFound) {
		return apierr.DomainState("No active verification code; request a new one.")
	}
	if err != nil {
		return err
	}
	if otp.Attempts >= as.cfg.Auth.OTPMaxAttempts {
		if iErr := as.userOTPRepo.InvalidateForPurpose(ctx, nil, userID, otpPurposePhoneVerify, now); iErr != nil {
			as.log.Warn("Failed to invalidate exhausted OTP", "error", iErr)
		}
		return apierr.DomainState("Too many incorrect attempts; request a new code.")
	}
	if bcrypt.CompareHashAndPassword([]byte(otp.CodeHash), []byte(strings.TrimSpace(code))) != nil {
		if iErr := as.userOTPRepo.IncrementAttempts(ctx, nil, otp.ID); iErr != nil {
			as.log.Warn("Failed to count OTP attempt", "error", iErr)
		}
		return apierr.Validation(fmt.Errorf("incorrect verification code"))
	}

	return as.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := as.userOTPRepo.MarkUsed(ctx, tx, otp.ID, now); err != nil {
			return err
		}
		return as.userRepo.MarkPhoneVerified(ctx, tx, userID, now)
	})
}

// VerifyID runs OCR over a government ID photo and marks the account verified
// when the profile name appears in the extracted text. The image itself is
// never stored.
func (as *authService) VerifyID(ctx context.Context, userID uuid.UUID, idImage []byte, mimeType string) error {
	if len(idImage) == 0 {
		return apierr.Validation(fmt.Errorf("id image is required"))
	}
	if as.vision == nil {
		return apierr.Upstream(fmt.Errorf("ocr provider not configured"))
	}
	user, err := as.userRepo.GetByID(ctx, nil, userID)
	if errors.Is(err, pkgerrors.ErrNotFound) {
		return apierr.NotFound("User not found.")
	}
	if err != nil {
		return err
	}

	result, err := as.vision.OCRImageBytes(ctx, idImage, mimeType)
	if err != nil {
		return apierr.Upstream(fmt.Errorf("ocr id image: %w", err))
	}
	if !result.ContainsName(user.FirstName, user.LastName) {
		return apierr.Validation(fmt.Errorf("the name on the ID does not match your profile"))
	}
	return as.userRepo.MarkIDVerified(ctx, nil, userID, time.Now())
}

func (as *authService) AccessTTL() time.Duration {
	return as.cfg.Auth.AccessTokenTTL
}

func (as *authService) issueTokens(ctx context.Context, tx *gorm.DB, user *types.User) (*TokenPair, error) {
	now := time.Now()
	accessToken, err := as.signToken(user, []string{types.AbilityAccessAPI}, now, as.cfg.Auth.AccessTokenTTL)
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}
	refreshToken, err := as.signToken(user, []string{types.AbilityRefreshToken}, now, as.cfg.Auth.RefreshTokenTTL)
	if err != nil {
		return nil, fmt.Errorf("sign refresh token: %w", err)
	}

	expiresAt := now.Add(as.cfg.Auth.RefreshTokenTTL)
	if _, err := as.userTokenRepo.Create(ctx, tx, []*types.UserToken{{
		ID:           uuid.New(),
		UserID:       user.ID,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    expiresAt,
	}}); err != nil {
		return nil, fmt.Errorf("store user token: %w", err)
	}
	return &TokenPair{AccessToken: accessToken, RefreshToken: refreshToken, ExpiresAt: expiresAt}, nil
}

func (as *authService) signToken(user *types.User, abilities []string, now time.Time, ttl time.Duration) (string, error) {
	claims := JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
		Role:      user.Role,
		Abilities: abilities,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(as.jwtSecretKey))
}

func (as *authService) parseToken(tokenString string) (*JWTClaims, error) {
	if strings.TrimSpace(tokenString) == "" {
		return nil, fmt.Errorf("empty token")
	}
	parsed, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(as.jwtSecretKey), nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := parsed.Claims.(*JWTClaims)
	if !ok || !parsed.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	return claims, nil
}

func generateOTPCode(digits int) (string, error) {
	var b strings.Builder
	for i := 0; i < digits; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", err
		}
		fmt.Fprintf(&b, "%d", n.Int64())
	}
	return b.String(), nil
}
