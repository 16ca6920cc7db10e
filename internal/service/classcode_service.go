package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/classqa/internal/config"
	"github.com/stemsi/classqa/internal/model"
	"github.com/stemsi/classqa/internal/repository"
)

// CodeLength is the number of characters in a class code.
const CodeLength = 6

// codeAlphabet omits characters that are easy to misread (0/O, 1/I).
// Its length divides 256, so byte-modulo sampling is unbiased.
const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const (
	maxCodeAttempts = 8
	codeTTL         = 24 * time.Hour
	pendingMarker   = "pending"
)

// Class code errors.
var (
	ErrInvalidCode   = errors.New("invalid class code")
	ErrCodeExhausted = errors.New("could not allocate a unique class code")
	ErrEmptyName     = errors.New("class name is required")
)

// NewCode returns a random class code.
func NewCode() (string, error) {
	buf := make([]byte, CodeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random: %w", err)
	}
	for i, b := range buf {
		buf[i] = codeAlphabet[int(b)%len(codeAlphabet)]
	}
	return string(buf), nil
}

// NormalizeCode canonicalises human input: whitespace and dashes are
// dropped and letters upper-cased. It reports false for anything that
// cannot be a class code.
func NormalizeCode(raw string) (string, bool) {
	var b strings.Builder
	for _, r := range strings.ToUpper(raw) {
		switch {
		case r == ' ' || r == '-' || r == '\t':
			continue
		case strings.ContainsRune(codeAlphabet, r):
			b.WriteRune(r)
		default:
			return "", false
		}
	}
	if b.Len() != CodeLength {
		return "", false
	}
	return b.String(), true
}

// ClassCodeService allocates and resolves class codes. Redis holds the
// code → session mapping; Postgres is the source of truth.
type ClassCodeService struct {
	sessionRepo *repository.SessionRepository
	rdb         *redis.Client
	log         zerolog.Logger
}

// NewClassCodeService creates a new ClassCodeService.
func NewClassCodeService(sessionRepo *repository.SessionRepository, rdb *redis.Client, log zerolog.Logger) *ClassCodeService {
	return &ClassCodeService{
		sessionRepo: sessionRepo,
		rdb:         rdb,
		log:         log.With().Str("component", "classcode_service").Logger(),
	}
}

// Generate opens a new active session under a fresh code.
func (s *ClassCodeService) Generate(ctx context.Context, professorID, className string) (*model.ClassSession, error) {
	className = strings.TrimSpace(className)
	if className == "" {
		return nil, ErrEmptyName
	}

	for attempt := 1; attempt <= maxCodeAttempts; attempt++ {
		code, err := NewCode()
		if err != nil {
			return nil, err
		}

		key := config.CacheKey.ClassCodeKey(code)
		reserved, err := s.rdb.SetNX(ctx, key, pendingMarker, codeTTL).Result()
		if err != nil {
			return nil, fmt.Errorf("reserve code: %w", err)
		}
		if !reserved {
			continue
		}

		session := &model.ClassSession{
			ID:          uuid.NewString(),
			Code:        code,
			ClassName:   className,
			ProfessorID: professorID,
			Status:      model.SessionStatusActive,
		}
		if err := s.sessionRepo.Create(ctx, session); err != nil {
			s.rdb.Del(ctx, key)
			if errors.Is(err, repository.ErrDuplicateActiveCode) {
				s.log.Warn().Str("code", code).Int("attempt", attempt).Msg("Code collided in database, retrying")
				continue
			}
			return nil, fmt.Errorf("create session: %w", err)
		}

		if err := s.rdb.Set(ctx, key, session.ID, codeTTL).Err(); err != nil {
			s.log.Warn().Err(err).Str("code", code).Msg("Failed to cache code, lookups will fall back to database")
		}

		s.log.Info().
			Str("session_id", session.ID).
			Str("code", code).
			Str("professor_id", professorID).
			Msg("Class session opened")
		return session, nil
	}

	return nil, ErrCodeExhausted
}

// Validate resolves a human-entered code to its active session.
func (s *ClassCodeService) Validate(ctx context.Context, raw string) (*model.ClassSession, error) {
	code, ok := NormalizeCode(raw)
	if !ok {
		return nil, ErrInvalidCode
	}
	key := config.CacheKey.ClassCodeKey(code)

	sessionID, err := s.rdb.Get(ctx, key).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		s.log.Warn().Err(err).Msg("Code cache lookup failed, using database")
	}
	if sessionID != "" && sessionID != pendingMarker {
		session, err := s.sessionRepo.GetByID(ctx, sessionID)
		if err == nil && session.Status == model.SessionStatusActive && session.Code == code {
			return session, nil
		}
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("get session: %w", err)
		}
		// Stale entry.
		s.rdb.Del(ctx, key)
	}

	session, err := s.sessionRepo.GetActiveByCode(ctx, code)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvalidCode
		}
		return nil, fmt.Errorf("get session by code: %w", err)
	}

	s.rdb.Set(ctx, key, session.ID, codeTTL)
	return session, nil
}

// Release frees a code once its session is no longer active.
func (s *ClassCodeService) Release(ctx context.Context, code string) {
	if err := s.rdb.Del(ctx, config.CacheKey.ClassCodeKey(code)).Err(); err != nil {
		s.log.Warn().Err(err).Str("code", code).Msg("Failed to release code")
	}
}
