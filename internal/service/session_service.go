package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/classqa/internal/config"
	"github.com/stemsi/classqa/internal/model"
	"github.com/stemsi/classqa/internal/repository"
)

// Session errors.
var (
	ErrSessionNotFound  = errors.New("session not found")
	ErrSessionNotActive = errors.New("session is not active")
	ErrSessionNotClosed = errors.New("session is not closed")
	ErrNotSessionOwner  = errors.New("not the session owner")
	ErrNotJoined        = errors.New("not joined to the session")
)

// SessionService manages the class session lifecycle and membership.
type SessionService struct {
	sessionRepo *repository.SessionRepository
	codes       *ClassCodeService
	rdb         *redis.Client
	log         zerolog.Logger
}

// NewSessionService creates a new SessionService.
func NewSessionService(sessionRepo *repository.SessionRepository, codes *ClassCodeService, rdb *redis.Client, log zerolog.Logger) *SessionService {
	return &SessionService{
		sessionRepo: sessionRepo,
		codes:       codes,
		rdb:         rdb,
		log:         log.With().Str("component", "session_service").Logger(),
	}
}

// Get retrieves a session.
func (s *SessionService) Get(ctx context.Context, id string) (*model.ClassSession, error) {
	session, err := s.sessionRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	return session, nil
}

// Join attaches a participant to an active session and returns the
// resulting snapshot. Students are recorded in the session's member set;
// only the owning professor may join as a professor.
func (s *SessionService) Join(ctx context.Context, sessionID, userID string, userType model.UserType) (model.SessionUpdate, error) {
	session, err := s.Get(ctx, sessionID)
	if err != nil {
		return model.SessionUpdate{}, err
	}
	if session.Status != model.SessionStatusActive {
		return model.SessionUpdate{}, ErrSessionNotActive
	}

	switch userType {
	case model.UserTypeProfessor:
		if session.ProfessorID != userID {
			return model.SessionUpdate{}, ErrNotSessionOwner
		}
	default:
		if err := s.rdb.SAdd(ctx, config.CacheKey.SessionStudentsKey(sessionID), userID).Err(); err != nil {
			return model.SessionUpdate{}, fmt.Errorf("add member: %w", err)
		}
	}

	return s.Snapshot(ctx, session)
}

// Snapshot builds the session-update payload for a session.
func (s *SessionService) Snapshot(ctx context.Context, session *model.ClassSession) (model.SessionUpdate, error) {
	students, err := s.rdb.SMembers(ctx, config.CacheKey.SessionStudentsKey(session.ID)).Result()
	if err != nil {
		return model.SessionUpdate{}, fmt.Errorf("list members: %w", err)
	}
	sort.Strings(students)
	return model.NewSessionUpdate(session, students), nil
}

// RequireMember checks that a participant may post into an active session.
func (s *SessionService) RequireMember(ctx context.Context, sessionID, userID string, userType model.UserType) (*model.ClassSession, error) {
	if sessionID == "" {
		return nil, ErrNotJoined
	}
	session, err := s.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status != model.SessionStatusActive {
		return nil, ErrSessionNotActive
	}
	if userType == model.UserTypeProfessor {
		if session.ProfessorID != userID {
			return nil, ErrNotSessionOwner
		}
		return session, nil
	}
	member, err := s.rdb.SIsMember(ctx, config.CacheKey.SessionStudentsKey(sessionID), userID).Result()
	if err != nil {
		return nil, fmt.Errorf("check member: %w", err)
	}
	if !member {
		return nil, ErrNotJoined
	}
	return session, nil
}

// CanView reports whether a participant may read a session's history.
// The owning professor sees every state; students need membership.
func (s *SessionService) CanView(ctx context.Context, session *model.ClassSession, userID string, userType model.UserType) (bool, error) {
	if userType == model.UserTypeProfessor {
		return session.ProfessorID == userID, nil
	}
	member, err := s.rdb.SIsMember(ctx, config.CacheKey.SessionStudentsKey(session.ID), userID).Result()
	if err != nil {
		return false, fmt.Errorf("check member: %w", err)
	}
	return member, nil
}

// ListByProfessor returns a professor's sessions, newest first.
func (s *SessionService) ListByProfessor(ctx context.Context, professorID string) ([]model.ClassSession, error) {
	return s.sessionRepo.ListByProfessor(ctx, professorID)
}

// Close ends an active session owned by professorID and frees its code.
func (s *SessionService) Close(ctx context.Context, sessionID, professorID string) (model.SessionUpdate, error) {
	session, err := s.owned(ctx, sessionID, professorID)
	if err != nil {
		return model.SessionUpdate{}, err
	}

	now := time.Now()
	closed, err := s.sessionRepo.Close(ctx, session.ID, now)
	if err != nil {
		return model.SessionUpdate{}, fmt.Errorf("close session: %w", err)
	}
	if !closed {
		return model.SessionUpdate{}, ErrSessionNotActive
	}
	s.codes.Release(ctx, session.Code)

	session.Status = model.SessionStatusClosed
	session.EndTime = &now
	s.log.Info().Str("session_id", session.ID).Msg("Class session closed")
	return s.Snapshot(ctx, session)
}

// Archive moves a closed session owned by professorID to archived.
func (s *SessionService) Archive(ctx context.Context, sessionID, professorID string) (model.SessionUpdate, error) {
	session, err := s.owned(ctx, sessionID, professorID)
	if err != nil {
		return model.SessionUpdate{}, err
	}
	if session.Status != model.SessionStatusClosed {
		return model.SessionUpdate{}, ErrSessionNotClosed
	}

	n, err := s.sessionRepo.Archive(ctx, []string{session.ID})
	if err != nil {
		return model.SessionUpdate{}, fmt.Errorf("archive session: %w", err)
	}
	if n == 0 {
		return model.SessionUpdate{}, ErrSessionNotClosed
	}
	s.codes.Release(ctx, session.Code)

	session.Status = model.SessionStatusArchived
	s.log.Info().Str("session_id", session.ID).Msg("Class session archived")
	return s.Snapshot(ctx, session)
}

// Forget drops a session's hot state from Redis.
func (s *SessionService) Forget(ctx context.Context, sessionIDs []string) {
	if len(sessionIDs) == 0 {
		return
	}
	keys := make([]string, 0, len(sessionIDs))
	for _, id := range sessionIDs {
		keys = append(keys, config.CacheKey.SessionStudentsKey(id))
	}
	if err := s.rdb.Del(ctx, keys...).Err(); err != nil {
		s.log.Warn().Err(err).Int("count", len(keys)).Msg("Failed to drop session members")
	}
}

func (s *SessionService) owned(ctx context.Context, sessionID, professorID string) (*model.ClassSession, error) {
	session, err := s.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.ProfessorID != professorID {
		return nil, ErrNotSessionOwner
	}
	return session, nil
}
