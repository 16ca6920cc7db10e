package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/stemsi/classqa/internal/model"
)

const (
	maxQuestionLength = 1000
	maxAnswerLength   = 2000
)

// Question and answer errors.
var (
	ErrEmptyText            = errors.New("text is required")
	ErrTextTooLong          = errors.New("text is too long")
	ErrQuestionNotInSession = errors.New("question does not belong to the session")
	ErrAnswerNotFound       = errors.New("answer not found")
	ErrAlreadyLiked         = errors.New("answer already liked")
)

// LikeJob is queued for the like worker to persist.
type LikeJob struct {
	AnswerID string `json:"answerId"`
	UserID   string `json:"userId"`
}

// QuestionStore persists questions. Satisfied by *repository.QuestionRepository.
type QuestionStore interface {
	Create(ctx context.Context, q *model.Question) error
	GetByID(ctx context.Context, id string) (*model.Question, error)
	ListBySession(ctx context.Context, sessionID string) ([]model.Question, error)
	MarkAnswered(ctx context.Context, id string) (bool, error)
}

// AnswerStore persists answers. Satisfied by *repository.AnswerRepository.
type AnswerStore interface {
	Create(ctx context.Context, a *model.Answer) error
	GetByID(ctx context.Context, id string) (*model.Answer, error)
	ListBySession(ctx context.Context, sessionID string) ([]model.Answer, error)
}

// LikeLedger tracks live likes and queues them for persistence.
type LikeLedger interface {
	// Record adds userID to the answer's likers after seeding it with the
	// persisted likers. It reports false when userID had already liked it.
	Record(ctx context.Context, answerID, userID string, seed []string) (bool, error)
	Revoke(ctx context.Context, answerID, userID string) error
	Likers(ctx context.Context, answerID string) ([]string, error)
	Enqueue(ctx context.Context, job LikeJob) error
}

// QuestionService posts questions, answers and likes into a session.
type QuestionService struct {
	questionRepo QuestionStore
	answerRepo   AnswerStore
	likes        LikeLedger
	log          zerolog.Logger
}

// NewQuestionService creates a new QuestionService.
func NewQuestionService(questionRepo QuestionStore, answerRepo AnswerStore, likes LikeLedger, log zerolog.Logger) *QuestionService {
	return &QuestionService{
		questionRepo: questionRepo,
		answerRepo:   answerRepo,
		likes:        likes,
		log:          log.With().Str("component", "question_service").Logger(),
	}
}

// CleanText trims text and enforces a maximum length in runes.
func CleanText(text string, max int) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyText
	}
	if utf8.RuneCountInString(text) > max {
		return "", ErrTextTooLong
	}
	return text, nil
}

// Ask stores a new unanswered question.
func (s *QuestionService) Ask(ctx context.Context, sessionID, studentID, text string) (*model.Question, error) {
	text, err := CleanText(text, maxQuestionLength)
	if err != nil {
		return nil, err
	}

	q := &model.Question{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Text:      text,
		Timestamp: time.Now().UnixMilli(),
		StudentID: studentID,
		Status:    model.QuestionStatusUnanswered,
	}
	if err := s.questionRepo.Create(ctx, q); err != nil {
		return nil, fmt.Errorf("create question: %w", err)
	}
	return q, nil
}

// Answer stores an answer. When it names an active question from the same
// session, that question is marked answered; the updated question is
// returned only if this answer caused the change.
func (s *QuestionService) Answer(ctx context.Context, sessionID, studentID string, in model.Answer) (*model.Answer, *model.Question, error) {
	text, err := CleanText(in.Text, maxAnswerLength)
	if err != nil {
		return nil, nil, err
	}

	a := &model.Answer{
		ID:           uuid.NewString(),
		SessionID:    sessionID,
		Text:         text,
		Timestamp:    time.Now().UnixMilli(),
		StudentID:    studentID,
		QuestionText: strings.TrimSpace(in.QuestionText),
		LikedBy:      []string{},
	}

	var question *model.Question
	if in.ActiveQuestionID != "" {
		question, err = s.questionRepo.GetByID(ctx, in.ActiveQuestionID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, nil, ErrQuestionNotInSession
			}
			return nil, nil, fmt.Errorf("get question: %w", err)
		}
		if question.SessionID != sessionID {
			return nil, nil, ErrQuestionNotInSession
		}
		a.ActiveQuestionID = question.ID
		if a.QuestionText == "" {
			a.QuestionText = question.Text
		}
	}

	if err := s.answerRepo.Create(ctx, a); err != nil {
		return nil, nil, fmt.Errorf("create answer: %w", err)
	}

	if question == nil {
		return a, nil, nil
	}
	flipped, err := s.questionRepo.MarkAnswered(ctx, question.ID)
	if err != nil {
		s.log.Error().Err(err).Str("question_id", question.ID).Msg("Failed to mark question answered")
		return a, nil, nil
	}
	if !flipped {
		return a, nil, nil
	}
	question.Status = model.QuestionStatusAnswered
	return a, question, nil
}

// Like records userID's like on an answer and returns the answer with its
// live like count. Persistence is deferred to the like worker.
func (s *QuestionService) Like(ctx context.Context, sessionID, userID, answerID string) (*model.Answer, error) {
	a, err := s.answerRepo.GetByID(ctx, answerID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAnswerNotFound
		}
		return nil, fmt.Errorf("get answer: %w", err)
	}
	if a.SessionID != sessionID {
		return nil, ErrAnswerNotFound
	}

	added, err := s.likes.Record(ctx, answerID, userID, a.LikedBy)
	if err != nil {
		return nil, fmt.Errorf("record like: %w", err)
	}
	if !added {
		return nil, ErrAlreadyLiked
	}

	if err := s.likes.Enqueue(ctx, LikeJob{AnswerID: answerID, UserID: userID}); err != nil {
		if rerr := s.likes.Revoke(ctx, answerID, userID); rerr != nil {
			s.log.Error().Err(rerr).Str("answer_id", answerID).Msg("Failed to revoke unqueued like")
		}
		return nil, fmt.Errorf("queue like: %w", err)
	}

	likedBy, err := s.likes.Likers(ctx, answerID)
	if err != nil {
		return nil, fmt.Errorf("list likes: %w", err)
	}
	a.LikedBy = likedBy
	a.Likes = len(likedBy)
	return a, nil
}

// ListQuestions returns a session's questions in submission order.
func (s *QuestionService) ListQuestions(ctx context.Context, sessionID string) ([]model.Question, error) {
	return s.questionRepo.ListBySession(ctx, sessionID)
}

// ListAnswers returns a session's answers in submission order.
func (s *QuestionService) ListAnswers(ctx context.Context, sessionID string) ([]model.Answer, error) {
	return s.answerRepo.ListBySession(ctx, sessionID)
}
