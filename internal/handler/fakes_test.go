package handler

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/classqa/internal/model"
	"github.com/stemsi/classqa/internal/service"
	"github.com/stemsi/classqa/internal/validator"
	ws "github.com/stemsi/classqa/internal/websocket"
)

func init() {
	gin.SetMode(gin.TestMode)
	validator.Setup()
}

// memoryClassroom is an in-memory stand-in for the service layer.
type memoryClassroom struct {
	mu        sync.Mutex
	seq       int
	sessions  map[string]*model.ClassSession
	students  map[string][]string
	questions map[string][]model.Question
	answers   map[string][]model.Answer
	likes     map[string]map[string]bool
}

func newMemoryClassroom() *memoryClassroom {
	return &memoryClassroom{
		sessions:  make(map[string]*model.ClassSession),
		students:  make(map[string][]string),
		questions: make(map[string][]model.Question),
		answers:   make(map[string][]model.Answer),
		likes:     make(map[string]map[string]bool),
	}
}

func (m *memoryClassroom) nextID(prefix string) string {
	m.seq++
	return fmt.Sprintf("%s-%d", prefix, m.seq)
}

func (m *memoryClassroom) Generate(_ context.Context, professorID, className string) (*model.ClassSession, error) {
	if className == "" {
		return nil, service.ErrEmptyName
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s := &model.ClassSession{
		ID:          m.nextID("session"),
		Code:        fmt.Sprintf("K7QX%02d", m.seq),
		ClassName:   className,
		ProfessorID: professorID,
		Status:      model.SessionStatusActive,
	}
	m.sessions[s.ID] = s
	return s, nil
}

func (m *memoryClassroom) Validate(_ context.Context, code string) (*model.ClassSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sessions {
		if s.Code == code && s.Status == model.SessionStatusActive {
			return s, nil
		}
	}
	return nil, service.ErrInvalidCode
}

func (m *memoryClassroom) Get(_ context.Context, id string) (*model.ClassSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, service.ErrSessionNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *memoryClassroom) Join(ctx context.Context, sessionID, userID string, userType model.UserType) (model.SessionUpdate, error) {
	s, err := m.Get(ctx, sessionID)
	if err != nil {
		return model.SessionUpdate{}, err
	}
	if s.Status != model.SessionStatusActive {
		return model.SessionUpdate{}, service.ErrSessionNotActive
	}
	if userType == model.UserTypeProfessor && s.ProfessorID != userID {
		return model.SessionUpdate{}, service.ErrNotSessionOwner
	}
	m.mu.Lock()
	if userType == model.UserTypeStudent && !m.isStudentLocked(sessionID, userID) {
		m.students[sessionID] = append(m.students[sessionID], userID)
	}
	m.mu.Unlock()
	return m.Snapshot(ctx, s)
}

func (m *memoryClassroom) isStudentLocked(sessionID, userID string) bool {
	for _, id := range m.students[sessionID] {
		if id == userID {
			return true
		}
	}
	return false
}

func (m *memoryClassroom) Snapshot(_ context.Context, s *model.ClassSession) (model.SessionUpdate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return model.NewSessionUpdate(s, append([]string(nil), m.students[s.ID]...)), nil
}

func (m *memoryClassroom) RequireMember(ctx context.Context, sessionID, userID string, userType model.UserType) (*model.ClassSession, error) {
	if sessionID == "" {
		return nil, service.ErrNotJoined
	}
	s, err := m.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if s.Status != model.SessionStatusActive {
		return nil, service.ErrSessionNotActive
	}
	ok, _ := m.CanView(ctx, s, userID, userType)
	if !ok {
		return nil, service.ErrNotJoined
	}
	return s, nil
}

func (m *memoryClassroom) CanView(_ context.Context, s *model.ClassSession, userID string, userType model.UserType) (bool, error) {
	if userType == model.UserTypeProfessor {
		return s.ProfessorID == userID, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.isStudentLocked(s.ID, userID), nil
}

func (m *memoryClassroom) ListByProfessor(_ context.Context, professorID string) ([]model.ClassSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.ClassSession{}
	for _, s := range m.sessions {
		if s.ProfessorID == professorID {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (m *memoryClassroom) Close(ctx context.Context, sessionID, professorID string) (model.SessionUpdate, error) {
	return m.move(ctx, sessionID, professorID, model.SessionStatusActive, model.SessionStatusClosed, service.ErrSessionNotActive)
}

func (m *memoryClassroom) Archive(ctx context.Context, sessionID, professorID string) (model.SessionUpdate, error) {
	return m.move(ctx, sessionID, professorID, model.SessionStatusClosed, model.SessionStatusArchived, service.ErrSessionNotClosed)
}

func (m *memoryClassroom) move(ctx context.Context, sessionID, professorID string, from, to model.SessionStatus, wrong error) (model.SessionUpdate, error) {
	m.mu.Lock()
	s, ok := m.sessions[sessionID]
	if !ok {
		m.mu.Unlock()
		return model.SessionUpdate{}, service.ErrSessionNotFound
	}
	if s.ProfessorID != professorID {
		m.mu.Unlock()
		return model.SessionUpdate{}, service.ErrNotSessionOwner
	}
	if s.Status != from {
		m.mu.Unlock()
		return model.SessionUpdate{}, wrong
	}
	s.Status = to
	cp := *s
	m.mu.Unlock()
	return m.Snapshot(ctx, &cp)
}

func (m *memoryClassroom) Ask(_ context.Context, sessionID, studentID, text string) (*model.Question, error) {
	text, err := service.CleanText(text, 1000)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	q := model.Question{
		ID:        m.nextID("q"),
		SessionID: sessionID,
		Text:      text,
		Timestamp: int64(m.seq),
		StudentID: studentID,
		Status:    model.QuestionStatusUnanswered,
	}
	m.questions[sessionID] = append(m.questions[sessionID], q)
	return &q, nil
}

func (m *memoryClassroom) Answer(_ context.Context, sessionID, studentID string, in model.Answer) (*model.Answer, *model.Question, error) {
	text, err := service.CleanText(in.Text, 2000)
	if err != nil {
		return nil, nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	a := model.Answer{
		ID:               m.nextID("a"),
		SessionID:        sessionID,
		Text:             text,
		Timestamp:        int64(m.seq),
		StudentID:        studentID,
		ActiveQuestionID: in.ActiveQuestionID,
		QuestionText:     in.QuestionText,
	}
	var flipped *model.Question
	if in.ActiveQuestionID != "" {
		found := false
		for i, q := range m.questions[sessionID] {
			if q.ID != in.ActiveQuestionID {
				continue
			}
			found = true
			a.QuestionText = q.Text
			if q.Status == model.QuestionStatusUnanswered {
				m.questions[sessionID][i].Status = model.QuestionStatusAnswered
				cp := m.questions[sessionID][i]
				flipped = &cp
			}
		}
		if !found {
			return nil, nil, service.ErrQuestionNotInSession
		}
	}
	m.answers[sessionID] = append(m.answers[sessionID], a)
	return &a, flipped, nil
}

func (m *memoryClassroom) Like(_ context.Context, sessionID, userID, answerID string) (*model.Answer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.answers[sessionID] {
		if a.ID != answerID {
			continue
		}
		if m.likes[answerID] == nil {
			m.likes[answerID] = make(map[string]bool)
		}
		if m.likes[answerID][userID] {
			return nil, service.ErrAlreadyLiked
		}
		m.likes[answerID][userID] = true
		a.Likes = len(m.likes[answerID])
		return &a, nil
	}
	return nil, service.ErrAnswerNotFound
}

func (m *memoryClassroom) ListQuestions(_ context.Context, sessionID string) ([]model.Question, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.Question{}
	for _, q := range m.questions[sessionID] {
		out = append(out, q.Anonymous())
	}
	return out, nil
}

func (m *memoryClassroom) ListAnswers(_ context.Context, sessionID string) ([]model.Answer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.Answer{}, m.answers[sessionID]...), nil
}

type stubTickets map[string]*service.Claims

func (s stubTickets) Validate(ticket string) (*service.Claims, error) {
	if c, ok := s[ticket]; ok {
		return c, nil
	}
	return nil, service.ErrTicketInvalid
}

func claimsFor(id string, t model.UserType) *service.Claims {
	c := &service.Claims{UserType: t}
	c.Subject = id
	return c
}

// recordingRooms captures REST-side broadcasts.
type recordingRooms struct {
	mu   sync.Mutex
	msgs []ws.Message
	err  error
}

func (r *recordingRooms) Broadcast(_ context.Context, _ string, msg ws.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, msg)
	return r.err
}

var errBoom = errors.New("boom")
