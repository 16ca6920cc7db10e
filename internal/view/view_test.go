package view

import (
	"bytes"
	"testing"
	"time"

	"github.com/stemsi/classqa/internal/clientstate"
	"github.com/stemsi/classqa/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func plain() *Renderer {
	return NewRenderer(clientstate.ThemePlain, time.UTC)
}

func ms(h, m int) int64 {
	return time.Date(2026, 10, 19, h, m, 0, 0, time.UTC).UnixMilli()
}

func TestQuestionsRenderedInGivenOrder(t *testing.T) {
	var buf bytes.Buffer
	err := plain().Questions(&buf, QuestionList{Questions: []model.Question{
		{ID: "q2", Text: "Later one first", Timestamp: ms(10, 5), Status: model.QuestionStatusUnanswered},
		{ID: "q1", Text: "Earlier one second", Timestamp: ms(9, 0), Status: model.QuestionStatusAnswered},
	}})
	require.NoError(t, err)

	assert.Equal(t,
		" 1. [open] Later one first 10:05\n"+
			" 2. [answered] Earlier one second 09:00\n",
		buf.String())
}

func TestQuestionsEmptyAndLoading(t *testing.T) {
	var empty, loading bytes.Buffer
	require.NoError(t, plain().Questions(&empty, QuestionList{Questions: []model.Question{}}))
	require.NoError(t, plain().Questions(&loading, QuestionList{IsLoading: true, Questions: []model.Question{{Text: "hidden"}}}))

	assert.Equal(t, "No questions yet.\n", empty.String())
	assert.Equal(t, "Loading questions...\n", loading.String())
}

func TestQuestionsDisplayErrorVerbatim(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, plain().Questions(&buf, QuestionList{Error: "not connected to the classroom server"}))
	assert.Equal(t, "Error: not connected to the classroom server\nNo questions yet.\n", buf.String())
}

func TestAnswersShowLinkAndLikes(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, plain().Answers(&buf, AnswerList{Answers: []model.Answer{
		{ID: "a1", Text: "Because of caching", QuestionText: "Why is it fast?", Likes: 3, Timestamp: ms(11, 30)},
	}}))
	assert.Equal(t, " 1. Because of caching (re: Why is it fast?) +3 11:30\n", buf.String())
}

func TestSessionRender(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, plain().Session(&buf, model.SessionUpdate{
		ClassName: "CS101", Code: "K7QX2M", Status: model.SessionStatusClosed, Students: []string{"s1", "s2"},
	}))
	assert.Equal(t, "CS101 (code K7QX2M) CLOSED\n2 student(s) joined\n", buf.String())
}

func TestClassCodeAndStatus(t *testing.T) {
	var buf bytes.Buffer
	r := plain()
	require.NoError(t, r.ClassCode(&buf, "K7QX2M", "CS101"))
	require.NoError(t, r.Status(&buf, "Validating", ""))
	assert.Equal(t, "Class CS101 is open. Share this code with students:\n  K7QX2M\nValidating...\n", buf.String())
}
