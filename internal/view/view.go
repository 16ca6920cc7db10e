// Package view renders classroom state for the terminal. Every function is
// a pure function of its arguments: no network, no storage.
package view

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/stemsi/classqa/internal/clientstate"
	"github.com/stemsi/classqa/internal/model"
)

// Renderer holds the palette and clock location used for output.
type Renderer struct {
	loc        *time.Location
	answered   *color.Color
	unanswered *color.Color
	muted      *color.Color
	accent     *color.Color
	alert      *color.Color
}

// NewRenderer builds a Renderer for a theme. ThemePlain disables colour.
func NewRenderer(theme clientstate.Theme, loc *time.Location) *Renderer {
	if loc == nil {
		loc = time.Local
	}
	r := &Renderer{loc: loc}
	if theme == clientstate.ThemeDark {
		r.answered = color.New(color.FgHiGreen)
		r.unanswered = color.New(color.FgHiYellow)
		r.muted = color.New(color.FgHiBlack)
		r.accent = color.New(color.FgHiCyan, color.Bold)
		r.alert = color.New(color.FgHiRed, color.Bold)
	} else {
		r.answered = color.New(color.FgGreen)
		r.unanswered = color.New(color.FgYellow)
		r.muted = color.New(color.Faint)
		r.accent = color.New(color.FgBlue, color.Bold)
		r.alert = color.New(color.FgRed, color.Bold)
	}
	if theme == clientstate.ThemePlain {
		for _, c := range []*color.Color{r.answered, r.unanswered, r.muted, r.accent, r.alert} {
			c.DisableColor()
		}
	}
	return r
}

// QuestionList is the input to Questions.
type QuestionList struct {
	Questions []model.Question
	IsLoading bool
	Error     string
}

// Questions renders questions in the order given.
func (r *Renderer) Questions(w io.Writer, in QuestionList) error {
	b := &strings.Builder{}
	r.errorLine(b, in.Error)
	switch {
	case in.IsLoading:
		r.muted.Fprintln(b, "Loading questions...")
	case len(in.Questions) == 0:
		r.muted.Fprintln(b, "No questions yet.")
	default:
		for i, q := range in.Questions {
			status := r.unanswered.Sprint("[open]")
			if q.Status == model.QuestionStatusAnswered {
				status = r.answered.Sprint("[answered]")
			}
			fmt.Fprintf(b, "%2d. %s %s %s\n", i+1, status, q.Text, r.muted.Sprint(r.clock(q.Timestamp)))
		}
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// AnswerList is the input to Answers.
type AnswerList struct {
	Answers   []model.Answer
	IsLoading bool
	Error     string
}

// Answers renders answers in the order given.
func (r *Renderer) Answers(w io.Writer, in AnswerList) error {
	b := &strings.Builder{}
	r.errorLine(b, in.Error)
	switch {
	case in.IsLoading:
		r.muted.Fprintln(b, "Loading answers...")
	case len(in.Answers) == 0:
		r.muted.Fprintln(b, "No answers yet.")
	default:
		for i, a := range in.Answers {
			fmt.Fprintf(b, "%2d. %s", i+1, a.Text)
			if a.QuestionText != "" {
				fmt.Fprintf(b, " %s", r.muted.Sprintf("(re: %s)", a.QuestionText))
			}
			if a.Likes > 0 {
				fmt.Fprintf(b, " %s", r.accent.Sprintf("+%d", a.Likes))
			}
			fmt.Fprintf(b, " %s\n", r.muted.Sprint(r.clock(a.Timestamp)))
		}
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// Session renders a session-update snapshot.
func (r *Renderer) Session(w io.Writer, u model.SessionUpdate) error {
	b := &strings.Builder{}
	title := u.ClassName
	if title == "" {
		title = "Class session"
	}
	r.accent.Fprint(b, title)
	if u.Code != "" {
		fmt.Fprintf(b, " %s", r.muted.Sprintf("(code %s)", u.Code))
	}
	if u.Status != "" && u.Status != model.SessionStatusActive {
		fmt.Fprintf(b, " %s", r.alert.Sprint(strings.ToUpper(string(u.Status))))
	}
	fmt.Fprintf(b, "\n%d student(s) joined\n", len(u.Students))
	_, err := io.WriteString(w, b.String())
	return err
}

// ClassCode renders a freshly issued class code.
func (r *Renderer) ClassCode(w io.Writer, code, className string) error {
	b := &strings.Builder{}
	fmt.Fprintf(b, "Class %s is open. Share this code with students:\n", className)
	r.accent.Fprintf(b, "  %s\n", code)
	_, err := io.WriteString(w, b.String())
	return err
}

// Status renders the one-line busy/error footer.
func (r *Renderer) Status(w io.Writer, busy string, errMsg string) error {
	b := &strings.Builder{}
	if busy != "" {
		r.muted.Fprintf(b, "%s...\n", busy)
	}
	r.errorLine(b, errMsg)
	_, err := io.WriteString(w, b.String())
	return err
}

func (r *Renderer) errorLine(b *strings.Builder, msg string) {
	if msg != "" {
		r.alert.Fprintf(b, "Error: %s\n", msg)
	}
}

func (r *Renderer) clock(ms int64) string {
	if ms <= 0 {
		return ""
	}
	return time.UnixMilli(ms).In(r.loc).Format("15:04")
}
