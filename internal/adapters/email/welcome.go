package email

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
)

// WelcomeInput is what the club welcome message needs to know.
type WelcomeInput struct {
	To        string
	FirstName string
	ClubName  string
	AppURL    string // base URL of the planner, without trailing slash
}

const welcomeTemplate = `Hi %s,

You have joined **%s** on Football EyeQ. Your account now has the club's
planning features.

- Plan all twelve sessions of your season in the [planner](%s/planner)
- Browse the [exercise catalog](%s/catalog) and save your favorites

See you on the pitch.
`

// WelcomeMessage builds the message sent after a coach joins a club.
// The body is written in Markdown and rendered to HTML; the Markdown is kept
// as the plain-text alternative.
func WelcomeMessage(in WelcomeInput) (Message, error) {
	name := strings.TrimSpace(in.FirstName)
	if name == "" {
		name = "coach"
	}
	club := strings.TrimSpace(in.ClubName)
	if club == "" {
		club = "your club"
	}
	base := strings.TrimSuffix(in.AppURL, "/")
	text := fmt.Sprintf(welcomeTemplate, name, club, base, base)

	var html bytes.Buffer
	if err := goldmark.Convert([]byte(text), &html); err != nil {
		return Message{}, fmt.Errorf("failed to render welcome email: %w", err)
	}
	return Message{
		To:      []string{in.To},
		Subject: fmt.Sprintf("Welcome to %s", club),
		HTML:    html.String(),
		Text:    text,
		Tags:    map[string]string{"category": "club_welcome"},
	}, nil
}
