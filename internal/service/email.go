package service

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"maps"
	"strings"
	"text/template"
	"time"

	"github.com/a-h/templ"
	"github.com/dustin/go-humanize"
	"github.com/spado/songcontest/internal/markdown"
	"github.com/spado/songcontest/internal/model"
)

//go:embed emails/*.md
var emailFS embed.FS

const (
	emailVerificationCode = "verification_code"
	emailPasswordReset    = "password_reset"
	emailUsernameRecovery = "username_recovery"
	emailSongDeletion     = "song_deletion"
	emailSongUploaded     = "song_uploaded"
	emailSongDeleted      = "song_deleted"
	emailWinner           = "winner"
	emailAdminNewSong     = "admin_new_song"
)

// codeEmails maps a verification type to the email announcing its code.
var codeEmails = map[string]string{
	model.VerificationTypeRegistration:     emailVerificationCode,
	model.VerificationTypeLogin:            emailVerificationCode,
	model.VerificationTypePasswordReset:    emailPasswordReset,
	model.VerificationTypeUsernameRecovery: emailUsernameRecovery,
	model.VerificationTypeSongDeletion:     emailSongDeletion,
}

type emailTemplate struct {
	subject *template.Template
	body    *template.Template
}

type EmailService struct {
	mailer     Mailer
	parser     *markdown.Parser
	templates  map[string]*emailTemplate
	appName    string
	appURL     string
	adminEmail string
}

func NewEmailService(mailer Mailer, appName, appURL, adminEmail string) (*EmailService, error) {
	s := &EmailService{
		mailer:     mailer,
		parser:     markdown.NewParser(),
		templates:  make(map[string]*emailTemplate),
		appName:    appName,
		appURL:     strings.TrimSuffix(appURL, "/"),
		adminEmail: adminEmail,
	}

	err := s.loadTemplates()
	if err != nil {
		return nil, err
	}
	return s, nil
}

// loadTemplates compiles every embedded email. The frontmatter subject and
// the markdown body are separate templates so user-supplied values never
// pass through the YAML parser.
func (s *EmailService) loadTemplates() error {
	entries, err := fs.ReadDir(emailFS, "emails")
	if err != nil {
		return fmt.Errorf("failed to read email templates: %w", err)
	}

	for _, entry := range entries {
		name := strings.TrimSuffix(entry.Name(), ".md")
		raw, err := emailFS.ReadFile("emails/" + entry.Name())
		if err != nil {
			return fmt.Errorf("failed to read email template %s: %w", name, err)
		}

		meta := s.parser.ExtractFrontmatter(raw)
		subject, _ := meta["subject"].(string)
		if subject == "" {
			return fmt.Errorf("email template %s has no subject", name)
		}

		subjectTmpl, err := template.New(name + "_subject").Parse(subject)
		if err != nil {
			return fmt.Errorf("failed to parse subject of %s: %w", name, err)
		}
		bodyTmpl, err := template.New(name).Parse(string(s.parser.Body(raw)))
		if err != nil {
			return fmt.Errorf("failed to parse body of %s: %w", name, err)
		}

		s.templates[name] = &emailTemplate{subject: subjectTmpl, body: bodyTmpl}
	}

	return nil
}

// Render produces the subject and both body variants of an email.
func (s *EmailService) Render(name, to string, data map[string]any) (EmailMessage, error) {
	tmpl, ok := s.templates[name]
	if !ok {
		return EmailMessage{}, fmt.Errorf("unknown email template %q", name)
	}

	data["AppName"] = s.appName
	data["AppURL"] = s.appURL

	var subject, text bytes.Buffer
	err := tmpl.subject.Execute(&subject, data)
	if err != nil {
		return EmailMessage{}, fmt.Errorf("failed to render subject: %w", err)
	}
	err = tmpl.body.Execute(&text, data)
	if err != nil {
		return EmailMessage{}, fmt.Errorf("failed to render body: %w", err)
	}

	var source bytes.Buffer
	err = tmpl.body.Execute(&source, markdownData(data))
	if err != nil {
		return EmailMessage{}, fmt.Errorf("failed to render body: %w", err)
	}

	body, err := s.parser.Parse(source.Bytes())
	if err != nil {
		return EmailMessage{}, fmt.Errorf("failed to render markdown: %w", err)
	}

	var html bytes.Buffer
	err = emailLayout(s.appName, subject.String(), string(body)).Render(context.Background(), &html)
	if err != nil {
		return EmailMessage{}, fmt.Errorf("failed to render layout: %w", err)
	}

	return EmailMessage{
		To:      to,
		Subject: strings.TrimSpace(subject.String()),
		HTML:    html.String(),
		Text:    strings.TrimSpace(text.String()),
	}, nil
}

func (s *EmailService) send(ctx context.Context, name, to string, data map[string]any) error {
	msg, err := s.Render(name, to, data)
	if err != nil {
		return err
	}

	err = s.mailer.Send(ctx, msg)
	if err != nil {
		return err
	}

	slog.Info("email sent", "type", name, "to", to)
	return nil
}

// SendVerificationCode delivers a freshly issued code. songTitle is only used
// by song deletion emails.
func (s *EmailService) SendVerificationCode(ctx context.Context, user *model.User, code *model.VerificationCode, songTitle string, now time.Time) error {
	name, ok := codeEmails[code.Type]
	if !ok {
		return fmt.Errorf("no email for verification type %q", code.Type)
	}

	return s.send(ctx, name, code.Email, map[string]any{
		"Username":  user.Username,
		"Type":      code.Type,
		"Code":      code.Code,
		"ExpiresIn": code.MinutesRemaining(now),
		"SongTitle": songTitle,
	})
}

func (s *EmailService) SendSongUploaded(ctx context.Context, user *model.User, song *model.Song) error {
	data := s.songData(user, song)
	err := s.send(ctx, emailSongUploaded, user.Email, data)
	if err != nil {
		return err
	}

	if s.adminEmail != "" {
		err = s.send(ctx, emailAdminNewSong, s.adminEmail, s.songData(user, song))
		if err != nil {
			slog.Warn("failed to notify admin about new song", "error", err, "song_id", song.ID)
		}
	}
	return nil
}

func (s *EmailService) SendSongDeleted(ctx context.Context, user *model.User, songTitle string) error {
	return s.send(ctx, emailSongDeleted, user.Email, map[string]any{
		"Username":  user.Username,
		"SongTitle": songTitle,
	})
}

func (s *EmailService) SendWinnerNotification(ctx context.Context, entry *model.WinnerEntry) error {
	prize := ""
	if entry.PrizeAmount != nil {
		prize = humanize.CommafWithDigits(*entry.PrizeAmount, 2)
	}

	return s.send(ctx, emailWinner, entry.Email, map[string]any{
		"Username":    entry.Username,
		"SongTitle":   entry.SongTitle,
		"Position":    humanize.Ordinal(entry.Position),
		"PrizeAmount": prize,
		"WinnersURL":  s.appURL + "/winners",
	})
}

func (s *EmailService) songData(user *model.User, song *model.Song) map[string]any {
	return map[string]any{
		"Username":   user.Username,
		"SongTitle":  song.Title,
		"Language":   song.Language,
		"Genre":      song.Genre,
		"AIToolUsed": song.AIToolUsed,
		"SongURL":    fmt.Sprintf("%s/songs/%s", s.appURL, song.ID),
	}
}

// userFields are the template values users type in. They are escaped before
// the body goes through markdown; the subject and plain text keep them as is.
var userFields = []string{"Username", "SongTitle", "Language", "Genre", "AIToolUsed"}

func markdownData(data map[string]any) map[string]any {
	escaped := maps.Clone(data)
	for _, key := range userFields {
		if v, ok := escaped[key].(string); ok {
			escaped[key] = markdown.Escape(v)
		}
	}
	return escaped
}

func emailLayout(appName, subject, body string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, err := io.WriteString(w, `<!DOCTYPE html><html><head><meta charset="utf-8"><title>`+
			templ.EscapeString(subject)+
			`</title></head><body style="font-family:Helvetica,Arial,sans-serif;color:#1f2937;background:#f9fafb;padding:24px">`+
			`<div style="max-width:560px;margin:0 auto;background:#ffffff;border-radius:8px;padding:32px">`)
		if err != nil {
			return err
		}

		err = templ.Raw(body).Render(ctx, w)
		if err != nil {
			return err
		}

		_, err = io.WriteString(w, `</div><p style="text-align:center;font-size:12px;color:#6b7280">`+
			templ.EscapeString(appName)+`</p></body></html>`)
		return err
	})
}
