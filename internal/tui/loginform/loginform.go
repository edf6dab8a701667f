// ABOUTME: Interactive sign-in prompt for the login command
// ABOUTME: Asks only for the credential fields that were not given as flags

package loginform

import (
	"errors"
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/markalston/propdesk/internal/client"
)

// Form collects a username and password
type Form struct {
	creds  client.Credentials
	fields []field
}

type field int

const (
	fieldUsername field = iota
	fieldPassword
)

// New creates a form prefilled with whatever the caller already has
func New(creds client.Credentials) *Form {
	f := &Form{creds: creds}
	if strings.TrimSpace(creds.Username) == "" {
		f.fields = append(f.fields, fieldUsername)
	}
	if creds.Password == "" {
		f.fields = append(f.fields, fieldPassword)
	}
	return f
}

// NeedsInput reports whether any field is still missing
func (f *Form) NeedsInput() bool {
	return len(f.fields) > 0
}

// Credentials returns the current values
func (f *Form) Credentials() client.Credentials {
	return client.Credentials{
		Username: strings.TrimSpace(f.creds.Username),
		Password: f.creds.Password,
	}
}

// Run prompts for the missing fields and returns the completed credentials
func (f *Form) Run() (client.Credentials, error) {
	if !f.NeedsInput() {
		return f.Credentials(), nil
	}

	form := huh.NewForm(huh.NewGroup(f.inputs()...)).WithTheme(huh.ThemeBase())
	if err := form.Run(); err != nil {
		return client.Credentials{}, err
	}
	return f.Credentials(), nil
}

func (f *Form) inputs() []huh.Field {
	var out []huh.Field
	for _, fl := range f.fields {
		switch fl {
		case fieldUsername:
			out = append(out, huh.NewInput().
				Title("Username").
				Value(&f.creds.Username).
				Validate(required("username")))
		case fieldPassword:
			out = append(out, huh.NewInput().
				Title("Password").
				EchoMode(huh.EchoModePassword).
				Value(&f.creds.Password).
				Validate(required("password")))
		}
	}
	return out
}

func required(name string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return errors.New(name + " is required")
		}
		return nil
	}
}
