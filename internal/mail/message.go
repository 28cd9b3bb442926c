// Package mail renders and delivers the notification e-mails: booking
// confirmation, cancellation, pickup reminder and password reset.
package mail

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	"text/template"
)

// Kind selects the template.
type Kind string

const (
	KindConfirmation   Kind = "reservation_confirmed"
	KindCancellation   Kind = "reservation_cancelled"
	KindPickupReminder Kind = "pickup_reminder"
	KindPasswordReset  Kind = "password_reset"
)

// Message is everything a template may need.  Reservation fields are
// empty for password resets and the reset fields are empty otherwise.
type Message struct {
	Kind          Kind     `json:"kind"`
	To            string   `json:"to"`
	Name          string   `json:"name"`
	ReservationID uint64   `json:"reservation_id,omitempty"`
	MenuDate      string   `json:"menu_date,omitempty"`
	PickupSlot    string   `json:"pickup_slot,omitempty"`
	Dishes        []string `json:"dishes,omitempty"`
	Note          string   `json:"note,omitempty"`
	Amount        string   `json:"amount,omitempty"`
	ResetToken    string   `json:"reset_token,omitempty"`
	ExpiresMin    int      `json:"expires_min,omitempty"`
}

// Email is a rendered message ready for a Sender.
type Email struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

type templateSet struct {
	subject string
	text    *template.Template
	html    *htmltemplate.Template
}

var templates = map[Kind]templateSet{
	KindConfirmation: {
		subject: "[Speed Mensa] Conferma Prenotazione",
		text: template.Must(template.New("confirm").Parse(`Ciao {{.Name}},

la tua prenotazione n. {{.ReservationID}} per il {{.MenuDate}} è confermata.
Ritiro previsto alle {{.PickupSlot}}.
{{if .Dishes}}
Menu:
{{range .Dishes}}  - {{.}}
{{end}}{{end}}{{if .Amount}}
Importo pagato: {{.Amount}}
{{end}}{{if .Note}}
Note: {{.Note}}
{{end}}
Buon appetito,
Speed Mensa
`)),
		html: htmltemplate.Must(htmltemplate.New("confirm").Parse(`<p>Ciao {{.Name}},</p>
<p>la tua prenotazione n. <strong>{{.ReservationID}}</strong> per il <strong>{{.MenuDate}}</strong> è confermata.
Ritiro previsto alle <strong>{{.PickupSlot}}</strong>.</p>
{{if .Dishes}}<ul>{{range .Dishes}}<li>{{.}}</li>{{end}}</ul>{{end}}
{{if .Amount}}<p>Importo pagato: {{.Amount}}</p>{{end}}
{{if .Note}}<p>Note: {{.Note}}</p>{{end}}
<p>Buon appetito,<br>Speed Mensa</p>
`)),
	},
	KindCancellation: {
		subject: "[Speed Mensa] Prenotazione Cancellata",
		text: template.Must(template.New("cancel").Parse(`Ciao {{.Name}},

la tua prenotazione n. {{.ReservationID}} per il {{.MenuDate}} (ritiro alle {{.PickupSlot}}) è stata cancellata.

Speed Mensa
`)),
		html: htmltemplate.Must(htmltemplate.New("cancel").Parse(`<p>Ciao {{.Name}},</p>
<p>la tua prenotazione n. <strong>{{.ReservationID}}</strong> per il <strong>{{.MenuDate}}</strong>
(ritiro alle {{.PickupSlot}}) è stata cancellata.</p>
<p>Speed Mensa</p>
`)),
	},
	KindPickupReminder: {
		subject: "[Speed Mensa] Promemoria Ritiro Pasto",
		text: template.Must(template.New("reminder").Parse(`Ciao {{.Name}},

ti ricordiamo di ritirare il tuo pasto oggi, {{.MenuDate}}, alle {{.PickupSlot}}.
Prenotazione n. {{.ReservationID}}.

Speed Mensa
`)),
		html: htmltemplate.Must(htmltemplate.New("reminder").Parse(`<p>Ciao {{.Name}},</p>
<p>ti ricordiamo di ritirare il tuo pasto oggi, <strong>{{.MenuDate}}</strong>, alle <strong>{{.PickupSlot}}</strong>.</p>
<p>Prenotazione n. {{.ReservationID}}.</p>
<p>Speed Mensa</p>
`)),
	},
	KindPasswordReset: {
		subject: "[Speed Mensa] Reset della Password",
		text: template.Must(template.New("reset").Parse(`Ciao {{.Name}},

per reimpostare la password usa questo codice entro {{.ExpiresMin}} minuti:

{{.ResetToken}}

Se non hai richiesto il reset, ignora questa email.

Speed Mensa
`)),
		html: htmltemplate.Must(htmltemplate.New("reset").Parse(`<p>Ciao {{.Name}},</p>
<p>per reimpostare la password usa questo codice entro {{.ExpiresMin}} minuti:</p>
<p><code>{{.ResetToken}}</code></p>
<p>Se non hai richiesto il reset, ignora questa email.</p>
<p>Speed Mensa</p>
`)),
	},
}

// Render fills the template for m.Kind.
func Render(m Message) (Email, error) {
	set, ok := templates[m.Kind]
	if !ok {
		return Email{}, fmt.Errorf("unknown mail kind %q", m.Kind)
	}
	if m.To == "" {
		return Email{}, fmt.Errorf("%s: missing recipient", m.Kind)
	}
	var text, html bytes.Buffer
	if err := set.text.Execute(&text, m); err != nil {
		return Email{}, fmt.Errorf("render %s text: %w", m.Kind, err)
	}
	if err := set.html.Execute(&html, m); err != nil {
		return Email{}, fmt.Errorf("render %s html: %w", m.Kind, err)
	}
	return Email{To: m.To, Subject: set.subject, Text: text.String(), HTML: html.String()}, nil
}
