package notification

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/smtp"
	"text/template"
	"time"

	"github.com/smukkama/caribe-weather/internal/anomaly"
	"github.com/smukkama/caribe-weather/pkg/config"
)

var reportTemplate = template.Must(template.New("report").Funcs(template.FuncMap{
	"opt": func(v *float64, unit string) string {
		if v == nil {
			return "n/a"
		}
		return fmt.Sprintf("%.1f %s", *v, unit)
	},
}).Parse(`
Weather Anomaly Report
======================

Scanned: {{.Since}}
Readings analyzed: {{.Summary.ReadingsScanned}}
Alerts raised: {{.Summary.AlertsRaised}}

Temperature jumps (|delta| > 5.0 °C): {{len .Report.TemperatureJumps}}
Pressure anomalies (z > 2): {{len .Report.PressureAnomalies}}
Extreme winds (> 15 m/s): {{len .Report.ExtremeWinds}}

Temperature: mean {{opt .Summary.TemperatureMean "°C"}}, min {{opt .Summary.TemperatureMin "°C"}}, max {{opt .Summary.TemperatureMax "°C"}}
Pressure: mean {{opt .Summary.PressureMean "hPa"}}
Wind: mean {{opt .Summary.WindMean "m/s"}}
{{if .Lines}}
Alerts
------
{{range .Lines}}{{.}}
{{end}}{{end}}
---
Caribe Weather Notification System
`))

type reportView struct {
	Since   string
	Report  *anomaly.Report
	Summary anomaly.Summary
	Lines   []string
}

// EmailNotifier sends email notifications
type EmailNotifier struct {
	config *config.SMTPConfig
	logger *slog.Logger
	send   func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewEmailNotifier creates a new email notifier
func NewEmailNotifier(cfg *config.SMTPConfig, logger *slog.Logger) *EmailNotifier {
	return &EmailNotifier{config: cfg, logger: logger, send: smtp.SendMail}
}

// Configured reports whether SMTP credentials are present.
func (e *EmailNotifier) Configured() bool {
	return e.config.Username != "" && e.config.Password != ""
}

// SendScanReport mails the anomaly report. Reports without alerts are not sent.
func (e *EmailNotifier) SendScanReport(report *anomaly.Report, since time.Time) error {
	if report.Summary.AlertsRaised == 0 {
		e.logger.Info("no alerts raised, skipping email")
		return nil
	}

	body, err := renderReport(report, since)
	if err != nil {
		return fmt.Errorf("failed to render email template: %w", err)
	}

	subject := fmt.Sprintf("Weather anomalies detected: %d alerts", report.Summary.AlertsRaised)
	return e.sendEmail(subject, body)
}

func renderReport(report *anomaly.Report, since time.Time) (string, error) {
	view := reportView{
		Since:   "all readings",
		Report:  report,
		Summary: report.Summary,
		Lines:   report.Lines(),
	}
	if !since.IsZero() {
		view.Since = "since " + since.UTC().Format(time.RFC3339)
	}

	var buf bytes.Buffer
	if err := reportTemplate.Execute(&buf, view); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func (e *EmailNotifier) sendEmail(subject, body string) error {
	if !e.Configured() {
		e.logger.Info("SMTP not configured, skipping email", "subject", subject)
		return nil
	}

	message := fmt.Sprintf("From: %s\r\n", e.config.From)
	message += fmt.Sprintf("To: %s\r\n", e.config.To)
	message += fmt.Sprintf("Subject: %s\r\n", subject)
	message += fmt.Sprintf("Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	message += "Content-Type: text/plain; charset=UTF-8\r\n"
	message += "\r\n"
	message += body

	auth := smtp.PlainAuth("", e.config.Username, e.config.Password, e.config.Host)

	addr := fmt.Sprintf("%s:%d", e.config.Host, e.config.Port)
	if err := e.send(addr, auth, e.config.From, []string{e.config.To}, []byte(message)); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	e.logger.Info("email sent", "subject", subject, "to", e.config.To)
	return nil
}
