// Package mailer delivers the transactional emails of the back office.
// Each send retries a bounded number of times; callers decide whether a
// final failure is fatal for the request that triggered it.
package mailer

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	gomail "gopkg.in/gomail.v2"

	"github.com/user/tradedesk/backend/internal/models"
)

// Sender abstracts gomail's dialer so tests can intercept messages.
type Sender interface {
	DialAndSend(m ...*gomail.Message) error
}

// Mailer composes and sends templated mail.
type Mailer struct {
	sender     Sender
	from       string
	appName    string
	adminEmail string
	retries    int
}

func New(sender Sender, from, appName, adminEmail string, retries int) *Mailer {
	if retries < 1 {
		retries = 1
	}
	return &Mailer{sender: sender, from: from, appName: appName, adminEmail: adminEmail, retries: retries}
}

func (m *Mailer) send(to, subject, body string) error {
	msg := gomail.NewMessage()
	msg.SetAddressHeader("From", m.from, m.appName)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", wrapTemplate(body))

	var err error
	for attempt := 1; attempt <= m.retries; attempt++ {
		if err = m.sender.DialAndSend(msg); err == nil {
			return nil
		}
		logrus.WithError(err).WithFields(logrus.Fields{
			"to": to, "subject": subject, "attempt": attempt,
		}).Warn("mail delivery failed")
	}
	return fmt.Errorf("sending %q to %s: %w", subject, to, err)
}

// AlertAdmin notifies operational staff of a new balance request.
func (m *Mailer) AlertAdmin(userEmail string, amount decimal.Decimal, date time.Time, kind string) error {
	body := fmt.Sprintf(`<p>A new %s request needs review.</p>
		<p>User: %s<br>Amount: %s<br>Date: %s</p>`,
		kind, userEmail, amount.String(), date.Format(time.RFC1123))
	return m.send(m.adminEmail, fmt.Sprintf("New %s request", kind), body)
}

// PendingDepositMail tells the account holder their deposit is queued.
func (m *Mailer) PendingDepositMail(name string, amount decimal.Decimal, date time.Time, to string) error {
	body := fmt.Sprintf(`<p>Dear %s,</p>
		<p>Your deposit of %s on %s has been received and is pending approval.</p>
		<p>Best regards,<br>The %s Team</p>`,
		name, amount.String(), date.Format(time.RFC1123), m.appName)
	return m.send(to, "Deposit received", body)
}

// DepositMail reports the outcome of a resolved deposit.
func (m *Mailer) DepositMail(name string, amount decimal.Decimal, date time.Time, to string, rejected bool) error {
	outcome := "approved and credited to your account"
	subject := "Deposit approved"
	if rejected {
		outcome = "rejected; please contact support for details"
		subject = "Deposit rejected"
	}
	body := fmt.Sprintf(`<p>Dear %s,</p>
		<p>Your deposit of %s from %s has been %s.</p>
		<p>Best regards,<br>The %s Team</p>`,
		name, amount.String(), date.Format(time.RFC1123), outcome, m.appName)
	return m.send(to, subject, body)
}

// PendingWithdrawalMail tells the account holder their withdrawal is queued.
func (m *Mailer) PendingWithdrawalMail(name string, amount decimal.Decimal, date time.Time, to string) error {
	body := fmt.Sprintf(`<p>Dear %s,</p>
		<p>Your withdrawal request of %s on %s has been received and is pending approval.</p>
		<p>Best regards,<br>The %s Team</p>`,
		name, amount.String(), date.Format(time.RFC1123), m.appName)
	return m.send(to, "Withdrawal request received", body)
}

// WithdrawalMail reports the outcome of a resolved withdrawal.
func (m *Mailer) WithdrawalMail(name string, amount decimal.Decimal, date time.Time, to string, rejected bool) error {
	outcome := "approved and is on its way"
	subject := "Withdrawal approved"
	if rejected {
		outcome = "rejected; please contact support for details"
		subject = "Withdrawal rejected"
	}
	body := fmt.Sprintf(`<p>Dear %s,</p>
		<p>Your withdrawal of %s from %s has been %s.</p>
		<p>Best regards,<br>The %s Team</p>`,
		name, amount.String(), date.Format(time.RFC1123), outcome, m.appName)
	return m.send(to, subject, body)
}

// WelcomeMail greets a freshly created account.
func (m *Mailer) WelcomeMail(to string) error {
	body := fmt.Sprintf(`<p>Welcome to %s!</p>
		<p>We're thrilled to have you as part of our community.</p>
		<p>Best regards,<br>The %s Team</p>`, m.appName, m.appName)
	return m.send(to, fmt.Sprintf("Welcome to %s!", m.appName), body)
}

// OTPMail delivers a signup verification code.
func (m *Mailer) OTPMail(to, code string) error {
	body := fmt.Sprintf(`<p>Dear User,</p>
		<p>Your verification code for %s is:</p>
		<div style="background-color:#f5f5f5;padding:15px;text-align:center;border-radius:5px;">
			<span style="font-size:24px;font-weight:bold;letter-spacing:3px;">%s</span>
		</div>
		<p><strong>This code expires in 5 minutes.</strong></p>
		<p>If you didn't request this code, please ignore this email.</p>`, m.appName, code)
	return m.send(to, fmt.Sprintf("%s Verification Code", m.appName), body)
}

// PasswordResetMail sends the reset link.
func (m *Mailer) PasswordResetMail(to, resetURL string) error {
	body := fmt.Sprintf(`<p>A request was made to reset your password. If this wasn't
		you, please contact customer service. Otherwise click the link below.</p>
		<p><a href="%s">Reset Password</a></p>`, resetURL)
	return m.send(to, "Password reset", body)
}

// AdminActivityMail describes an audited action to operational staff.
func (m *Mailer) AdminActivityMail(entry *models.ActivityLog) error {
	location := "unknown"
	if entry.Location != nil {
		location = fmt.Sprintf("%s, %s", entry.Location.City, entry.Location.Country)
	}
	body := fmt.Sprintf(`<p>Privileged action recorded.</p>
		<p>Action: %s<br>Actor: %s (%s)<br>Target: %s %s<br>
		IP: %s<br>Location: %s<br>Device: %s</p>`,
		entry.Action, entry.ActorEmail, entry.ActorRole,
		entry.TargetCollection, entry.TargetID,
		entry.IPAddress, location, parseDevice(entry.UserAgent))
	return m.send(m.adminEmail, fmt.Sprintf("Activity: %s", entry.Action), body)
}

// std is the process-wide mailer wired up in main.
var std *Mailer

// Init installs the default mailer over a real SMTP dialer.
func Init(host string, port int, user, password, appName, adminEmail string, retries int) {
	dialer := gomail.NewDialer(host, port, user, password)
	std = New(dialer, user, appName, adminEmail, retries)
}

// Default returns the process-wide mailer.
func Default() *Mailer { return std }
