package notify

import (
	"crypto/tls"
	"fmt"
	"net/smtp"
	"strings"
	"time"

	"pricewatch/internal/model"

	"github.com/shopspring/decimal"
)

// EmailService delivers price drop alerts over SMTP
type EmailService struct {
	host      string
	port      int
	username  string
	password  string
	from      string
	isEnabled bool
}

// NewEmailService creates a new email notification service
func NewEmailService(host, username, password, from string, port int) *EmailService {
	return &EmailService{
		host:      host,
		port:      port,
		username:  username,
		password:  password,
		from:      from,
		isEnabled: username != "" && password != "",
	}
}

// Disable disables the email service
func (e *EmailService) Disable() {
	e.isEnabled = false
}

// IsEnabled returns whether the email service is enabled
func (e *EmailService) IsEnabled() bool {
	return e.isEnabled
}

// SendPriceDropAlert emails the owner of a product whose price fell
func (e *EmailService) SendPriceDropAlert(to string, product *model.Product, oldPrice, newPrice decimal.Decimal) error {
	subject := fmt.Sprintf("Price drop: %s", product.Name)
	body := e.buildPriceDropHTML(product, oldPrice, newPrice)

	return e.sendEmail(to, subject, body)
}

// sendEmail sends an email
func (e *EmailService) sendEmail(to, subject, body string) error {
	if !e.isEnabled {
		return fmt.Errorf("email service is not configured")
	}

	if to == "" {
		return fmt.Errorf("recipient email is empty")
	}

	msg := e.buildMessage(to, subject, body)
	addr := fmt.Sprintf("%s:%d", e.host, e.port)

	// Try with TLS first
	if err := e.sendWithTLS(addr, to, msg); err == nil {
		return nil
	}

	// Fallback to STARTTLS
	return e.sendWithSTARTTLS(addr, to, msg)
}

// sendWithTLS sends email using TLS
func (e *EmailService) sendWithTLS(addr, to string, msg string) error {
	auth := smtp.PlainAuth("", e.username, e.password, e.host)

	client, err := smtp.Dial(addr)
	if err != nil {
		return err
	}
	defer client.Close()

	tlsConfig := &tls.Config{
		ServerName: e.host,
	}

	if err := client.StartTLS(tlsConfig); err != nil {
		return err
	}

	if err := client.Auth(auth); err != nil {
		return err
	}

	if err := client.Mail(e.username); err != nil {
		return err
	}

	if err := client.Rcpt(to); err != nil {
		return err
	}

	wc, err := client.Data()
	if err != nil {
		return err
	}
	defer wc.Close()

	_, err = fmt.Fprint(wc, msg)
	return err
}

// sendWithSTARTTLS sends email using STARTTLS
func (e *EmailService) sendWithSTARTTLS(addr, to string, msg string) error {
	auth := smtp.PlainAuth("", e.username, e.password, e.host)

	return smtp.SendMail(
		addr,
		auth,
		e.username,
		[]string{to},
		[]byte(msg),
	)
}

// buildMessage builds the email message
func (e *EmailService) buildMessage(to, subject, body string) string {
	var msg strings.Builder

	msg.WriteString(fmt.Sprintf("From: %s\r\n", e.from))
	msg.WriteString(fmt.Sprintf("To: %s\r\n", to))
	msg.WriteString(fmt.Sprintf("Subject: %s\r\n", subject))
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/html; charset=UTF-8\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(body)

	return msg.String()
}

// buildPriceDropHTML builds the HTML for a price drop email
func (e *EmailService) buildPriceDropHTML(product *model.Product, oldPrice, newPrice decimal.Decimal) string {
	return fmt.Sprintf(`
<!DOCTYPE html>
<html>
<head>
	<meta charset="UTF-8">
	<style>
		body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; }
		.container { max-width: 600px; margin: 0 auto; padding: 20px; }
		.header { background: #f97316; padding: 30px; text-align: center; color: white; border-radius: 10px 10px 0 0; }
		.content { background: #f9f9f9; padding: 30px; border-radius: 0 0 10px 10px; }
		.product-name { font-size: 24px; font-weight: bold; margin: 20px 0; }
		.price-change { font-size: 32px; font-weight: bold; color: #00cc66; margin: 20px 0; }
		.price-old { text-decoration: line-through; color: #999; }
		.price-new { color: #00cc66; }
		.button { display: inline-block; padding: 12px 30px; background: #f97316; color: white; text-decoration: none; border-radius: 20px; margin-top: 20px; }
		.footer { text-align: center; color: #999; font-size: 12px; margin-top: 30px; }
	</style>
</head>
<body>
	<div class="container">
		<div class="header">
			<h1>PriceWatch: price drop</h1>
		</div>
		<div class="content">
			<p>A product you are tracking just dropped in price:</p>
			<div class="product-name">%s</div>
			<div class="price-change">
				<span class="price-old">%s %s</span>
				&rarr;
				<span class="price-new">%s %s</span>
			</div>
			%s
			<div class="footer">
				<p>This email was sent automatically by PriceWatch. Please do not reply.</p>
				<p>%s</p>
			</div>
		</div>
	</div>
</body>
</html>`,
		product.Name,
		product.Currency, oldPrice.StringFixed(2),
		product.Currency, newPrice.StringFixed(2),
		e.buildButton(product.URL),
		time.Now().Format("2006-01-02 15:04:05"),
	)
}

// buildButton builds the HTML for a call-to-action button
func (e *EmailService) buildButton(url string) string {
	if url == "" {
		return ""
	}
	return fmt.Sprintf(`<a href="%s" class="button">View product</a>`, url)
}
