package services

import (
	"dealcrm/config"
	"dealcrm/utils"
	"fmt"
	"time"

	"gopkg.in/gomail.v2"
)

// Notifier представляет возможность отправки уведомлений. Отправка работает
// по принципу "отправил и забыл": сбой не прерывает вызывающую операцию.
type Notifier interface {
	Notify(event string, payload map[string]interface{})
}

// NotificationService отправляет уведомления по email
type NotificationService struct {
	dialer *gomail.Dialer
	from   string
}

// NewNotificationService создает новый экземпляр NotificationService
func NewNotificationService(cfg *config.Config) *NotificationService {
	dialer := gomail.NewDialer(
		cfg.SMTP.Host,
		cfg.SMTP.Port,
		cfg.SMTP.Username,
		cfg.SMTP.Password,
	)

	return &NotificationService{
		dialer: dialer,
		from:   cfg.SMTP.From,
	}
}

// Notify отправляет уведомление о событии. Ошибки логируются и никогда
// не возвращаются вызывающему коду.
func (s *NotificationService) Notify(event string, payload map[string]interface{}) {
	to, _ := payload["email"].(string)
	if to == "" {
		return
	}

	subject, body := s.composeMessage(event, payload)
	if subject == "" {
		return
	}

	if err := s.sendEmail(to, subject, body); err != nil {
		utils.LogError("Ошибка при отправке уведомления %s: %v", event, err)
	}
}

// composeMessage формирует тему и тело письма по типу события
func (s *NotificationService) composeMessage(event string, payload map[string]interface{}) (string, string) {
	dealNumber, _ := payload["deal_number"].(string)

	switch event {
	case "dealCreated":
		return "Создана новая сделка", fmt.Sprintf(`
			<h2>Создана новая сделка</h2>
			<p>Номер сделки: %s</p>
			<p>Дата: %s</p>
		`, dealNumber, time.Now().Format("02.01.2006 15:04:05"))
	case "stageAdvanced":
		stage, _ := payload["stage"].(string)
		return "Сделка перешла на следующий этап", fmt.Sprintf(`
			<h2>Сделка перешла на следующий этап</h2>
			<p>Номер сделки: %s</p>
			<p>Новый этап: %s</p>
			<p>Дата: %s</p>
		`, dealNumber, stage, time.Now().Format("02.01.2006 15:04:05"))
	case "paymentRecorded":
		amount, _ := payload["amount"].(float64)
		return "Получен платеж по сделке", fmt.Sprintf(`
			<h2>Получен платеж по сделке</h2>
			<p>Номер сделки: %s</p>
			<p>Сумма: %.2f</p>
			<p>Дата: %s</p>
		`, dealNumber, amount, time.Now().Format("02.01.2006 15:04:05"))
	case "dealFullyPaid":
		return "Сделка полностью оплачена", fmt.Sprintf(`
			<h2>Поздравляем!</h2>
			<p>Все платежи по сделке %s получены.</p>
		`, dealNumber)
	case "dealCompleted":
		return "Сделка завершена", fmt.Sprintf(`
			<h2>Сделка завершена</h2>
			<p>Сделка %s успешно завершена, право собственности передано.</p>
			<p>Дата: %s</p>
		`, dealNumber, time.Now().Format("02.01.2006 15:04:05"))
	case "dealCancelled":
		reason, _ := payload["reason"].(string)
		return "Сделка отменена", fmt.Sprintf(`
			<h2>Сделка отменена</h2>
			<p>Номер сделки: %s</p>
			<p>Причина: %s</p>
		`, dealNumber, reason)
	}

	return "", ""
}

// sendEmail отправляет email
func (s *NotificationService) sendEmail(to, subject, body string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", body)

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("ошибка отправки email: %v", err)
	}

	return nil
}
