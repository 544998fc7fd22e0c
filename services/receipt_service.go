package services

import (
	"dealcrm/models"
	"dealcrm/utils"
	"fmt"
	"math/rand"
	"time"

	"github.com/beevik/etree"
)

// ReceiptGenerator представляет возможность генерации квитанций
type ReceiptGenerator interface {
	GenerateNumber() string
	RenderXML(payment *models.DealPayment, deal *models.Deal, recorderName string) ([]byte, error)
}

// ReceiptService генерирует номера квитанций и XML-документы квитанций
type ReceiptService struct {
	hmacKey string
}

// NewReceiptService создает новый экземпляр ReceiptService
func NewReceiptService(hmacKey string) *ReceiptService {
	return &ReceiptService{hmacKey: hmacKey}
}

// GenerateNumber генерирует номер квитанции
func (s *ReceiptService) GenerateNumber() string {
	// Дата выдачи и шестизначный суффикс
	suffix := rand.Intn(1000000)
	return fmt.Sprintf("RCPT-%s-%06d", time.Now().Format("20060102"), suffix)
}

// Sign возвращает HMAC-подпись номера квитанции
func (s *ReceiptService) Sign(receiptNumber string) string {
	return utils.CalculateHMAC(receiptNumber, s.hmacKey)
}

// Verify проверяет подпись номера квитанции
func (s *ReceiptService) Verify(receiptNumber, signature string) bool {
	return utils.VerifyHMAC(receiptNumber, signature, s.hmacKey)
}

// RenderXML формирует печатную XML-квитанцию по платежу
func (s *ReceiptService) RenderXML(payment *models.DealPayment, deal *models.Deal, recorderName string) ([]byte, error) {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	receipt := doc.CreateElement("receipt")
	receipt.CreateAttr("number", payment.ReceiptNumber)
	receipt.CreateAttr("signature", s.Sign(payment.ReceiptNumber))

	dealEl := receipt.CreateElement("deal")
	dealEl.CreateElement("id").SetText(deal.ID)
	dealEl.CreateElement("number").SetText(deal.DealNumber)
	dealEl.CreateElement("agreedPrice").SetText(fmt.Sprintf("%.2f", deal.AgreedPrice))

	paymentEl := receipt.CreateElement("payment")
	paymentEl.CreateElement("id").SetText(payment.ID)
	paymentEl.CreateElement("kind").SetText(string(payment.Kind))
	paymentEl.CreateElement("amount").SetText(fmt.Sprintf("%.2f", payment.Amount))
	paymentEl.CreateElement("method").SetText(string(payment.Method))
	paymentEl.CreateElement("paidAt").SetText(payment.PaidAt.Format(time.RFC3339))
	if payment.ReferenceNumber != "" {
		paymentEl.CreateElement("reference").SetText(payment.ReferenceNumber)
	}

	recorderEl := receipt.CreateElement("recordedBy")
	recorderEl.SetText(recorderName)

	doc.Indent(2)
	return doc.WriteToBytes()
}
