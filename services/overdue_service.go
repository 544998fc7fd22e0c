package services

import (
	"dealcrm/models"
	"errors"
	"sort"
	"time"

	"gorm.io/gorm"
)

// Severity представляет серьезность просрочки по числу дней
type Severity string

const (
	SeverityWarning  Severity = "WARNING"  // 1-30 дней
	SeverityCritical Severity = "CRITICAL" // 31-60 дней
	SeveritySevere   Severity = "SEVERE"   // Более 60 дней
)

// SeverityFor возвращает серьезность просрочки для числа дней
func SeverityFor(daysOverdue int) Severity {
	switch {
	case daysOverdue > 60:
		return SeveritySevere
	case daysOverdue > 30:
		return SeverityCritical
	default:
		return SeverityWarning
	}
}

// OverdueItem представляет один просроченный взнос в отчете
type OverdueItem struct {
	DealID        string    `json:"deal_id"`
	DealNumber    string    `json:"deal_number"`
	InstallmentID string    `json:"installment_id"`
	Sequence      int       `json:"sequence"`
	Kind          string    `json:"kind"`
	Amount        float64   `json:"amount"`
	PaidAmount    float64   `json:"paid_amount"`
	Outstanding   float64   `json:"outstanding"`
	DueDate       time.Time `json:"due_date"`
	DaysOverdue   int       `json:"days_overdue"`
	Severity      Severity  `json:"severity"`
}

// SeverityGroup представляет группу просроченных взносов одной серьезности
type SeverityGroup struct {
	Severity    Severity      `json:"severity"`
	Count       int           `json:"count"`
	Outstanding float64       `json:"outstanding"`
	Items       []OverdueItem `json:"items"`
}

// OverdueReport представляет сгруппированный отчет по просрочке
type OverdueReport struct {
	GeneratedAt      time.Time       `json:"generated_at"`
	TotalCount       int             `json:"total_count"`
	TotalOutstanding float64         `json:"total_outstanding"`
	Groups           []SeverityGroup `json:"groups"`
}

// OverdueService строит отчеты по просроченным взносам. Сервис только
// читает данные: разметку статуса OVERDUE выполняет отдельная команда
// (см. PaymentPlanService.MarkOverdue).
type OverdueService struct {
	db *gorm.DB
}

// NewOverdueService создает новый экземпляр OverdueService
func NewOverdueService(db *gorm.DB) *OverdueService {
	return &OverdueService{db: db}
}

// ListOverdue возвращает просроченные взносы по сделкам агента,
// отсортированные по убыванию числа дней просрочки. Взнос считается
// просроченным по сроку оплаты независимо от того, размечен ли он.
func (s *OverdueService) ListOverdue(agentID uint, now time.Time) ([]OverdueItem, error) {
	var deals []models.Deal
	query := s.db.Where("status IN ?", []models.DealStatus{models.DealStatusActive, models.DealStatusOnHold})
	if agentID != 0 {
		query = query.Where("primary_agent_id = ? OR secondary_agent_id = ?", agentID, agentID)
	}
	if err := query.Find(&deals).Error; err != nil {
		return nil, errors.New("ошибка при загрузке сделок")
	}

	if len(deals) == 0 {
		return []OverdueItem{}, nil
	}

	dealIDs := make([]string, 0, len(deals))
	dealsByID := make(map[string]*models.Deal, len(deals))
	for i := range deals {
		dealIDs = append(dealIDs, deals[i].ID)
		dealsByID[deals[i].ID] = &deals[i]
	}

	var installments []models.PaymentInstallment
	if err := s.db.
		Where("deal_id IN ? AND due_date < ? AND status IN ?", dealIDs, now,
			[]models.InstallmentStatus{
				models.InstallmentStatusPending,
				models.InstallmentStatusPartial,
				models.InstallmentStatusOverdue,
			}).
		Find(&installments).Error; err != nil {
		return nil, errors.New("ошибка при загрузке просроченных взносов")
	}

	items := make([]OverdueItem, 0, len(installments))
	for _, inst := range installments {
		days := daysBetween(inst.DueDate, now)
		if days < 1 {
			continue
		}
		deal := dealsByID[inst.DealID]
		items = append(items, OverdueItem{
			DealID:        inst.DealID,
			DealNumber:    deal.DealNumber,
			InstallmentID: inst.ID,
			Sequence:      inst.Sequence,
			Kind:          string(inst.Kind),
			Amount:        inst.Amount,
			PaidAmount:    inst.PaidAmount,
			Outstanding:   roundMoney(inst.Amount - inst.PaidAmount),
			DueDate:       inst.DueDate,
			DaysOverdue:   days,
			Severity:      SeverityFor(days),
		})
	}

	sort.Slice(items, func(i, j int) bool {
		return items[i].DaysOverdue > items[j].DaysOverdue
	})

	return items, nil
}

// BuildReport возвращает отчет по просрочке, сгруппированный по серьезности
func (s *OverdueService) BuildReport(agentID uint, now time.Time) (*OverdueReport, error) {
	items, err := s.ListOverdue(agentID, now)
	if err != nil {
		return nil, err
	}

	report := &OverdueReport{
		GeneratedAt: now,
		TotalCount:  len(items),
	}

	groupsBySeverity := make(map[Severity]*SeverityGroup)
	for _, item := range items {
		report.TotalOutstanding = roundMoney(report.TotalOutstanding + item.Outstanding)

		group, ok := groupsBySeverity[item.Severity]
		if !ok {
			group = &SeverityGroup{Severity: item.Severity}
			groupsBySeverity[item.Severity] = group
		}
		group.Count++
		group.Outstanding = roundMoney(group.Outstanding + item.Outstanding)
		group.Items = append(group.Items, item)
	}

	// Порядок групп фиксирован: от самой серьезной к предупреждению
	for _, severity := range []Severity{SeveritySevere, SeverityCritical, SeverityWarning} {
		if group, ok := groupsBySeverity[severity]; ok {
			report.Groups = append(report.Groups, *group)
		}
	}

	return report, nil
}

// daysBetween возвращает число полных дней между сроком оплаты и текущим
// моментом
func daysBetween(due, now time.Time) int {
	if !now.After(due) {
		return 0
	}
	return int(now.Sub(due).Hours() / 24)
}
