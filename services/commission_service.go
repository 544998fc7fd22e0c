package services

import (
	"errors"
	"math"
)

// Доли разделения комиссии по умолчанию: 60/40 при наличии второго агента,
// 100/0 без него. Доли фиксируются при создании сделки.
const (
	DefaultPrimarySplitPct   = 60.0
	DefaultSecondarySplitPct = 40.0
)

// CommissionBreakdown представляет расчет комиссии по сделке
type CommissionBreakdown struct {
	TotalCommission     float64 `json:"total_commission"`
	PrimaryPct          float64 `json:"primary_pct"`
	SecondaryPct        float64 `json:"secondary_pct"`
	PrimaryCommission   float64 `json:"primary_commission"`
	SecondaryCommission float64 `json:"secondary_commission"`
}

// CommissionService предоставляет расчет комиссии. Сервис не имеет состояния
// и не обращается к базе данных.
type CommissionService struct{}

// NewCommissionService создает новый экземпляр CommissionService
func NewCommissionService() *CommissionService {
	return &CommissionService{}
}

// Calculate рассчитывает разделение комиссии по цене, ставке и долям агентов
func (s *CommissionService) Calculate(price, rate, primaryPct, secondaryPct float64) (*CommissionBreakdown, error) {
	if price <= 0 {
		return nil, errors.New("цена сделки должна быть больше 0")
	}
	if rate < 0 || rate > 100 {
		return nil, errors.New("ставка комиссии должна быть в диапазоне 0-100")
	}
	if primaryPct < 0 || secondaryPct < 0 || math.Abs(primaryPct+secondaryPct-100) > 1e-9 {
		return nil, errors.New("доли агентов должны в сумме давать 100")
	}

	total := roundMoney(price * rate / 100)
	primary := roundMoney(total * primaryPct / 100)
	// Вторая доля считается как остаток, чтобы сумма сходилась копейка в копейку
	secondary := roundMoney(total - primary)

	return &CommissionBreakdown{
		TotalCommission:     total,
		PrimaryPct:          primaryPct,
		SecondaryPct:        secondaryPct,
		PrimaryCommission:   primary,
		SecondaryCommission: secondary,
	}, nil
}

// DefaultSplit возвращает доли разделения по умолчанию
func (s *CommissionService) DefaultSplit(hasSecondaryAgent bool) (float64, float64) {
	if hasSecondaryAgent {
		return DefaultPrimarySplitPct, DefaultSecondarySplitPct
	}
	return 100.0, 0.0
}

// roundMoney округляет сумму до двух знаков
func roundMoney(amount float64) float64 {
	return math.Round(amount*100) / 100
}
