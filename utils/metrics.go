package utils

import (
	"sync"
	"time"
)

// Metrics содержит метрики приложения
type Metrics struct {
	mu sync.RWMutex

	// Метрики запросов
	TotalRequests   int64
	FailedRequests  int64
	RequestLatency  time.Duration
	AverageLatency  time.Duration
	LastRequestTime time.Time

	// Метрики сделок
	TotalDeals     int64
	ActiveDeals    int64
	CompletedDeals int64
	CancelledDeals int64
	LastDealUpdate time.Time

	// Метрики платежей
	PaymentsRecorded int64
	PaymentVolume    float64
	OverdueDetected  int64

	// Метрики синхронизации
	SyncRuns     int64
	SyncFailures int64

	// Метрики ошибок
	ErrorCount    int64
	LastErrorTime time.Time
	ErrorTypes    map[string]int64
}

var (
	metrics     *Metrics
	metricsOnce sync.Once
)

// GetMetrics возвращает экземпляр метрик
func GetMetrics() *Metrics {
	metricsOnce.Do(func() {
		metrics = &Metrics{
			ErrorTypes: make(map[string]int64),
		}
	})
	return metrics
}

// RecordRequest записывает метрики запроса
func (m *Metrics) RecordRequest(duration time.Duration, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.TotalRequests++
	m.RequestLatency += duration
	m.AverageLatency = m.RequestLatency / time.Duration(m.TotalRequests)
	m.LastRequestTime = time.Now()

	if err != nil {
		m.FailedRequests++
		m.recordErrorLocked(err)
	}
}

// RecordDealOperation записывает метрики операции со сделкой
func (m *Metrics) RecordDealOperation(operation string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.LastDealUpdate = time.Now()

	switch operation {
	case "create":
		m.TotalDeals++
		m.ActiveDeals++
	case "complete":
		m.ActiveDeals--
		m.CompletedDeals++
	case "cancel":
		m.ActiveDeals--
		m.CancelledDeals++
	}
}

// RecordPayment записывает метрики платежа
func (m *Metrics) RecordPayment(amount float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.PaymentsRecorded++
	m.PaymentVolume += amount
}

// RecordOverdue записывает количество найденных просроченных взносов
func (m *Metrics) RecordOverdue(count int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.OverdueDetected += int64(count)
}

// RecordSync записывает результат прогона синхронизации
func (m *Metrics) RecordSync(failed bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.SyncRuns++
	if failed {
		m.SyncFailures++
	}
}

// RecordError записывает метрики ошибки
func (m *Metrics) RecordError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recordErrorLocked(err)
}

func (m *Metrics) recordErrorLocked(err error) {
	m.ErrorCount++
	m.LastErrorTime = time.Now()

	errorType := "unknown"
	if err != nil {
		errorType = err.Error()
	}

	m.ErrorTypes[errorType]++
}

// GetMetricsSnapshot возвращает снимок текущих метрик
func (m *Metrics) GetMetricsSnapshot() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return map[string]interface{}{
		"total_requests":    m.TotalRequests,
		"failed_requests":   m.FailedRequests,
		"average_latency":   m.AverageLatency,
		"total_deals":       m.TotalDeals,
		"active_deals":      m.ActiveDeals,
		"completed_deals":   m.CompletedDeals,
		"cancelled_deals":   m.CancelledDeals,
		"payments_recorded": m.PaymentsRecorded,
		"payment_volume":    m.PaymentVolume,
		"overdue_detected":  m.OverdueDetected,
		"sync_runs":         m.SyncRuns,
		"sync_failures":     m.SyncFailures,
		"error_count":       m.ErrorCount,
		"last_error_time":   m.LastErrorTime,
		"error_types":       m.ErrorTypes,
	}
}

// ResetMetrics сбрасывает все метрики
func (m *Metrics) ResetMetrics() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.TotalRequests = 0
	m.FailedRequests = 0
	m.RequestLatency = 0
	m.AverageLatency = 0
	m.TotalDeals = 0
	m.ActiveDeals = 0
	m.CompletedDeals = 0
	m.CancelledDeals = 0
	m.PaymentsRecorded = 0
	m.PaymentVolume = 0
	m.OverdueDetected = 0
	m.SyncRuns = 0
	m.SyncFailures = 0
	m.ErrorCount = 0
	m.ErrorTypes = make(map[string]int64)
}
