package services

import "errors"

// Ошибки уровня сервисов. Ошибки прав доступа, отсутствия записей и
// конфликтов состояния возвращаются вызывающему коду как есть; ошибки
// побочных эффектов синхронизации подавляются (см. runNonCritical).
var (
	// Права доступа
	ErrNotPrimaryAgent = errors.New("операция доступна только основному агенту сделки")

	// Отсутствие записей
	ErrDealNotFound        = errors.New("сделка не найдена")
	ErrOfferNotFound       = errors.New("предложение не найдено")
	ErrInstallmentNotFound = errors.New("взнос не найден")
	ErrPlanNotFound        = errors.New("график платежей не найден")

	// Конфликты состояния
	ErrDealTerminal          = errors.New("сделка уже завершена или отменена")
	ErrOfferNotAccepted      = errors.New("сделку можно создать только по принятому предложению")
	ErrDealHasNoCycle        = errors.New("у сделки должен быть хотя бы один связанный цикл")
	ErrPlanAlreadyExists     = errors.New("график платежей по сделке уже существует")
	ErrInstallmentPaid       = errors.New("оплаченный взнос нельзя изменить или удалить")
	ErrInstallmentHasPayment = errors.New("взнос с частичной оплатой нельзя удалить")
	ErrNoNextStage           = errors.New("сделка уже на последнем этапе, используйте завершение сделки")
	ErrOwnershipTransfer     = errors.New("перенос права собственности не выполнен, завершение сделки прервано")
)
