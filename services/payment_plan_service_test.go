package services

import (
	"dealcrm/models"
	"errors"
	"testing"
	"time"
)

func createTestPlan(t *testing.T, env *testEnv, deal *models.Deal) *models.PaymentPlan {
	t.Helper()

	plan, err := env.plans.CreatePlan(CreatePlanDTO{
		DealID:               deal.ID,
		DownPaymentPct:       20,
		DownPaymentDate:      time.Now().AddDate(0, 0, 7),
		NumInstallments:      4,
		Frequency:            "MONTHLY",
		FirstInstallmentDate: time.Now().AddDate(0, 1, 0),
		ActorID:              env.agent.ID,
	})
	if err != nil {
		t.Fatalf("ошибка создания графика: %v", err)
	}
	return plan
}

func TestCreatePlanSchedule(t *testing.T) {
	env := newTestEnv(t)
	deal := env.createDeal(t)

	downPaymentDate := time.Now().AddDate(0, 0, 14)
	plan, err := env.plans.CreatePlan(CreatePlanDTO{
		DealID:               deal.ID,
		DownPaymentPct:       20,
		DownPaymentDate:      downPaymentDate,
		NumInstallments:      4,
		Frequency:            "MONTHLY",
		FirstInstallmentDate: time.Now().AddDate(0, 1, 0),
		ActorID:              env.agent.ID,
	})
	if err != nil {
		t.Fatalf("ошибка создания графика: %v", err)
	}

	installments := env.installmentsFor(t, deal.ID)
	if len(installments) != 5 {
		t.Fatalf("installments: got %d want 5", len(installments))
	}

	// Первый взнос 20% от 10 000 000 со сроком в заданную дату
	if installments[0].Kind != models.InstallmentKindDownPayment {
		t.Errorf("first kind: got %v", installments[0].Kind)
	}
	if installments[0].Amount != 2000000 {
		t.Errorf("down payment: got %v want 2000000", installments[0].Amount)
	}
	if installments[0].DueDate.Unix() != downPaymentDate.Unix() {
		t.Errorf("down payment due date: got %v want %v", installments[0].DueDate, downPaymentDate)
	}

	// Остаток 8 000 000 поровну на 4 платежа
	for i := 1; i < 5; i++ {
		if installments[i].Amount != 2000000 {
			t.Errorf("installment %d: got %v want 2000000", i, installments[i].Amount)
		}
		if installments[i].Sequence != i+1 {
			t.Errorf("installment %d sequence: got %d", i, installments[i].Sequence)
		}
	}

	// Последний взнос помечен заключительным
	if installments[4].Kind != models.InstallmentKindFinal {
		t.Errorf("last kind: got %v", installments[4].Kind)
	}

	// Сумма взносов равна итогу графика
	var sum float64
	for _, inst := range installments {
		sum += inst.Amount
	}
	if roundMoney(sum) != plan.TotalAmount {
		t.Errorf("sum of installments %v != plan total %v", sum, plan.TotalAmount)
	}

	if env.reloadDeal(t, deal.ID).PaymentState != models.PaymentStatePlanActive {
		t.Error("payment state should be PLAN_ACTIVE")
	}
}

func TestCreatePlanRoundingGoesToLastInstallment(t *testing.T) {
	env := newTestEnv(t)
	// Цена, не делящаяся нацело на число платежей
	env.db.Model(&models.Offer{}).Where("id = ?", env.offer.ID).Update("amount", 1000000.01)
	deal := env.createDeal(t)

	plan, err := env.plans.CreatePlan(CreatePlanDTO{
		DealID:               deal.ID,
		DownPaymentPct:       10,
		DownPaymentDate:      time.Now().AddDate(0, 0, 3),
		NumInstallments:      3,
		Frequency:            "QUARTERLY",
		FirstInstallmentDate: time.Now().AddDate(0, 0, 10),
		ActorID:              env.agent.ID,
	})
	if err != nil {
		t.Fatalf("ошибка создания графика: %v", err)
	}

	installments := env.installmentsFor(t, deal.ID)
	if len(installments) != 4 {
		t.Fatalf("installments: got %d want 4", len(installments))
	}

	var sum float64
	for _, inst := range installments {
		sum += inst.Amount
	}
	if roundMoney(sum) != plan.TotalAmount {
		t.Errorf("rounding remainder lost: %v != %v", sum, plan.TotalAmount)
	}
}

func TestCreatePlanRequiresDownPayment(t *testing.T) {
	env := newTestEnv(t)
	deal := env.createDeal(t)

	// Нулевая доля первого взноса не принимается: первый взнос обязателен
	_, err := env.plans.CreatePlan(CreatePlanDTO{
		DealID:               deal.ID,
		DownPaymentPct:       0,
		DownPaymentDate:      time.Now().AddDate(0, 0, 3),
		NumInstallments:      3,
		Frequency:            "MONTHLY",
		FirstInstallmentDate: time.Now().AddDate(0, 1, 0),
		ActorID:              env.agent.ID,
	})
	if err == nil {
		t.Fatal("plan with zero down payment should be rejected")
	}

	if len(env.installmentsFor(t, deal.ID)) != 0 {
		t.Error("no installments should be created")
	}
}

func TestCreatePlanRejectsDuplicate(t *testing.T) {
	env := newTestEnv(t)
	deal := env.createDeal(t)
	createTestPlan(t, env, deal)

	_, err := env.plans.CreatePlan(CreatePlanDTO{
		DealID:               deal.ID,
		DownPaymentPct:       10,
		DownPaymentDate:      time.Now(),
		NumInstallments:      2,
		Frequency:            "MONTHLY",
		FirstInstallmentDate: time.Now(),
		ActorID:              env.agent.ID,
	})
	if !errors.Is(err, ErrPlanAlreadyExists) {
		t.Errorf("got %v want %v", err, ErrPlanAlreadyExists)
	}
}

func TestPlanOperationsOnlyPrimaryAgent(t *testing.T) {
	env := newTestEnv(t)
	deal := env.createDeal(t)
	createTestPlan(t, env, deal)
	installments := env.installmentsFor(t, deal.ID)

	// Второй агент сделки не может управлять графиком платежей
	outsider := env.buyerAgent.ID

	if _, err := env.plans.CreatePlan(CreatePlanDTO{
		DealID:               deal.ID,
		DownPaymentPct:       10,
		DownPaymentDate:      time.Now(),
		NumInstallments:      2,
		Frequency:            "MONTHLY",
		FirstInstallmentDate: time.Now(),
		ActorID:              outsider,
	}); !errors.Is(err, ErrNotPrimaryAgent) {
		t.Errorf("CreatePlan: got %v want %v", err, ErrNotPrimaryAgent)
	}

	if _, err := env.plans.RecordPayment(RecordPaymentDTO{
		DealID:        deal.ID,
		InstallmentID: installments[0].ID,
		Amount:        1000,
		Method:        "CASH",
		ActorID:       outsider,
	}); !errors.Is(err, ErrNotPrimaryAgent) {
		t.Errorf("RecordPayment: got %v want %v", err, ErrNotPrimaryAgent)
	}

	if _, err := env.plans.RecordAdHocPayment(AdHocPaymentDTO{
		DealID:  deal.ID,
		Amount:  1000,
		Method:  "CASH",
		ActorID: outsider,
	}); !errors.Is(err, ErrNotPrimaryAgent) {
		t.Errorf("RecordAdHocPayment: got %v want %v", err, ErrNotPrimaryAgent)
	}

	if _, err := env.plans.AddInstallment(AddInstallmentDTO{
		DealID:  deal.ID,
		Amount:  1000,
		DueDate: time.Now().AddDate(0, 2, 0),
		Reason:  "попытка добавить чужой взнос",
		ActorID: outsider,
	}); !errors.Is(err, ErrNotPrimaryAgent) {
		t.Errorf("AddInstallment: got %v want %v", err, ErrNotPrimaryAgent)
	}

	newAmount := 100.0
	if _, err := env.plans.ModifyInstallment(ModifyInstallmentDTO{
		DealID:        deal.ID,
		InstallmentID: installments[0].ID,
		NewAmount:     &newAmount,
		Reason:        "попытка изменить чужой взнос",
		ActorID:       outsider,
	}); !errors.Is(err, ErrNotPrimaryAgent) {
		t.Errorf("ModifyInstallment: got %v want %v", err, ErrNotPrimaryAgent)
	}

	if err := env.plans.DeleteInstallment(deal.ID, installments[0].ID, "попытка удалить чужой взнос", outsider); !errors.Is(err, ErrNotPrimaryAgent) {
		t.Errorf("DeleteInstallment: got %v want %v", err, ErrNotPrimaryAgent)
	}

	if _, err := env.plans.GetPlanSummary(deal.ID, outsider); !errors.Is(err, ErrNotPrimaryAgent) {
		t.Errorf("GetPlanSummary: got %v want %v", err, ErrNotPrimaryAgent)
	}

	// График и сделка остались нетронутыми
	if env.reloadDeal(t, deal.ID).PaymentState != models.PaymentStatePlanActive {
		t.Error("payment state must stay PLAN_ACTIVE")
	}
	if len(env.installmentsFor(t, deal.ID)) != 5 {
		t.Error("installments must stay unchanged")
	}
}

func TestRecordPaymentTransitions(t *testing.T) {
	env := newTestEnv(t)
	deal := env.createDeal(t)
	createTestPlan(t, env, deal)
	installments := env.installmentsFor(t, deal.ID)

	// Частичная оплата первого взноса
	_, err := env.plans.RecordPayment(RecordPaymentDTO{
		DealID:        deal.ID,
		InstallmentID: installments[0].ID,
		Amount:        500000,
		Method:        "BANK_TRANSFER",
		ActorID:       env.agent.ID,
	})
	if err != nil {
		t.Fatalf("partial payment: %v", err)
	}

	var inst models.PaymentInstallment
	env.db.Where("id = ?", installments[0].ID).First(&inst)
	if inst.Status != models.InstallmentStatusPartial {
		t.Errorf("status after partial: got %v", inst.Status)
	}

	// Доплата до полной суммы
	payment, err := env.plans.RecordPayment(RecordPaymentDTO{
		DealID:        deal.ID,
		InstallmentID: installments[0].ID,
		Amount:        1500000,
		Method:        "BANK_TRANSFER",
		ActorID:       env.agent.ID,
	})
	if err != nil {
		t.Fatalf("final payment: %v", err)
	}
	if payment.Kind != models.PaymentKindDownPayment {
		t.Errorf("payment kind: got %v want %v", payment.Kind, models.PaymentKindDownPayment)
	}
	if payment.ReceiptNumber == "" {
		t.Error("receipt number should be generated")
	}

	env.db.Where("id = ?", installments[0].ID).First(&inst)
	if inst.Status != models.InstallmentStatusPaid {
		t.Errorf("status after full payment: got %v", inst.Status)
	}
	if inst.PaidDate == nil {
		t.Error("paid date should be set")
	}

	// Инвариант баланса: остаток = цена - оплачено
	current := env.reloadDeal(t, deal.ID)
	if current.TotalPaid != 2000000 {
		t.Errorf("total paid: got %v", current.TotalPaid)
	}
	if current.BalanceRemaining != current.AgreedPrice-current.TotalPaid {
		t.Errorf("balance invariant violated: %v != %v - %v",
			current.BalanceRemaining, current.AgreedPrice, current.TotalPaid)
	}
}

func TestRecordPaymentUsesSuppliedReceiptNumber(t *testing.T) {
	env := newTestEnv(t)
	deal := env.createDeal(t)
	createTestPlan(t, env, deal)
	installments := env.installmentsFor(t, deal.ID)

	// Переданный номер квитанции сохраняется как есть
	payment, err := env.plans.RecordPayment(RecordPaymentDTO{
		DealID:        deal.ID,
		InstallmentID: installments[0].ID,
		Amount:        500000,
		Method:        "BANK_TRANSFER",
		ReceiptNumber: "RCPT-20260815-000042",
		ActorID:       env.agent.ID,
	})
	if err != nil {
		t.Fatalf("payment: %v", err)
	}
	if payment.ReceiptNumber != "RCPT-20260815-000042" {
		t.Errorf("receipt number: got %q want supplied value", payment.ReceiptNumber)
	}

	// Без номера квитанция генерируется
	generated, err := env.plans.RecordPayment(RecordPaymentDTO{
		DealID:        deal.ID,
		InstallmentID: installments[1].ID,
		Amount:        500000,
		Method:        "BANK_TRANSFER",
		ActorID:       env.agent.ID,
	})
	if err != nil {
		t.Fatalf("payment: %v", err)
	}
	if generated.ReceiptNumber == "" {
		t.Error("receipt number should be generated when not supplied")
	}
}

func TestRecordPaymentRejectsPaidInstallment(t *testing.T) {
	env := newTestEnv(t)
	deal := env.createDeal(t)
	createTestPlan(t, env, deal)
	installments := env.installmentsFor(t, deal.ID)

	if _, err := env.plans.RecordPayment(RecordPaymentDTO{
		DealID:        deal.ID,
		InstallmentID: installments[0].ID,
		Amount:        2000000,
		Method:        "CASH",
		ActorID:       env.agent.ID,
	}); err != nil {
		t.Fatalf("payment: %v", err)
	}

	_, err := env.plans.RecordPayment(RecordPaymentDTO{
		DealID:        deal.ID,
		InstallmentID: installments[0].ID,
		Amount:        100,
		Method:        "CASH",
		ActorID:       env.agent.ID,
	})
	if !errors.Is(err, ErrInstallmentPaid) {
		t.Errorf("got %v want %v", err, ErrInstallmentPaid)
	}
}

func TestFullPaymentClosesPlan(t *testing.T) {
	env := newTestEnv(t)
	deal := env.createDeal(t)
	plan := createTestPlan(t, env, deal)

	for _, inst := range env.installmentsFor(t, deal.ID) {
		if _, err := env.plans.RecordPayment(RecordPaymentDTO{
			DealID:        deal.ID,
			InstallmentID: inst.ID,
			Amount:        inst.Amount,
			Method:        "BANK_TRANSFER",
			ActorID:       env.agent.ID,
		}); err != nil {
			t.Fatalf("payment for %s: %v", inst.ID, err)
		}
	}

	current := env.reloadDeal(t, deal.ID)
	if current.PaymentState != models.PaymentStateFullyPaid {
		t.Errorf("payment state: got %v want %v", current.PaymentState, models.PaymentStateFullyPaid)
	}
	if current.BalanceRemaining != 0 {
		t.Errorf("balance: got %v want 0", current.BalanceRemaining)
	}

	var reloaded models.PaymentPlan
	env.db.Where("id = ?", plan.ID).First(&reloaded)
	if reloaded.Status != models.PlanStatusClosed {
		t.Errorf("plan status: got %v want %v", reloaded.Status, models.PlanStatusClosed)
	}

	if env.notifier.count("dealFullyPaid") == 0 {
		t.Error("expected dealFullyPaid notification")
	}
}

func TestAdHocPaymentCanFullyPayWithOpenInstallments(t *testing.T) {
	env := newTestEnv(t)
	deal := env.createDeal(t)
	createTestPlan(t, env, deal)

	// Платеж вне графика на всю сумму сделки
	_, err := env.plans.RecordAdHocPayment(AdHocPaymentDTO{
		DealID:  deal.ID,
		Amount:  10000000,
		Method:  "BANK_TRANSFER",
		ActorID: env.agent.ID,
	})
	if err != nil {
		t.Fatalf("adhoc payment: %v", err)
	}

	// Сделка полностью оплачена, хотя взносы графика остались открытыми
	current := env.reloadDeal(t, deal.ID)
	if current.PaymentState != models.PaymentStateFullyPaid {
		t.Errorf("payment state: got %v want %v", current.PaymentState, models.PaymentStateFullyPaid)
	}

	for _, inst := range env.installmentsFor(t, deal.ID) {
		if inst.Status == models.InstallmentStatusPaid {
			t.Error("installments should remain unpaid")
		}
	}
}

func TestAddInstallmentRenumbersAndGrowsTotals(t *testing.T) {
	env := newTestEnv(t)
	deal := env.createDeal(t)
	plan := createTestPlan(t, env, deal)
	before := env.installmentsFor(t, deal.ID)

	// Новый взнос со сроком между первым и вторым
	dueDate := before[0].DueDate.AddDate(0, 0, 15)
	added, err := env.plans.AddInstallment(AddInstallmentDTO{
		DealID:  deal.ID,
		Amount:  500000,
		DueDate: dueDate,
		Kind:    "TOKEN",
		Reason:  "задаток по договоренности сторон",
		ActorID: env.agent.ID,
	})
	if err != nil {
		t.Fatalf("add installment: %v", err)
	}

	after := env.installmentsFor(t, deal.ID)
	if len(after) != 6 {
		t.Fatalf("installments: got %d want 6", len(after))
	}

	// Последовательность непрерывна и упорядочена по сроку
	for i, inst := range after {
		if inst.Sequence != i+1 {
			t.Errorf("sequence %d: got %d", i, inst.Sequence)
		}
	}
	if after[1].ID != added.ID {
		t.Errorf("added installment should be second by due date, got position with id %s", after[1].ID)
	}

	// Итоги выросли на сумму взноса
	var reloadedPlan models.PaymentPlan
	env.db.Where("id = ?", plan.ID).First(&reloadedPlan)
	if reloadedPlan.TotalAmount != 10500000 {
		t.Errorf("plan total: got %v want 10500000", reloadedPlan.TotalAmount)
	}

	current := env.reloadDeal(t, deal.ID)
	if current.AgreedPrice != 10500000 {
		t.Errorf("agreed price: got %v want 10500000", current.AgreedPrice)
	}
	if current.PaymentState != models.PaymentStatePlanModified {
		t.Errorf("payment state: got %v want %v", current.PaymentState, models.PaymentStatePlanModified)
	}

	// Записан аудит
	var mods []models.PaymentPlanModification
	env.db.Where("deal_id = ?", deal.ID).Find(&mods)
	if len(mods) != 1 || mods[0].Type != models.ModificationInstallmentAdded {
		t.Errorf("modifications: got %d", len(mods))
	}
}

func TestModifyInstallmentSnapshotsOriginalOnce(t *testing.T) {
	env := newTestEnv(t)
	deal := env.createDeal(t)
	createTestPlan(t, env, deal)
	installments := env.installmentsFor(t, deal.ID)
	target := installments[2]

	newAmount := 2500000.0
	if _, err := env.plans.ModifyInstallment(ModifyInstallmentDTO{
		DealID:        deal.ID,
		InstallmentID: target.ID,
		NewAmount:     &newAmount,
		Reason:        "изменение условий оплаты",
		ActorID:       env.agent.ID,
	}); err != nil {
		t.Fatalf("first modify: %v", err)
	}

	var first models.PaymentInstallment
	env.db.Where("id = ?", target.ID).First(&first)
	if !first.WasModified {
		t.Error("was_modified should be set")
	}
	if first.OriginalAmount == nil || *first.OriginalAmount != 2000000 {
		t.Errorf("original amount snapshot: got %v", first.OriginalAmount)
	}

	// Повторное изменение не перезаписывает снимок
	secondAmount := 2700000.0
	if _, err := env.plans.ModifyInstallment(ModifyInstallmentDTO{
		DealID:        deal.ID,
		InstallmentID: target.ID,
		NewAmount:     &secondAmount,
		Reason:        "повторное изменение",
		ActorID:       env.agent.ID,
	}); err != nil {
		t.Fatalf("second modify: %v", err)
	}

	var second models.PaymentInstallment
	env.db.Where("id = ?", target.ID).First(&second)
	if *second.OriginalAmount != 2000000 {
		t.Errorf("original amount should stay 2000000, got %v", *second.OriginalAmount)
	}
	if second.Amount != 2700000 {
		t.Errorf("amount: got %v want 2700000", second.Amount)
	}

	// Итоги сделки выросли на суммарную дельту
	current := env.reloadDeal(t, deal.ID)
	if current.AgreedPrice != 10700000 {
		t.Errorf("agreed price: got %v want 10700000", current.AgreedPrice)
	}
}

func TestModifyInstallmentEmptyChangeIsNoOp(t *testing.T) {
	env := newTestEnv(t)
	deal := env.createDeal(t)
	createTestPlan(t, env, deal)
	installments := env.installmentsFor(t, deal.ID)
	target := installments[1]

	sameAmount := target.Amount
	if _, err := env.plans.ModifyInstallment(ModifyInstallmentDTO{
		DealID:        deal.ID,
		InstallmentID: target.ID,
		NewAmount:     &sameAmount,
		Reason:        "без изменений",
		ActorID:       env.agent.ID,
	}); err != nil {
		t.Fatalf("noop modify: %v", err)
	}

	var reloaded models.PaymentInstallment
	env.db.Where("id = ?", target.ID).First(&reloaded)
	if reloaded.WasModified {
		t.Error("empty change must not mark installment as modified")
	}

	var mods []models.PaymentPlanModification
	env.db.Where("deal_id = ?", deal.ID).Find(&mods)
	if len(mods) != 0 {
		t.Errorf("empty change must not create audit records, got %d", len(mods))
	}

	if env.reloadDeal(t, deal.ID).PaymentState != models.PaymentStatePlanActive {
		t.Error("payment state must stay PLAN_ACTIVE after empty change")
	}
}

func TestModifyInstallmentRejectsPaid(t *testing.T) {
	env := newTestEnv(t)
	deal := env.createDeal(t)
	createTestPlan(t, env, deal)
	installments := env.installmentsFor(t, deal.ID)

	if _, err := env.plans.RecordPayment(RecordPaymentDTO{
		DealID:        deal.ID,
		InstallmentID: installments[0].ID,
		Amount:        installments[0].Amount,
		Method:        "CASH",
		ActorID:       env.agent.ID,
	}); err != nil {
		t.Fatalf("payment: %v", err)
	}

	newAmount := 100.0
	_, err := env.plans.ModifyInstallment(ModifyInstallmentDTO{
		DealID:        deal.ID,
		InstallmentID: installments[0].ID,
		NewAmount:     &newAmount,
		Reason:        "попытка изменить оплаченный",
		ActorID:       env.agent.ID,
	})
	if !errors.Is(err, ErrInstallmentPaid) {
		t.Errorf("got %v want %v", err, ErrInstallmentPaid)
	}
}

func TestDeleteInstallmentRenumbersAndShrinksTotals(t *testing.T) {
	env := newTestEnv(t)
	deal := env.createDeal(t)
	plan := createTestPlan(t, env, deal)
	before := env.installmentsFor(t, deal.ID)

	// Удаляем второй взнос
	if err := env.plans.DeleteInstallment(deal.ID, before[1].ID, "взнос объединен со следующим", env.agent.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	after := env.installmentsFor(t, deal.ID)
	if len(after) != 4 {
		t.Fatalf("installments: got %d want 4", len(after))
	}
	for i, inst := range after {
		if inst.Sequence != i+1 {
			t.Errorf("sequence %d: got %d", i, inst.Sequence)
		}
		if inst.ID == before[1].ID {
			t.Error("deleted installment still present")
		}
	}

	var reloadedPlan models.PaymentPlan
	env.db.Where("id = ?", plan.ID).First(&reloadedPlan)
	if reloadedPlan.TotalAmount != 8000000 {
		t.Errorf("plan total: got %v want 8000000", reloadedPlan.TotalAmount)
	}

	current := env.reloadDeal(t, deal.ID)
	if current.AgreedPrice != 8000000 {
		t.Errorf("agreed price: got %v want 8000000", current.AgreedPrice)
	}
	if current.BalanceRemaining != 8000000 {
		t.Errorf("balance: got %v want 8000000", current.BalanceRemaining)
	}
}

func TestDeleteInstallmentRejectsPartialPayment(t *testing.T) {
	env := newTestEnv(t)
	deal := env.createDeal(t)
	createTestPlan(t, env, deal)
	installments := env.installmentsFor(t, deal.ID)

	if _, err := env.plans.RecordPayment(RecordPaymentDTO{
		DealID:        deal.ID,
		InstallmentID: installments[1].ID,
		Amount:        1000,
		Method:        "CASH",
		ActorID:       env.agent.ID,
	}); err != nil {
		t.Fatalf("payment: %v", err)
	}

	err := env.plans.DeleteInstallment(deal.ID, installments[1].ID, "попытка удалить", env.agent.ID)
	if !errors.Is(err, ErrInstallmentHasPayment) {
		t.Errorf("got %v want %v", err, ErrInstallmentHasPayment)
	}
}

func TestGetPlanSummaryIsReadOnly(t *testing.T) {
	env := newTestEnv(t)
	deal := env.createDeal(t)
	createTestPlan(t, env, deal)
	installments := env.installmentsFor(t, deal.ID)

	// Просрочиваем первый взнос по сроку, но не размечаем
	env.db.Model(&models.PaymentInstallment{}).Where("id = ?", installments[0].ID).
		Update("due_date", time.Now().AddDate(0, 0, -10))

	summary, err := env.plans.GetPlanSummary(deal.ID, env.agent.ID)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}

	if summary.PendingCount != 5 || summary.OverdueCount != 0 {
		t.Errorf("summary counts: pending %d overdue %d", summary.PendingCount, summary.OverdueCount)
	}
	if summary.Outstanding != 10000000 {
		t.Errorf("outstanding: got %v", summary.Outstanding)
	}
	if summary.NextDueDate == nil {
		t.Error("next due date should be set")
	}

	// Чтение сводки не меняет статусы взносов
	var inst models.PaymentInstallment
	env.db.Where("id = ?", installments[0].ID).First(&inst)
	if inst.Status != models.InstallmentStatusPending {
		t.Errorf("summary must not change installment status, got %v", inst.Status)
	}
}

func TestMarkOverdueIsExplicitCommand(t *testing.T) {
	env := newTestEnv(t)
	deal := env.createDeal(t)
	createTestPlan(t, env, deal)
	installments := env.installmentsFor(t, deal.ID)

	env.db.Model(&models.PaymentInstallment{}).Where("id = ?", installments[0].ID).
		Update("due_date", time.Now().AddDate(0, 0, -10))
	env.db.Model(&models.PaymentInstallment{}).Where("id = ?", installments[1].ID).
		Update("due_date", time.Now().AddDate(0, 0, -3))

	count, err := env.plans.MarkOverdue(time.Now())
	if err != nil {
		t.Fatalf("mark overdue: %v", err)
	}
	if count != 2 {
		t.Errorf("marked: got %d want 2", count)
	}

	for _, id := range []string{installments[0].ID, installments[1].ID} {
		var inst models.PaymentInstallment
		env.db.Where("id = ?", id).First(&inst)
		if inst.Status != models.InstallmentStatusOverdue {
			t.Errorf("installment %s: got %v want OVERDUE", id, inst.Status)
		}
	}

	// Повторный вызов ничего не находит
	count, err = env.plans.MarkOverdue(time.Now())
	if err != nil {
		t.Fatalf("second mark: %v", err)
	}
	if count != 0 {
		t.Errorf("second mark: got %d want 0", count)
	}
}

func TestMarkOverdueSkipsTerminalDeals(t *testing.T) {
	env := newTestEnv(t)
	deal := env.createDeal(t)
	createTestPlan(t, env, deal)
	installments := env.installmentsFor(t, deal.ID)

	env.db.Model(&models.PaymentInstallment{}).Where("id = ?", installments[0].ID).
		Update("due_date", time.Now().AddDate(0, 0, -10))

	// Отмененная сделка выпадает из разметки просрочки
	if _, err := env.completion.Cancel(deal.ID, "покупатель отказался", env.agent.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	count, err := env.plans.MarkOverdue(time.Now())
	if err != nil {
		t.Fatalf("mark overdue: %v", err)
	}
	if count != 0 {
		t.Errorf("marked: got %d want 0", count)
	}

	var inst models.PaymentInstallment
	env.db.Where("id = ?", installments[0].ID).First(&inst)
	if inst.Status != models.InstallmentStatusPending {
		t.Errorf("installment of cancelled deal: got %v want PENDING", inst.Status)
	}
}
