package models

import (
	"strings"

	"github.com/google/uuid"
)

// Префиксы идентификаторов записей
const (
	PrefixDeal         = "deal"
	PrefixInstallment  = "inst"
	PrefixPayment      = "pay"
	PrefixModification = "mod"
	PrefixTransaction  = "txn"
	PrefixOwnership    = "own"
	PrefixProperty     = "prop"
	PrefixListing      = "list"
	PrefixAcquisition  = "acq"
	PrefixClient       = "client"
	PrefixOffer        = "offer"
)

// NewID генерирует идентификатор записи с читаемым префиксом
func NewID(prefix string) string {
	return prefix + "_" + uuid.NewString()
}

// HasPrefix проверяет, что идентификатор имеет ожидаемый префикс
func HasPrefix(id, prefix string) bool {
	return strings.HasPrefix(id, prefix+"_")
}
