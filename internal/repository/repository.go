package repository

import (
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"invoicing-service/internal/models"
)

// requireMerchant fails fast when a merchant-scoped method is called
// without a merchant id. This is a programming error, not user input.
func requireMerchant(merchantID uuid.UUID) error {
	if merchantID == uuid.Nil {
		return models.ErrMissingMerchant
	}
	return nil
}

// translate maps storage errors onto the shared sentinels. Unique
// violations become ErrDuplicate (gorm error translation is enabled on
// the connection); everything else propagates.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return models.ErrDuplicate
	}
	return err
}

// orNil converts gorm's not-found on single-row fetches into (nil, nil).
func orNil(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	return err
}
