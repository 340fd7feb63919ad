package usecase

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"shopapi/internal/domain/model"
	repo "shopapi/internal/repository"
)

type AddressUsecase struct {
	addressRepo repo.AddressRepository
}

func NewAddressUsecase(addressRepo repo.AddressRepository) *AddressUsecase {
	return &AddressUsecase{addressRepo: addressRepo}
}

type AddressInput struct {
	AddressType   string
	StreetAddress string
	City          string
	State         string
	PostalCode    string
	Country       string
	Phone         string
	IsDefault     bool
}

func (in AddressInput) validate() error {
	switch model.AddressType(in.AddressType) {
	case model.AddressTypeShipping, model.AddressTypeBilling:
	default:
		return NewHTTPError(http.StatusBadRequest, "invalid address_type")
	}
	if strings.TrimSpace(in.StreetAddress) == "" ||
		strings.TrimSpace(in.City) == "" ||
		strings.TrimSpace(in.PostalCode) == "" {
		return NewHTTPError(http.StatusBadRequest, "street_address, city and postal_code are required")
	}
	return nil
}

func (u *AddressUsecase) List(ctx context.Context, userID int64) ([]model.Address, error) {
	if userID <= 0 {
		return nil, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	addrs, err := u.addressRepo.ListByUserID(ctx, userID)
	if err != nil {
		return nil, NewHTTPError(http.StatusInternalServerError, "db error")
	}
	return addrs, nil
}

func (u *AddressUsecase) Create(ctx context.Context, userID int64, in AddressInput) (model.Address, error) {
	if userID <= 0 {
		return model.Address{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if err := in.validate(); err != nil {
		return model.Address{}, err
	}

	country := strings.TrimSpace(in.Country)
	if country == "" {
		country = "India"
	}

	a := model.Address{
		UserID:        userID,
		AddressType:   model.AddressType(in.AddressType),
		StreetAddress: strings.TrimSpace(in.StreetAddress),
		City:          strings.TrimSpace(in.City),
		State:         strings.TrimSpace(in.State),
		PostalCode:    strings.TrimSpace(in.PostalCode),
		Country:       country,
		Phone:         strings.TrimSpace(in.Phone),
		IsDefault:     in.IsDefault,
	}

	id, err := u.addressRepo.Create(ctx, a)
	if err != nil {
		return model.Address{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	a.ID = id
	return a, nil
}

func (u *AddressUsecase) Update(ctx context.Context, userID int64, addressID int64, in AddressInput) (model.Address, error) {
	if userID <= 0 {
		return model.Address{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if err := in.validate(); err != nil {
		return model.Address{}, err
	}

	a, err := u.owned(ctx, userID, addressID)
	if err != nil {
		return model.Address{}, err
	}

	a.AddressType = model.AddressType(in.AddressType)
	a.StreetAddress = strings.TrimSpace(in.StreetAddress)
	a.City = strings.TrimSpace(in.City)
	a.State = strings.TrimSpace(in.State)
	a.PostalCode = strings.TrimSpace(in.PostalCode)
	if c := strings.TrimSpace(in.Country); c != "" {
		a.Country = c
	}
	a.Phone = strings.TrimSpace(in.Phone)
	a.IsDefault = in.IsDefault

	if err := u.addressRepo.Update(ctx, a); err != nil {
		return model.Address{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	return a, nil
}

// Delete removes the address row. Order shipping snapshots are plain text
// and are unaffected.
func (u *AddressUsecase) Delete(ctx context.Context, userID int64, addressID int64) error {
	if userID <= 0 {
		return NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	if _, err := u.owned(ctx, userID, addressID); err != nil {
		return err
	}

	if err := u.addressRepo.Delete(ctx, addressID); err != nil {
		return NewHTTPError(http.StatusInternalServerError, "db error")
	}
	return nil
}

func (u *AddressUsecase) owned(ctx context.Context, userID int64, addressID int64) (model.Address, error) {
	if addressID <= 0 {
		return model.Address{}, NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	a, err := u.addressRepo.FindByID(ctx, addressID)
	if errors.Is(err, repo.ErrNotFound) {
		return model.Address{}, NewHTTPError(http.StatusNotFound, "address not found")
	}
	if err != nil {
		return model.Address{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}
	if a.UserID != userID {
		return model.Address{}, NewHTTPError(http.StatusNotFound, "address not found")
	}

	return a, nil
}
