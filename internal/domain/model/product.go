package model

import (
	"strings"

	"telegram-premium-delivery/internal/domain"
)

type ProductType string

const (
	ProductSubscription ProductType = "subscription"
	ProductOneTimePack  ProductType = "one_time_pack"
	ProductToolAccess   ProductType = "tool_access"
)

var productAliases = map[string]ProductType{
	"subscription":    ProductSubscription,
	"one_time_pack":   ProductOneTimePack,
	"one-time-pack":   ProductOneTimePack,
	"digital_product": ProductOneTimePack,
	"photo_pack":      ProductOneTimePack,
	"pack":            ProductOneTimePack,
	"tool_access":     ProductToolAccess,
	"tool-access":     ProductToolAccess,
	"tools_access":    ProductToolAccess,
	"tools":           ProductToolAccess,
}

// ParseProductType normalizes provider and config spellings.
func ParseProductType(s string) (ProductType, error) {
	p, ok := productAliases[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return "", domain.ErrInvalidArgument
	}
	return p, nil
}

func (p ProductType) Valid() bool {
	switch p {
	case ProductSubscription, ProductOneTimePack, ProductToolAccess:
		return true
	}
	return false
}
