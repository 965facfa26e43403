package domain

import "fmt"

type DeliveryMethod string

const (
	DeliveryPickup  DeliveryMethod = "pickup"
	DeliveryCourier DeliveryMethod = "courier"
	DeliveryExpress DeliveryMethod = "express"
)

func (m DeliveryMethod) Valid() bool {
	switch m {
	case DeliveryPickup, DeliveryCourier, DeliveryExpress:
		return true
	}
	return false
}

func (m DeliveryMethod) String() string { return string(m) }

func ParseDeliveryMethod(s string) (DeliveryMethod, error) {
	m := DeliveryMethod(s)
	if !m.Valid() {
		return "", fmt.Errorf("unknown delivery method %q", s)
	}
	return m, nil
}

type PaymentMethod string

const (
	PaymentCard        PaymentMethod = "card"
	PaymentOnline      PaymentMethod = "online"
	PaymentCash        PaymentMethod = "cash"
	PaymentInstallment PaymentMethod = "installment"
)

var paymentMethods = []PaymentMethod{PaymentCard, PaymentOnline, PaymentCash, PaymentInstallment}

func (p PaymentMethod) Valid() bool {
	for _, m := range paymentMethods {
		if p == m {
			return true
		}
	}
	return false
}

func (p PaymentMethod) String() string { return string(p) }

func ParsePaymentMethod(s string) (PaymentMethod, error) {
	p := PaymentMethod(s)
	if !p.Valid() {
		return "", fmt.Errorf("unknown payment method %q", s)
	}
	return p, nil
}

const (
	freeCourierThreshold = 2000
	courierFee           = 200
	expressFee           = 490
	installmentThreshold = 3000
)

// discountTiers is ordered from the highest threshold down; the first tier
// strictly exceeded wins.
var discountTiers = []struct {
	over     int64
	discount int64
}{
	{5000, 500},
	{3000, 300},
	{1000, 100},
}

type CheckoutTotals struct {
	Subtotal    int64 `json:"subtotal"`
	Discount    int64 `json:"discount"`
	DeliveryFee int64 `json:"deliveryPrice"`
	Total       int64 `json:"total"`
}

func Discount(subtotal int64) int64 {
	for _, tier := range discountTiers {
		if subtotal > tier.over {
			return tier.discount
		}
	}
	return 0
}

// DeliveryFee returns 0 for pickup and for a method not yet chosen.
func DeliveryFee(subtotal int64, method DeliveryMethod) int64 {
	switch method {
	case DeliveryCourier:
		if subtotal >= freeCourierThreshold {
			return 0
		}
		return courierFee
	case DeliveryExpress:
		return expressFee
	default:
		return 0
	}
}

// Total never goes below zero.
func Total(subtotal, discount, deliveryFee int64) int64 {
	return max(0, subtotal-discount+deliveryFee)
}

func ComputeCheckoutTotals(subtotal int64, method DeliveryMethod) CheckoutTotals {
	discount := Discount(subtotal)
	fee := DeliveryFee(subtotal, method)
	return CheckoutTotals{
		Subtotal:    subtotal,
		Discount:    discount,
		DeliveryFee: fee,
		Total:       Total(subtotal, discount, fee),
	}
}

// PaymentAvailable reports whether p may be used for the given cart subtotal
// and delivery method. An empty method means none has been chosen yet.
func PaymentAvailable(p PaymentMethod, subtotal int64, method DeliveryMethod) bool {
	switch p {
	case PaymentCard:
		return true
	case PaymentOnline:
		return method != ""
	case PaymentCash:
		return method == DeliveryCourier || method == DeliveryExpress
	case PaymentInstallment:
		return subtotal > installmentThreshold
	default:
		return false
	}
}

func AvailablePaymentMethods(subtotal int64, method DeliveryMethod) []PaymentMethod {
	out := make([]PaymentMethod, 0, len(paymentMethods))
	for _, p := range paymentMethods {
		if PaymentAvailable(p, subtotal, method) {
			out = append(out, p)
		}
	}
	return out
}
