package pricing

import "tiemao/storefront/internal/domain"

// Subtotal sums final price × quantity over the given lines.
func Subtotal(lines []domain.CartLine) int64 {
	var sum int64
	for _, line := range lines {
		sum += line.FinalPrice * int64(line.Quantity)
	}
	return sum
}

// Compute derives the totals for a cart. When the discount descriptor carries
// an explicit total-after-discount, that value is authoritative; otherwise it
// is derived from the discount amount, floored at zero.
func Compute(lines []domain.CartLine, discount *domain.Discount, shipping int64) domain.Totals {
	subtotal := Subtotal(lines)

	var discountAmount int64
	after := subtotal
	if discount != nil {
		discountAmount = discount.DiscountAmount
		if discountAmount < 0 {
			discountAmount = 0
		}
		if discount.TotalAfterDiscount != nil {
			after = *discount.TotalAfterDiscount
			if after < 0 {
				after = 0
			}
		} else {
			after = subtotal - discountAmount
			if after < 0 {
				after = 0
			}
		}
	}

	return domain.Totals{
		Subtotal:           subtotal,
		DiscountAmount:     discountAmount,
		Shipping:           shipping,
		TotalAfterDiscount: after,
		GrandTotal:         after + shipping,
		HasDiscount:        discountAmount > 0,
	}
}

// InferDiscountAmount reconstructs the discount of a placed order from the
// two totals the backend did supply. Zero or negative means no discount panel
// is shown at all.
func InferDiscountAmount(itemsSubtotal int64, shipping int64, grandTotal int64) int64 {
	inferred := itemsSubtotal + shipping - grandTotal
	if inferred < 0 {
		return 0
	}
	return inferred
}

// ForOrder derives display totals for a previously placed order, tolerating
// partially-populated discount fields from the backend.
func ForOrder(order domain.Order) domain.Totals {
	var subtotal int64
	for _, line := range order.Lines {
		subtotal += line.UnitPrice * int64(line.Quantity)
	}

	discountAmount := int64(0)
	if order.Discount != nil && order.Discount.DiscountAmount > 0 {
		discountAmount = order.Discount.DiscountAmount
	} else if order.TotalPrice > 0 {
		discountAmount = InferDiscountAmount(subtotal, order.Shipping, order.TotalPrice)
	}

	after := subtotal - discountAmount
	if after < 0 {
		after = 0
	}

	return domain.Totals{
		Subtotal:           subtotal,
		DiscountAmount:     discountAmount,
		Shipping:           order.Shipping,
		TotalAfterDiscount: after,
		GrandTotal:         after + order.Shipping,
		HasDiscount:        discountAmount > 0,
	}
}
