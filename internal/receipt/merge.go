package receipt

// Merge combines receipts read from several images of one physical receipt.
//
// The first store name other than the default wins and items are concatenated in
// order. For tax, discount, tip and total the last non-zero value wins, since the
// totals block usually appears on a single page and 0 means "not seen".
// Callers must pass at least one receipt; an empty slice yields the default receipt.
func Merge(receipts []Receipt) Receipt {
	merged := emptyReceipt()

	for _, r := range receipts {
		if merged.Store == DefaultStore && r.Store != "" {
			merged.Store = r.Store
		}
		merged.Items = append(merged.Items, r.Items...)

		if v := ClampMoney(r.Tax); v > 0 {
			merged.Tax = v
		}
		if v := ClampMoney(r.Discount); v > 0 {
			merged.Discount = v
		}
		if v := ClampMoney(r.Tip); v > 0 {
			merged.Tip = v
		}
		if v := ClampMoney(r.Total); v > 0 {
			merged.Total = v
		}
	}

	merged.Tax = ClampMoney(merged.Tax)
	merged.Discount = ClampMoney(merged.Discount)
	merged.Tip = ClampMoney(merged.Tip)
	merged.Total = ClampMoney(merged.Total)

	return merged
}
