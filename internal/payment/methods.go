package payment

import "strings"

const (
	// Cards & wallets
	MethodCreditcard = "creditcard"
	MethodApplePay   = "applepay"
	MethodPaypal     = "paypal"

	// Bank redirects
	MethodIdeal        = "ideal"
	MethodBancontact   = "bancontact"
	MethodKBC          = "kbc"
	MethodBelfius      = "belfius"
	MethodEPS          = "eps"
	MethodGiropay      = "giropay"
	MethodPrzelewy24   = "przelewy24"
	MethodBankTransfer = "banktransfer"

	// Pay later / installments
	MethodKlarnaPayLater = "klarnapaylater"
	MethodKlarnaPayNow   = "klarnapaynow"
	MethodKlarnaSliceIt  = "klarnasliceit"
	MethodBillie         = "billie"
	MethodIn3            = "in3"

	// Vouchers
	MethodVoucher  = "voucher"
	MethodGiftcard = "giftcard"
)

// methodCodePrefix is how the shop names gateway methods in its checkout.
const methodCodePrefix = "mollie_methods_"

// ordersOnlyMethods are products the gateway only offers through the Orders
// API. A failed Orders call for one of them must not fall back to Payments.
var ordersOnlyMethods = map[string]struct{}{
	MethodKlarnaPayLater: {},
	MethodKlarnaPayNow:   {},
	MethodKlarnaSliceIt:  {},
	MethodBillie:         {},
	MethodIn3:            {},
	MethodVoucher:        {},
}

// deferredCaptureMethods are authorized at checkout and captured on shipment.
var deferredCaptureMethods = map[string]struct{}{
	MethodKlarnaPayLater: {},
	MethodKlarnaPayNow:   {},
	MethodKlarnaSliceIt:  {},
	MethodBillie:         {},
}

// issuerMethods list the methods whose checkout offers an issuer choice.
var issuerMethods = map[string]struct{}{
	MethodIdeal:    {},
	MethodKBC:      {},
	MethodGiftcard: {},
}

// MethodFromCode turns a shop method code ("mollie_methods_ideal") into the
// gateway method id ("ideal"). Plain ids pass through.
func MethodFromCode(code string) string {
	return strings.TrimPrefix(strings.ToLower(strings.TrimSpace(code)), methodCodePrefix)
}

func IsOrdersOnly(method string) bool {
	_, ok := ordersOnlyMethods[MethodFromCode(method)]
	return ok
}

func IsDeferredCapture(method string) bool {
	_, ok := deferredCaptureMethods[MethodFromCode(method)]
	return ok
}

func HasIssuers(method string) bool {
	_, ok := issuerMethods[MethodFromCode(method)]
	return ok
}
