// Package invoice derives the template replacement values of an invoice
// from request parameters.
package invoice

import (
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lvillar/invoicegen/payment"
)

// Template keys filled by Replacements.
const (
	KeyID               = "ID"
	KeyInvoiceDate      = "INVOICE_DATE"
	KeyCustomer         = "CUSTOMER"
	KeyProduct          = "PRODUCT"
	KeySum              = "SUM"
	KeyAmountInWords    = "AMOUNT_IN_WORDS"
	KeyDeal             = "DEAL"
	KeyService          = "SERVICE"
	KeyCity             = "CITY"
	KeyLeadSum          = "LEAD_SUM"
	KeyLeadCost         = "LEAD_COST"
	KeyRevenue          = "REVENUE"
	KeyPrice            = "PRICE"
	KeyEmail            = "EMAIL"
	KeyPhone            = "PHONE"
	KeyName             = "NAME"
	KeyINN              = "INN"
	KeyCompanyName      = "COMPANYNAME"
	KeyPaymentQRBase64  = "PAYMENT_QR_BASE64"
	KeyPaymentQRPayload = "PAYMENT_QR_PAYLOAD"
)

// Keys lists every template key in a stable order.
var Keys = []string{
	KeyID, KeyInvoiceDate, KeyCustomer, KeyProduct, KeySum, KeyAmountInWords,
	KeyDeal, KeyService, KeyCity, KeyLeadSum, KeyLeadCost, KeyRevenue, KeyPrice,
	KeyEmail, KeyPhone, KeyName, KeyINN, KeyCompanyName, KeyPaymentQRBase64,
	KeyPaymentQRPayload,
}

// DefaultProduct is the product line printed on every invoice.
const DefaultProduct = "Система привлечения клиентов"

// Query holds request parameters, one value per name.
type Query map[string]string

// QueryFromValues keeps the first value of each parameter.
func QueryFromValues(v url.Values) Query {
	q := make(Query, len(v))
	for k, vals := range v {
		if len(vals) > 0 {
			q[k] = vals[0]
		}
	}
	return q
}

// Get returns the trimmed value of name.
func (q Query) Get(name string) string {
	return strings.TrimSpace(q[name])
}

// Options controls the values that do not come from the request.
type Options struct {
	Product string
	Now     func() time.Time
	NewID   func() string
}

// DefaultOptions uses DefaultProduct, the wall clock and short uuids.
func DefaultOptions() Options {
	return Options{
		Product: DefaultProduct,
		Now:     time.Now,
		NewID:   ShortID,
	}
}

// ShortID returns the first eight characters of a random uuid.
func ShortID() string {
	return uuid.NewString()[:8]
}

// Replacements builds the template values for q. The payment QR keys are
// present and empty; the generator fills them once the code is rendered.
func Replacements(q Query, opts Options) map[string]string {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = ShortID
	}
	if opts.Product == "" {
		opts.Product = DefaultProduct
	}

	price := strings.ReplaceAll(q.Get("price"), ",", ".")

	id := q.Get("deal")
	if id == "" {
		id = opts.NewID()
	}

	product := opts.Product
	if service := q.Get("service"); service != "" {
		product += " / " + service
	}

	return map[string]string{
		KeyID:               id,
		KeyInvoiceDate:      FormatDate(invoiceDate(q, opts.Now)),
		KeyCustomer:         customer(q),
		KeyProduct:          product,
		KeySum:              price,
		KeyAmountInWords:    amountText(q, price),
		KeyDeal:             q.Get("deal"),
		KeyService:          q.Get("service"),
		KeyCity:             q.Get("city"),
		KeyLeadSum:          q.Get("lead_sum"),
		KeyLeadCost:         q.Get("lead_cost"),
		KeyRevenue:          q.Get("revenue"),
		KeyPrice:            price,
		KeyEmail:            q.Get("email"),
		KeyPhone:            q.Get("phone"),
		KeyName:             q.Get("name"),
		KeyINN:              q.Get("inn"),
		KeyCompanyName:      q.Get("companyName"),
		KeyPaymentQRBase64:  "",
		KeyPaymentQRPayload: "",
	}
}

// invoiceDate picks the date part of bill_date ("dd.mm.yyyy hh:mm"), then
// invoiceDate, then today.
func invoiceDate(q Query, now func() time.Time) string {
	if bill := q.Get("bill_date"); strings.Contains(bill, " ") {
		return strings.Fields(bill)[0]
	}
	if d := q.Get("invoiceDate"); d != "" {
		return d
	}
	return now().Format("02.01.2006")
}

func customer(q Query) string {
	var parts []string
	for _, name := range []string{"name", "phone", "email", "inn", "companyName"} {
		if v := q.Get(name); v != "" {
			parts = append(parts, v)
		}
	}
	return strings.Join(parts, ", ")
}

func amountText(q Query, price string) string {
	if text := q.Get("price_text"); text != "" {
		return text
	}
	minor, ok := payment.ParseMinorUnits(price)
	if !ok {
		return ""
	}
	return AmountInWords(minor)
}

// QRWidthMM reads qr_width_mm, accepting a decimal comma. Missing,
// malformed or non-positive values give fallback.
func QRWidthMM(q Query, fallback float64) float64 {
	v := strings.ReplaceAll(q.Get("qr_width_mm"), ",", ".")
	if v == "" {
		return fallback
	}
	w, err := strconv.ParseFloat(v, 64)
	if err != nil || w <= 0 {
		return fallback
	}
	return w
}
