// Package payment builds ST00012 payloads, the pipe-delimited key=value
// strings Russian banking apps read from payment QR codes.
//
// A payload is assembled in two steps: a Resolver merges request fields,
// invoice fields and the configured payee into Details, and BuildPayload
// serialises Details in canonical field order.
//
//	r := payment.NewResolver(payment.Payee{
//	    Name:        "ООО Ромашка",
//	    PersonalAcc: "40702810900000000001",
//	    BankName:    "АО Банк",
//	    BIC:         "044525000",
//	})
//	d := r.Resolve(payment.Inputs{InvoiceID: "42", InvoiceSum: "1 500,00"})
//	fmt.Println(payment.BuildPayload(d))
package payment

import (
	"errors"
	"fmt"
	"strings"
)

// ST00012 field keys.
const (
	KeyName         = "Name"
	KeyPersonalAcc  = "PersonalAcc"
	KeyBankName     = "BankName"
	KeyBIC          = "BIC"
	KeyCorrespAcc   = "CorrespAcc"
	KeyPayeeINN     = "PayeeINN"
	KeyPayeeKPP     = "PayeeKPP"
	KeyPayerAddress = "PayerAddress"
	KeySum          = "Sum"
	KeyPurpose      = "Purpose"
)

// FieldOrder is the canonical order in which known keys are emitted.
var FieldOrder = []string{
	KeyName,
	KeyPersonalAcc,
	KeyBankName,
	KeyBIC,
	KeyCorrespAcc,
	KeyPayeeINN,
	KeyPayeeKPP,
	KeyPayerAddress,
	KeySum,
	KeyPurpose,
}

// RequiredKeys must be non-empty for a payload to be accepted by banks.
var RequiredKeys = []string{KeyName, KeyPersonalAcc, KeyBankName, KeyBIC}

// ErrIncompleteDetails is returned when a required field is missing.
var ErrIncompleteDetails = errors.New("payment: incomplete payment details")

// Details is an insertion-ordered mapping of payload keys to values.
// The zero value is an empty mapping ready to use.
type Details struct {
	keys   []string
	values map[string]string
}

// Set stores value under key. An existing key keeps its position.
func (d *Details) Set(key, value string) {
	if d.values == nil {
		d.values = make(map[string]string)
	}
	if _, ok := d.values[key]; !ok {
		d.keys = append(d.keys, key)
	}
	d.values[key] = value
}

// Get returns the value stored under key.
func (d Details) Get(key string) string {
	return d.values[key]
}

// Has reports whether key was set, even to an empty value.
func (d Details) Has(key string) bool {
	_, ok := d.values[key]
	return ok
}

// Keys returns the keys in insertion order.
func (d Details) Keys() []string {
	out := make([]string, len(d.keys))
	copy(out, d.keys)
	return out
}

// Len returns the number of keys.
func (d Details) Len() int {
	return len(d.keys)
}

// Clone returns an independent copy.
func (d Details) Clone() Details {
	var c Details
	for _, k := range d.keys {
		c.Set(k, d.values[k])
	}
	return c
}

// Missing returns the required keys whose trimmed value is empty.
func (d Details) Missing() []string {
	var missing []string
	for _, k := range RequiredKeys {
		if strings.TrimSpace(d.values[k]) == "" {
			missing = append(missing, k)
		}
	}
	return missing
}

// Validate reports an error wrapping ErrIncompleteDetails when a required
// key is empty.
func (d Details) Validate() error {
	if missing := d.Missing(); len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrIncompleteDetails, strings.Join(missing, ", "))
	}
	return nil
}

// Payee is the pre-configured payee identity used as defaults.
type Payee struct {
	Name         string `mapstructure:"name" json:"name"`
	PersonalAcc  string `mapstructure:"personal_acc" json:"personalAcc"`
	BankName     string `mapstructure:"bank_name" json:"bankName"`
	BIC          string `mapstructure:"bic" json:"bic"`
	CorrespAcc   string `mapstructure:"corresp_acc" json:"correspAcc"`
	PayeeINN     string `mapstructure:"inn" json:"inn"`
	PayeeKPP     string `mapstructure:"kpp" json:"kpp,omitempty"`
	PayerAddress string `mapstructure:"payer_address" json:"payerAddress,omitempty"`
	Purpose      string `mapstructure:"purpose" json:"purpose"` // may contain the invoice id token
}

// Details converts the payee into a Details record. Empty fields are
// skipped so they do not take a position in insertion order.
func (p Payee) Details() Details {
	var d Details
	for _, kv := range [][2]string{
		{KeyName, p.Name},
		{KeyPersonalAcc, p.PersonalAcc},
		{KeyBankName, p.BankName},
		{KeyBIC, p.BIC},
		{KeyCorrespAcc, p.CorrespAcc},
		{KeyPayeeINN, p.PayeeINN},
		{KeyPayeeKPP, p.PayeeKPP},
		{KeyPayerAddress, p.PayerAddress},
		{KeyPurpose, p.Purpose},
	} {
		if kv[1] != "" {
			d.Set(kv[0], kv[1])
		}
	}
	return d
}
