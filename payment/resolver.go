package payment

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// InvoiceIDToken is replaced with the invoice id in the default purpose.
const InvoiceIDToken = "{{ID}}"

// DefaultPurposeFormat is used when the payee has no purpose configured but
// an invoice id is known.
const DefaultPurposeFormat = "Оплата по счету №%s"

// ExtraFieldPrefix marks query parameters that add non-canonical payload
// keys, e.g. qr_field_DocNo=17 adds DocNo=17.
const ExtraFieldPrefix = "qr_field_"

// Inputs carries everything a Resolver may read.
type Inputs struct {
	Query      map[string]string // request parameters, first value per key
	InvoiceID  string
	InvoiceSum string // invoice total as typed, e.g. "1 500,00"
}

// Source yields a candidate value for a field. The second result is false
// when the source has nothing to offer.
type Source func(in Inputs, payee Details) (string, bool)

// FieldRule resolves one payload key from sources in priority order.
type FieldRule struct {
	Key     string
	Sources []Source
}

// Query reads a request parameter.
func Query(name string) Source {
	return func(in Inputs, _ Details) (string, bool) {
		v := strings.TrimSpace(in.Query[name])
		return v, v != ""
	}
}

// Default reads the configured payee value for key.
func Default(key string) Source {
	return func(_ Inputs, payee Details) (string, bool) {
		v := strings.TrimSpace(payee.Get(key))
		return v, v != ""
	}
}

// InvoiceSum converts the invoice total to kopecks.
func InvoiceSum() Source {
	return func(in Inputs, _ Details) (string, bool) {
		minor, ok := ParseMinorUnits(in.InvoiceSum)
		if !ok {
			return "", false
		}
		return strconv.FormatInt(minor, 10), true
	}
}

// PurposeTemplate substitutes the invoice id into a payee purpose that
// contains token. Purposes without the token are returned unchanged.
func PurposeTemplate(token string) Source {
	return func(in Inputs, payee Details) (string, bool) {
		purpose := payee.Get(KeyPurpose)
		if strings.TrimSpace(purpose) == "" {
			return "", false
		}
		if strings.Contains(purpose, token) {
			purpose = strings.ReplaceAll(purpose, token, in.InvoiceID)
		}
		purpose = strings.TrimSpace(purpose)
		return purpose, purpose != ""
	}
}

// SynthesizedPurpose builds a purpose from format when an invoice id exists.
func SynthesizedPurpose(format string) Source {
	return func(in Inputs, _ Details) (string, bool) {
		id := strings.TrimSpace(in.InvoiceID)
		if id == "" {
			return "", false
		}
		return fmt.Sprintf(format, id), true
	}
}

// DefaultRules lists the field precedence chains: request parameter first,
// then invoice data, then the configured payee.
func DefaultRules() []FieldRule {
	return []FieldRule{
		{KeyName, []Source{Query("qr_name"), Query("receiver_name"), Default(KeyName)}},
		{KeyPersonalAcc, []Source{Query("qr_personal_account"), Query("qr_account"), Query("receiver_account"), Default(KeyPersonalAcc)}},
		{KeyBankName, []Source{Query("qr_bank_name"), Query("qr_bank"), Query("receiver_bank"), Default(KeyBankName)}},
		{KeyBIC, []Source{Query("qr_bic"), Query("qr_bik"), Query("receiver_bik"), Default(KeyBIC)}},
		{KeyCorrespAcc, []Source{Query("qr_correspondent_account"), Query("receiver_correspondent_account"), Default(KeyCorrespAcc)}},
		{KeyPayeeINN, []Source{Query("qr_inn"), Query("receiver_inn"), Default(KeyPayeeINN)}},
		{KeyPayeeKPP, []Source{Query("qr_kpp"), Query("receiver_kpp"), Default(KeyPayeeKPP)}},
		{KeyPayerAddress, []Source{Query("qr_payer_address"), Default(KeyPayerAddress)}},
		{KeySum, []Source{Query("qr_sum"), InvoiceSum()}},
		{KeyPurpose, []Source{Query("qr_purpose"), PurposeTemplate(InvoiceIDToken), SynthesizedPurpose(DefaultPurposeFormat)}},
	}
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithRules replaces the default precedence chains.
func WithRules(rules []FieldRule) ResolverOption {
	return func(r *Resolver) {
		r.rules = rules
	}
}

// WithStrict makes ResolveStrict reject details missing a required key.
func WithStrict(strict bool) ResolverOption {
	return func(r *Resolver) {
		r.strict = strict
	}
}

// WithExtraFields toggles qr_field_* parameters.
func WithExtraFields(enabled bool) ResolverOption {
	return func(r *Resolver) {
		r.extraFields = enabled
	}
}

// Resolver merges request and invoice fields over a configured payee.
// It holds no mutable state and is safe for concurrent use.
type Resolver struct {
	payee       Details
	rules       []FieldRule
	strict      bool
	extraFields bool
}

// NewResolver returns a Resolver with DefaultRules over payee.
func NewResolver(payee Payee, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		payee:       payee.Details(),
		rules:       DefaultRules(),
		extraFields: true,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Payee returns a copy of the configured defaults.
func (r *Resolver) Payee() Details {
	return r.payee.Clone()
}

// Strict reports whether required fields are enforced.
func (r *Resolver) Strict() bool {
	return r.strict
}

// Resolve evaluates every rule and returns the merged details. Fields for
// which no source yields a value are left unset.
func (r *Resolver) Resolve(in Inputs) Details {
	var d Details
	for _, rule := range r.rules {
		for _, src := range rule.Sources {
			if v, ok := src(in, r.payee); ok {
				d.Set(rule.Key, v)
				break
			}
		}
	}

	// Payee keys outside the rules still travel with the payload.
	for _, key := range r.payee.keys {
		if !d.Has(key) && !r.hasRule(key) {
			if v := strings.TrimSpace(r.payee.Get(key)); v != "" {
				d.Set(key, v)
			}
		}
	}

	if r.extraFields {
		var extra []string
		for name := range in.Query {
			if strings.HasPrefix(name, ExtraFieldPrefix) && len(name) > len(ExtraFieldPrefix) {
				extra = append(extra, name)
			}
		}
		sort.Strings(extra)
		for _, name := range extra {
			key := strings.TrimPrefix(name, ExtraFieldPrefix)
			if d.Has(key) || r.hasRule(key) || strings.ContainsAny(key, "|=") {
				continue
			}
			if v := strings.TrimSpace(in.Query[name]); v != "" {
				d.Set(key, v)
			}
		}
	}
	return d
}

// ResolveStrict is Resolve followed by Validate when the resolver is strict.
func (r *Resolver) ResolveStrict(in Inputs) (Details, error) {
	d := r.Resolve(in)
	if r.strict {
		if err := d.Validate(); err != nil {
			return d, err
		}
	}
	return d, nil
}

func (r *Resolver) hasRule(key string) bool {
	for _, rule := range r.rules {
		if rule.Key == key {
			return true
		}
	}
	return false
}
