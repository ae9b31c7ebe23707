// Package normalize maps heterogeneous inbound webhook payloads onto one
// canonical lead record. Field names arrive in snake_case, camelCase, and
// provider-specific spellings; an ordered alias table resolves each
// canonical field and everything unrecognized lands in customFields.
// Normalization is a pure function over its input.
package normalize

import (
	"strconv"
	"strings"
)

// PropertyType is the closed enum of recognized property classifications.
type PropertyType string

const (
	PropertySingleFamily PropertyType = "single_family"
	PropertyMultiFamily  PropertyType = "multi_family"
	PropertyCommercial   PropertyType = "commercial"
	PropertyLand         PropertyType = "land"
	PropertyMixedUse     PropertyType = "mixed_use"

	// PropertyUnknown marks values outside the synonym table when the
	// normalizer runs with UnknownPropertyTypeSentinel enabled.
	PropertyUnknown PropertyType = "unknown"
)

// Property describes the subject property of a lead. It is attached only
// when address, city, and state were all present in the inbound payload.
type Property struct {
	Address        string       `json:"address"`
	City           string       `json:"city"`
	State          string       `json:"state"`
	Zip            string       `json:"zip"`
	PropertyType   PropertyType `json:"propertyType,omitempty"`
	EstimatedValue *float64     `json:"estimatedValue,omitempty"`
}

// UTM groups campaign-attribution parameters. Present only when at least
// one parameter was supplied.
type UTM struct {
	Source   string `json:"source,omitempty"`
	Medium   string `json:"medium,omitempty"`
	Campaign string `json:"campaign,omitempty"`
}

// RawPayload preserves webhook transport metadata verbatim for audit.
type RawPayload struct {
	WebhookID        string `json:"webhookId,omitempty"`
	WebhookTimestamp string `json:"webhookTimestamp,omitempty"`
	WebhookSource    string `json:"webhookSource,omitempty"`
}

// CanonicalLead is the normalized record every inbound lead payload maps to.
type CanonicalLead struct {
	Source       string                 `json:"source"`
	FirstName    string                 `json:"firstName,omitempty"`
	LastName     string                 `json:"lastName,omitempty"`
	Email        string                 `json:"email,omitempty"`
	Phone        string                 `json:"phone,omitempty"`
	Property     *Property              `json:"property,omitempty"`
	Notes        string                 `json:"notes,omitempty"`
	UTM          *UTM                   `json:"utm,omitempty"`
	CustomFields map[string]interface{} `json:"customFields,omitempty"`
	RawPayload   RawPayload             `json:"rawPayload"`
}

// ZipPlaceholder fills in for a missing zip when the rest of the property
// is present. Downstream consumers expect the field to exist.
const ZipPlaceholder = "00000"

// Options control the policy knobs the normalizer exposes.
type Options struct {
	// UnknownPropertyTypeSentinel maps unrecognized property types to
	// "unknown" instead of the legacy single_family default.
	UnknownPropertyTypeSentinel bool
}

// Alias tables, in priority order. The first non-empty match wins.
var (
	emailAliases     = []string{"email", "email_address", "emailAddress", "contact_email"}
	firstNameAliases = []string{"first_name", "firstName", "fname", "given_name"}
	lastNameAliases  = []string{"last_name", "lastName", "lname", "surname", "family_name"}
	phoneAliases     = []string{"phone", "phone_number", "phoneNumber", "mobile", "contact_phone"}
	addressAliases   = []string{"property_address", "street_address", "address", "propertyAddress"}
	cityAliases      = []string{"city", "property_city", "propertyCity"}
	stateAliases     = []string{"state", "property_state", "propertyState"}
	zipAliases       = []string{"zip", "zip_code", "zipCode", "postal_code", "postalCode"}
	typeAliases      = []string{"property_type", "propertyType", "type_of_property"}
	valueAliases     = []string{"estimated_value", "estimatedValue", "property_value", "propertyValue"}
	notesAliases     = []string{"notes", "message", "comments"}
	sourceAliases    = []string{"source", "lead_source", "leadSource"}
)

// metadataKeys are transport-level keys preserved into RawPayload and never
// treated as custom fields.
var metadataKeys = map[string]bool{
	"webhook_id":        true,
	"webhook_timestamp": true,
	"webhook_source":    true,
}

// propertyTypeSynonyms maps lowercase free-text descriptions to the enum.
var propertyTypeSynonyms = map[string]PropertyType{
	"single_family": PropertySingleFamily,
	"single family": PropertySingleFamily,
	"single-family": PropertySingleFamily,
	"sfr":           PropertySingleFamily,
	"sfh":           PropertySingleFamily,
	"house":         PropertySingleFamily,
	"residential":   PropertySingleFamily,
	"multi_family":  PropertyMultiFamily,
	"multi family":  PropertyMultiFamily,
	"multi-family":  PropertyMultiFamily,
	"multifamily":   PropertyMultiFamily,
	"duplex":        PropertyMultiFamily,
	"triplex":       PropertyMultiFamily,
	"apartment":     PropertyMultiFamily,
	"commercial":    PropertyCommercial,
	"office":        PropertyCommercial,
	"retail":        PropertyCommercial,
	"industrial":    PropertyCommercial,
	"land":          PropertyLand,
	"lot":           PropertyLand,
	"vacant_land":   PropertyLand,
	"vacant land":   PropertyLand,
	"acreage":       PropertyLand,
	"mixed_use":     PropertyMixedUse,
	"mixed use":     PropertyMixedUse,
	"mixed-use":     PropertyMixedUse,
}

// Normalize maps a raw decoded JSON object onto a CanonicalLead using the
// default options (legacy single_family fallback for unknown property
// types).
func Normalize(raw map[string]interface{}) *CanonicalLead {
	return NormalizeWithOptions(raw, Options{})
}

// NormalizeWithOptions maps a raw decoded JSON object onto a CanonicalLead.
func NormalizeWithOptions(raw map[string]interface{}, opts Options) *CanonicalLead {
	lead := &CanonicalLead{}
	consumed := make(map[string]bool)

	lead.Email = resolve(raw, emailAliases, consumed)
	lead.FirstName = resolve(raw, firstNameAliases, consumed)
	lead.LastName = resolve(raw, lastNameAliases, consumed)
	lead.Phone = resolve(raw, phoneAliases, consumed)
	lead.Notes = resolve(raw, notesAliases, consumed)
	lead.Source = resolve(raw, sourceAliases, consumed)
	if lead.Source == "" {
		lead.Source = "webhook"
	}

	address := resolve(raw, addressAliases, consumed)
	city := resolve(raw, cityAliases, consumed)
	state := resolve(raw, stateAliases, consumed)
	zip := resolve(raw, zipAliases, consumed)
	propertyType := resolve(raw, typeAliases, consumed)
	estimatedValue := resolveAny(raw, valueAliases, consumed)

	// A property record without a locatable address is useless downstream,
	// so address, city, and state must all be present.
	if address != "" && city != "" && state != "" {
		if zip == "" {
			zip = ZipPlaceholder
		}
		property := &Property{
			Address:      address,
			City:         city,
			State:        state,
			Zip:          zip,
			PropertyType: classifyPropertyType(propertyType, opts),
		}
		if v, ok := parseCurrency(estimatedValue); ok {
			property.EstimatedValue = &v
		}
		lead.Property = property
	}

	utm := &UTM{
		Source:   stringValue(raw["utm_source"]),
		Medium:   stringValue(raw["utm_medium"]),
		Campaign: stringValue(raw["utm_campaign"]),
	}
	consumed["utm_source"] = true
	consumed["utm_medium"] = true
	consumed["utm_campaign"] = true
	if utm.Source != "" || utm.Medium != "" || utm.Campaign != "" {
		lead.UTM = utm
	}

	lead.RawPayload = RawPayload{
		WebhookID:        stringValue(raw["webhook_id"]),
		WebhookTimestamp: stringValue(raw["webhook_timestamp"]),
		WebhookSource:    stringValue(raw["webhook_source"]),
	}

	for key, value := range raw {
		if consumed[key] || metadataKeys[key] {
			continue
		}
		if lead.CustomFields == nil {
			lead.CustomFields = make(map[string]interface{})
		}
		lead.CustomFields[key] = value
	}

	return lead
}

// resolve walks the alias list and returns the first non-empty string
// value, marking every alias as consumed so unmatched spellings of a
// recognized field never leak into customFields.
func resolve(raw map[string]interface{}, aliases []string, consumed map[string]bool) string {
	result := ""
	for _, alias := range aliases {
		consumed[alias] = true
		if result == "" {
			result = stringValue(raw[alias])
		}
	}
	return result
}

// resolveAny is resolve for values that may be numbers.
func resolveAny(raw map[string]interface{}, aliases []string, consumed map[string]bool) interface{} {
	var result interface{}
	for _, alias := range aliases {
		consumed[alias] = true
		if result == nil {
			if v, ok := raw[alias]; ok && v != nil {
				result = v
			}
		}
	}
	return result
}

// classifyPropertyType maps free text to the closed enum. Unknown values
// fall back to single_family unless the unknown sentinel is enabled.
func classifyPropertyType(value string, opts Options) PropertyType {
	normalized := strings.ToLower(strings.TrimSpace(value))
	if mapped, ok := propertyTypeSynonyms[normalized]; ok {
		return mapped
	}
	if opts.UnknownPropertyTypeSentinel {
		return PropertyUnknown
	}
	return PropertySingleFamily
}

// parseCurrency accepts a JSON number or a currency-formatted string like
// "$450,000" and returns the numeric value. Anything else is discarded.
func parseCurrency(value interface{}) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case string:
		cleaned := strings.TrimSpace(v)
		cleaned = strings.ReplaceAll(cleaned, "$", "")
		cleaned = strings.ReplaceAll(cleaned, ",", "")
		if cleaned == "" {
			return 0, false
		}
		parsed, err := strconv.ParseFloat(cleaned, 64)
		if err != nil {
			return 0, false
		}
		return parsed, true
	default:
		return 0, false
	}
}

// stringValue renders scalar JSON values as strings; objects, arrays, and
// nil read as empty.
func stringValue(value interface{}) string {
	switch v := value.(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		if v == float64(int64(v)) {
			return strconv.FormatInt(int64(v), 10)
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return ""
	}
}
