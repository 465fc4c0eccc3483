package license

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/kelda/licensecheck/pkg/errors"
)

// TimeFormat is the layout used for every timestamp in the canonical form.
// Timestamps are converted to UTC and truncated to the second.
const TimeFormat = "2006-01-02T15:04:05Z"

// FieldOrder is the order in which fields are joined into the canonical form.
// The issuer signs the same sequence, so changing it invalidates every
// existing signature.
var FieldOrder = []string{
	"productId",
	"id",
	"key",
	"created",
	"expires",
	"period",
	"f1",
	"f2",
	"f3",
	"f4",
	"f5",
	"f6",
	"f7",
	"f8",
	"notes",
	"block",
	"globalId",
	"customer",
	"activatedMachines",
	"trialActivation",
	"maxNoOfMachines",
	"allowedMachines",
	"dataObjects",
	"signDate",
}

// SignatureField is appended after FieldOrder when the signature is not
// excluded.
const SignatureField = "signature"

// Field is a single named value of the canonical form.
type Field struct {
	Name  string
	Value string
}

// Fields returns the canonical values of l in FieldOrder. The signature is
// appended last unless excludeSignature is set.
func Fields(l *License, excludeSignature bool) []Field {
	fields := []Field{
		{"productId", strconv.Itoa(l.ProductID)},
		{"id", strconv.Itoa(l.ID)},
		{"key", l.Key},
		{"created", formatTime(l.Created)},
		{"expires", formatTime(l.Expires)},
		{"period", strconv.Itoa(l.Period)},
		{"f1", strconv.FormatBool(l.F1)},
		{"f2", strconv.FormatBool(l.F2)},
		{"f3", strconv.FormatBool(l.F3)},
		{"f4", strconv.FormatBool(l.F4)},
		{"f5", strconv.FormatBool(l.F5)},
		{"f6", strconv.FormatBool(l.F6)},
		{"f7", strconv.FormatBool(l.F7)},
		{"f8", strconv.FormatBool(l.F8)},
		{"notes", l.Notes},
		{"block", strconv.FormatBool(l.Block)},
		{"globalId", strconv.FormatInt(l.GlobalID, 10)},
		{"customer", canonicalCustomer(l.Customer)},
		{"activatedMachines", canonicalMachines(l.ActivatedMachines)},
		{"trialActivation", strconv.FormatBool(l.TrialActivation)},
		{"maxNoOfMachines", strconv.Itoa(l.MaxNoOfMachines)},
		{"allowedMachines", l.AllowedMachines},
		{"dataObjects", canonicalDataObjects(l.DataObjects)},
		{"signDate", formatTime(l.SignDate)},
	}

	if !excludeSignature {
		fields = append(fields, Field{SignatureField, l.Signature})
	}
	return fields
}

// Canonical returns the byte sequence that the issuer signs: the values of
// Fields(l, true) joined by commas.
func Canonical(l *License) []byte {
	fields := Fields(l, true)
	values := make([]string, 0, len(fields))
	for _, field := range fields {
		values = append(values, field.Value)
	}
	return []byte(strings.Join(values, ","))
}

func formatTime(t time.Time) string {
	return t.UTC().Truncate(time.Second).Format(TimeFormat)
}

// The nested types are rendered through these mirrors so that the JSON key
// order and the time format are fixed regardless of how the record was
// decoded.
type canonicalCustomerJSON struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Email       string `json:"email"`
	CompanyName string `json:"companyName"`
	Created     string `json:"created"`
}

type canonicalMachineJSON struct {
	Mid  string `json:"mid"`
	IP   string `json:"ip"`
	Time string `json:"time"`
}

func canonicalCustomer(c *Customer) string {
	if c == nil {
		return "null"
	}
	return mustMarshal(canonicalCustomerJSON{
		ID:          c.ID,
		Name:        c.Name,
		Email:       c.Email,
		CompanyName: c.CompanyName,
		Created:     formatTime(c.Created),
	})
}

func canonicalMachines(machines []Machine) string {
	out := make([]canonicalMachineJSON, 0, len(machines))
	for _, m := range machines {
		out = append(out, canonicalMachineJSON{
			Mid:  m.Mid,
			IP:   m.IP,
			Time: formatTime(m.Time),
		})
	}
	return mustMarshal(out)
}

func canonicalDataObjects(objs DataObjects) string {
	if objs == nil {
		objs = DataObjects{}
	}
	return mustMarshal(objs)
}

// mustMarshal is only used on types made of strings and integers, which
// json.Marshal cannot fail on.
func mustMarshal(v interface{}) string {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return string(b)
}

// checkEncoding rejects strings that aren't valid UTF-8. The nested values are
// JSON encoded, which replaces invalid bytes with U+FFFD, so two records that
// differ only in those bytes would share a canonical form.
func checkEncoding(l *License) error {
	strs := map[string]string{
		"key":             l.Key,
		"notes":           l.Notes,
		"allowedMachines": l.AllowedMachines,
	}
	if c := l.Customer; c != nil {
		strs["customer.name"] = c.Name
		strs["customer.email"] = c.Email
		strs["customer.companyName"] = c.CompanyName
	}
	for i, m := range l.ActivatedMachines {
		strs[fmt.Sprintf("activatedMachines[%d].mid", i)] = m.Mid
		strs[fmt.Sprintf("activatedMachines[%d].ip", i)] = m.IP
	}
	for i, obj := range l.DataObjects {
		strs[fmt.Sprintf("dataObjects[%d].name", i)] = obj.Name
		strs[fmt.Sprintf("dataObjects[%d].stringValue", i)] = obj.StringValue
	}

	for name, str := range strs {
		if !utf8.ValidString(str) {
			return errors.WithKind(errors.StructuralInvalid,
				errors.New("%s is not valid UTF-8", name))
		}
	}
	return nil
}
