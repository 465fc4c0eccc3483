package license_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/kelda/licensecheck/pkg/license"
	"github.com/kelda/licensecheck/pkg/license/licensetest"
)

func TestCanonical(t *testing.T) {
	stamp := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	lic := &license.License{
		ProductID: 1,
		ID:        2,
		Key:       "K",
		Created:   stamp,
		Expires:   time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		Period:    7,
		F2:        true,
		Notes:     "n",
		Block:     true,
		GlobalID:  9,
		ActivatedMachines: []license.Machine{
			{Mid: "m", IP: "1.2.3.4", Time: stamp},
		},
		DataObjects: license.DataObjects{
			{ID: 1, Name: "a", StringValue: "s", IntValue: 5},
		},
		SignDate:  time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		Signature: "ignored",
	}

	exp := `1,2,K,2024-01-02T03:04:05Z,2025-01-01T00:00:00Z,7,` +
		`false,true,false,false,false,false,false,false,` +
		`n,true,9,null,` +
		`[{"mid":"m","ip":"1.2.3.4","time":"2024-01-02T03:04:05Z"}],` +
		`false,0,,` +
		`[{"id":1,"name":"a","stringValue":"s","intValue":5}],` +
		`2024-06-01T00:00:00Z`
	assert.Equal(t, exp, string(license.Canonical(lic)))
}

func TestFieldsOrder(t *testing.T) {
	lic := licensetest.Unsigned()
	lic.Signature = "sig"

	var names []string
	for _, field := range license.Fields(lic, true) {
		names = append(names, field.Name)
	}
	assert.Equal(t, license.FieldOrder, names)

	withSig := license.Fields(lic, false)
	assert.Len(t, withSig, len(license.FieldOrder)+1)
	assert.Equal(t, license.Field{Name: license.SignatureField, Value: "sig"}, withSig[len(withSig)-1])
}

func TestCanonicalIgnoresSignature(t *testing.T) {
	lic := licensetest.Unsigned()
	unsigned := license.Canonical(lic)

	lic.Signature = "c29tZXRoaW5n"
	assert.Equal(t, unsigned, license.Canonical(lic))
}

func TestCanonicalIsConstructionIndependent(t *testing.T) {
	tokyo := time.FixedZone("JST", 9*60*60)

	tests := []struct {
		name   string
		mutate func(*license.License)
	}{
		{
			name: "times in another zone",
			mutate: func(l *license.License) {
				l.Created = l.Created.In(tokyo)
				l.Expires = l.Expires.In(tokyo)
				l.SignDate = l.SignDate.In(tokyo)
				l.Customer.Created = l.Customer.Created.In(tokyo)
				l.ActivatedMachines[0].Time = l.ActivatedMachines[0].Time.In(tokyo)
			},
		},
		{
			name: "sub-second precision",
			mutate: func(l *license.License) {
				l.SignDate = l.SignDate.Add(250 * time.Millisecond)
			},
		},
		{
			name: "decoded from a unix timestamp",
			mutate: func(l *license.License) {
				l.Created = time.Unix(l.Created.Unix(), 0)
			},
		},
	}

	exp := string(license.Canonical(licensetest.Unsigned()))
	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			lic := licensetest.Unsigned()
			test.mutate(lic)
			assert.Equal(t, exp, string(license.Canonical(lic)))
		})
	}
}

func TestCanonicalEmptyLists(t *testing.T) {
	nilLists := &license.License{}
	emptyLists := &license.License{
		ActivatedMachines: []license.Machine{},
		DataObjects:       license.DataObjects{},
	}
	assert.Equal(t, license.Canonical(nilLists), license.Canonical(emptyLists))

	fields := license.Fields(nilLists, true)
	values := map[string]string{}
	for _, field := range fields {
		values[field.Name] = field.Value
	}
	assert.Equal(t, "[]", values["activatedMachines"])
	assert.Equal(t, "[]", values["dataObjects"])
	assert.Equal(t, "null", values["customer"])
	assert.Equal(t, "0001-01-01T00:00:00Z", values["expires"])
}
