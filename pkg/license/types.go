package license

import "time"

// License is a license record as issued and signed by the licensing service.
// Records are decoded by the caller and handed to the checks in this package,
// which only ever read them.
type License struct {
	ProductID int    `json:"productId"`
	ID        int    `json:"id"`
	Key       string `json:"key"`

	Created time.Time `json:"created"`
	Expires time.Time `json:"expires"`
	// Period is the length of the license in days.
	Period int `json:"period"`

	F1 bool `json:"f1"`
	F2 bool `json:"f2"`
	F3 bool `json:"f3"`
	F4 bool `json:"f4"`
	F5 bool `json:"f5"`
	F6 bool `json:"f6"`
	F7 bool `json:"f7"`
	F8 bool `json:"f8"`

	Notes    string    `json:"notes"`
	Block    bool      `json:"block"`
	GlobalID int64     `json:"globalId"`
	Customer *Customer `json:"customer,omitempty"`

	ActivatedMachines []Machine `json:"activatedMachines"`
	TrialActivation   bool      `json:"trialActivation"`
	MaxNoOfMachines   int       `json:"maxNoOfMachines"`
	AllowedMachines   string    `json:"allowedMachines"`

	DataObjects DataObjects `json:"dataObjects"`

	SignDate time.Time `json:"signDate"`
	// Signature is the base64 encoded RSA signature over Canonical(l).
	Signature string `json:"signature"`
}

type Customer struct {
	ID          int       `json:"id"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	CompanyName string    `json:"companyName"`
	Created     time.Time `json:"created"`
}

// Machine is a machine that the license has been activated on.
type Machine struct {
	// Mid is the machine code. An empty Mid never matches.
	Mid  string    `json:"mid"`
	IP   string    `json:"ip"`
	Time time.Time `json:"time"`
}

// DataObject is a named value attached to a license.
type DataObject struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	StringValue string `json:"stringValue"`
	IntValue    int64  `json:"intValue"`
}

// DataObjects keeps the order the issuer stored the objects in. Names are not
// required to be unique.
type DataObjects []DataObject

// Contains returns whether an object with exactly the given name exists.
func (objs DataObjects) Contains(name string) bool {
	return objs.Get(name) != nil
}

// Get returns the first object with exactly the given name, or nil.
func (objs DataObjects) Get(name string) *DataObject {
	for i := range objs {
		if objs[i].Name == name {
			return &objs[i]
		}
	}
	return nil
}

// MinFeature and MaxFeature bound the feature numbers accepted by Feature.
const (
	MinFeature = 1
	MaxFeature = 8
)

// Feature returns the value of feature flag n. ok is false if n is not in
// [MinFeature, MaxFeature].
func (l *License) Feature(n int) (value bool, ok bool) {
	switch n {
	case 1:
		return l.F1, true
	case 2:
		return l.F2, true
	case 3:
		return l.F3, true
	case 4:
		return l.F4, true
	case 5:
		return l.F5, true
	case 6:
		return l.F6, true
	case 7:
		return l.F7, true
	case 8:
		return l.F8, true
	default:
		return false, false
	}
}

// SetFeature sets feature flag n. Numbers outside [MinFeature, MaxFeature]
// are ignored.
func (l *License) SetFeature(n int, value bool) {
	switch n {
	case 1:
		l.F1 = value
	case 2:
		l.F2 = value
	case 3:
		l.F3 = value
	case 4:
		l.F4 = value
	case 5:
		l.F5 = value
	case 6:
		l.F6 = value
	case 7:
		l.F7 = value
	case 8:
		l.F8 = value
	}
}
