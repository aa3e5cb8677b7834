package validate

import (
	"strings"
	"testing"
)

type payload struct {
	Filename string `json:"filename" validate:"required"`
	Decision string `json:"decision" validate:"decision"`
	Policy   string `toml:"policy" validate:"omitempty,policy"`
}

func TestStruct_Valid(t *testing.T) {
	if err := Struct(payload{Filename: "a.eaf", Decision: "Accept", Policy: "four_point"}); err != nil {
		t.Errorf("Struct() error = %v", err)
	}
}

func TestStruct_Messages(t *testing.T) {
	err := Struct(payload{Decision: "maybe", Policy: "thirds"})
	if err == nil {
		t.Fatal("Struct() should fail")
	}
	msg := err.Error()
	for _, want := range []string{
		"filename: filename is a required field",
		"decision: decision must be accept or reject",
		"policy: policy must be midpoint or four_point",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("message %q missing %q", msg, want)
		}
	}
}
