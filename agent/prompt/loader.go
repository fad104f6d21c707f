package prompt

import (
	_ "embed"
	"strings"
)

//go:embed template/pharmacist.txt
var pharmacistRaw string

// Pharmacist returns the behavioral policy preamble for the assistant.
func Pharmacist() string {
	return strings.TrimSpace(pharmacistRaw)
}
