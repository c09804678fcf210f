package sql

import (
	libinjection "github.com/corazawaf/libinjection-go"
)

// InjectionCheckResult contains the result of an injection check on free text.
type InjectionCheckResult struct {
	IsSQLi      bool   // True if SQL injection pattern detected
	Fingerprint string // libinjection fingerprint of the detected pattern
}

// CheckTextForInjection uses libinjection to detect SQL injection patterns in
// user-supplied text such as a natural-language question.
//
// The question never reaches SQL directly, so a hit is a signal for the
// security audit log rather than a reason to refuse the request. Returns nil
// when nothing is detected.
//
// Example:
//
//	result := CheckTextForInjection("show tenders'; DROP TABLE tenderTender--")
//	// result.IsSQLi == true
//	// result.Fingerprint == "s;T" (or similar)
func CheckTextForInjection(text string) *InjectionCheckResult {
	if text == "" {
		return nil
	}

	isSQLi, fingerprint := libinjection.IsSQLi(text)
	if !isSQLi {
		return nil
	}
	return &InjectionCheckResult{
		IsSQLi:      true,
		Fingerprint: string(fingerprint),
	}
}
