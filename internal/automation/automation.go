package automation

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// ErrCodeRejected is returned by CompleteVerification when the upstream form
// rejects the supplied code. The verification session stays usable so the
// caller may retry.
var ErrCodeRejected = errors.New("verification code rejected")

// Resource is an opaque live automation handle (an open browser page) held
// between submit and verify. It is owned by exactly one verification session
// at a time.
type Resource interface {
	Close() error
}

// Field describes one form control discovered on a live application form.
type Field struct {
	FieldID  string
	Selector string
	Label    string
	Type     string
	Required bool
	Options  []string
	Value    string
}

// AnalyzedForm is the result of extracting a live form.
type AnalyzedForm struct {
	Fields      []Field
	Fingerprint string
}

// SubmitResult reports the outcome of filling and submitting a form.
// When VerificationRequired is set, Resource holds the still-open page
// waiting for the emailed code.
type SubmitResult struct {
	VerificationRequired bool
	Resource             Resource
	Email                string
}

// FormAutomator drives a live application form. Implementations carry their
// own network timeouts; callers bound them further through the context.
type FormAutomator interface {
	AnalyzeForm(ctx context.Context, jobURL string) (*AnalyzedForm, error)
	Fingerprint(ctx context.Context, jobURL string) (string, error)
	FillAndSubmit(ctx context.Context, jobURL string, fields []Field) (*SubmitResult, error)
	CompleteVerification(ctx context.Context, res Resource, code string) error
}

// ComputeFingerprint hashes the structural shape of a form, ignoring values.
// Two forms with the same fields in the same order produce the same
// fingerprint, which is how drift between analyze and submit is detected.
func ComputeFingerprint(fields []Field) string {
	h := sha256.New()
	for _, f := range fields {
		fmt.Fprintf(h, "%s|%s|%s|%t|%s\n", f.FieldID, f.Type, f.Label, f.Required, strings.Join(f.Options, ","))
	}
	return hex.EncodeToString(h.Sum(nil))
}
