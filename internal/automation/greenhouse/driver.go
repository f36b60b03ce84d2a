package greenhouse

import (
	"context"
	"fmt"
	"strings"

	"github.com/playwright-community/playwright-go"
	"go.uber.org/zap"

	"github.com/hireloop/apply-planner/internal/automation"
)

const (
	navigationTimeoutMs = 30000
	formSelector        = "#application-form, #application_form, form[action*='greenhouse']"
	submitSelector      = "button[type='submit'], input[type='submit']"
	verifyModalSelector = "[data-provides='security-code'], input[name='security_code'], input[aria-label*='verification' i]"
	confirmationText    = "Thank you"
)

// Driver implements automation.FormAutomator against Greenhouse-hosted
// application forms using a headless chromium.
type Driver struct {
	pw *playwright.Playwright
}

var _ automation.FormAutomator = (*Driver)(nil)

func NewDriver() (*Driver, error) {
	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("starting playwright: %w", err)
	}
	return &Driver{pw: pw}, nil
}

func (d *Driver) Close() error {
	return d.pw.Stop()
}

// pageResource is the opaque handle held open while an application waits for
// its email verification code. Closing it tears down the whole browser.
type pageResource struct {
	browser playwright.Browser
	page    playwright.Page
}

func (r *pageResource) Close() error {
	return r.browser.Close()
}

func (d *Driver) openPage(jobURL string) (*pageResource, error) {
	browser, err := d.pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("launching browser: %w", err)
	}

	page, err := browser.NewPage()
	if err != nil {
		_ = browser.Close()
		return nil, fmt.Errorf("opening page: %w", err)
	}

	if _, err := page.Goto(jobURL, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   playwright.Float(navigationTimeoutMs),
	}); err != nil {
		_ = browser.Close()
		return nil, fmt.Errorf("navigating to %s: %w", jobURL, err)
	}

	return &pageResource{browser: browser, page: page}, nil
}

func (d *Driver) AnalyzeForm(ctx context.Context, jobURL string) (*automation.AnalyzedForm, error) {
	res, err := d.openPage(jobURL)
	if err != nil {
		return nil, err
	}
	defer func() { _ = res.Close() }()

	fields, err := collectFields(res.page)
	if err != nil {
		return nil, err
	}

	return &automation.AnalyzedForm{
		Fields:      fields,
		Fingerprint: automation.ComputeFingerprint(fields),
	}, nil
}

func (d *Driver) Fingerprint(ctx context.Context, jobURL string) (string, error) {
	form, err := d.AnalyzeForm(ctx, jobURL)
	if err != nil {
		return "", err
	}
	return form.Fingerprint, nil
}

func (d *Driver) FillAndSubmit(ctx context.Context, jobURL string, fields []automation.Field) (*automation.SubmitResult, error) {
	res, err := d.openPage(jobURL)
	if err != nil {
		return nil, err
	}

	for _, f := range fields {
		if f.Value == "" {
			continue
		}
		if err := fillField(res.page, f); err != nil {
			_ = res.Close()
			return nil, fmt.Errorf("filling field %q: %w", f.FieldID, err)
		}
	}

	form := res.page.Locator(formSelector).First()
	if err := form.Locator(submitSelector).First().Click(playwright.LocatorClickOptions{
		Timeout: playwright.Float(navigationTimeoutMs),
	}); err != nil {
		_ = res.Close()
		return nil, fmt.Errorf("clicking submit: %w", err)
	}

	// Greenhouse either confirms immediately or opens the email
	// verification modal for first-time applicants.
	modal := res.page.Locator(verifyModalSelector).First()
	if err := modal.WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateVisible,
		Timeout: playwright.Float(10000),
	}); err == nil {
		email, _ := res.page.Locator("[data-provides='security-code-email']").First().TextContent()
		zap.S().Named("greenhouse").Infow("verification modal detected", "url", jobURL)
		return &automation.SubmitResult{
			VerificationRequired: true,
			Resource:             res,
			Email:                strings.TrimSpace(email),
		}, nil
	}

	defer func() { _ = res.Close() }()
	body, err := res.page.Locator("body").InnerText()
	if err != nil {
		return nil, fmt.Errorf("reading confirmation: %w", err)
	}
	if !strings.Contains(body, confirmationText) {
		return nil, fmt.Errorf("no submission confirmation found on %s", jobURL)
	}

	return &automation.SubmitResult{}, nil
}

func (d *Driver) CompleteVerification(ctx context.Context, resource automation.Resource, code string) error {
	res, ok := resource.(*pageResource)
	if !ok {
		return fmt.Errorf("resource is not a greenhouse page")
	}

	input := res.page.Locator(verifyModalSelector).First()
	if err := input.Fill(code); err != nil {
		return fmt.Errorf("entering code: %w", err)
	}

	if err := res.page.Locator("button:has-text('Verify'), button:has-text('Submit')").First().Click(playwright.LocatorClickOptions{
		Timeout: playwright.Float(navigationTimeoutMs),
	}); err != nil {
		return fmt.Errorf("confirming code: %w", err)
	}

	rejected, _ := res.page.Locator("text=/invalid|incorrect|expired code/i").Count()
	if rejected > 0 {
		return automation.ErrCodeRejected
	}

	body, err := res.page.Locator("body").InnerText()
	if err != nil {
		return fmt.Errorf("reading confirmation: %w", err)
	}
	if !strings.Contains(body, confirmationText) {
		return fmt.Errorf("verification did not reach a confirmation page")
	}
	return nil
}

func collectFields(page playwright.Page) ([]automation.Field, error) {
	controls, err := page.Locator(formSelector + " input, " + formSelector + " textarea, " + formSelector + " select").All()
	if err != nil {
		return nil, fmt.Errorf("locating form controls: %w", err)
	}

	fields := make([]automation.Field, 0, len(controls))
	for _, c := range controls {
		inputType, _ := c.GetAttribute("type")
		if inputType == "hidden" || inputType == "submit" {
			continue
		}

		id, _ := c.GetAttribute("id")
		name, _ := c.GetAttribute("name")
		if id == "" && name == "" {
			continue
		}
		fieldID := id
		if fieldID == "" {
			fieldID = name
		}

		tag, err := c.Evaluate("el => el.tagName.toLowerCase()", nil)
		if err != nil {
			continue
		}

		required := false
		if req, _ := c.GetAttribute("required"); req != "" {
			required = true
		} else if aria, _ := c.GetAttribute("aria-required"); aria == "true" {
			required = true
		}

		f := automation.Field{
			FieldID:  fieldID,
			Selector: fmt.Sprintf("#%s", id),
			Label:    labelFor(page, id, name),
			Type:     controlType(fmt.Sprintf("%v", tag), inputType),
			Required: required,
		}
		if id == "" {
			f.Selector = fmt.Sprintf("[name='%s']", name)
		}

		if f.Type == "select" {
			options, _ := c.Locator("option").AllTextContents()
			for _, o := range options {
				if o = strings.TrimSpace(o); o != "" {
					f.Options = append(f.Options, o)
				}
			}
		}

		fields = append(fields, f)
	}
	return fields, nil
}

func labelFor(page playwright.Page, id, name string) string {
	if id != "" {
		if text, err := page.Locator(fmt.Sprintf("label[for='%s']", id)).First().TextContent(); err == nil {
			return strings.TrimSpace(text)
		}
	}
	return name
}

func controlType(tag, inputType string) string {
	switch tag {
	case "textarea":
		return "textarea"
	case "select":
		return "select"
	}
	switch inputType {
	case "checkbox":
		return "checkbox"
	case "radio":
		return "radio"
	case "file":
		return "file"
	default:
		return "text"
	}
}

func fillField(page playwright.Page, f automation.Field) error {
	loc := page.Locator(f.Selector).First()
	switch f.Type {
	case "select", "multi_select":
		_, err := loc.SelectOption(playwright.SelectOptionValues{Labels: &[]string{f.Value}})
		return err
	case "checkbox", "radio":
		return loc.SetChecked(strings.EqualFold(f.Value, "true") || strings.EqualFold(f.Value, "yes"))
	case "file":
		return loc.SetInputFiles(f.Value)
	default:
		return loc.Fill(f.Value)
	}
}
