package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"studiograb/internal/core/domain"
	"studiograb/internal/core/ports"
)

// DialogPhase enumerates the customization dialog's lifecycle. The
// open-but-unverified phase is deliberately representable: a different
// modal (an upload dialog, say) can already be on screen, and it must
// never be mistaken for the customization surface.
type DialogPhase int

const (
	DialogClosed DialogPhase = iota
	DialogOpening
	DialogOpenUnverified
	DialogOpenVerified
	DialogConfiguring
	DialogSubmitting
)

func (p DialogPhase) String() string {
	switch p {
	case DialogOpening:
		return "opening"
	case DialogOpenUnverified:
		return "open-unverified"
	case DialogOpenVerified:
		return "open-verified"
	case DialogConfiguring:
		return "configuring"
	case DialogSubmitting:
		return "submitting"
	}
	return "closed"
}

const (
	radioQuery   = `[role="radio"], input[type="radio"], label`
	toggleQuery  = `[role="tab"], [role="switch"], [role="radiogroup"] button`
	triggerQuery = `[role="combobox"], button[aria-haspopup="listbox"], button[aria-haspopup="menu"]`
	optionQuery  = `[role="option"], [role="menuitem"], li`
)

// DialogController opens the per-kind customization dialog, fills its
// fields and submits it.
type DialogController struct {
	page     ports.Page
	resolver *Resolver
	cfg      Config
	log      *zap.Logger

	phase DialogPhase
}

func NewDialogController(page ports.Page, resolver *Resolver, cfg Config, log *zap.Logger) *DialogController {
	return &DialogController{
		page:     page,
		resolver: resolver,
		cfg:      cfg,
		log:      log.Named("dialog"),
	}
}

// Phase returns the current lifecycle phase.
func (d *DialogController) Phase() DialogPhase { return d.phase }

// Open resolves the kind's edit/customize action and waits until a
// verified customization dialog is on screen. A wrong-but-open dialog is
// a negative poll, not a failure; the wait keeps going until the dialog
// budget runs out. Returns false when no verified dialog appeared.
func (d *DialogController) Open(ctx context.Context, kind domain.ArtifactKind) (bool, error) {
	ks, ok := d.cfg.Selectors.Kind[kind]
	if !ok {
		return false, fmt.Errorf("no selectors configured for kind %q", kind)
	}
	d.phase = DialogOpening
	target := Target{
		Name:      "customize " + kind.String(),
		Selectors: ks.Customize,
		TextHints: ks.CustomizeText,
	}
	out, err := d.resolver.ResolveWithRetry(ctx, target, d.cfg.ResolveInterval, d.cfg.ResolveBudget)
	if err != nil {
		d.phase = DialogClosed
		return false, err
	}
	if out != OutcomeActed {
		d.log.Warn("customize action not actionable",
			zap.String("kind", kind.String()),
			zap.String("outcome", out.String()))
		d.phase = DialogClosed
		return false, nil
	}
	if err := sleepCtx(ctx, d.cfg.SettleDelay); err != nil {
		return false, err
	}

	verified, err := pollUntil(ctx, d.cfg.ResolveInterval, d.cfg.DialogWait, func(ctx context.Context) (bool, error) {
		st, err := d.state(ctx)
		if err != nil {
			return false, err
		}
		switch {
		case !st.open:
			d.phase = DialogOpening
		case st.verified:
			d.phase = DialogOpenVerified
		default:
			d.phase = DialogOpenUnverified
			d.log.Debug("open dialog is not the customization dialog, waiting")
		}
		return st.open && st.verified, nil
	}, nil)
	if err != nil {
		return false, err
	}
	if !verified {
		d.log.Warn("no verified customization dialog within budget",
			zap.String("kind", kind.String()),
			zap.String("phase", d.phase.String()))
		d.phase = DialogClosed
		return false, nil
	}
	return true, nil
}

type dialogObservation struct {
	open     bool
	verified bool
}

func (d *DialogController) state(ctx context.Context) (dialogObservation, error) {
	var res struct {
		Open bool   `json:"open"`
		Text string `json:"text"`
	}
	if err := d.page.Evaluate(ctx, dialogStateScript(d.cfg.Selectors.Dialog), &res); err != nil {
		return dialogObservation{}, err
	}
	keyword := strings.ToLower(d.cfg.Selectors.DialogKeyword)
	verified := res.Open && keyword != "" && strings.Contains(strings.ToLower(res.Text), keyword)
	return dialogObservation{open: res.Open, verified: verified}, nil
}

// Configure applies the request's field options. A field that cannot be
// located is skipped with a warning so generation can proceed on the
// dialog's defaults; only a broken page channel is an error. Returns how
// many fields were applied.
func (d *DialogController) Configure(ctx context.Context, opts []domain.FormOption, prompt string) (int, error) {
	if d.phase != DialogOpenVerified && d.phase != DialogConfiguring {
		return 0, fmt.Errorf("configure called with dialog %s", d.phase)
	}
	d.phase = DialogConfiguring
	applied := 0
	for _, opt := range opts {
		ok, err := d.apply(ctx, opt)
		if err != nil {
			return applied, err
		}
		if ok {
			applied++
		} else {
			d.log.Warn("field not settable, using dialog default",
				zap.String("field", opt.Field),
				zap.String("choice", opt.Choice),
				zap.String("control", string(opt.Control)))
		}
		if err := sleepCtx(ctx, d.cfg.SettleDelay); err != nil {
			return applied, err
		}
	}
	if prompt != "" {
		ok, err := d.fillText(ctx, "", prompt)
		if err != nil {
			return applied, err
		}
		if ok {
			applied++
		} else {
			d.log.Warn("no free-text field found for prompt override")
		}
		if err := sleepCtx(ctx, d.cfg.SettleDelay); err != nil {
			return applied, err
		}
	}
	return applied, nil
}

func (d *DialogController) apply(ctx context.Context, opt domain.FormOption) (bool, error) {
	switch opt.Control {
	case domain.ControlRadio:
		// Radio first; segmented toggles render the same choices in some
		// UI versions, so they are the alternative, not an error.
		return d.clickChoice(ctx, opt.Choice, radioQuery, toggleQuery)
	case domain.ControlToggle:
		return d.clickChoice(ctx, opt.Choice, toggleQuery, radioQuery)
	case domain.ControlDropdown:
		return d.selectOption(ctx, opt.Field, opt.Choice)
	case domain.ControlText:
		return d.fillText(ctx, opt.Field, opt.Choice)
	}
	return false, fmt.Errorf("unknown control family %q", opt.Control)
}

func (d *DialogController) clickChoice(ctx context.Context, choice string, queries ...string) (bool, error) {
	for _, q := range queries {
		out, err := evalClick(ctx, d.page, setChoiceScript(d.cfg.Selectors.Dialog, q, choice))
		if err != nil {
			return false, err
		}
		if out == OutcomeActed {
			return true, nil
		}
	}
	return false, nil
}

func (d *DialogController) selectOption(ctx context.Context, field, choice string) (bool, error) {
	// Popup listbox first: open the trigger matched by field label, let
	// the popup mount, then pick the option by choice label.
	out, err := evalClick(ctx, d.page, setChoiceScript(d.cfg.Selectors.Dialog, triggerQuery, field))
	if err != nil {
		return false, err
	}
	if out == OutcomeActed {
		if err := sleepCtx(ctx, d.cfg.SettleDelay); err != nil {
			return false, err
		}
		picked, err := evalClick(ctx, d.page, setChoiceScript(d.cfg.Selectors.Dialog, optionQuery, choice))
		if err != nil {
			return false, err
		}
		if picked == OutcomeActed {
			return true, nil
		}
	}
	// Native <select> fallback.
	out, err = evalClick(ctx, d.page, nativeSelectScript(d.cfg.Selectors.Dialog, field, choice))
	if err != nil {
		return false, err
	}
	return out == OutcomeActed, nil
}

func (d *DialogController) fillText(ctx context.Context, field, value string) (bool, error) {
	out, err := evalClick(ctx, d.page, fillTextScript(d.cfg.Selectors.Dialog, field, value))
	if err != nil {
		return false, err
	}
	return out == OutcomeActed, nil
}

// Submit resolves the generation action by priority: explicit generate
// text, then a generate aria-label, then a primary-styled button. The
// last tier fires only while the dialog is still verified as the
// customization dialog. Every
// tier refuses destructive-sounding labels. The submit button is often
// disabled until the form settles, so the whole tier walk retries under
// the resolve budget.
func (d *DialogController) Submit(ctx context.Context) (bool, error) {
	if d.phase != DialogOpenVerified && d.phase != DialogConfiguring {
		return false, fmt.Errorf("submit called with dialog %s", d.phase)
	}
	d.phase = DialogSubmitting

	excluded := d.cfg.Selectors.ExcludedActionText
	var ariaSelectors []string
	for _, label := range d.cfg.Selectors.GenerateText {
		ariaSelectors = append(ariaSelectors, fmt.Sprintf(`[aria-label*=%s i]`, jsArg(label)))
	}

	submitted, err := pollUntil(ctx, d.cfg.ResolveInterval, d.cfg.ResolveBudget, func(ctx context.Context) (bool, error) {
		out, err := evalClick(ctx, d.page, clickByTextScript(d.cfg.Selectors.Dialog, 0, d.cfg.Selectors.GenerateText, excluded))
		if err != nil {
			return false, err
		}
		if out == OutcomeActed {
			return true, nil
		}
		out, err = evalClick(ctx, d.page, clickBySelectorsScript(d.cfg.Selectors.Dialog, 0, ariaSelectors, excluded))
		if err != nil {
			return false, err
		}
		if out == OutcomeActed {
			return true, nil
		}
		// The primary-styled fallback fires only against a dialog still
		// verified as the customization dialog.
		st, err := d.state(ctx)
		if err != nil {
			return false, err
		}
		if !st.verified {
			return false, nil
		}
		out, err = evalClick(ctx, d.page, primarySubmitScript(d.cfg.Selectors.Dialog, d.cfg.Selectors.PrimarySubmit, excluded))
		if err != nil {
			return false, err
		}
		return out == OutcomeActed, nil
	}, nil)
	if err != nil {
		return false, err
	}
	if !submitted {
		d.log.Warn("no generation action resolved in dialog")
		d.phase = DialogOpenVerified
		return false, nil
	}
	if err := sleepCtx(ctx, d.cfg.SettleDelay); err != nil {
		return false, err
	}
	d.phase = DialogClosed
	return true, nil
}
