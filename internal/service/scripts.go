package service

import (
	"encoding/json"
	"fmt"
)

// Every script below is a self-contained IIFE evaluated in the page and
// returning a JSON-serializable value, so each observation or action is
// atomic from the page's point of view. Arguments are injected as JSON
// literals; nothing is string-concatenated into selector positions.

func jsArg(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		// Arguments are our own config values; a marshal failure here is
		// a programming error, but an empty literal keeps the script valid.
		return "null"
	}
	return string(data)
}

// scopeFinder is shared by the click scripts: resolve the host element
// from scope selector alternatives, or document when no scope is given.
// index -1 targets the last match.
const scopeFinderJS = `
	function host(scopes, index) {
		if (!scopes || !scopes.length) return document;
		for (const s of scopes) {
			let found;
			try { found = document.querySelectorAll(s); } catch (e) { continue; }
			if (!found.length) continue;
			const i = index < 0 ? found.length - 1 : index;
			if (i >= found.length) continue;
			return found[i];
		}
		return null;
	}
	function labelOf(el) {
		let t = (el.innerText || el.textContent || '').trim();
		if (!t) t = (el.getAttribute('aria-label') || '').trim();
		if (!t) t = (el.getAttribute('title') || '').trim();
		return t.toLowerCase();
	}
	function excludedLabel(el, excluded) {
		if (!excluded || !excluded.length) return false;
		const label = labelOf(el);
		return excluded.some(function(x) { return label.includes(x); });
	}
	function inactive(el) {
		return !!el.disabled || el.getAttribute('aria-disabled') === 'true';
	}
`

// clickBySelectorsScript clicks the first element matching one of the
// given selectors within the scope. Returns "clicked", "disabled" or
// "missing".
func clickBySelectorsScript(scopes []string, index int, selectors, excluded []string) string {
	return fmt.Sprintf(`/* click-by-selector */
(function(scopes, index, selectors, excluded) {`+scopeFinderJS+`
	const root = host(scopes, index);
	if (root === null) return 'missing';
	for (const sel of selectors) {
		let el;
		try { el = root.querySelector(sel); } catch (e) { continue; }
		if (!el) continue;
		if (excludedLabel(el, excluded)) continue;
		if (inactive(el)) return 'disabled';
		el.scrollIntoView({block: 'center'});
		el.click();
		return 'clicked';
	}
	return 'missing';
})(%s, %s, %s, %s)`, jsArg(scopes), jsArg(index), jsArg(selectors), jsArg(excluded))
}

// clickByTextScript clicks the first clickable element whose visible
// label contains one of the wanted texts (case-insensitive substring).
func clickByTextScript(scopes []string, index int, texts, excluded []string) string {
	return fmt.Sprintf(`/* click-by-text */
(function(scopes, index, texts, excluded) {`+scopeFinderJS+`
	const root = host(scopes, index);
	if (root === null) return 'missing';
	const clickable = 'button, a, [role="button"], [role="menuitem"], [role="tab"], input[type="button"], input[type="submit"]';
	const candidates = Array.from(root.querySelectorAll(clickable));
	for (const want of texts) {
		const w = want.trim().toLowerCase();
		if (!w) continue;
		for (const el of candidates) {
			const label = labelOf(el);
			if (!label || !label.includes(w)) continue;
			if (excludedLabel(el, excluded)) continue;
			if (inactive(el)) return 'disabled';
			el.scrollIntoView({block: 'center'});
			el.click();
			return 'clicked';
		}
	}
	return 'missing';
})(%s, %s, %s, %s)`, jsArg(scopes), jsArg(index), jsArg(texts), jsArg(excluded))
}

// nestedControlScript is the structural fallback: click the first
// non-excluded, enabled button nested in the scoped container.
func nestedControlScript(scopes []string, index int, excluded []string) string {
	return fmt.Sprintf(`/* nested-control */
(function(scopes, index, excluded) {`+scopeFinderJS+`
	const root = host(scopes, index);
	if (root === null || root === document) return 'missing';
	let sawDisabled = false;
	for (const el of root.querySelectorAll('button, [role="button"]')) {
		if (excludedLabel(el, excluded)) continue;
		if (inactive(el)) { sawDisabled = true; continue; }
		el.scrollIntoView({block: 'center'});
		el.click();
		return 'clicked';
	}
	return sawDisabled ? 'disabled' : 'missing';
})(%s, %s, %s)`, jsArg(scopes), jsArg(index), jsArg(excluded))
}

// hoverRevealScript dispatches synthetic pointer/hover events on the
// scoped container to coax lazily-rendered controls into existing.
func hoverRevealScript(scopes []string, index int) string {
	return fmt.Sprintf(`/* hover-reveal */
(function(scopes, index) {`+scopeFinderJS+`
	const root = host(scopes, index);
	if (root === null || root === document) return false;
	root.scrollIntoView({block: 'center'});
	for (const type of ['pointerover', 'pointerenter', 'mouseover', 'mouseenter']) {
		root.dispatchEvent(new MouseEvent(type, {bubbles: true}));
	}
	root.dispatchEvent(new FocusEvent('focusin', {bubbles: true}));
	return true;
})(%s, %s)`, jsArg(scopes), jsArg(index))
}

// artifactCountScript counts rendered artifacts of one kind.
func artifactCountScript(cards []string) string {
	return fmt.Sprintf(`/* artifact-count */
(function(cards) {
	for (const s of cards) {
		let found;
		try { found = document.querySelectorAll(s); } catch (e) { continue; }
		if (found.length) return found.length;
	}
	return 0;
})(%s)`, jsArg(cards))
}

// artifactStatusScript snapshots every same-kind artifact in one pass:
// total plus, per item, the raw observation of each loading signal. One
// evaluation, so total and per-item signals come from the same instant.
// The loading verdict itself is computed caller-side.
func artifactStatusScript(cards, shimmer, blocked, spinner, titles, markers []string) string {
	return fmt.Sprintf(`/* artifact-status */
(function(cards, shimmer, blocked, spinner, titles, markers) {
	function cardList() {
		for (const s of cards) {
			let found;
			try { found = document.querySelectorAll(s); } catch (e) { continue; }
			if (found.length) return Array.from(found);
		}
		return [];
	}
	function matchesAny(el, sels) {
		for (const s of sels) {
			try {
				if (el.matches(s) || el.querySelector(s)) return true;
			} catch (e) {}
		}
		return false;
	}
	function titleOf(el) {
		for (const s of titles) {
			let t;
			try { t = el.querySelector(s); } catch (e) { continue; }
			if (t && t.textContent.trim()) return t.textContent.trim();
		}
		return (el.getAttribute('aria-label') || '').trim();
	}
	const items = [];
	for (const card of cardList()) {
		const title = titleOf(card);
		const lower = title.toLowerCase();
		items.push({
			title: title,
			shimmer: matchesAny(card, shimmer),
			blocked: matchesAny(card, blocked),
			generating: markers.some(function(m) { return lower.includes(m); }),
			spinner: matchesAny(card, spinner)
		});
	}
	return {total: items.length, items: items};
})(%s, %s, %s, %s, %s, %s)`,
		jsArg(cards), jsArg(shimmer), jsArg(blocked), jsArg(spinner), jsArg(titles), jsArg(markers))
}

// dialogStateScript reports whether any dialog surface is open and
// returns its visible text for keyword verification.
func dialogStateScript(dialogs []string) string {
	return fmt.Sprintf(`/* dialog-state */
(function(dialogs) {
	for (const s of dialogs) {
		let el;
		try { el = document.querySelector(s); } catch (e) { continue; }
		if (!el) continue;
		const style = window.getComputedStyle(el);
		if (style.display === 'none' || style.visibility === 'hidden') continue;
		return {open: true, text: (el.innerText || el.textContent || '').slice(0, 4000)};
	}
	return {open: false, text: ''};
})(%s)`, jsArg(dialogs))
}

// setChoiceScript clicks the control inside the open dialog whose label
// contains choice, among elements matching the control-family query.
func setChoiceScript(dialogs []string, query, choice string) string {
	return fmt.Sprintf(`/* set-choice */
(function(dialogs, query, choice) {`+scopeFinderJS+`
	const root = host(dialogs, 0);
	if (root === null || root === document) return 'missing';
	const want = choice.trim().toLowerCase();
	let els;
	try { els = Array.from(root.querySelectorAll(query)); } catch (e) { return 'missing'; }
	for (const el of els) {
		let label = labelOf(el);
		if (!label && el.id) {
			const l = root.querySelector('label[for="' + el.id + '"]');
			if (l) label = (l.innerText || '').trim().toLowerCase();
		}
		if (!label || !label.includes(want)) continue;
		if (inactive(el)) return 'disabled';
		el.scrollIntoView({block: 'center'});
		el.click();
		return 'clicked';
	}
	return 'missing';
})(%s, %s, %s)`, jsArg(dialogs), jsArg(query), jsArg(choice))
}

// nativeSelectScript handles a real <select> inside the dialog: match the
// field by label, the option by text, set the value and fire change.
func nativeSelectScript(dialogs []string, field, choice string) string {
	return fmt.Sprintf(`/* native-select */
(function(dialogs, field, choice) {`+scopeFinderJS+`
	const root = host(dialogs, 0);
	if (root === null || root === document) return 'missing';
	const wantField = field.trim().toLowerCase();
	const wantChoice = choice.trim().toLowerCase();
	for (const sel of root.querySelectorAll('select')) {
		let label = (sel.getAttribute('aria-label') || sel.name || '').trim().toLowerCase();
		if (!label && sel.id) {
			const l = root.querySelector('label[for="' + sel.id + '"]');
			if (l) label = (l.innerText || '').trim().toLowerCase();
		}
		if (wantField && !label.includes(wantField)) continue;
		if (sel.disabled) return 'disabled';
		for (const opt of sel.options) {
			if (!opt.textContent.trim().toLowerCase().includes(wantChoice)) continue;
			sel.value = opt.value;
			sel.dispatchEvent(new Event('change', {bubbles: true}));
			return 'clicked';
		}
		return 'missing';
	}
	return 'missing';
})(%s, %s, %s)`, jsArg(dialogs), jsArg(field), jsArg(choice))
}

// fillTextScript writes value into the free-text control matched by
// field label (or the first free-text control when field is empty) and
// dispatches input/change so reactive frameworks notice.
func fillTextScript(dialogs []string, field, value string) string {
	return fmt.Sprintf(`/* fill-text */
(function(dialogs, field, value) {`+scopeFinderJS+`
	const root = host(dialogs, 0);
	if (root === null || root === document) return 'missing';
	const want = field.trim().toLowerCase();
	const inputs = Array.from(root.querySelectorAll('textarea, input[type="text"], input:not([type]), [contenteditable="true"]'));
	for (const el of inputs) {
		let label = (el.getAttribute('aria-label') || el.getAttribute('placeholder') || '').trim().toLowerCase();
		if (!label && el.id) {
			const l = root.querySelector('label[for="' + el.id + '"]');
			if (l) label = (l.innerText || '').trim().toLowerCase();
		}
		if (want && !label.includes(want)) continue;
		if (el.disabled || el.readOnly) return 'disabled';
		if (el.getAttribute('contenteditable') === 'true') {
			el.textContent = value;
		} else {
			el.value = value;
		}
		el.dispatchEvent(new Event('input', {bubbles: true}));
		el.dispatchEvent(new Event('change', {bubbles: true}));
		return 'clicked';
	}
	return 'missing';
})(%s, %s, %s)`, jsArg(dialogs), jsArg(field), jsArg(value))
}

// primarySubmitScript is the last submit tier: a primary-styled button
// inside the verified dialog, still refusing destructive-sounding labels.
func primarySubmitScript(dialogs, primaries, excluded []string) string {
	return fmt.Sprintf(`/* primary-submit */
(function(dialogs, primaries, excluded) {`+scopeFinderJS+`
	const root = host(dialogs, 0);
	if (root === null || root === document) return 'missing';
	let sawDisabled = false;
	for (const s of primaries) {
		let els;
		try { els = Array.from(root.querySelectorAll(s)); } catch (e) { continue; }
		for (const el of els) {
			if (excludedLabel(el, excluded)) continue;
			if (inactive(el)) { sawDisabled = true; continue; }
			el.click();
			return 'clicked';
		}
	}
	return sawDisabled ? 'disabled' : 'missing';
})(%s, %s, %s)`, jsArg(dialogs), jsArg(primaries), jsArg(excluded))
}
