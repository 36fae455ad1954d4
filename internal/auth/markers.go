// internal/auth/markers.go
package auth

import "github.com/mlecomte/favsync/internal/browser"

// Selector cascades for the login flow. Ordered most-specific first; the
// generic catch-alls at the tail only fire when the site has drifted away
// from everything we recognize.

var consentLocators = []browser.LocatorSpec{
	{Selector: `[data-testid="cookie-consent-accept-all"]`, Description: "consent accept (testid)"},
	{Selector: `#onetrust-accept-btn-handler`, Description: "consent accept (OneTrust)"},
	{Selector: `[id*="accept"]`, Description: "consent accept (id fragment)"},
	{Selector: `[class*="accept"]`, Description: "consent accept (class fragment)"},
}

var identifierLocators = []browser.LocatorSpec{
	{Selector: `input[name="email"]`, Description: "identifier (name)"},
	{Selector: `input[type="email"]`, Description: "identifier (type)"},
	{Selector: `input[id*="email"]`, Description: "identifier (id fragment)"},
	{Selector: `input[data-testid*="email"]`, Description: "identifier (testid)"},
	{Selector: `input[autocomplete="email"]`, Description: "identifier (autocomplete email)"},
	{Selector: `input[autocomplete="username"]`, Description: "identifier (autocomplete username)"},
	{Selector: `input[placeholder*="mail" i]`, Description: "identifier (placeholder mail)"},
	{Selector: `input[placeholder*="adresse" i]`, Description: "identifier (placeholder adresse)"},
	{Selector: `input[aria-label*="mail" i]`, Description: "identifier (aria-label)"},
	{Selector: `form input[type="text"]:first-of-type`, Description: "identifier (first text input)"},
	{Selector: `form input:not([type="password"]):not([type="hidden"]):first-of-type`, Description: "identifier (first non-password input)"},
}

var secretLocators = []browser.LocatorSpec{
	{Selector: `input[type="password"]`, Description: "secret (type)"},
	{Selector: `input[name="password"]`, Description: "secret (name)"},
	{Selector: `input[id*="password"]`, Description: "secret (id fragment)"},
	{Selector: `input[data-testid*="password"]`, Description: "secret (testid)"},
	{Selector: `input[autocomplete="current-password"]`, Description: "secret (autocomplete)"},
	{Selector: `input[placeholder*="mot de passe" i]`, Description: "secret (placeholder fr)"},
	{Selector: `input[placeholder*="password" i]`, Description: "secret (placeholder en)"},
}

var submitLocators = []browser.LocatorSpec{
	{Selector: `button[type="submit"]`, Description: "submit (type)"},
	{Selector: `form button:not([type="button"])`, Description: "submit (form button)"},
	{Selector: `[data-testid*="submit"]`, Description: "submit (testid submit)"},
	{Selector: `[data-testid*="login"]`, Description: "submit (testid login)"},
}

// advanceLocators move past the intermediate screens some deployments put
// in front of the credential form (auth method chooser, login/register
// split, "continue with email").
var advanceLocators = []browser.LocatorSpec{
	{Selector: `[data-testid="auth-select-type--login-email"]`, Description: "advance (email method)"},
	{Selector: `[data-testid*="login-email"]`, Description: "advance (testid login-email)"},
	{Selector: `a[href*="/auth/login"]`, Description: "advance (login link)"},
	{Selector: `[data-testid*="header--login-button"]`, Description: "advance (header login)"},
	{Selector: `button[data-testid*="login"]`, Description: "advance (testid login button)"},
}

// authenticatedLocators indicate an already-established session.
var authenticatedLocators = []browser.LocatorSpec{
	{Selector: `[data-testid*="avatar"]`, Description: "authenticated (avatar testid)"},
	{Selector: `[class*="avatar"]`, Description: "authenticated (avatar class)"},
	{Selector: `[class*="user-menu"]`, Description: "authenticated (user menu)"},
	{Selector: `[data-testid*="logout"]`, Description: "authenticated (logout testid)"},
	{Selector: `[class*="logout"]`, Description: "authenticated (logout class)"},
}

var captchaLocators = []browser.LocatorSpec{
	{Selector: `iframe[src*="captcha" i]`, Description: "captcha (iframe)"},
	{Selector: `iframe[src*="datadome" i]`, Description: "captcha (datadome iframe)"},
	{Selector: `[class*="datadome" i]`, Description: "captcha (datadome class)"},
	{Selector: `.g-recaptcha`, Description: "captcha (recaptcha)"},
	{Selector: `[data-testid*="captcha" i]`, Description: "captcha (testid)"},
	{Selector: `[class*="captcha" i]`, Description: "captcha (class fragment)"},
}

var twoFactorLocators = []browser.LocatorSpec{
	{Selector: `input[autocomplete="one-time-code"]`, Description: "two-factor (otp autocomplete)"},
	{Selector: `[data-testid*="two-factor" i]`, Description: "two-factor (testid)"},
	{Selector: `[data-testid*="verification" i]`, Description: "two-factor (verification testid)"},
	{Selector: `input[name*="verification" i]`, Description: "two-factor (verification input)"},
	{Selector: `input[name*="otp" i]`, Description: "two-factor (otp input)"},
}

// errorSniffScript pulls the text of the first error-flavored element, if
// any. Returns an empty string when the page shows no error.
const errorSniffScript = `
(function() {
    const el = document.querySelector('[class*="error"], [class*="alert"], [role="alert"]');
    if (!el) return "";
    return (el.textContent || "").trim();
})()`
