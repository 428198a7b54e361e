package payment

import (
	"context"
	"errors"
	"net/url"
	"strings"
)

// SessionIDPlaceholder is replaced by the session id in redirect templates.
const SessionIDPlaceholder = "{id}"

var ErrBadRedirectTemplate = errors.New("redirect template must be an absolute URL containing {id}")

// URLRedirector builds the hosted payment page URL for a session. The HTTP
// layer sends the shopper there.
type URLRedirector struct {
	template string
}

func NewURLRedirector(template string) (*URLRedirector, error) {
	if !strings.Contains(template, SessionIDPlaceholder) {
		return nil, ErrBadRedirectTemplate
	}
	u, err := url.Parse(strings.ReplaceAll(template, SessionIDPlaceholder, "x"))
	if err != nil || !u.IsAbs() {
		return nil, ErrBadRedirectTemplate
	}
	return &URLRedirector{template: template}, nil
}

func (r *URLRedirector) Redirect(_ context.Context, sessionID string) (string, error) {
	if sessionID == "" {
		return "", errors.New("empty session id")
	}
	return strings.ReplaceAll(r.template, SessionIDPlaceholder, url.PathEscape(sessionID)), nil
}
