package client

import (
	"context"
	"errors"
	"strings"

	"github.com/boalang/boa-client-go/internal/logging"
	"github.com/boalang/boa-client-go/pkg/apperrors"
	"github.com/boalang/boa-client-go/pkg/protocol"
	"github.com/boalang/boa-client-go/pkg/xmlrpc"
)

// Server fault messages with a fixed meaning.
const (
	faultAlreadyLoggedIn = "Already logged in as "
	faultNotLoggedIn     = "User is not logged in."
)

// loginFaults maps substrings of login faults to the explanation reported.
// The first match wins.
var loginFaults = []struct {
	pattern string
	message string
}{
	{"username", "Invalid username or password."},
	{"response", "Invalid domain given to Boa API."},
}

// Login authenticates with the API. It returns immediately if the client is
// already logged in. When the server reports an existing session for the
// caller, a fresh cookie and token are obtained through system.connect.
func (c *Client) Login(ctx context.Context, username, password string) error {
	c.authMu.Lock()
	defer c.authMu.Unlock()

	if c.LoggedIn() {
		return nil
	}

	v, err := c.call(ctx, nil, protocol.MethodUserLogin, username, password)
	if err != nil {
		var fault *xmlrpc.Fault
		if errors.As(err, &fault) && strings.Contains(fault.Message, faultAlreadyLoggedIn) {
			logging.Info("server reports an active session, reconnecting", logging.String("username", username))
			if err := c.connect(ctx, username, password); err != nil {
				c.metrics.Login("failure")
				return err
			}
			c.metrics.Login("connect")
			logging.Info("connected to existing session", logging.String("username", username))
			return nil
		}
		c.metrics.Login("failure")
		return loginError(err)
	}

	s, err := protocol.ParseSession(v)
	if err == nil {
		s.Token, err = protocol.ParseToken(v)
	}
	if err != nil {
		c.metrics.Login("failure")
		return apperrors.Login(err.Error(), err)
	}

	c.setSession(session{cookie: s.Cookie(), token: s.Token})
	c.metrics.Login("success")
	logging.Info("logged in", logging.String("username", username), logging.String("endpoint", c.Endpoint()))
	return nil
}

// connect recovers a session the server already holds for the caller.
func (c *Client) connect(ctx context.Context, username, password string) error {
	v, err := c.call(ctx, nil, protocol.MethodSystemConnect, username, password)
	if err != nil {
		return loginError(err)
	}
	s, err := protocol.ParseSession(v)
	if err != nil {
		return apperrors.Login(err.Error(), err)
	}

	// The token is bound to the session, so ask for it with the new cookie.
	fresh := session{cookie: s.Cookie()}
	v, err = c.call(ctx, fresh.apply, protocol.MethodUserToken)
	if err != nil {
		return loginError(err)
	}
	if fresh.token, err = protocol.ParseToken(v); err != nil {
		return apperrors.Login(err.Error(), err)
	}

	c.setSession(fresh)
	return nil
}

// loginError explains a failed login or connect call.
func loginError(err error) error {
	var status *xmlrpc.StatusError
	if errors.As(err, &status) {
		return apperrors.Login("Invalid path given to Boa API.", err)
	}

	msg := err.Error()
	var fault *xmlrpc.Fault
	if errors.As(err, &fault) {
		msg = fault.Message
	}
	for _, f := range loginFaults {
		if strings.Contains(msg, f.pattern) {
			return apperrors.Login(f.message, err)
		}
	}
	// Faults are conventionally "<code>: <message>".
	if i := strings.Index(msg, ":"); i != -1 {
		return apperrors.Login(strings.TrimPrefix(msg[i+1:], " "), err)
	}
	return apperrors.Login(msg, err)
}

// Logout resets the dataset cache, drops the session and logs out on the
// server. A server reply that the user is not logged in counts as success.
func (c *Client) Logout(ctx context.Context) error {
	c.authMu.Lock()
	defer c.authMu.Unlock()

	s := c.endSession()

	// The logout call itself still has to identify the session.
	_, err := c.call(ctx, s.apply, protocol.MethodUserLogout)
	if err != nil {
		var fault *xmlrpc.Fault
		if errors.As(err, &fault) && fault.Message == faultNotLoggedIn {
			return nil
		}
		return apperrors.Logout(err)
	}
	logging.Info("logged out")
	return nil
}

// Close logs out with a background context.
func (c *Client) Close() error {
	return c.Logout(context.Background())
}
