// Package handler provides Telegram bot command, text, and callback
// handlers. Handlers translate chat updates into game-engine calls and
// render the results as Chinese reply text.
package handler

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrMalformedCallback reports callback data that does not follow the
// domain_action_group[_args...] layout.
var ErrMalformedCallback = errors.New("malformed callback data")

// Callback is the decoded form of inline button data. The wire format is
// underscore-separated: domain, action, group id, then optional args.
// Domain and action tokens never contain underscores.
type Callback struct {
	Domain  string
	Action  string
	GroupID int64
	Args    []string
}

// Encode renders the callback for the chat layer.
func (cb Callback) Encode() string {
	parts := append([]string{cb.Domain, cb.Action, strconv.FormatInt(cb.GroupID, 10)}, cb.Args...)
	return strings.Join(parts, "_")
}

// Arg returns the i-th argument, or "" when absent.
func (cb Callback) Arg(i int) string {
	if i < 0 || i >= len(cb.Args) {
		return ""
	}
	return cb.Args[i]
}

// ParseCallback decodes button data. Telebot may prefix the payload with
// \f, which is stripped first.
func ParseCallback(data string) (Callback, error) {
	data = strings.TrimPrefix(data, "\f")
	parts := strings.Split(data, "_")
	if len(parts) < 3 {
		return Callback{}, fmt.Errorf("%w: %q", ErrMalformedCallback, data)
	}

	groupID, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return Callback{}, fmt.Errorf("%w: bad group id in %q", ErrMalformedCallback, data)
	}
	return Callback{
		Domain:  parts[0],
		Action:  parts[1],
		GroupID: groupID,
		Args:    parts[3:],
	}, nil
}
