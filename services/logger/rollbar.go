package logsvc

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"regexp"
	"sort"
	"strings"

	"github.com/rollbar/rollbar-go"
	"github.com/rollbar/rollbar-go/errors"

	"github.com/trezcool/dos/core"
	"github.com/trezcool/dos/core/user"
)

const redacted = "[redacted]"

// keys whose values never leave the process: credentials, room tokens and what a student said
var scrubKeys = regexp.MustCompile(`(?i)password|secret|token|api_?key|transcript`)

// RollbarLogger prints to `std` and reports to Rollbar when a token is configured.
// Debug entries are dropped unless the app runs in debug mode.
type RollbarLogger struct {
	std   *log.Logger
	debug bool
}

var _ core.Logger = (*RollbarLogger)(nil)

func NewRollbarLogger(std *log.Logger, conf *core.Config) *RollbarLogger {
	rollbar.SetToken(conf.RollbarToken)
	rollbar.SetEnvironment(conf.Env)
	rollbar.SetServerHost(conf.Server.Host)
	rollbar.SetCodeVersion(conf.Build)
	rollbar.SetStackTracer(errors.StackTracer)
	rollbar.SetScrubFields(scrubKeys)
	rollbar.SetEnabled(conf.RollbarToken != "")
	return &RollbarLogger{std: std, debug: conf.Debug}
}

func (l RollbarLogger) Enable(enabled bool) {
	rollbar.SetEnabled(enabled)
}

// Close waits for queued reports to be sent.
func (l RollbarLogger) Close() {
	rollbar.Close()
}

// entry is one log call, split into what goes to Rollbar and what gets printed.
type entry struct {
	msg    string
	err    error
	req    *http.Request
	caller *user.Identity
	extras map[string]interface{}
	other  []interface{}
}

// expected fmt: msg | error, map[string]interface{}, user.Identity, *http.Request
// Extras are merged (Rollbar keeps only one map) and scrubbed. The first Identity is the caller.
func (l RollbarLogger) prepare(msg string, args []interface{}) entry {
	e := entry{msg: msg}
	for _, arg := range args {
		switch v := arg.(type) {
		case user.Identity:
			if e.caller == nil { // only set one caller
				id := v
				e.caller = &id
			}
		case map[string]interface{}:
			if e.extras == nil {
				e.extras = make(map[string]interface{}, len(v))
			}
			for k, val := range v {
				e.extras[k] = scrub(k, val)
			}
		case *http.Request:
			e.req = v
		case error:
			if e.err == nil {
				e.err = v
			} else {
				e.other = append(e.other, v)
			}
		default:
			e.other = append(e.other, v)
		}
	}
	return e
}

func scrub(key string, val interface{}) interface{} {
	if scrubKeys.MatchString(key) {
		return redacted
	}
	if nested, ok := val.(map[string]interface{}); ok {
		out := make(map[string]interface{}, len(nested))
		for k, v := range nested {
			out[k] = scrub(k, v)
		}
		return out
	}
	return val
}

// rollbarArgs builds the arguments of rollbar.Log. The caller travels in the context so
// concurrent requests do not overwrite each other's person.
func (e entry) rollbarArgs() []interface{} {
	args := []interface{}{e.msg}
	if e.err != nil {
		args = append(args, e.err)
	}
	if e.req != nil {
		args = append(args, e.req)
	}

	extras := e.extras
	if len(e.other) > 0 {
		if extras == nil {
			extras = make(map[string]interface{})
		}
		details := make([]string, 0, len(e.other))
		for _, o := range e.other {
			details = append(details, fmt.Sprintf("%+v", o))
		}
		extras["details"] = details
	}
	if extras != nil {
		args = append(args, extras)
	}

	if e.caller != nil {
		p := &rollbar.Person{Id: e.caller.ID, Username: e.caller.Role, Email: e.caller.Email}
		args = append(args, rollbar.NewPersonContext(context.Background(), p))
	}
	return args
}

func (l RollbarLogger) print(level string, e entry) {
	var b strings.Builder
	b.WriteString(level + " " + e.msg)
	if e.req != nil {
		b.WriteString(fmt.Sprintf(" [%s %s]", e.req.Method, e.req.URL.Path))
	}
	if e.caller != nil {
		b.WriteString(fmt.Sprintf(" (%s %s)", e.caller.Role, e.caller.ID))
	}
	l.std.Println(b.String())

	if e.err != nil {
		l.std.Printf("%+v\n", e.err)
	}
	if len(e.extras) > 0 {
		keys := make([]string, 0, len(e.extras))
		for k := range e.extras {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		pairs := make([]string, 0, len(keys))
		for _, k := range keys {
			pairs = append(pairs, fmt.Sprintf("%s=%v", k, e.extras[k]))
		}
		l.std.Println(strings.Join(pairs, " "))
	}
	for _, o := range e.other {
		l.std.Printf("%+v\n", o)
	}
}

func (l RollbarLogger) log(level, label, msg string, args []interface{}) {
	e := l.prepare(msg, args)
	rollbar.Log(level, e.rollbarArgs()...)
	l.print(label, e)
}

func (l RollbarLogger) Debug(msg string, args ...interface{}) {
	if !l.debug {
		return
	}
	l.log(rollbar.DEBUG, "DEBUG", msg, args)
}

func (l RollbarLogger) Info(msg string, args ...interface{}) {
	l.log(rollbar.INFO, "INFO", msg, args)
}

func (l RollbarLogger) Warn(msg string, args ...interface{}) {
	l.log(rollbar.WARN, "WARN", msg, args)
}

func (l RollbarLogger) Error(msg string, args ...interface{}) {
	l.log(rollbar.ERR, "ERROR", msg, args)
}

func (l RollbarLogger) Fatal(msg string, args ...interface{}) {
	e := l.prepare(msg, args)
	rollbar.Log(rollbar.CRIT, e.rollbarArgs()...)
	l.print("FATAL", e)
	rollbar.Close()
	l.std.Fatal(msg)
}
