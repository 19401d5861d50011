package main

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

const apiPrefix = "/api"

// Reply modes of a failure rule.
const (
	// replyStatus answers with a plain-text HTTP error status.
	replyStatus = "status"
	// replyEnvelope answers HTTP 200 with a Kra failure envelope.
	replyEnvelope = "envelope"
	// replyContradict answers HTTP 200 with a success code and a failure msg.
	replyContradict = "contradict"
	// replyGarbage answers HTTP 200 with a body that is not JSON.
	replyGarbage = "garbage"
)

const defaultFailMsg = "Injected failure"

// failRule fails API requests whose path matches path.
type failRule struct {
	// path is relative to /api. Empty matches every endpoint; a trailing
	// slash matches the whole subtree.
	path  string
	rate  float64
	reply string
	code  int
	msg   string
}

type failConfig struct {
	rules []failRule
	// roll returns a value in [0,1); nil means math/rand.
	roll func() float64
}

func (r failRule) matches(apiPath string) bool {
	switch {
	case r.path == "":
		return true
	case strings.HasSuffix(r.path, "/"):
		return strings.HasPrefix(apiPath, r.path)
	default:
		return apiPath == r.path
	}
}

func injectLatency(delay time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if delay > 0 {
				select {
				case <-time.After(delay):
				case <-r.Context().Done():
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// injectFailures applies the first matching rule that fires. Paths outside
// /api are never failed.
func injectFailures(cfg failConfig, logger zerolog.Logger) func(http.Handler) http.Handler {
	roll := cfg.roll
	if roll == nil {
		roll = rand.Float64
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			apiPath, ok := strings.CutPrefix(r.URL.Path, apiPrefix)
			if !ok || len(cfg.rules) == 0 {
				next.ServeHTTP(w, r)
				return
			}
			for _, rule := range cfg.rules {
				if !rule.matches(apiPath) || rule.rate <= 0 || roll() >= rule.rate {
					continue
				}
				logger.Info().
					Str("request_id", middleware.GetReqID(r.Context())).
					Str("path", apiPath).
					Str("reply", rule.reply).
					Int("status", rule.code).
					Msg("failure injected")
				writeFailure(w, rule)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeFailure(w http.ResponseWriter, rule failRule) {
	msg := rule.msg
	if msg == "" {
		msg = defaultFailMsg
	}
	switch rule.reply {
	case replyEnvelope:
		writeBody(w, map[string]any{"success": 0, "msg": msg})
	case replyContradict:
		writeBody(w, map[string]any{"success": 1, "msg": msg, "data": []any{}})
	case replyGarbage:
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusOK)
		_, _ = fmt.Fprintf(w, "<html><body>%s</body></html>", msg)
	default:
		http.Error(w, msg, rule.code)
	}
}

func writeBody(w http.ResponseWriter, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(body)
}

// parseFailConfig reads rules separated by ";". Each rule is a comma list of
// key=value pairs: path, rate (default 1), reply (status, envelope,
// contradict or garbage), code (status replies, default 500) and msg.
func parseFailConfig(raw string) (failConfig, error) {
	var cfg failConfig
	for _, spec := range strings.Split(raw, ";") {
		if strings.TrimSpace(spec) == "" {
			continue
		}
		rule, err := parseFailRule(spec)
		if err != nil {
			return failConfig{}, err
		}
		cfg.rules = append(cfg.rules, rule)
	}
	return cfg, nil
}

func parseFailRule(spec string) (failRule, error) {
	rule := failRule{rate: 1, reply: replyStatus, code: http.StatusInternalServerError}
	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		key, val, ok := strings.Cut(part, "=")
		if !ok {
			return failRule{}, fmt.Errorf("invalid fail segment %q", part)
		}
		val = strings.TrimSpace(val)
		switch strings.TrimSpace(key) {
		case "path":
			if val != "" && !strings.HasPrefix(val, "/") {
				return failRule{}, fmt.Errorf("fail path %q must start with /", val)
			}
			if rest, ok := strings.CutPrefix(val, apiPrefix+"/"); ok {
				val = "/" + rest
			}
			rule.path = val
		case "rate":
			rate, err := strconv.ParseFloat(val, 64)
			if err != nil {
				return failRule{}, err
			}
			if rate < 0 || rate > 1 {
				return failRule{}, fmt.Errorf("fail rate %v out of range [0,1]", rate)
			}
			rule.rate = rate
		case "reply":
			switch val {
			case replyStatus, replyEnvelope, replyContradict, replyGarbage:
				rule.reply = val
			default:
				return failRule{}, fmt.Errorf("unknown fail reply %q", val)
			}
		case "code":
			code, err := strconv.Atoi(val)
			if err != nil {
				return failRule{}, err
			}
			if code < 400 || code > 599 {
				return failRule{}, fmt.Errorf("fail code %d is not an HTTP error status", code)
			}
			rule.code = code
		case "msg":
			rule.msg = val
		default:
			return failRule{}, fmt.Errorf("unknown fail key %q", key)
		}
	}
	return rule, nil
}
