package app

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mlabs/kra_sdk_go/internal/devseed"
	"github.com/mlabs/kra_sdk_go/internal/session"
	"github.com/mlabs/kra_sdk_go/pkg/kra"
	"github.com/mlabs/kra_sdk_go/pkg/kra/mock"
)

const (
	modeAuto = "auto"
	modeHTTP = "http"
	modeMock = "mock"
)

// runtime is everything a command needs: the client and the session store.
type runtime struct {
	mode   string
	client *kra.Client
	store  *session.Store
}

// resolveMode maps auto to mock when a seed file is configured and to http
// otherwise.
func resolveMode(mode, seed string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "", modeHTTP:
		return modeHTTP, nil
	case modeMock:
		return modeMock, nil
	case modeAuto:
		if strings.TrimSpace(seed) != "" {
			return modeMock, nil
		}
		return modeHTTP, nil
	default:
		return "", fmt.Errorf("unsupported mode %q", mode)
	}
}

func (a *app) newRuntime() (*runtime, error) {
	mode, err := resolveMode(a.v.GetString("mode"), a.v.GetString("seed"))
	if err != nil {
		return nil, err
	}

	path := a.v.GetString("session-file")
	if path == "" {
		if path, err = session.DefaultPath(); err != nil {
			return nil, err
		}
	}
	store, err := session.NewStore(a.fs, path)
	if err != nil {
		return nil, err
	}

	opts := []kra.Option{
		kra.WithLogger(a.logger),
		kra.WithUnauthorizedHook(func(op kra.Operation) {
			a.logger.Warn().Str("op", op.String()).Msg("session rejected, clearing saved login")
			if err := store.Clear(); err != nil {
				a.logger.Error().Err(err).Msg("clear session")
			}
		}),
	}

	rt := &runtime{mode: mode, store: store}
	switch mode {
	case modeHTTP:
		if u := a.v.GetString("api-url"); u != "" {
			opts = append(opts, kra.WithBaseURL(u))
		}
		if u := a.v.GetString("upload-url"); u != "" {
			opts = append(opts, kra.WithUploadURL(u))
		}
		if d := a.v.GetDuration("timeout"); d > 0 {
			opts = append(opts, kra.WithTimeout(d))
		}
		if rt.client, err = kra.New(opts...); err != nil {
			return nil, fmt.Errorf("init HTTP client: %w", err)
		}
	case modeMock:
		srv, err := a.newMockServer(store)
		if err != nil {
			return nil, err
		}
		rt.client = kra.NewWithTransport(mock.NewTransport(srv), opts...)
	}

	a.logger.Debug().Str("mode", mode).Str("session_file", store.Path()).Msg("runtime ready")
	return rt, nil
}

// newMockServer seeds a fake API and re-registers the saved session so
// logins survive between invocations.
func (a *app) newMockServer(store *session.Store) (*mock.Server, error) {
	srv := mock.New(mock.WithLogger(a.logger))
	if path := strings.TrimSpace(a.v.GetString("seed")); path != "" {
		seed, err := devseed.Load(path)
		if err != nil {
			return nil, fmt.Errorf("load seed: %w", err)
		}
		if err := srv.Seed(seed); err != nil {
			return nil, fmt.Errorf("apply seed: %w", err)
		}
	}

	sess, err := store.Load()
	switch {
	case errors.Is(err, session.ErrNoSession):
	case err != nil:
		return nil, err
	default:
		if err := srv.AddSession(sess.Token, sess.Username); err != nil {
			a.logger.Debug().Err(err).Msg("saved session not restored")
		}
	}
	return srv, nil
}
