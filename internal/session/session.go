// Package session runs one authorized scan submission and resolves the
// service's verdict: findings, a trial-token grant with a single bounded
// resubmission, a payment block, or a failure the caller may retry manually.
package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/earosenfeld/clausi-cli/internal/api"
)

// submitter is the slice of the service client the session needs.
type submitter interface {
	SubmitScan(ctx context.Context, payload api.ScanPayload, token string) (*api.ScanResponse, error)
}

// tokenStore persists issued credentials. The grant is written before any
// resubmission so a crash in between leaves it usable on the next run.
type tokenStore interface {
	SaveToken(token string) error
}

// Session drives one logical scan invocation.
type Session struct {
	client submitter
	store  tokenStore
	log    *zap.SugaredLogger
}

func New(client submitter, store tokenStore, log *zap.SugaredLogger) *Session {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Session{client: client, store: store, log: log}
}

// Run submits the scan and resolves the response. A 401 carrying a fresh
// token is persisted and the identical request resubmitted at most once; a
// second 401 fails. A 402 comes back as *api.AuthorizationError, transport
// failures as *api.TransportError, every other non-200 as *api.RemoteError.
// The session never resubmits on its own for anything but the token grant.
func (s *Session) Run(ctx context.Context, payload api.ScanPayload, token string) (*api.ScanSuccess, error) {
	for attempt := 1; ; attempt++ {
		s.log.Debugw("submitting scan", "attempt", attempt)
		resp, err := s.client.SubmitScan(ctx, payload, token)
		if err != nil {
			return nil, err
		}

		switch {
		case resp.Status == http.StatusOK:
			s.log.Debugw("scan accepted", "findings", len(resp.Success.Findings))
			return resp.Success, nil

		case resp.Status == http.StatusUnauthorized && resp.NewToken != "" && attempt == 1:
			// Persist first: the grant must survive a crash between
			// issuance and the resubmission that consumes it.
			if err := s.store.SaveToken(resp.NewToken); err != nil {
				return nil, fmt.Errorf("persist issued token: %w", err)
			}
			s.log.Infow("trial token issued, resubmitting", "credits", resp.Credits)
			token = resp.NewToken

		case resp.Status == http.StatusUnauthorized:
			return nil, &api.RemoteError{Stage: "scan", Status: resp.Status, Body: "credential rejected"}

		case resp.Status == http.StatusPaymentRequired:
			return nil, &api.AuthorizationError{CheckoutURL: resp.CheckoutURL}

		default:
			return nil, &api.RemoteError{Stage: "scan", Status: resp.Status, Body: resp.BodyExcerpt}
		}
	}
}

// Recoverable reports whether a failed invocation is worth re-running
// unchanged. Transport failures and server-side errors are; everything else
// needs operator action first.
func Recoverable(err error) bool {
	var transport *api.TransportError
	if errors.As(err, &transport) {
		return true
	}
	var remote *api.RemoteError
	if errors.As(err, &remote) {
		return remote.Status >= 500
	}
	return false
}
