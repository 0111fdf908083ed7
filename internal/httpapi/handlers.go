// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authentic Contributors

package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/samber/oops"

	"github.com/authentic-auth/authentic/internal/auth"
)

// Success messages.
const (
	MsgSignedUp      = "User created successfully"
	MsgVerified      = "Email verified successfully"
	MsgLoggedIn      = "Logged in successfully"
	MsgLoggedOut     = "Logged out successfully"
	MsgResetSent     = "Password reset link sent to your email"
	MsgResetComplete = "Password reset successful"
)

// SignupRequest is the body of POST /signup.
type SignupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

// LoginRequest is the body of POST /login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// VerifyEmailRequest is the body of POST /verify-email.
type VerifyEmailRequest struct {
	Code string `json:"code"`
}

// ForgotPasswordRequest is the body of POST /forgot-password.
type ForgotPasswordRequest struct {
	Email string `json:"email"`
}

// ResetPasswordRequest is the body of POST /reset-password/{token}.
type ResetPasswordRequest struct {
	Password string `json:"password"`
}

func (a *api) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if err := decodeBody(w, r, &req); err != nil {
		a.respondWithError(w, r, err)
		return
	}

	result, err := a.svc.Signup(r.Context(), req.Email, req.Password, req.Name)
	if err != nil {
		a.respondWithError(w, r, err)
		return
	}

	a.setSessionCookie(w, result.Session)
	a.respondWithJSON(w, r, http.StatusCreated, Envelope{
		Success: true,
		Message: MsgSignedUp,
		User:    result.Principal,
	})
}

func (a *api) handleVerifyEmail(w http.ResponseWriter, r *http.Request) {
	var req VerifyEmailRequest
	if err := decodeBody(w, r, &req); err != nil {
		a.respondWithError(w, r, err)
		return
	}

	view, err := a.svc.VerifyEmail(r.Context(), req.Code)
	if err != nil {
		a.respondWithError(w, r, err)
		return
	}

	a.respondWithJSON(w, r, http.StatusOK, Envelope{
		Success: true,
		Message: MsgVerified,
		User:    view,
	})
}

func (a *api) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeBody(w, r, &req); err != nil {
		a.respondWithError(w, r, err)
		return
	}

	result, err := a.svc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		a.respondWithError(w, r, err)
		return
	}

	a.setSessionCookie(w, result.Session)
	a.respondWithJSON(w, r, http.StatusOK, Envelope{
		Success: true,
		Message: MsgLoggedIn,
		User:    result.Principal,
	})
}

func (a *api) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := a.svc.Logout(r.Context()); err != nil {
		a.respondWithError(w, r, err)
		return
	}

	a.clearSessionCookie(w)
	a.respondWithJSON(w, r, http.StatusOK, Envelope{
		Success: true,
		Message: MsgLoggedOut,
	})
}

func (a *api) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req ForgotPasswordRequest
	if err := decodeBody(w, r, &req); err != nil {
		a.respondWithError(w, r, err)
		return
	}

	sent, err := a.svc.ForgotPassword(r.Context(), req.Email)
	if err != nil {
		a.respondWithError(w, r, err)
		return
	}

	if !sent {
		a.respondWithJSON(w, r, http.StatusOK, Envelope{
			Success: false,
			Message: auth.MsgUserNotFound,
		})
		return
	}
	a.respondWithJSON(w, r, http.StatusOK, Envelope{
		Success: true,
		Message: MsgResetSent,
	})
}

func (a *api) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequest
	if err := decodeBody(w, r, &req); err != nil {
		a.respondWithError(w, r, err)
		return
	}

	token := mux.Vars(r)["token"]
	if err := a.svc.ResetPassword(r.Context(), token, req.Password); err != nil {
		a.respondWithError(w, r, err)
		return
	}

	a.respondWithJSON(w, r, http.StatusOK, Envelope{
		Success: true,
		Message: MsgResetComplete,
	})
}

func (a *api) handleCheckAuth(w http.ResponseWriter, r *http.Request) {
	id, ok := principalFrom(r.Context())
	if !ok {
		a.respondWithError(w, r, oops.Code(auth.CodeUnauthorized).
			Public(auth.MsgNoToken).
			Errorf("no session principal in context"))
		return
	}

	view, err := a.svc.CheckAuth(r.Context(), id)
	if err != nil {
		a.respondWithError(w, r, err)
		return
	}

	a.respondWithJSON(w, r, http.StatusOK, Envelope{
		Success: true,
		User:    view,
	})
}

func (a *api) handleNotFound(w http.ResponseWriter, r *http.Request) {
	a.logger.DebugContext(r.Context(), "invalid route", "method", r.Method, "path", r.URL.Path)
	a.respondWithJSON(w, r, http.StatusNotFound, Envelope{Success: false, Message: "Not found"})
}

func (a *api) handleMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	a.respondWithJSON(w, r, http.StatusMethodNotAllowed, Envelope{Success: false, Message: "Method not allowed"})
}
